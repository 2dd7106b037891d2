package auth

import (
	"context"

	"github.com/dukerupert/famboard/internal/model"
)

type contextKey struct{}

// AuthContext is the identity attached to an authenticated request.
type AuthContext struct {
	Member    *model.Member
	SessionID int64
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

// Member returns the signed-in member, or nil.
func Member(ctx context.Context) *model.Member {
	ac, ok := FromContext(ctx)
	if !ok {
		return nil
	}
	return ac.Member
}

func MemberID(ctx context.Context) int64 {
	if m := Member(ctx); m != nil {
		return m.ID
	}
	return 0
}

func IsParent(ctx context.Context) bool {
	return Member(ctx).IsParent()
}
