package model

import "time"

type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

func (r Role) Valid() bool {
	return r == RoleParent || r == RoleChild
}

type Member struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Color     *string   `json:"color"`
	Role      Role      `json:"role"`
	HasPIN    bool      `json:"has_pin"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsParent reports whether the member may manage the whole family.
func (m *Member) IsParent() bool {
	return m != nil && m.Role == RoleParent
}

// Standing is a member's derived points and money balance.
type Standing struct {
	MemberID int64   `json:"member_id"`
	Points   int     `json:"points"`
	Earned   float64 `json:"earned"`
	Spent    float64 `json:"spent"`
	Balance  float64 `json:"balance"`
}

// MemberWithStanding is the current-user payload.
type MemberWithStanding struct {
	Member
	Points  int     `json:"points"`
	Balance float64 `json:"balance"`
}
