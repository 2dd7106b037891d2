package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/dukerupert/famboard/internal/model"
)

func TestChoreCreateAndList(t *testing.T) {
	env := setupHandlers(t)

	rec := env.do(t, env.parent, "POST", "/chores", map[string]any{
		"title":  "<i>Feed</i> the cat",
		"points": 3,
	})
	wantStatus(t, rec, http.StatusCreated)
	c := decodeBody[model.Chore](t, rec)
	if c.Title != "Feed the cat" || c.Points != 3 || c.Frequency != model.FrequencyDaily {
		t.Errorf("created chore = %+v", c)
	}
	if env.hub.n.Load() != 1 {
		t.Errorf("refreshes = %d, want 1", env.hub.n.Load())
	}

	rec = env.do(t, env.child, "GET", "/chores", nil)
	wantStatus(t, rec, http.StatusOK)
	if list := decodeBody[[]model.Chore](t, rec); len(list) != 1 {
		t.Errorf("listed %d chores, want 1", len(list))
	}
}

func TestChoreCreateErrors(t *testing.T) {
	env := setupHandlers(t)

	tests := []struct {
		name   string
		member *model.Member
		body   any
		status int
		msg    string
	}{
		{"child", env.child, map[string]any{"title": "Dishes"}, http.StatusForbidden, ""},
		{"empty title", env.parent, map[string]any{"title": "  "}, http.StatusBadRequest, "title is required"},
		{"bad frequency", env.parent, map[string]any{"title": "Dishes", "frequency": "hourly"}, http.StatusBadRequest, ""},
		{"bad json", env.parent, "not an object", http.StatusBadRequest, "invalid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.member, "POST", "/chores", tt.body)
			wantStatus(t, rec, tt.status)
			if msg := errorMessage(t, rec); tt.msg != "" && msg != tt.msg {
				t.Errorf("error = %q, want %q", msg, tt.msg)
			}
		})
	}
	if env.hub.n.Load() != 0 {
		t.Errorf("failed mutations refreshed %d times", env.hub.n.Load())
	}
}

func TestChoreUpdateAndDelete(t *testing.T) {
	env := setupHandlers(t)
	c := decodeBody[model.Chore](t, env.do(t, env.parent, "POST", "/chores", map[string]any{"title": "Dishes"}))

	rec := env.do(t, env.parent, "PUT", fmt.Sprintf("/chores/%d", c.ID), map[string]any{"title": "Dishes and pans", "frequency": "weekly"})
	wantStatus(t, rec, http.StatusOK)
	if got := decodeBody[model.Chore](t, rec); got.Title != "Dishes and pans" || got.Frequency != model.FrequencyWeekly {
		t.Errorf("updated chore = %+v", got)
	}

	wantStatus(t, env.do(t, env.parent, "DELETE", fmt.Sprintf("/chores/%d", c.ID), nil), http.StatusNoContent)
	wantStatus(t, env.do(t, env.parent, "DELETE", fmt.Sprintf("/chores/%d", c.ID), nil), http.StatusNotFound)
	wantStatus(t, env.do(t, env.parent, "DELETE", "/chores/abc", nil), http.StatusBadRequest)
}

func TestChoreImportedCannotBeDeleted(t *testing.T) {
	env := setupHandlers(t)
	rec := env.do(t, env.parent, "POST", "/chores", map[string]any{"title": "Maths homework", "source": "go4schools"})
	wantStatus(t, rec, http.StatusCreated)
	c := decodeBody[model.Chore](t, rec)

	for _, m := range []*model.Member{env.parent, env.child} {
		wantStatus(t, env.do(t, m, "DELETE", fmt.Sprintf("/chores/%d", c.ID), nil), http.StatusForbidden)
	}
}

func TestChoreCompleteUnlocksBonus(t *testing.T) {
	env := setupHandlers(t)
	var standard []model.Chore
	for _, title := range []string{"Make bed", "Feed cat"} {
		standard = append(standard, decodeBody[model.Chore](t, env.do(t, env.parent, "POST", "/chores", map[string]any{"title": title, "points": 2})))
	}
	bonus := decodeBody[model.Chore](t, env.do(t, env.parent, "POST", "/chores", map[string]any{
		"title": "Wash car", "is_bonus": true, "reward_money": 1.5,
	}))

	completePath := func(c model.Chore) string { return fmt.Sprintf("/chores/%d/complete", c.ID) }

	rec := env.do(t, env.child, "PUT", completePath(bonus), nil)
	wantStatus(t, rec, http.StatusForbidden)
	if msg := errorMessage(t, rec); msg != "complete all your standard chores first" {
		t.Errorf("bonus gate message = %q", msg)
	}

	wantStatus(t, env.do(t, env.child, "PUT", completePath(standard[0]), nil), http.StatusOK)
	wantStatus(t, env.do(t, env.child, "PUT", completePath(standard[0]), nil), http.StatusConflict)
	wantStatus(t, env.do(t, env.child, "PUT", completePath(standard[1]), nil), http.StatusOK)

	rec = env.do(t, env.child, "PUT", completePath(bonus), nil)
	wantStatus(t, rec, http.StatusOK)
	if got := decodeBody[model.Chore](t, rec); !got.IsCompleted {
		t.Error("bonus chore should be completed")
	}

	rec = env.do(t, env.child, "PUT", fmt.Sprintf("/chores/%d/uncomplete", bonus.ID), nil)
	wantStatus(t, rec, http.StatusOK)
	rec = env.do(t, env.child, "PUT", fmt.Sprintf("/chores/%d/uncomplete", bonus.ID), nil)
	wantStatus(t, rec, http.StatusConflict)
}

func TestChoreCompleteOnBehalf(t *testing.T) {
	env := setupHandlers(t)
	c := decodeBody[model.Chore](t, env.do(t, env.parent, "POST", "/chores", map[string]any{"title": "Dishes", "points": 4}))

	rec := env.do(t, env.parent, "PUT", fmt.Sprintf("/chores/%d/complete", c.ID), map[string]any{"user_id": env.child.ID})
	wantStatus(t, rec, http.StatusOK)

	me := decodeBody[model.MemberWithStanding](t, env.do(t, env.child, "GET", "/members/me", nil))
	if me.Points != 4 {
		t.Errorf("child points = %d, want 4", me.Points)
	}
}
