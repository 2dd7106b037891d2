package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/famboard/internal/handler"
	"github.com/dukerupert/famboard/internal/middleware"
	"github.com/dukerupert/famboard/internal/store"
	ws "github.com/dukerupert/famboard/internal/websocket"
)

// Options tunes the server beyond its database.
type Options struct {
	// SnapshotTimeout bounds GET /dashboard/snapshot.
	SnapshotTimeout time.Duration
}

type Server struct {
	db         *sql.DB
	hub        *ws.Hub
	healthH    *handler.HealthHandler
	choreH     *handler.ChoreHandler
	rosterH    *handler.RosterHandler
	memberH    *handler.MemberHandler
	rewardH    *handler.RewardHandler
	dashboardH *handler.DashboardHandler
	sessions   *store.SessionStore
	members    *store.MemberStore
	pinLimiter *middleware.AttemptLimiter
	logger     *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) *Server {
	if opts.SnapshotTimeout <= 0 {
		opts.SnapshotTimeout = 5 * time.Second
	}
	hub := ws.NewHub(logger.With("component", "websocket"))

	memberStore := store.NewMemberStore(db)
	choreStore := store.NewChoreStore(db)
	rosterStore := store.NewRosterStore(db)
	rewardStore := store.NewRewardStore(db)
	sessionStore := store.NewSessionStore(db)

	return &Server{
		db:      db,
		hub:     hub,
		healthH: handler.NewHealthHandler(db, logger.With("component", "health")),
		choreH:  handler.NewChoreHandler(choreStore, hub, logger.With("component", "chore")),
		rosterH: handler.NewRosterHandler(rosterStore, choreStore, memberStore, hub, logger.With("component", "roster")),
		memberH: handler.NewMemberHandler(memberStore, hub, logger.With("component", "member")),
		rewardH: handler.NewRewardHandler(rewardStore, hub, logger.With("component", "reward")),
		dashboardH: handler.NewDashboardHandler(handler.DashboardStores{
			Members: memberStore,
			Chores:  choreStore,
			Rewards: rewardStore,
			Events:  store.NewEventStore(db),
			Alerts:  store.NewAlertStore(db),
		}, hub, opts.SnapshotTimeout, logger.With("component", "dashboard")),
		sessions:   sessionStore,
		members:    memberStore,
		pinLimiter: middleware.NewAttemptLimiter(pinAttempts, pinWindow),
		logger:     logger,
	}
}

// Hub returns the push hub so a relay can be attached.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// RunMaintenance prunes expired sessions and rate-limit windows every
// interval until ctx is done.
func (s *Server) RunMaintenance(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pinLimiter.Prune()
			n, err := s.sessions.DeleteExpired(ctx)
			if err != nil {
				s.logger.Warn("prune sessions", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("pruned expired sessions", "count", n)
			}
		}
	}
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	outerMux.HandleFunc("GET /health", s.healthH.Health)

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessions, s.members)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

// PIN guesses allowed per member and device in each window.
const (
	pinAttempts = 10
	pinWindow   = time.Minute
)

func (s *Server) pinLimited(h http.HandlerFunc) http.Handler {
	return middleware.Limit(s.pinLimiter, middleware.PINAttemptKey)(h)
}

func parentOnly(h http.HandlerFunc) http.Handler {
	return middleware.RequireParent(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Chores
	mux.HandleFunc("GET /chores", s.choreH.List)
	mux.HandleFunc("POST /chores", s.choreH.Create)
	mux.HandleFunc("PUT /chores/{id}", s.choreH.Update)
	mux.HandleFunc("DELETE /chores/{id}", s.choreH.Delete)
	mux.HandleFunc("PUT /chores/{id}/complete", s.choreH.Complete)
	mux.HandleFunc("PUT /chores/{id}/uncomplete", s.choreH.Uncomplete)

	// Rosters. Management views are for parents; each child reads their own
	// chores through my-chores.
	mux.Handle("GET /rosters", parentOnly(s.rosterH.List))
	mux.Handle("GET /rosters/members", parentOnly(s.rosterH.Members))
	mux.HandleFunc("POST /rosters", s.rosterH.Create)
	mux.HandleFunc("PUT /rosters/{id}", s.rosterH.Rename)
	mux.HandleFunc("DELETE /rosters/{id}", s.rosterH.Delete)
	mux.HandleFunc("POST /rosters/{id}/assign", s.rosterH.Assign)
	mux.HandleFunc("DELETE /rosters/{id}/assign/{memberId}", s.rosterH.Unassign)
	mux.HandleFunc("POST /rosters/{id}/chores", s.rosterH.AddChore)
	mux.HandleFunc("POST /rosters/{id}/chores/from/{choreId}", s.rosterH.MoveChore)
	mux.HandleFunc("DELETE /rosters/{id}/chores/{choreId}", s.rosterH.RemoveChore)
	mux.HandleFunc("GET /rosters/my-chores", s.rosterH.MyChores)
	mux.HandleFunc("GET /rosters/family-overview", s.rosterH.FamilyOverview)
	mux.Handle("GET /rosters/board", parentOnly(s.rosterH.Board))
	mux.Handle("POST /rosters/drop", parentOnly(s.rosterH.Drop))

	// Members
	mux.HandleFunc("GET /members/me", s.memberH.Me)
	mux.HandleFunc("POST /members/{id}/pin", s.memberH.SetPIN)
	mux.HandleFunc("DELETE /members/{id}/pin", s.memberH.ClearPIN)
	mux.Handle("POST /members/{id}/pin/verify", s.pinLimited(s.memberH.VerifyPIN))

	// Rewards
	mux.HandleFunc("GET /rewards", s.rewardH.List)
	mux.HandleFunc("POST /rewards", s.rewardH.Create)
	mux.HandleFunc("DELETE /rewards/{id}", s.rewardH.Delete)
	mux.HandleFunc("POST /rewards/{id}/redeem", s.rewardH.Redeem)

	// Dashboard
	mux.HandleFunc("GET /dashboard/league-table", s.dashboardH.League)
	mux.HandleFunc("GET /dashboard/events", s.dashboardH.Events)
	mux.HandleFunc("GET /dashboard/alerts", s.dashboardH.Alerts)
	mux.HandleFunc("POST /dashboard/alerts/{id}/feedback", s.dashboardH.Feedback)
	mux.HandleFunc("POST /dashboard/alerts/{id}/dismiss", s.dashboardH.Dismiss)
	mux.HandleFunc("GET /dashboard/snapshot", s.dashboardH.Snapshot)
	mux.HandleFunc("GET /dashboard/ws", ws.HandleWebSocket(s.hub))
}
