package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Sayat07/hacklive-system/middleware"
	"github.com/Sayat07/hacklive-system/models"
	"github.com/Sayat07/hacklive-system/services"
)

type fakeBroadcastService struct {
	executeFn func(ctx context.Context, eventSlug string, adminUserID int, input services.BroadcastCommandInput) (*models.BroadcastState, error)
	stateFn   func(ctx context.Context, eventSlug string) (*models.BroadcastState, error)
	logFn     func(ctx context.Context, eventSlug string, limit int) ([]*models.ControlLogEntry, error)
}

func (f *fakeBroadcastService) ExecuteCommand(ctx context.Context, eventSlug string, adminUserID int, input services.BroadcastCommandInput) (*models.BroadcastState, error) {
	return f.executeFn(ctx, eventSlug, adminUserID, input)
}

func (f *fakeBroadcastService) GetState(ctx context.Context, eventSlug string) (*models.BroadcastState, error) {
	return f.stateFn(ctx, eventSlug)
}

func (f *fakeBroadcastService) ListControlLog(ctx context.Context, eventSlug string, limit int) ([]*models.ControlLogEntry, error) {
	return f.logFn(ctx, eventSlug, limit)
}

func (f *fakeBroadcastService) CloseExpired(_ context.Context) (int, error) {
	return 0, nil
}

func newBroadcastTestRouter(svc services.BroadcastService) *chi.Mux {
	handler := NewBroadcastHandler(svc)
	router := chi.NewRouter()
	router.Route("/events/{slug}", func(r chi.Router) {
		r.Get("/state", handler.GetStateHandler)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(testJWTSecret))
			r.Use(middleware.Authorize(models.RoleAdmin))
			r.Post("/broadcast", handler.CommandHandler)
			r.Get("/control-log", handler.ControlLogHandler)
		})
	})
	return router
}

func TestCommandHandler(t *testing.T) {
	t.Run("applied command returns new state", func(t *testing.T) {
		svc := &fakeBroadcastService{
			executeFn: func(_ context.Context, eventSlug string, adminUserID int, input services.BroadcastCommandInput) (*models.BroadcastState, error) {
				if eventSlug != "demo-night" {
					t.Errorf("eventSlug = %s", eventSlug)
				}
				if adminUserID != 1 {
					t.Errorf("adminUserID = %d, want 1", adminUserID)
				}
				if input.Action != models.ActionOpenVoting {
					t.Errorf("action = %s, want open_voting", input.Action)
				}
				team := "Team 2"
				return &models.BroadcastState{
					EventSlug:       eventSlug,
					CurrentState:    models.PhaseVotingOpen,
					CurrentTeamName: &team,
					TeamsPresented:  []string{"Team 2"},
					UpdatedBy:       adminUserID,
				}, nil
			},
		}
		router := newBroadcastTestRouter(svc)

		req := httptest.NewRequest(http.MethodPost, "/events/demo-night/broadcast", strings.NewReader(`{"action":"open_voting"}`))
		req.Header.Set("Authorization", "Bearer "+signToken(t, 1, "admin"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
		}

		var resp struct {
			State models.BroadcastState `json:"state"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid response JSON: %v", err)
		}
		if resp.State.CurrentState != models.PhaseVotingOpen {
			t.Errorf("state = %s, want voting_open", resp.State.CurrentState)
		}
	})

	t.Run("participant role returns 403", func(t *testing.T) {
		router := newBroadcastTestRouter(&fakeBroadcastService{})

		req := httptest.NewRequest(http.MethodPost, "/events/demo-night/broadcast", strings.NewReader(`{"action":"open_voting"}`))
		req.Header.Set("Authorization", "Bearer "+signToken(t, 7, "participant"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("conflicting transition returns 409", func(t *testing.T) {
		svc := &fakeBroadcastService{
			executeFn: func(_ context.Context, _ string, _ int, _ services.BroadcastCommandInput) (*models.BroadcastState, error) {
				return nil, services.ErrVotingAlreadyOpen
			},
		}
		router := newBroadcastTestRouter(svc)

		req := httptest.NewRequest(http.MethodPost, "/events/demo-night/broadcast", strings.NewReader(`{"action":"open_voting"}`))
		req.Header.Set("Authorization", "Bearer "+signToken(t, 1, "admin"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("unknown action returns 400", func(t *testing.T) {
		svc := &fakeBroadcastService{
			executeFn: func(_ context.Context, _ string, _ int, _ services.BroadcastCommandInput) (*models.BroadcastState, error) {
				return nil, services.ErrInvalidAction
			},
		}
		router := newBroadcastTestRouter(svc)

		req := httptest.NewRequest(http.MethodPost, "/events/demo-night/broadcast", strings.NewReader(`{"action":"launch_fireworks"}`))
		req.Header.Set("Authorization", "Bearer "+signToken(t, 1, "admin"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestGetStateHandler(t *testing.T) {
	t.Run("public state endpoint", func(t *testing.T) {
		svc := &fakeBroadcastService{
			stateFn: func(_ context.Context, eventSlug string) (*models.BroadcastState, error) {
				return &models.BroadcastState{
					EventSlug:      eventSlug,
					CurrentState:   models.PhaseIdle,
					TeamsPresented: []string{},
				}, nil
			},
		}
		router := newBroadcastTestRouter(svc)

		req := httptest.NewRequest(http.MethodGet, "/events/demo-night/state", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("unknown event returns 404", func(t *testing.T) {
		svc := &fakeBroadcastService{
			stateFn: func(_ context.Context, _ string) (*models.BroadcastState, error) {
				return nil, services.ErrEventNotFound
			},
		}
		router := newBroadcastTestRouter(svc)

		req := httptest.NewRequest(http.MethodGet, "/events/missing/state", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestControlLogHandler(t *testing.T) {
	svc := &fakeBroadcastService{
		logFn: func(_ context.Context, _ string, limit int) ([]*models.ControlLogEntry, error) {
			if limit != 10 {
				t.Errorf("limit = %d, want 10", limit)
			}
			return []*models.ControlLogEntry{
				{EventSlug: "demo-night", Action: models.ActionOpenVoting, TriggeredBy: 1},
			}, nil
		},
	}
	router := newBroadcastTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/events/demo-night/control-log?limit=10", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, 1, "admin"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ControlLog []*models.ControlLogEntry `json:"control_log"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if len(resp.ControlLog) != 1 {
		t.Errorf("control_log length = %d, want 1", len(resp.ControlLog))
	}
}
