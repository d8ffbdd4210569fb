package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"coworking/internal/maintenance"
	apperrors "coworking/pkg/errors"
	"coworking/pkg/logger"
	"coworking/pkg/model"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockBookingService struct {
	reserveFunc     func(ctx context.Context, req *model.ReservationRequest) (*model.ReservationResult, error)
	orderEventFunc  func(ctx context.Context, event *model.OrderEvent) (*model.OrderOutcome, error)
	revalidateFunc  func(ctx context.Context, req *model.RevalidationRequest) (*model.RevalidationResult, error)
	listLocksFunc   func(ctx context.Context, resourceID string) ([]model.Lock, error)
	forceUnlockFunc func(ctx context.Context, resourceID, token string) error
	planningFunc    func(ctx context.Context, from, to string) ([]*model.Draft, error)
	rebuildFunc     func(ctx context.Context, resourceID string) (*model.RebuildResult, error)
}

func (m *mockBookingService) Reserve(ctx context.Context, req *model.ReservationRequest) (*model.ReservationResult, error) {
	return m.reserveFunc(ctx, req)
}

func (m *mockBookingService) HandleOrderEvent(ctx context.Context, event *model.OrderEvent) (*model.OrderOutcome, error) {
	return m.orderEventFunc(ctx, event)
}

func (m *mockBookingService) Finalize(ctx context.Context, event *model.OrderEvent) (*model.OrderOutcome, error) {
	return m.orderEventFunc(ctx, event)
}

func (m *mockBookingService) Cancel(ctx context.Context, event *model.OrderEvent) (*model.OrderOutcome, error) {
	return m.orderEventFunc(ctx, event)
}

func (m *mockBookingService) Revalidate(ctx context.Context, req *model.RevalidationRequest) (*model.RevalidationResult, error) {
	return m.revalidateFunc(ctx, req)
}

func (m *mockBookingService) ListLocks(ctx context.Context, resourceID string) ([]model.Lock, error) {
	return m.listLocksFunc(ctx, resourceID)
}

func (m *mockBookingService) ForceUnlock(ctx context.Context, resourceID, token string) error {
	return m.forceUnlockFunc(ctx, resourceID, token)
}

func (m *mockBookingService) Planning(ctx context.Context, from, to string) ([]*model.Draft, error) {
	return m.planningFunc(ctx, from, to)
}

func (m *mockBookingService) Rebuild(ctx context.Context, resourceID string) (*model.RebuildResult, error) {
	return m.rebuildFunc(ctx, resourceID)
}

type mockMaintenance struct {
	report *maintenance.Report
}

func (m *mockMaintenance) Run(ctx context.Context) *maintenance.Report {
	return m.report
}

func newRouter(svc *mockBookingService, runner MaintenanceRunner) *httprouter.Router {
	router := httprouter.New()
	NewBookingHandler(svc, runner, logger.Discard()).RegisterRoutes(router)
	return router
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestReserve(t *testing.T) {
	expires := time.Date(2025, time.June, 1, 9, 20, 0, 0, time.UTC)
	svc := &mockBookingService{
		reserveFunc: func(ctx context.Context, req *model.ReservationRequest) (*model.ReservationResult, error) {
			switch req.Start {
			case "2025-06-11":
				return nil, apperrors.RangeUnavailable("2025-06-11")
			case "2025-06-01":
				return nil, apperrors.LeadTimeViolation("2025-06-02")
			}
			return &model.ReservationResult{
				Token:       "tok-1",
				RedirectURL: "https://shop.example.com/cart",
				ResourceID:  req.ResourceID,
				Start:       req.Start,
				End:         req.Start,
				Price:       80,
				ExpiresAt:   expires,
				LockType:    model.LockStrict,
			}, nil
		},
	}
	router := newRouter(svc, nil)

	t.Run("created", func(t *testing.T) {
		rec := serve(router, http.MethodPost, "/api/v1/reservations", `{"resource_id":"meeting","tier":"day","start":"2025-06-10"}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		var body struct {
			Data struct {
				Token       string    `json:"token"`
				RedirectURL string    `json:"redirect_url"`
				ExpiresAt   time.Time `json:"expires_at"`
				Price       float64   `json:"price"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "tok-1", body.Data.Token)
		assert.Equal(t, "https://shop.example.com/cart", body.Data.RedirectURL)
		assert.True(t, expires.Equal(body.Data.ExpiresAt))
		assert.Equal(t, float64(80), body.Data.Price)
	})

	t.Run("range conflict", func(t *testing.T) {
		rec := serve(router, http.MethodPost, "/api/v1/reservations", `{"resource_id":"meeting","tier":"day","start":"2025-06-11"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), `"date":"2025-06-11"`)
	})

	t.Run("lead time", func(t *testing.T) {
		rec := serve(router, http.MethodPost, "/api/v1/reservations", `{"resource_id":"meeting","tier":"day","start":"2025-06-01"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), apperrors.CodeLeadTime)
	})

	t.Run("malformed", func(t *testing.T) {
		rec := serve(router, http.MethodPost, "/api/v1/reservations", `{"resource_id":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRevalidate(t *testing.T) {
	svc := &mockBookingService{
		revalidateFunc: func(ctx context.Context, req *model.RevalidationRequest) (*model.RevalidationResult, error) {
			result := &model.RevalidationResult{}
			for _, line := range req.Lines {
				outcome := model.OutcomeKept
				if line.LockToken == "gone" {
					outcome = model.OutcomeEvicted
					result.Evicted++
				}
				result.Lines = append(result.Lines, model.LineResult{LockToken: line.LockToken, Outcome: outcome})
			}
			return result, nil
		},
	}
	router := newRouter(svc, nil)

	rec := serve(router, http.MethodPost, "/api/v1/cart/revalidate",
		`{"lines":[{"resource_id":"meeting","start":"2025-06-10","end":"2025-06-10","lock_token":"t-1"}]}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, http.MethodPost, "/api/v1/cart/revalidate",
		`{"lines":[{"resource_id":"meeting","start":"2025-06-10","end":"2025-06-10","lock_token":"gone"}]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outcome":"evicted"`)
}

func TestOrderEvent(t *testing.T) {
	var received *model.OrderEvent
	svc := &mockBookingService{
		orderEventFunc: func(ctx context.Context, event *model.OrderEvent) (*model.OrderOutcome, error) {
			received = event
			if event.OrderID == "broken" {
				return nil, apperrors.Internal("write failed", errors.New("mongo down"))
			}
			return &model.OrderOutcome{OrderID: event.OrderID, Action: model.ActionFinalized, Recorded: 1}, nil
		},
	}
	router := newRouter(svc, nil)

	rec := serve(router, http.MethodPost, "/api/v1/orders/events",
		`{"order_id":"1001","status":"completed","consent":true,"lines":[{"lock_token":"t-1"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, received.Consent)
	assert.Contains(t, rec.Body.String(), `"action":"finalized"`)

	rec = serve(router, http.MethodPost, "/api/v1/orders/events", `{"order_id":"broken","status":"completed"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "mongo down")
}

func TestAdminRoutes(t *testing.T) {
	var unlocked [2]string
	svc := &mockBookingService{
		listLocksFunc: func(ctx context.Context, resourceID string) ([]model.Lock, error) {
			if resourceID == "ghost" {
				return nil, apperrors.NotFoundWithID("Resource", resourceID)
			}
			return []model.Lock{{Token: "t-1", Quantity: 1, Kind: model.LockFlexible}}, nil
		},
		forceUnlockFunc: func(ctx context.Context, resourceID, token string) error {
			unlocked = [2]string{resourceID, token}
			return nil
		},
		planningFunc: func(ctx context.Context, from, to string) ([]*model.Draft, error) {
			return []*model.Draft{{Token: "t-1", State: model.StateConfirmed, Start: from, End: to}}, nil
		},
		rebuildFunc: func(ctx context.Context, resourceID string) (*model.RebuildResult, error) {
			return &model.RebuildResult{ResourceID: resourceID, Orders: 2, Records: 3}, nil
		},
	}
	router := newRouter(svc, &mockMaintenance{report: &maintenance.Report{DraftsDeleted: 4}})

	rec := serve(router, http.MethodGet, "/api/v1/admin/resources/desks/locks", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"lock_type":"flexible"`)

	rec = serve(router, http.MethodGet, "/api/v1/admin/resources/ghost/locks", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(router, http.MethodDelete, "/api/v1/admin/resources/desks/locks/t-9", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, [2]string{"desks", "t-9"}, unlocked)

	rec = serve(router, http.MethodGet, "/api/v1/admin/reservations?from=2025-06-01&to=2025-06-30", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"CONFIRMED"`)

	rec = serve(router, http.MethodGet, "/api/v1/admin/reservations?from=2025-06-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, http.MethodPost, "/api/v1/admin/resources/desks/rebuild", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"records":3`)

	rec = serve(router, http.MethodPost, "/api/v1/admin/maintenance", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"drafts_deleted":4`)
}

func TestAdminMaintenance_PartialFailure(t *testing.T) {
	router := newRouter(&mockBookingService{}, &mockMaintenance{report: &maintenance.Report{Errors: []string{"lock sweep: redis down"}}})

	rec := serve(router, http.MethodPost, "/api/v1/admin/maintenance", "")
	assert.Equal(t, http.StatusMultiStatus, rec.Code)
}

type stubPinger struct {
	name string
	err  error
}

func (p stubPinger) Name() string { return p.name }
func (p stubPinger) Ping(ctx context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	router := httprouter.New()
	NewHealthHandler(logger.Discard(), stubPinger{name: "mongo"}, stubPinger{name: "redis", err: errors.New("refused")}).RegisterRoutes(router)

	rec := serve(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"error"`)
	assert.Contains(t, rec.Body.String(), `"mongo":"ok"`)
}
