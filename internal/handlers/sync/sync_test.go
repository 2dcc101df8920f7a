package sync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	domain "erp-sync-service/internal/domain/sync"
	xerrors "erp-sync-service/internal/pkg/errors"
	"erp-sync-service/internal/pkg/response"
	"erp-sync-service/internal/pkg/session"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubRunner struct {
	customerParams domain.CustomerSyncParams
	orderParams    domain.OrderSyncParams
	customerResult *domain.CustomerSyncResult
	orderResult    *domain.OrderSyncResult
	err            error
	runCtxErr      error
	runDeadline    time.Time
}

func (s *stubRunner) observe(ctx context.Context) {
	s.runCtxErr = ctx.Err()
	s.runDeadline, _ = ctx.Deadline()
}

func (s *stubRunner) CustomerParams(req *domain.CustomerSyncRequest, triggeredBy *int64) domain.CustomerSyncParams {
	p := domain.CustomerSyncParams{WindowMonths: 12, TriggeredBy: triggeredBy}
	if req.WindowMonths != nil {
		p.WindowMonths = *req.WindowMonths
	}
	return p
}

func (s *stubRunner) OrderParams(req *domain.OrderSyncRequest, triggeredBy *int64) domain.OrderSyncParams {
	return domain.OrderSyncParams{DaysBack: 30, CustomerID: req.CustomerID, TriggeredBy: triggeredBy}
}

func (s *stubRunner) RunCustomers(ctx context.Context, p domain.CustomerSyncParams) (*domain.CustomerSyncResult, error) {
	s.customerParams = p
	s.observe(ctx)
	return s.customerResult, s.err
}

func (s *stubRunner) RunOrders(ctx context.Context, p domain.OrderSyncParams) (*domain.OrderSyncResult, error) {
	s.orderParams = p
	s.observe(ctx)
	return s.orderResult, s.err
}

type stubRuns struct {
	runs []domain.SyncRun
	kind domain.Kind
}

func (s *stubRuns) FindByID(_ context.Context, id string) (*domain.SyncRun, error) {
	for i := range s.runs {
		if s.runs[i].ID == id {
			return &s.runs[i], nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (s *stubRuns) List(_ context.Context, kind domain.Kind, _ int) ([]domain.SyncRun, error) {
	s.kind = kind
	return s.runs, nil
}

type stubSession struct {
	invalidated bool
}

func (s *stubSession) Status() session.Status {
	if s.invalidated {
		return session.Status{State: session.StateAbsent, Invalidations: 1}
	}
	return session.Status{State: session.StateValid}
}

func (s *stubSession) InvalidateSession() { s.invalidated = true }

func newRouter(h *SyncHandler) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("identity_id", int64(5))
		c.Next()
	})
	r.POST("/sync/customers", h.TriggerCustomers)
	r.POST("/sync/orders", h.TriggerOrders)
	r.GET("/sync/runs", h.ListRuns)
	r.GET("/sync/runs/:id", h.GetRun)
	r.GET("/sync/session", h.SessionStatus)
	r.DELETE("/sync/session", h.InvalidateSession)
	return r
}

func do(r http.Handler, method, path, body string) (*httptest.ResponseRecorder, response.Response) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env response.Response
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func completedCustomers() *domain.CustomerSyncResult {
	res := domain.NewCustomerSyncResult(time.Now())
	res.Synced = 3
	res.Complete(time.Now())
	return res
}

func TestTriggerCustomers(t *testing.T) {
	aborted := domain.NewCustomerSyncResult(time.Now())
	aborted.Abort(time.Now(), errors.New("login refused"))

	tests := []struct {
		name       string
		body       string
		result     *domain.CustomerSyncResult
		err        error
		wantStatus int
		wantData   bool
	}{
		{name: "completed with defaults", result: completedCustomers(), wantStatus: http.StatusOK, wantData: true},
		{name: "completed with overrides", body: `{"window_months": 6}`, result: completedCustomers(), wantStatus: http.StatusOK, wantData: true},
		{name: "already running", err: xerrors.ErrSyncInProgress, wantStatus: http.StatusConflict},
		{name: "aborted", result: aborted, err: &xerrors.AuthenticationError{Reason: "login refused"}, wantStatus: http.StatusBadGateway, wantData: true},
		{name: "invalid window", body: `{"window_months": 0}`, wantStatus: http.StatusBadRequest},
		{name: "malformed body", body: `{"window_months":`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &stubRunner{customerResult: tt.result, err: tt.err}
			r := newRouter(NewSyncHandler(runner, &stubRuns{}, &stubSession{}, time.Hour))

			w, env := do(r, http.MethodPost, "/sync/customers", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if (env.Data != nil) != tt.wantData {
				t.Fatalf("data present = %v, want %v", env.Data != nil, tt.wantData)
			}
			if tt.wantStatus == http.StatusOK && (runner.customerParams.TriggeredBy == nil || *runner.customerParams.TriggeredBy != 5) {
				t.Fatalf("triggered_by not propagated: %+v", runner.customerParams)
			}
		})
	}
}

func TestTriggerRunsOutliveTheRequest(t *testing.T) {
	runner := &stubRunner{customerResult: completedCustomers(), orderResult: domain.NewOrderSyncResult(time.Now())}
	r := newRouter(NewSyncHandler(runner, &stubRuns{}, &stubSession{}, time.Hour))

	for _, path := range []string{"/sync/customers", "/sync/orders"} {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req := httptest.NewRequest(http.MethodPost, path, nil).WithContext(ctx)
		before := time.Now()
		r.ServeHTTP(httptest.NewRecorder(), req)

		if runner.runCtxErr != nil {
			t.Errorf("%s: run saw the request's cancellation: %v", path, runner.runCtxErr)
		}
		if runner.runDeadline.Before(before.Add(59*time.Minute)) || runner.runDeadline.After(time.Now().Add(time.Hour)) {
			t.Errorf("%s: run deadline %v, want about an hour out", path, runner.runDeadline)
		}
	}
}

func TestTriggerCustomersPassesOverride(t *testing.T) {
	runner := &stubRunner{customerResult: completedCustomers()}
	r := newRouter(NewSyncHandler(runner, &stubRuns{}, &stubSession{}, time.Hour))

	do(r, http.MethodPost, "/sync/customers", `{"window_months": 6}`)

	if runner.customerParams.WindowMonths != 6 {
		t.Fatalf("window months = %d, want 6", runner.customerParams.WindowMonths)
	}
}

func TestTriggerOrders(t *testing.T) {
	done := domain.NewOrderSyncResult(time.Now())
	done.Errors = append(done.Errors, domain.UnitError{Unit: "order_lines", Key: "7", Message: "x"})
	done.Complete(time.Now())

	runner := &stubRunner{orderResult: done}
	r := newRouter(NewSyncHandler(runner, &stubRuns{}, &stubSession{}, time.Hour))

	w, env := do(r, http.MethodPost, "/sync/orders", `{"customer_id": 42}`)
	if w.Code != http.StatusOK || !env.Success {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if runner.orderParams.CustomerID == nil || *runner.orderParams.CustomerID != 42 {
		t.Fatalf("customer filter not passed: %+v", runner.orderParams)
	}

	runner.err = xerrors.ErrSyncInProgress
	runner.orderResult = nil
	if w, _ := do(r, http.MethodPost, "/sync/orders", ""); w.Code != http.StatusConflict {
		t.Fatalf("concurrent run status = %d", w.Code)
	}
}

func TestRuns(t *testing.T) {
	runs := &stubRuns{runs: []domain.SyncRun{{ID: "01HX", Kind: domain.KindOrders, Status: domain.StatusCompleted}}}
	r := newRouter(NewSyncHandler(&stubRunner{}, runs, &stubSession{}, time.Hour))

	if w, _ := do(r, http.MethodGet, "/sync/runs?kind=orders", ""); w.Code != http.StatusOK || runs.kind != domain.KindOrders {
		t.Fatalf("list status = %d kind = %q", w.Code, runs.kind)
	}
	if w, _ := do(r, http.MethodGet, "/sync/runs?kind=offers", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad kind status = %d", w.Code)
	}
	if w, _ := do(r, http.MethodGet, "/sync/runs?limit=abc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", w.Code)
	}
	if w, _ := do(r, http.MethodGet, "/sync/runs/01HX", ""); w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if w, _ := do(r, http.MethodGet, "/sync/runs/missing", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d", w.Code)
	}
}

func TestSessionEndpoints(t *testing.T) {
	sess := &stubSession{}
	r := newRouter(NewSyncHandler(&stubRunner{}, &stubRuns{}, sess, time.Hour))

	w, env := do(r, http.MethodGet, "/sync/session", "")
	if w.Code != http.StatusOK || strings.Contains(w.Body.String(), "token") {
		t.Fatalf("status response = %d %s", w.Code, w.Body.String())
	}
	if data, _ := env.Data.(map[string]interface{}); data["state"] != string(session.StateValid) {
		t.Fatalf("state = %v", env.Data)
	}

	if w, _ := do(r, http.MethodDelete, "/sync/session", ""); w.Code != http.StatusOK || !sess.invalidated {
		t.Fatalf("invalidate status = %d invalidated = %v", w.Code, sess.invalidated)
	}
}
