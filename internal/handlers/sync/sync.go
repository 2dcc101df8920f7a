// internal/handlers/sync/sync.go
package sync

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	domain "erp-sync-service/internal/domain/sync"
	"erp-sync-service/internal/middleware"
	xerrors "erp-sync-service/internal/pkg/errors"
	"erp-sync-service/internal/pkg/response"
	"erp-sync-service/internal/pkg/session"

	"github.com/gin-gonic/gin"
)

// Runner starts sync runs.
type Runner interface {
	CustomerParams(req *domain.CustomerSyncRequest, triggeredBy *int64) domain.CustomerSyncParams
	OrderParams(req *domain.OrderSyncRequest, triggeredBy *int64) domain.OrderSyncParams
	RunCustomers(ctx context.Context, p domain.CustomerSyncParams) (*domain.CustomerSyncResult, error)
	RunOrders(ctx context.Context, p domain.OrderSyncParams) (*domain.OrderSyncResult, error)
}

// RunReader reads recorded sync runs.
type RunReader interface {
	FindByID(ctx context.Context, id string) (*domain.SyncRun, error)
	List(ctx context.Context, kind domain.Kind, limit int) ([]domain.SyncRun, error)
}

// SessionControl exposes the ERP session for diagnostics.
type SessionControl interface {
	Status() session.Status
	InvalidateSession()
}

type SyncHandler struct {
	runner     Runner
	runs       RunReader
	session    SessionControl
	runTimeout time.Duration
}

// NewSyncHandler builds the handler. Triggered runs outlive the request and
// are bounded by runTimeout instead; zero means no bound.
func NewSyncHandler(runner Runner, runs RunReader, sess SessionControl, runTimeout time.Duration) *SyncHandler {
	return &SyncHandler{
		runner:     runner,
		runs:       runs,
		session:    sess,
		runTimeout: runTimeout,
	}
}

// runContext keeps request values but drops its cancellation, so a client
// that disconnects or times out does not abort a half-written sync.
func (h *SyncHandler) runContext(c *gin.Context) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(c.Request.Context())
	if h.runTimeout > 0 {
		return context.WithTimeout(ctx, h.runTimeout)
	}
	return context.WithCancel(ctx)
}

// TriggerCustomers runs a customer sync and waits for it to finish.
func (h *SyncHandler) TriggerCustomers(c *gin.Context) {
	var req domain.CustomerSyncRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	params := h.runner.CustomerParams(&req, middleware.TriggeredBy(c))
	ctx, cancel := h.runContext(c)
	defer cancel()
	result, err := h.runner.RunCustomers(ctx, params)
	if err != nil {
		if result != nil {
			response.Error(c, http.StatusBadGateway, "customer sync aborted", err, result)
			return
		}
		response.FromError(c, "failed to start customer sync", err)
		return
	}

	response.Success(c, http.StatusOK, "customer sync finished", result)
}

// TriggerOrders runs an order sync and waits for it to finish.
func (h *SyncHandler) TriggerOrders(c *gin.Context) {
	var req domain.OrderSyncRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	params := h.runner.OrderParams(&req, middleware.TriggeredBy(c))
	ctx, cancel := h.runContext(c)
	defer cancel()
	result, err := h.runner.RunOrders(ctx, params)
	if err != nil {
		if result != nil {
			response.Error(c, http.StatusBadGateway, "order sync aborted", err, result)
			return
		}
		response.FromError(c, "failed to start order sync", err)
		return
	}

	response.Success(c, http.StatusOK, "order sync finished", result)
}

// ListRuns returns recent runs, optionally for one kind.
func (h *SyncHandler) ListRuns(c *gin.Context) {
	kind := domain.Kind(c.Query("kind"))
	if kind != "" && kind != domain.KindCustomers && kind != domain.KindOrders {
		response.ValidationError(c, "invalid kind", xerrors.ErrInvalidInput)
		return
	}

	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			response.ValidationError(c, "invalid limit", xerrors.ErrInvalidInput)
			return
		}
		limit = n
	}

	runs, err := h.runs.List(c.Request.Context(), kind, limit)
	if err != nil {
		response.FromError(c, "failed to list sync runs", err)
		return
	}

	response.Success(c, http.StatusOK, "sync runs retrieved", runs)
}

// GetRun returns one recorded run.
func (h *SyncHandler) GetRun(c *gin.Context) {
	run, err := h.runs.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "sync run not found")
			return
		}
		response.FromError(c, "failed to get sync run", err)
		return
	}

	response.Success(c, http.StatusOK, "sync run retrieved", run)
}

// SessionStatus reports the ERP session state without its token.
func (h *SyncHandler) SessionStatus(c *gin.Context) {
	response.Success(c, http.StatusOK, "erp session status", h.session.Status())
}

// InvalidateSession drops the ERP session; the next call logs in again.
func (h *SyncHandler) InvalidateSession(c *gin.Context) {
	h.session.InvalidateSession()
	response.Success(c, http.StatusOK, "erp session invalidated", h.session.Status())
}

// bindOptionalJSON accepts an empty body as "use the defaults".
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
