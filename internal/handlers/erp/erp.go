// internal/handlers/erp/erp.go
package erp

import (
	"context"
	"net/http"
	"strconv"

	domain "erp-sync-service/internal/domain/erp"
	xerrors "erp-sync-service/internal/pkg/errors"
	"erp-sync-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	defaultBatchLimit = 50
	maxBatchLimit     = 200
)

// WarehouseReader reads warehouse records straight from the ERP.
type WarehouseReader interface {
	FetchPickingBatches(ctx context.Context, state string, limit int) ([]domain.PickingBatch, error)
	FetchMoveLines(ctx context.Context, batchID int64) ([]domain.MoveLine, error)
}

type ERPHandler struct {
	reader WarehouseReader
}

func NewERPHandler(reader WarehouseReader) *ERPHandler {
	return &ERPHandler{reader: reader}
}

// ListBatches returns picking batches, newest first.
func (h *ERPHandler) ListBatches(c *gin.Context) {
	limit := defaultBatchLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			response.ValidationError(c, "invalid limit", xerrors.ErrInvalidInput)
			return
		}
		limit = min(n, maxBatchLimit)
	}

	batches, err := h.reader.FetchPickingBatches(c.Request.Context(), c.Query("state"), limit)
	if err != nil {
		response.FromError(c, "failed to fetch picking batches", err)
		return
	}

	response.Success(c, http.StatusOK, "picking batches retrieved", batches)
}

// ListMoveLines returns the move lines of one batch.
func (h *ERPHandler) ListMoveLines(c *gin.Context) {
	batchID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || batchID < 1 {
		response.ValidationError(c, "invalid batch ID", xerrors.ErrInvalidInput)
		return
	}

	lines, err := h.reader.FetchMoveLines(c.Request.Context(), batchID)
	if err != nil {
		response.FromError(c, "failed to fetch move lines", err)
		return
	}

	response.Success(c, http.StatusOK, "move lines retrieved", lines)
}
