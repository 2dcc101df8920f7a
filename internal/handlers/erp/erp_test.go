package erp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	domain "erp-sync-service/internal/domain/erp"
	xerrors "erp-sync-service/internal/pkg/errors"

	"github.com/gin-gonic/gin"
)

type fakeReader struct {
	state   string
	limit   int
	batchID int64
	err     error
}

func (f *fakeReader) FetchPickingBatches(_ context.Context, state string, limit int) ([]domain.PickingBatch, error) {
	f.state, f.limit = state, limit
	return []domain.PickingBatch{{ID: 3, Name: "BATCH/0003"}}, f.err
}

func (f *fakeReader) FetchMoveLines(_ context.Context, batchID int64) ([]domain.MoveLine, error) {
	f.batchID = batchID
	return []domain.MoveLine{{ID: 1}}, f.err
}

func serve(reader *fakeReader, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	h := NewERPHandler(reader)
	r := gin.New()
	r.GET("/erp/batches", h.ListBatches)
	r.GET("/erp/batches/:id/move-lines", h.ListMoveLines)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestListBatches(t *testing.T) {
	reader := &fakeReader{}
	if w := serve(reader, "/erp/batches?state=in_progress&limit=5000"); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if reader.state != "in_progress" || reader.limit != maxBatchLimit {
		t.Fatalf("state=%q limit=%d", reader.state, reader.limit)
	}

	reader = &fakeReader{}
	serve(reader, "/erp/batches")
	if reader.limit != defaultBatchLimit {
		t.Fatalf("default limit = %d", reader.limit)
	}

	if w := serve(&fakeReader{}, "/erp/batches?limit=-1"); w.Code != http.StatusBadRequest {
		t.Fatalf("negative limit status = %d", w.Code)
	}
}

func TestListMoveLines(t *testing.T) {
	reader := &fakeReader{}
	if w := serve(reader, "/erp/batches/12/move-lines"); w.Code != http.StatusOK || reader.batchID != 12 {
		t.Fatalf("status = %d batch = %d", w.Code, reader.batchID)
	}
	if w := serve(&fakeReader{}, "/erp/batches/x/move-lines"); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid id status = %d", w.Code)
	}

	failing := &fakeReader{err: &xerrors.RemoteCallError{Model: "stock.move.line", Method: "search_read", Message: "access denied"}}
	if w := serve(failing, "/erp/batches/12/move-lines"); w.Code != http.StatusBadGateway {
		t.Fatalf("remote failure status = %d", w.Code)
	}
}
