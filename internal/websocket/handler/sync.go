// internal/websocket/handler/sync.go
package handler

import (
	"context"
	"fmt"

	domain "erp-sync-service/internal/domain/sync"
	wstypes "erp-sync-service/internal/domain/websocket"
	"erp-sync-service/internal/pkg/session"
	"erp-sync-service/internal/websocket"
)

const recentRunsLimit = 10

// SessionStatus reports the ERP session without exposing its token.
type SessionStatus interface {
	Status() session.Status
}

// RunLister returns recent sync runs, newest first.
type RunLister interface {
	List(ctx context.Context, kind domain.Kind, limit int) ([]domain.SyncRun, error)
}

type SyncStatusHandler struct {
	session SessionStatus
	runs    RunLister
}

func NewSyncStatusHandler(sess SessionStatus, runs RunLister) *SyncStatusHandler {
	return &SyncStatusHandler{session: sess, runs: runs}
}

func (h *SyncStatusHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{wstypes.EventTypeSyncStatus}
}

type syncStatusRequest struct {
	Kind  domain.Kind `json:"kind"`
	Limit int         `json:"limit"`
}

func (h *SyncStatusHandler) HandleMessage(ctx context.Context, client *websocket.Client, msg *wstypes.WSMessage) error {
	var req syncStatusRequest
	if msg.Data != nil {
		if err := websocket.DecodeData(msg.Data, &req); err != nil {
			return fmt.Errorf("invalid sync status request: %w", err)
		}
	}
	if req.Kind != "" && req.Kind != domain.KindCustomers && req.Kind != domain.KindOrders {
		return fmt.Errorf("unknown sync kind %q", req.Kind)
	}
	if req.Limit <= 0 || req.Limit > 50 {
		req.Limit = recentRunsLimit
	}

	runs, err := h.runs.List(ctx, req.Kind, req.Limit)
	if err != nil {
		return fmt.Errorf("failed to load sync runs: %w", err)
	}

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeSyncStatus, map[string]interface{}{
		"session": h.session.Status(),
		"runs":    runs,
	}))
	return nil
}
