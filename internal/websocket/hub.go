// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	wstypes "erp-sync-service/internal/domain/websocket"
	"erp-sync-service/internal/pkg/jwt"

	"go.uber.org/zap"
)

// TokenVerifier validates dashboard access tokens.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*jwt.Claims, error)
}

// MessageHandler answers client requests for the events it supports.
type MessageHandler interface {
	HandleMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) error
	SupportedEvents() []wstypes.EventType
}

type Hub struct {
	// Registered clients by identity ID
	clients map[int64]map[*Client]bool
	mu      sync.RWMutex

	// Registration/unregistration
	Register   chan *Client
	unregister chan *Client

	// Broadcasting
	broadcast chan *BroadcastMessage

	// Client request handlers by event type; fixed before Run
	handlers map[wstypes.EventType]MessageHandler

	verifier TokenVerifier
	logger   *zap.Logger
}

type BroadcastMessage struct {
	IdentityIDs []int64
	Channel     wstypes.ChannelType
	Message     *wstypes.WSMessage
}

func NewHub(verifier TokenVerifier, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		Register:   make(chan *Client),
		unregister: make(chan *Client, 64),
		broadcast:  make(chan *BroadcastMessage, 256),
		handlers:   make(map[wstypes.EventType]MessageHandler),
		verifier:   verifier,
		logger:     logger,
	}
}

// AuthenticateClient validates the JWT token of a connecting client
func (h *Hub) AuthenticateClient(token string) (*ClientAuth, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	claims, err := h.verifier.VerifyAccessToken(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &ClientAuth{
		IdentityID: claims.IdentityID,
		SessionID:  claims.ID,
		Roles:      claims.Roles,
	}, nil
}

// RegisterHandler registers a message handler. Call before Run.
func (h *Hub) RegisterHandler(handler MessageHandler) {
	for _, eventType := range handler.SupportedEvents() {
		h.handlers[eventType] = handler
	}
}

// HandleClientMessage routes a client message to its registered handler.
// handled is false when no handler claims the event.
func (h *Hub) HandleClientMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) (handled bool, err error) {
	handler, exists := h.handlers[msg.Type]
	if !exists {
		return false, nil
	}
	return true, handler.HandleMessage(ctx, client, msg)
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.BroadcastMessage(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if h.clients[client.identityID] == nil {
		h.clients[client.identityID] = make(map[*Client]bool)
	}
	h.clients[client.identityID][client] = true
	total := h.totalClients()
	h.mu.Unlock()

	for _, ch := range wstypes.DefaultChannels {
		client.Subscribe(ch)
	}

	h.logger.Info("websocket client connected",
		zap.Int64("identity_id", client.identityID),
		zap.Int("total", total),
	)

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, map[string]interface{}{
		"identity_id": client.identityID,
		"roles":       client.roles,
		"channels":    wstypes.DefaultChannels,
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.identityID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			client.Close()

			if len(clients) == 0 {
				delete(h.clients, client.identityID)
			}

			h.logger.Info("websocket client disconnected",
				zap.Int64("identity_id", client.identityID),
				zap.Int("total", h.totalClients()),
			)
		}
	}
}

func (h *Hub) BroadcastMessage(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if msg.IdentityIDs == nil {
		// Broadcast to all
		for _, clients := range h.clients {
			for client := range clients {
				if client.IsSubscribed(msg.Channel) {
					client.SendMessage(msg.Message)
				}
			}
		}
		return
	}

	// Broadcast to specific users
	for _, identityID := range msg.IdentityIDs {
		for client := range h.clients[identityID] {
			if client.IsSubscribed(msg.Channel) {
				client.SendMessage(msg.Message)
			}
		}
	}
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

// BroadcastSyncEvent announces a sync run transition to every sync subscriber.
// It never blocks the caller; when the queue is full the event is dropped.
func (h *Hub) BroadcastSyncEvent(event wstypes.EventType, data *wstypes.SyncEventData) {
	h.enqueue(&BroadcastMessage{
		Channel: wstypes.ChannelSync,
		Message: wstypes.NewMessage(event, data),
	})
}

func (h *Hub) BroadcastSystemAlert(alert *wstypes.SystemAlertData) {
	h.enqueue(&BroadcastMessage{
		Channel: wstypes.ChannelSystem,
		Message: wstypes.NewMessage(wstypes.EventTypeSystemAlert, alert),
	})
}

func (h *Hub) enqueue(msg *BroadcastMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("websocket broadcast queue full, dropping event",
			zap.String("type", string(msg.Message.Type)),
		)
	}
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
	h.clients = make(map[int64]map[*Client]bool)
}
