package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	wstypes "erp-sync-service/internal/domain/websocket"
	"erp-sync-service/internal/pkg/jwt"

	"go.uber.org/zap"
)

type stubVerifier struct {
	claims *jwt.Claims
	err    error
}

func (s stubVerifier) VerifyAccessToken(string) (*jwt.Claims, error) {
	return s.claims, s.err
}

type echoHandler struct {
	calls int
	err   error
}

func (e *echoHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{wstypes.EventTypeSyncStatus}
}

func (e *echoHandler) HandleMessage(_ context.Context, c *Client, msg *wstypes.WSMessage) error {
	e.calls++
	if e.err != nil {
		return e.err
	}
	c.SendMessage(wstypes.NewMessage(msg.Type, "ok"))
	return nil
}

func newTestHub() *Hub {
	return NewHub(stubVerifier{}, zap.NewNop())
}

func newTestClient(h *Hub, id int64) *Client {
	return NewClient(h, nil, &ClientAuth{IdentityID: id, Roles: []string{"admin"}})
}

func drain(t *testing.T, c *Client) []*wstypes.WSMessage {
	t.Helper()
	var out []*wstypes.WSMessage
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				return out
			}
			msg, err := wstypes.ParseMessage(raw)
			if err != nil {
				t.Fatalf("parse queued message: %v", err)
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestAuthenticateClient(t *testing.T) {
	claims := &jwt.Claims{IdentityID: 9, Roles: []string{"admin"}}
	claims.ID = "sess-1"

	h := NewHub(stubVerifier{claims: claims}, zap.NewNop())
	auth, err := h.AuthenticateClient("token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auth.IdentityID != 9 || auth.SessionID != "sess-1" {
		t.Fatalf("auth = %+v", auth)
	}

	if _, err := h.AuthenticateClient(""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("empty token: got %v", err)
	}

	bad := NewHub(stubVerifier{err: errors.New("expired")}, zap.NewNop())
	if _, err := bad.AuthenticateClient("token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("rejected token: got %v", err)
	}
}

func TestRegisterSubscribesDefaultsAndGreets(t *testing.T) {
	h := newTestHub()
	c := newTestClient(h, 1)

	h.registerClient(c)

	if h.TotalClients() != 1 {
		t.Fatalf("TotalClients = %d", h.TotalClients())
	}
	for _, ch := range wstypes.DefaultChannels {
		if !c.IsSubscribed(ch) {
			t.Errorf("not subscribed to %s", ch)
		}
	}
	msgs := drain(t, c)
	if len(msgs) != 1 || msgs[0].Type != wstypes.EventTypeConnected {
		t.Fatalf("greeting = %+v", msgs)
	}
}

func TestBroadcastRespectsSubscriptions(t *testing.T) {
	h := newTestHub()
	a := newTestClient(h, 1)
	b := newTestClient(h, 2)
	h.registerClient(a)
	h.registerClient(b)
	drain(t, a)
	drain(t, b)

	b.Unsubscribe(wstypes.ChannelSync)

	h.BroadcastMessage(&BroadcastMessage{
		Channel: wstypes.ChannelSync,
		Message: wstypes.NewMessage(wstypes.EventTypeSyncCompleted, &wstypes.SyncEventData{RunID: "r1", Kind: "customers"}),
	})

	if got := drain(t, a); len(got) != 1 || got[0].Type != wstypes.EventTypeSyncCompleted {
		t.Fatalf("subscriber got %+v", got)
	}
	if got := drain(t, b); len(got) != 0 {
		t.Fatalf("unsubscribed client got %+v", got)
	}
}

func TestBroadcastSyncEventNeverBlocks(t *testing.T) {
	h := newTestHub()
	for i := 0; i < cap(h.broadcast)+10; i++ {
		h.BroadcastSyncEvent(wstypes.EventTypeSyncStarted, &wstypes.SyncEventData{RunID: "r"})
	}
	if len(h.broadcast) != cap(h.broadcast) {
		t.Fatalf("queue len = %d, want %d", len(h.broadcast), cap(h.broadcast))
	}
}

func TestSlowClientIsScheduledForRemoval(t *testing.T) {
	h := newTestHub()
	c := newTestClient(h, 1)

	for i := 0; i < sendBuffer+1; i++ {
		c.SendMessage(wstypes.NewMessage(wstypes.EventTypePong, nil))
	}

	select {
	case got := <-h.unregister:
		if got != c {
			t.Fatal("unexpected client queued for removal")
		}
	default:
		t.Fatal("overflowing client was not queued for removal")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	h := newTestHub()
	c := newTestClient(h, 1)

	c.Close()
	c.Close()
	c.SendMessage(wstypes.NewMessage(wstypes.EventTypePong, nil))

	if c.ctx.Err() == nil {
		t.Fatal("context not canceled")
	}
}

func TestUnregisterClosesClient(t *testing.T) {
	h := newTestHub()
	c := newTestClient(h, 1)
	h.registerClient(c)

	h.unregisterClient(c)
	h.unregisterClient(c)

	if h.TotalClients() != 0 {
		t.Fatalf("TotalClients = %d", h.TotalClients())
	}
	if !c.closed {
		t.Fatal("client not closed")
	}
}

func TestSubscribeRejectsUnknownChannel(t *testing.T) {
	c := newTestClient(newTestHub(), 1)
	if c.Subscribe("offers") {
		t.Fatal("unknown channel accepted")
	}
	if !c.Subscribe(wstypes.ChannelSystem) {
		t.Fatal("known channel refused")
	}
}

func TestHandleMessageRouting(t *testing.T) {
	h := newTestHub()
	echo := &echoHandler{}
	h.RegisterHandler(echo)
	c := newTestClient(h, 1)

	send := func(msg *wstypes.WSMessage) {
		raw, err := json.Marshal(msg)
		if err != nil {
			t.Fatal(err)
		}
		c.handleMessage(raw)
	}

	send(wstypes.NewMessage(wstypes.EventTypeSyncStatus, nil))
	if got := drain(t, c); echo.calls != 1 || len(got) != 1 || got[0].Type != wstypes.EventTypeSyncStatus {
		t.Fatalf("routed handler: calls=%d msgs=%+v", echo.calls, got)
	}

	send(wstypes.NewMessage(wstypes.EventTypePing, nil))
	if got := drain(t, c); len(got) != 1 || got[0].Type != wstypes.EventTypePong {
		t.Fatalf("ping reply = %+v", got)
	}

	send(wstypes.NewMessage(wstypes.EventTypeUnsubscribe, wstypes.UnsubscribeRequest{Channels: []wstypes.ChannelType{wstypes.ChannelSync}}))
	drain(t, c)
	if c.IsSubscribed(wstypes.ChannelSync) {
		t.Fatal("still subscribed after unsubscribe")
	}

	echo.err = errors.New("boom")
	send(wstypes.NewMessage(wstypes.EventTypeSyncStatus, nil))
	if got := drain(t, c); len(got) != 1 || got[0].Type != wstypes.EventTypeError {
		t.Fatalf("handler error reply = %+v", got)
	}

	c.handleMessage([]byte("{not json"))
	if got := drain(t, c); len(got) != 1 || got[0].Type != wstypes.EventTypeError {
		t.Fatalf("parse error reply = %+v", got)
	}
}
