package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/finagent/internal/agent"
	"github.com/ashureev/finagent/internal/identity"
	"github.com/ashureev/finagent/internal/journey"
	"github.com/ashureev/finagent/internal/metrics"
	"github.com/coder/websocket"
	"github.com/containerd/errdefs"
	"github.com/containerd/errdefs/pkg/errhttp"
)

const (
	sendBuffer   = 256
	writeTimeout = 10 * time.Second
)

// Conversations is the part of the agent service the live transport drives.
type Conversations interface {
	Subscribe(buffer int) (<-chan agent.Envelope, func())
	Start(ctx context.Context, userID, sessionID string, id journey.ID) (*agent.Result, error)
	Send(ctx context.Context, userID, sessionID, text string) (*agent.Result, error)
	Do(ctx context.Context, userID, sessionID string, req journey.Request) (*agent.Result, error)
	Snapshot(ctx context.Context, userID, sessionID string) (journey.Snapshot, error)
	Reset(ctx context.Context, userID, sessionID string) error
}

// inbound is a client frame.
type inbound struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Text    string `json:"text,omitempty"`
	Journey string `json:"journey,omitempty"`
	Action  string `json:"action,omitempty"`
	Value   string `json:"value,omitempty"`
	KYC     string `json:"kyc,omitempty"`
}

// outbound is a server frame. ID echoes the client frame it answers.
type outbound struct {
	Type     string            `json:"type"`
	ID       string            `json:"id,omitempty"`
	Event    *journey.Event    `json:"event,omitempty"`
	Snapshot *journey.Snapshot `json:"snapshot,omitempty"`
	Result   *agent.Result     `json:"result,omitempty"`
	Status   int               `json:"status,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Handler serves /ws/agent: a snapshot on connect, then every session event
// as it happens, with client frames driving the conversation.
type Handler struct {
	svc           Conversations
	conns         *ConnManager
	allowedOrigin string
	isDev         bool
	events        <-chan agent.Envelope
	unsubscribe   func()
	done          chan struct{}
	loopDone      chan struct{}
	closeOnce     sync.Once
}

// NewHandler creates a live handler and starts routing service events to
// connected tabs. Close stops it.
func NewHandler(svc Conversations, allowedOrigin string, isDev bool) *Handler {
	events, unsubscribe := svc.Subscribe(1024)
	h := &Handler{
		svc:           svc,
		conns:         NewConnManager(),
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		events:        events,
		unsubscribe:   unsubscribe,
		done:          make(chan struct{}),
		loopDone:      make(chan struct{}),
	}
	go h.routeLoop()
	return h
}

// Close stops routing and disconnects every client. It is safe to call more
// than once.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.unsubscribe()
		<-h.loopDone
		h.conns.CloseAll()
	})
}

func (h *Handler) routeLoop() {
	defer close(h.loopDone)
	for {
		select {
		case <-h.done:
			return
		case env, ok := <-h.events:
			if !ok {
				return
			}
			ev := env.Event
			out := outbound{Type: "event", Event: &ev}
			if ev.Type == agent.EventResync {
				// Events were lost on the way; replace the client's view.
				snap, err := h.svc.Snapshot(context.Background(), env.UserID, env.SessionID)
				if err != nil {
					slog.Warn("Failed to load snapshot for resync", "user_id", env.UserID, "error", err)
					continue
				}
				out = outbound{Type: "snapshot", Snapshot: &snap}
			}
			frame, err := json.Marshal(out)
			if err != nil {
				slog.Error("Failed to marshal live event", "error", err)
				continue
			}
			h.conns.Deliver(env.UserID, env.SessionID, frame)
		}
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	slog.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}

	c := newClient(ws, sendBuffer)
	defer c.close("session ended")
	h.conns.register(userID, sessionID, c)
	defer h.conns.unregister(userID, sessionID, c)

	metrics.StreamConnections.WithLabelValues("websocket").Inc()
	defer metrics.StreamConnections.WithLabelValues("websocket").Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		h.outputLoop(ctx, c, userID)
	}()

	snap, err := h.svc.Snapshot(ctx, userID, sessionID)
	if err != nil {
		h.reply(c, outbound{Type: "error", Status: errhttp.ToHTTP(err), Error: publicError(err)})
		cancel()
	} else {
		h.reply(c, outbound{Type: "snapshot", Snapshot: &snap})
		h.inputLoop(ctx, c, userID, sessionID, &wg)
	}

	cancel()
	wg.Wait()
	slog.Info("Live session ended", "user_id", userID, "session_id", sessionID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || h.allowedOrigin == "" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// inputLoop reads client frames until the connection ends. Operations run on
// their own goroutines so a client can keep reading events while the agent
// is responding.
func (h *Handler) inputLoop(ctx context.Context, c *client, userID, sessionID string, wg *sync.WaitGroup) {
	for {
		_, message, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed", "user_id", userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(message, &msg); err != nil {
			h.reply(c, outbound{Type: "error", Status: http.StatusBadRequest, Error: "invalid frame"})
			continue
		}

		if msg.Type == "ping" {
			h.reply(c, outbound{Type: "pong", ID: msg.ID})
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			h.dispatch(ctx, c, userID, sessionID, msg)
		}()
	}
}

func (h *Handler) dispatch(ctx context.Context, c *client, userID, sessionID string, msg inbound) {
	var (
		res *agent.Result
		err error
	)
	switch msg.Type {
	case "chat":
		res, err = h.svc.Send(ctx, userID, sessionID, msg.Text)
	case "start":
		var id journey.ID
		if id, err = journey.ParseID(msg.Journey); err == nil {
			res, err = h.svc.Start(ctx, userID, sessionID, id)
		}
	case "action":
		var req journey.Request
		if req, err = parseAction(msg); err == nil {
			res, err = h.svc.Do(ctx, userID, sessionID, req)
		}
	case "reset":
		if err = h.svc.Reset(ctx, userID, sessionID); err == nil {
			h.reply(c, outbound{Type: "reset", ID: msg.ID})
			return
		}
	default:
		err = fmt.Errorf("%w: unknown frame type %q", errdefs.ErrInvalidArgument, msg.Type)
	}

	if err != nil {
		h.reply(c, outbound{Type: "error", ID: msg.ID, Status: errhttp.ToHTTP(err), Error: publicError(err)})
		return
	}
	h.reply(c, outbound{Type: "result", ID: msg.ID, Result: res})
}

func parseAction(msg inbound) (journey.Request, error) {
	action, err := journey.ParseAction(msg.Action)
	if err != nil {
		return journey.Request{}, err
	}
	req := journey.Request{Action: action, Value: msg.Value}
	if msg.KYC != "" {
		if req.KYC, err = journey.ParseKYCStatus(msg.KYC); err != nil {
			return journey.Request{}, err
		}
	}
	return req, nil
}

// outputLoop writes queued frames to the socket.
func (h *Handler) outputLoop(ctx context.Context, c *client, userID string) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.gone:
			return
		case frame := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					slog.Debug("WebSocket write error", "error", err, "user_id", userID)
				}
				return
			}
		}
	}
}

func (h *Handler) reply(c *client, frame outbound) {
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Error("Failed to marshal live frame", "error", err, "type", frame.Type)
		return
	}
	if !c.enqueue(data) {
		slog.Debug("Live reply dropped", "type", frame.Type)
	}
}

// publicError hides unclassified failures from clients.
func publicError(err error) string {
	status := errhttp.ToHTTP(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable && status != http.StatusNotImplemented {
		slog.Error("Live operation failed", "error", err)
		return "internal error"
	}
	return err.Error()
}
