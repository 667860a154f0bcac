package agent

import (
	"container/list"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/finagent/internal/api"
	"github.com/ashureev/finagent/internal/config"
	"github.com/ashureev/finagent/internal/identity"
	"github.com/ashureev/finagent/internal/journey"
	"github.com/ashureev/finagent/internal/metrics"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20 // 1MB

// replayQueueIdle is how long a session's replay queue survives without new
// events.
const replayQueueIdle = 30 * time.Minute

// SSEConnection represents a single SSE client connection.
type SSEConnection struct {
	ID          int64
	UserID      string
	SessionID   string
	EventID     int64
	ConnectedAt time.Time
	Writer      http.ResponseWriter
	Flusher     http.Flusher
	Done        chan struct{}
	mu          sync.Mutex
}

// SSEMessageQueue buffers events for reconnecting clients, sharded per
// session. Each session gets its own bounded list so one user's burst cannot
// evict events belonging to another user.
type SSEMessageQueue struct {
	mu      sync.RWMutex
	queues  map[string]*list.List // sessionKey (userID:sessionID) -> events
	maxSize int
}

// QueuedMessage is an event held for replay.
type QueuedMessage struct {
	EventID   int64
	Event     journey.Event
	Timestamp time.Time
}

// NewSSEMessageQueue creates a new per-session message queue.
func NewSSEMessageQueue(maxSize int) *SSEMessageQueue {
	if maxSize <= 0 {
		maxSize = 200
	}
	return &SSEMessageQueue{
		queues:  make(map[string]*list.List),
		maxSize: maxSize,
	}
}

// Enqueue adds an event to the per-session queue.
func (q *SSEMessageQueue) Enqueue(userID, sessionID string, eventID int64, ev journey.Event) {
	key := sseSessionKey(userID, sessionID)
	q.mu.Lock()
	defer q.mu.Unlock()

	l, ok := q.queues[key]
	if !ok {
		l = list.New()
		q.queues[key] = l
	}
	l.PushBack(&QueuedMessage{EventID: eventID, Event: ev, Timestamp: time.Now()})
	for l.Len() > q.maxSize {
		l.Remove(l.Front())
	}
}

// GetMissedMessages retrieves events after a specific event ID for a session.
func (q *SSEMessageQueue) GetMissedMessages(userID, sessionID string, afterEventID int64) []*QueuedMessage {
	key := sseSessionKey(userID, sessionID)
	q.mu.RLock()
	defer q.mu.RUnlock()

	l, ok := q.queues[key]
	if !ok {
		return nil
	}
	var missed []*QueuedMessage
	for e := l.Front(); e != nil; e = e.Next() {
		msg := e.Value.(*QueuedMessage)
		if msg.EventID > afterEventID {
			missed = append(missed, msg)
		}
	}
	return missed
}

// Prune removes the queue for a session.
func (q *SSEMessageQueue) Prune(userID, sessionID string) {
	key := sseSessionKey(userID, sessionID)
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.queues, key)
}

// PruneIdle drops queues whose newest event is older than cutoff.
func (q *SSEMessageQueue) PruneIdle(cutoff time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	pruned := 0
	for key, l := range q.queues {
		back := l.Back()
		if back == nil || back.Value.(*QueuedMessage).Timestamp.Before(cutoff) {
			delete(q.queues, key)
			pruned++
		}
	}
	return pruned
}

func sseSessionKey(userID, sessionID string) string {
	return userID + ":" + sessionID
}

// RateLimiter implements a per-user rate limiter.
// The key is userID only, not userID:sessionID, so clients cannot bypass
// throttling by rotating session IDs.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	done     chan struct{}
}

// NewRateLimiter creates a new rate limiter and starts the background
// eviction goroutine. Stop ends it.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		done:     make(chan struct{}),
	}
	rl.startEviction()
	return rl
}

// Allow checks if a request is allowed for the given key.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	recent := prune(r.requests[key], now.Add(-r.window))
	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

func prune(times []time.Time, cutoff time.Time) []time.Time {
	var fresh []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			fresh = append(fresh, t)
		}
	}
	return fresh
}

// startEviction periodically removes expired keys from the requests map.
func (r *RateLimiter) startEviction() {
	go func() {
		ticker := time.NewTicker(r.window)
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				return
			case <-ticker.C:
			}
			r.mu.Lock()
			cutoff := time.Now().Add(-r.window)
			for key, times := range r.requests {
				if fresh := prune(times, cutoff); len(fresh) == 0 {
					delete(r.requests, key)
				} else {
					r.requests[key] = fresh
				}
			}
			r.mu.Unlock()
		}
	}()
}

// Stop ends the eviction goroutine.
func (r *RateLimiter) Stop() {
	close(r.done)
}

// Handler serves the journey conversation over HTTP with an SSE event stream.
type Handler struct {
	agent          *Service
	rateLimiter    *RateLimiter
	events         <-chan Envelope
	unsubscribe    func()
	sseConnections map[string]map[int64]*SSEConnection // sessionKey -> ConnectionID -> Connection
	messageQueue   *SSEMessageQueue
	connectionsMu  sync.RWMutex
	eventCounter   int64
	connectionID   int64
	counterMu      sync.Mutex
	done           chan struct{}
	loopDone       chan struct{}
	closeOnce      sync.Once
	cfg            *config.Config
}

// NewHandler creates an agent handler over svc. cfg may be nil, in which
// case defaults apply.
func NewHandler(svc *Service, cfg *config.Config) *Handler {
	rateLimitRequests := 30
	rateLimitWindow := time.Minute
	queueSize := 200
	if cfg != nil {
		rateLimitRequests = cfg.RateLimit.RequestsPerWindow
		rateLimitWindow = cfg.RateLimit.WindowDuration
		queueSize = cfg.SSE.ReplayQueueSize
	}

	events, unsubscribe := svc.Subscribe(0)
	h := &Handler{
		agent:          svc,
		rateLimiter:    NewRateLimiter(rateLimitRequests, rateLimitWindow),
		events:         events,
		unsubscribe:    unsubscribe,
		sseConnections: make(map[string]map[int64]*SSEConnection),
		messageQueue:   NewSSEMessageQueue(queueSize),
		done:           make(chan struct{}),
		loopDone:       make(chan struct{}),
		cfg:            cfg,
	}
	go h.broadcastLoop()
	return h
}

// RegisterRoutes registers agent routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/agent", func(r chi.Router) {
		r.Get("/journeys", h.HandleCatalog)
		r.Post("/journeys/{journeyID}", h.HandleStart)
		r.Post("/messages", h.HandleMessage)
		r.Post("/actions", h.HandleAction)
		r.Get("/session", h.HandleSnapshot)
		r.Delete("/session", h.HandleReset)
		r.Get("/stream", h.HandleStream)
	})
}

// Close stops the broadcaster and the rate limiter and ends open streams.
// It is safe to call more than once.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.unsubscribe()
		<-h.loopDone
		h.rateLimiter.Stop()
	})
}

// HandleCatalog lists the journeys.
func (h *Handler) HandleCatalog(w http.ResponseWriter, _ *http.Request) {
	api.JSON(w, http.StatusOK, map[string]any{"journeys": h.agent.Catalog().List()})
}

// HandleStart handles POST /api/agent/journeys/{journeyID}.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.admit(w, r, "start")
	if !ok {
		return
	}
	id, err := journey.ParseID(chi.URLParam(r, "journeyID"))
	if err != nil {
		api.WriteError(w, err)
		return
	}

	slog.Info("Journey start requested", "user_id", userID, "session_id", sessionID, "journey", id)
	res, err := h.agent.Start(r.Context(), userID, sessionID, id)
	h.respond(w, res, err)
}

// HandleMessage handles POST /api/agent/messages.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.admit(w, r, "messages")
	if !ok {
		return
	}
	var req ChatRequest
	if !api.DecodeJSON(w, r, h.maxBodySize(), &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		api.Error(w, http.StatusBadRequest, "text is required")
		return
	}

	slog.Info("Agent chat request",
		"user_id", userID,
		"session_id", sessionID,
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"message_length", len(req.Text),
	)
	res, err := h.agent.Send(r.Context(), userID, sessionID, req.Text)
	h.respond(w, res, err)
}

// HandleAction handles POST /api/agent/actions.
func (h *Handler) HandleAction(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := h.admit(w, r, "actions")
	if !ok {
		return
	}
	var body ActionRequest
	if !api.DecodeJSON(w, r, h.maxBodySize(), &body) {
		return
	}
	action, err := journey.ParseAction(body.Action)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	req := journey.Request{Action: action, Value: body.Value}
	if body.KYC != "" {
		if req.KYC, err = journey.ParseKYCStatus(body.KYC); err != nil {
			api.WriteError(w, err)
			return
		}
	}

	slog.Info("Journey action", "user_id", userID, "session_id", sessionID, "action", action)
	res, err := h.agent.Do(r.Context(), userID, sessionID, req)
	h.respond(w, res, err)
}

// HandleSnapshot handles GET /api/agent/session.
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	snap, err := h.agent.Snapshot(r.Context(), userID, identity.SessionIDFromContext(r.Context()))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, snap)
}

// HandleReset handles DELETE /api/agent/session.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.agent.Reset(r.Context(), userID, identity.SessionIDFromContext(r.Context())); err != nil {
		api.WriteError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// admit checks identity and the per-user rate limit for mutating routes.
func (h *Handler) admit(w http.ResponseWriter, r *http.Request, endpoint string) (string, string, bool) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return "", "", false
	}
	if !h.rateLimiter.Allow(userID) {
		metrics.RateLimitHits.WithLabelValues(endpoint).Inc()
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return "", "", false
	}
	return userID, identity.SessionIDFromContext(r.Context()), true
}

func (h *Handler) respond(w http.ResponseWriter, res *Result, err error) {
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, res)
}

func (h *Handler) maxBodySize() int64 {
	if h.cfg != nil {
		return h.cfg.SSE.MaxRequestBodySize
	}
	return defaultMaxRequestBodySize
}

// broadcastLoop numbers session events, keeps them for replay and
// distributes them to connected clients.
func (h *Handler) broadcastLoop() {
	defer close(h.loopDone)
	prune := time.NewTicker(replayQueueIdle / 2)
	defer prune.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-prune.C:
			if n := h.messageQueue.PruneIdle(time.Now().Add(-replayQueueIdle)); n > 0 {
				slog.Debug("Pruned idle replay queues", "count", n)
			}
		case env, ok := <-h.events:
			if !ok {
				return
			}
			if env.Event.Type == EventReset {
				h.messageQueue.Prune(env.UserID, env.SessionID)
			}

			h.counterMu.Lock()
			h.eventCounter++
			eventID := h.eventCounter
			h.counterMu.Unlock()

			h.messageQueue.Enqueue(env.UserID, env.SessionID, eventID, env.Event)

			sessionKey := sseSessionKey(env.UserID, env.SessionID)
			h.connectionsMu.RLock()
			userConns := h.sseConnections[sessionKey]
			// Snapshot connections to avoid holding RLock during writes
			conns := make([]*SSEConnection, 0, len(userConns))
			for _, c := range userConns {
				conns = append(conns, c)
			}
			h.connectionsMu.RUnlock()

			for _, conn := range conns {
				h.sendToConnection(conn, eventID, env.Event)
			}
		}
	}
}

// sendToConnection sends an event to a specific connection.
func (h *Handler) sendToConnection(conn *SSEConnection, eventID int64, ev journey.Event) {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	select {
	case <-conn.Done:
		return
	default:
	}
	if eventID <= conn.EventID {
		return // already delivered during replay
	}

	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Failed to marshal SSE event", "error", err, "conn_id", conn.ID)
		return
	}
	if err := writeSSEWithID(conn.Writer, eventID, string(ev.Type), string(data)); err != nil {
		slog.Warn("Failed to write to SSE connection", "error", err, "conn_id", conn.ID, "user_id", conn.UserID)
		return
	}
	conn.Flusher.Flush()
	conn.EventID = eventID
}

// HandleStream streams session events as SSE with event ids, a retry hint,
// Last-Event-ID replay and keepalive pings.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	streamKey := sseSessionKey(userID, sessionID)

	lastEventID := int64(0)
	idHeader := r.Header.Get("Last-Event-ID")
	if idHeader == "" {
		idHeader = r.URL.Query().Get("lastEventId")
	}
	if idHeader != "" {
		if parsed, err := strconv.ParseInt(idHeader, 10, 64); err == nil {
			lastEventID = parsed
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	retryDelayMs := int64(5000)
	if h.cfg != nil {
		retryDelayMs = h.cfg.SSE.RetryDelay.Milliseconds()
	}
	if _, err := io.WriteString(w, fmt.Sprintf("retry: %d\n\n", retryDelayMs)); err != nil {
		slog.Warn("Failed to write SSE retry header", "error", err, "user_id", userID)
		return
	}
	flusher.Flush()

	h.counterMu.Lock()
	h.connectionID++
	connID := h.connectionID
	currentEventID := h.eventCounter
	h.counterMu.Unlock()

	conn := &SSEConnection{
		ID:          connID,
		UserID:      userID,
		SessionID:   sessionID,
		ConnectedAt: time.Now(),
		Writer:      w,
		Flusher:     flusher,
		Done:        make(chan struct{}),
	}

	// Hold the connection lock while registering and replaying so live
	// events queue behind the replay instead of interleaving with it.
	conn.mu.Lock()
	h.connectionsMu.Lock()
	if _, exists := h.sseConnections[streamKey]; !exists {
		h.sseConnections[streamKey] = make(map[int64]*SSEConnection)
	}
	h.sseConnections[streamKey][connID] = conn
	h.connectionsMu.Unlock()
	metrics.StreamConnections.WithLabelValues("sse").Inc()

	defer func() {
		h.connectionsMu.Lock()
		if userConns, exists := h.sseConnections[streamKey]; exists {
			delete(userConns, connID)
			if len(userConns) == 0 {
				delete(h.sseConnections, streamKey)
			}
		}
		h.connectionsMu.Unlock()
		close(conn.Done)
		metrics.StreamConnections.WithLabelValues("sse").Dec()
		slog.Info("SSE connection closed", "user_id", userID, "session_id", sessionID, "conn_id", connID)
	}()

	connected := fmt.Sprintf(`{"status":"connected","event_id":%d}`, currentEventID)
	err := writeSSE(w, "connected", connected)
	if err == nil && lastEventID > 0 {
		missed := h.messageQueue.GetMissedMessages(userID, sessionID, lastEventID)
		for _, msg := range missed {
			data, merr := json.Marshal(msg.Event)
			if merr != nil {
				continue
			}
			if err = writeSSEWithID(w, msg.EventID, string(msg.Event.Type), string(data)); err != nil {
				break
			}
			conn.EventID = msg.EventID
		}
		slog.Info("Replayed missed events", "user_id", userID, "session_id", sessionID, "count", len(missed))
	}
	flusher.Flush()
	conn.mu.Unlock()
	if err != nil {
		slog.Warn("Failed to write SSE preamble", "error", err, "user_id", userID)
		return
	}

	slog.Info("SSE connection established",
		"user_id", userID,
		"session_id", sessionID,
		"reconnect", lastEventID > 0,
	)

	keepaliveInterval := 10 * time.Second
	if h.cfg != nil {
		keepaliveInterval = h.cfg.SSE.KeepaliveInterval
	}
	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case <-keepalive.C:
			conn.mu.Lock()
			if err := writeSSE(w, "ping", `{"status":"alive"}`); err != nil {
				conn.mu.Unlock()
				slog.Warn("Failed to write SSE keepalive ping", "error", err, "user_id", userID)
				return
			}
			flusher.Flush()
			conn.mu.Unlock()
		}
	}
}

func writeSSE(w io.Writer, event, data string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func writeSSEWithID(w io.Writer, id int64, event, data string) error {
	_, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, event, data)
	return err
}
