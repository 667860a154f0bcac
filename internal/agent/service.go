package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/finagent/internal/domain"
	"github.com/ashureev/finagent/internal/journey"
	"github.com/ashureev/finagent/internal/metrics"
	"github.com/ashureev/finagent/internal/store"
	"github.com/containerd/errdefs"
)

// Options configures the sessions a Service creates.
type Options struct {
	Catalog    *journey.Catalog
	Profile    journey.Profile
	KYC        journey.KYCResolver
	Refs       journey.RefGenerator
	Pacer      journey.Pacer
	Transcript ConversationLogger
	Logger     *slog.Logger
	Now        func() time.Time
}

// Service is the registry of live conversations, one per user tab. Sessions
// are created on first use, restored from the repository when a snapshot
// exists, and saved after every operation.
type Service struct {
	repo    store.Repository
	opts    Options
	bus     *Bus
	matcher *journey.Matcher

	mu       sync.Mutex
	sessions map[string]*entry
	closed   bool
}

type entry struct {
	userID    string
	sessionID string
	session   *journey.Session

	mu      sync.Mutex
	journey journey.ID // last journey entered, for completion metrics
	expired bool       // closed by the idle sweep; the snapshot is still stored

	saveMu  sync.Mutex
	retired bool // reset; nothing may be saved for it again
}

func (e *entry) markExpired() {
	e.mu.Lock()
	e.expired = true
	e.mu.Unlock()
}

func (e *entry) isExpired() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.expired
}

// retire blocks until any save in flight finishes and prevents later ones.
func (e *entry) retire() {
	e.saveMu.Lock()
	e.retired = true
	e.saveMu.Unlock()
}

// NewService returns a Service persisting to repo.
func NewService(repo store.Repository, opts Options) *Service {
	if opts.Catalog == nil {
		opts.Catalog = journey.DefaultCatalog()
	}
	if opts.Transcript == nil {
		opts.Transcript = noopConversationLogger{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repo:     repo,
		opts:     opts,
		bus:      NewBus(),
		matcher:  journey.NewMatcher(opts.Catalog),
		sessions: make(map[string]*entry),
	}
}

// Catalog returns the journeys the service runs.
func (s *Service) Catalog() *journey.Catalog {
	return s.opts.Catalog
}

// Subscribe taps every session event. See Bus.Subscribe.
func (s *Service) Subscribe(buffer int) (<-chan Envelope, func()) {
	return s.bus.Subscribe(buffer)
}

// Start opens journey id in the user's tab.
func (s *Service) Start(ctx context.Context, userID, sessionID string, id journey.ID) (*Result, error) {
	return s.op(ctx, userID, sessionID, func(ctx context.Context, sess *journey.Session) error {
		return sess.Start(ctx, id)
	})
}

// Send handles a free-text message.
func (s *Service) Send(ctx context.Context, userID, sessionID, text string) (*Result, error) {
	if id, ok := s.matcher.Match(text); ok {
		metrics.IntentMatches.WithLabelValues(string(id)).Inc()
	} else {
		metrics.IntentMatches.WithLabelValues("none").Inc()
	}
	return s.op(ctx, userID, sessionID, func(ctx context.Context, sess *journey.Session) error {
		return sess.Send(ctx, text)
	})
}

// Do dispatches a button press.
func (s *Service) Do(ctx context.Context, userID, sessionID string, req journey.Request) (*Result, error) {
	res, err := s.op(ctx, userID, sessionID, func(ctx context.Context, sess *journey.Session) error {
		return sess.Do(ctx, req)
	})
	metrics.ActionsDispatched.WithLabelValues(string(req.Action), outcome(err)).Inc()
	return res, err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errdefs.IsInvalidArgument(err), errdefs.IsFailedPrecondition(err),
		errdefs.IsConflict(err), errdefs.IsNotImplemented(err):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

// Snapshot returns the tab's conversation, restoring it if needed.
func (s *Service) Snapshot(ctx context.Context, userID, sessionID string) (journey.Snapshot, error) {
	e, err := s.get(ctx, userID, sessionID)
	if err != nil {
		return journey.Snapshot{}, err
	}
	return e.session.Snapshot(), nil
}

// Reset discards the tab's conversation, cancelling any running operation.
func (s *Service) Reset(ctx context.Context, userID, sessionID string) error {
	key := domain.SessionKey(userID, sessionID)
	s.mu.Lock()
	e, ok := s.sessions[key]
	if ok {
		delete(s.sessions, key)
		metrics.LiveSessions.Dec()
	}
	s.mu.Unlock()
	if ok {
		e.session.Close()
		e.retire()
	}

	if err := s.repo.DeleteJourneySession(ctx, userID, sessionID); err != nil {
		return fmt.Errorf("delete journey session: %w", err)
	}
	s.bus.Publish(Envelope{UserID: userID, SessionID: sessionID, Event: journey.Event{Type: EventReset}})
	s.opts.Logger.Info("Journey session reset", "user_id", userID, "session_id", sessionID)
	return nil
}

// SweepIdle closes sessions that have been idle longer than ttl. Their
// snapshots stay in the repository. It returns how many were closed.
func (s *Service) SweepIdle(ttl time.Duration) int {
	cutoff := s.opts.Now().Add(-ttl)
	var expired []*entry

	s.mu.Lock()
	for key, e := range s.sessions {
		if e.session.Busy() || e.session.LastActive().After(cutoff) {
			continue
		}
		delete(s.sessions, key)
		expired = append(expired, e)
	}
	s.mu.Unlock()

	for _, e := range expired {
		e.markExpired()
		e.session.Close()
		metrics.LiveSessions.Dec()
		metrics.SessionsExpired.Inc()
		s.opts.Logger.Info("Idle journey session closed", "user_id", e.userID, "session_id", e.sessionID)
	}
	return len(expired)
}

// Len returns the number of sessions held in memory.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close cancels every session and the event bus.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	sessions := s.sessions
	s.sessions = make(map[string]*entry)
	s.mu.Unlock()

	for _, e := range sessions {
		e.session.Close()
		metrics.LiveSessions.Dec()
	}
	s.bus.Close()
}

// op runs fn against the tab's session and saves the result. The operation
// is detached from ctx cancellation: a client that disconnects mid-journey
// does not abort it. Reset, expiry and Close still do.
func (s *Service) op(ctx context.Context, userID, sessionID string, fn func(context.Context, *journey.Session) error) (*Result, error) {
	e, err := s.get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return s.opOn(ctx, e, fn)
}

// opOn runs fn against e. When the idle sweep closed e between lookup and
// run, the tab is looked up again once, which restores it from the
// repository.
func (s *Service) opOn(ctx context.Context, e *entry, fn func(context.Context, *journey.Session) error) (*Result, error) {
	before := e.session.Snapshot().LastSeq
	opErr := fn(context.WithoutCancel(ctx), e.session)
	if errors.Is(opErr, journey.ErrClosed) && e.isExpired() {
		fresh, err := s.get(ctx, e.userID, e.sessionID)
		if err != nil {
			return nil, err
		}
		e = fresh
		before = e.session.Snapshot().LastSeq
		opErr = fn(context.WithoutCancel(ctx), e.session)
	}

	snap := e.session.Snapshot()
	if snap.LastSeq != before {
		if err := s.persist(context.WithoutCancel(ctx), e, snap); err != nil {
			s.opts.Logger.Warn("Failed to save journey session",
				"user_id", e.userID, "session_id", e.sessionID, "error", err)
		}
	}
	if opErr != nil {
		return nil, opErr
	}

	res := &Result{Steps: snap.Steps, Active: snap.Active, LastSeq: snap.LastSeq}
	for _, m := range snap.Messages {
		if m.Seq > before {
			res.Messages = append(res.Messages, m)
		}
	}
	return res, nil
}

// get returns the live session for the tab, restoring or creating it.
func (s *Service) get(ctx context.Context, userID, sessionID string) (*entry, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user id", errdefs.ErrInvalidArgument)
	}
	key := domain.SessionKey(userID, sessionID)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: agent service is shutting down", errdefs.ErrUnavailable)
	}
	if e, ok := s.sessions[key]; ok {
		s.mu.Unlock()
		return e, nil
	}
	s.mu.Unlock()

	stored, err := s.repo.GetJourneySession(ctx, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: load journey session: %v", errdefs.ErrUnavailable, err)
	}

	e := &entry{userID: userID, sessionID: sessionID}
	e.session = journey.NewSession(userID, journey.Options{
		Catalog:  s.opts.Catalog,
		Profile:  s.opts.Profile,
		KYC:      s.opts.KYC,
		Refs:     s.opts.Refs,
		Pacer:    s.opts.Pacer,
		Logger:   s.opts.Logger.With("user_id", userID, "session_id", sessionID),
		Now:      s.opts.Now,
		Observer: func(ev journey.Event) { s.observe(e, ev) },
	})
	if stored != nil {
		if err := restore(e.session, stored); err != nil {
			s.opts.Logger.Warn("Discarding unreadable journey session",
				"user_id", userID, "session_id", sessionID, "error", err)
		} else {
			e.journey = e.session.Active()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		e.session.Close()
		return nil, fmt.Errorf("%w: agent service is shutting down", errdefs.ErrUnavailable)
	}
	if existing, ok := s.sessions[key]; ok {
		e.session.Close()
		return existing, nil
	}
	s.sessions[key] = e
	metrics.LiveSessions.Inc()
	return e, nil
}

func restore(sess *journey.Session, stored *domain.JourneySession) error {
	var snap journey.Snapshot
	if err := json.Unmarshal([]byte(stored.MessagesJSON), &snap.Messages); err != nil {
		return fmt.Errorf("decode messages: %w", err)
	}
	if err := json.Unmarshal([]byte(stored.StepsJSON), &snap.Steps); err != nil {
		return fmt.Errorf("decode steps: %w", err)
	}
	var state persistedState
	if err := json.Unmarshal([]byte(stored.VarsJSON), &state); err != nil {
		return fmt.Errorf("decode vars: %w", err)
	}
	snap.Active = journey.ID(stored.ActiveJourney)
	snap.Vars = state.Vars
	snap.Offered = state.Offered
	snap.Standing = state.Standing
	snap.LastSeq = state.LastSeq
	return sess.Restore(snap)
}

func (s *Service) persist(ctx context.Context, e *entry, snap journey.Snapshot) error {
	messages, err := json.Marshal(snap.Messages)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	steps, err := json.Marshal(snap.Steps)
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}
	state, err := json.Marshal(persistedState{
		Vars:     snap.Vars,
		Offered:  snap.Offered,
		Standing: snap.Standing,
		LastSeq:  snap.LastSeq,
	})
	if err != nil {
		return fmt.Errorf("encode vars: %w", err)
	}

	e.saveMu.Lock()
	defer e.saveMu.Unlock()
	if e.retired {
		return nil
	}

	start := time.Now()
	defer func() { metrics.SQLiteLatency.WithLabelValues("upsert_journey_session").Observe(time.Since(start).Seconds()) }()
	return s.repo.UpsertJourneySession(ctx, &domain.JourneySession{
		UserID:        e.userID,
		SessionID:     e.sessionID,
		ActiveJourney: string(snap.Active),
		MessagesJSON:  string(messages),
		StepsJSON:     string(steps),
		VarsJSON:      string(state),
	})
}

// observe forwards session events to the bus, the transcript and metrics.
func (s *Service) observe(e *entry, ev journey.Event) {
	switch ev.Type {
	case journey.EventJourney:
		e.mu.Lock()
		prev := e.journey
		e.journey = ev.Journey
		e.mu.Unlock()
		if ev.Journey != "" {
			metrics.JourneysStarted.WithLabelValues(string(ev.Journey)).Inc()
		} else if prev != "" {
			metrics.JourneysCompleted.WithLabelValues(string(prev)).Inc()
		}
	case journey.EventMessage:
		if ev.Message != nil && ev.Message.Kind != journey.KindThinking {
			s.transcribe(e, *ev.Message)
		}
	}
	s.bus.Publish(Envelope{UserID: e.userID, SessionID: e.sessionID, Event: ev})
}

func (s *Service) transcribe(e *entry, m journey.Message) {
	direction, raw := "outbound", m.Text
	if m.Kind == journey.KindUser {
		direction = "inbound"
	}
	meta := map[string]any{"seq": m.Seq}
	if m.Payload != nil {
		meta["payload"] = m.Payload
	}
	if len(m.Actions) > 0 {
		meta["actions"] = m.Actions
	}
	e.mu.Lock()
	active := e.journey
	e.mu.Unlock()
	s.opts.Transcript.Log(ConversationLogEvent{
		Timestamp:  m.CreatedAt.UTC().Format(time.RFC3339Nano),
		UserID:     e.userID,
		SessionID:  e.sessionID,
		Channel:    "journey",
		Direction:  direction,
		EventType:  "journey_" + string(m.Kind),
		Journey:    string(active),
		ContentRaw: raw,
		Meta:       meta,
	})
}
