package journey

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/containerd/errdefs"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = fmt.Errorf("%w: session closed", errdefs.ErrFailedPrecondition)

// Options configures a Session. Zero fields take production defaults.
type Options struct {
	Catalog  *Catalog
	Profile  Profile
	KYC      KYCResolver
	Refs     RefGenerator
	Pacer    Pacer
	Observer Observer
	Logger   *slog.Logger
	Now      func() time.Time
}

// Request is one button press.
type Request struct {
	Action ActionID
	Value  string
	// KYC overrides the resolver for this request when set.
	KYC KYCStatus
}

// Vars holds the choices made inside the running journeys.
type Vars struct {
	SelectedLoan  string `json:"selected_loan,omitempty"`
	SelectedCard  string `json:"selected_card,omitempty"`
	VKYCSlot      string `json:"vkyc_slot,omitempty"`
	Mandate       string `json:"mandate,omitempty"`
	Autopay       string `json:"autopay,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	VirtualCard   string `json:"virtual_card,omitempty"`
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	Active   ID         `json:"active_journey,omitempty"`
	Messages []Message  `json:"messages"`
	Steps    []Step     `json:"steps"`
	Vars     Vars       `json:"vars"`
	Offered  []ActionID `json:"offered,omitempty"`
	Standing []ActionID `json:"standing,omitempty"`
	LastSeq  int64      `json:"last_seq"`
	Busy     bool       `json:"busy"`
}

// Session is one conversation: a timeline, a step tracker and the active
// journey. Only one operation runs at a time; concurrent calls fail with a
// conflict error. Snapshot may be called at any time.
type Session struct {
	opts    Options
	userID  string
	matcher *Matcher

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	timeline   Timeline
	tracker    *Tracker
	active     ID
	vars       Vars
	offered    map[ActionID]bool
	standing   map[ActionID]bool
	replaced   map[lane]bool
	busy       bool
	closed     bool
	lastActive time.Time
}

// NewSession returns an idle session for userID.
func NewSession(userID string, opts Options) *Session {
	if opts.Catalog == nil {
		opts.Catalog = DefaultCatalog()
	}
	if opts.Profile.Name == "" {
		opts.Profile = DemoProfile()
	}
	if opts.KYC == nil {
		opts.KYC = StaticKYC(KYCPartial)
	}
	if opts.Refs == nil {
		opts.Refs = UUIDRefs{}
	}
	if opts.Pacer == nil {
		opts.Pacer = TimerPacer{Scale: 1}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		opts:       opts,
		userID:     userID,
		matcher:    NewMatcher(opts.Catalog),
		ctx:        ctx,
		cancel:     cancel,
		offered:    make(map[ActionID]bool),
		standing:   make(map[ActionID]bool),
		replaced:   make(map[lane]bool),
		lastActive: opts.Now(),
	}
}

// Restore loads persisted state into an idle session.
func (s *Session) Restore(snap Snapshot) error {
	tracker, err := RestoreTracker(snap.Steps)
	if err != nil {
		return fmt.Errorf("restore steps: %w", err)
	}
	if snap.Active != "" {
		if _, err := s.opts.Catalog.Get(snap.Active); err != nil {
			return fmt.Errorf("restore active journey: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy || s.timeline.Len() > 0 {
		return fmt.Errorf("%w: session already in use", errdefs.ErrFailedPrecondition)
	}
	s.timeline = restoreTimeline(snap.Messages)
	if snap.LastSeq > s.timeline.last {
		s.timeline.last = snap.LastSeq
	}
	s.tracker = tracker
	s.active = snap.Active
	s.vars = snap.Vars
	for _, a := range snap.Offered {
		s.offered[a] = true
	}
	for _, a := range snap.Standing {
		s.standing[a] = true
	}
	return nil
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Active:   s.active,
		Messages: s.timeline.Messages(),
		Steps:    s.tracker.Steps(),
		Vars:     s.vars,
		Offered:  sortedActions(s.offered),
		Standing: sortedActions(s.standing),
		LastSeq:  s.timeline.LastSeq(),
		Busy:     s.busy,
	}
}

// Active returns the journey in progress, or "".
func (s *Session) Active() ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// LastActive reports when the session last started or finished an operation.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Busy reports whether an operation is running.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Close cancels any pending wait. The running operation stops without
// appending further messages and later calls fail.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

// Start runs the opening of journey id, as when a quick action is tapped.
func (s *Session) Start(ctx context.Context, id ID) error {
	j, err := s.opts.Catalog.Get(id)
	if err != nil {
		return err
	}
	return s.run(ctx, "", nil, func(ctx context.Context) error {
		s.echo(j.Title)
		if err := s.pause(ctx, echoDelay); err != nil {
			return err
		}
		return s.begin(ctx, j)
	})
}

// Send handles free text: it starts the matching journey or answers with the
// list of things the agent can do.
func (s *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: message text is empty", errdefs.ErrInvalidArgument)
	}
	return s.run(ctx, "", nil, func(ctx context.Context) error {
		s.echo(text)
		if id, ok := s.matcher.Match(text); ok {
			j, err := s.opts.Catalog.Get(id)
			if err != nil {
				return err
			}
			if err := s.pause(ctx, echoDelay); err != nil {
				return err
			}
			return s.begin(ctx, j)
		}
		if err := s.think(ctx, []string{
			"Understanding your request...",
			"Checking available services...",
			"Reviewing your profile...",
			"Preparing a response...",
		}, 2000*time.Millisecond); err != nil {
			return err
		}
		s.say(capabilities(s.opts.Profile))
		return nil
	})
}

// Do dispatches an action. The action must be one the conversation currently
// offers.
func (s *Session) Do(ctx context.Context, req Request) error {
	h := s.handlerFor(req.Action)
	if h == nil {
		return fmt.Errorf("%w: action %q", errdefs.ErrNotImplemented, req.Action)
	}
	check := func() error {
		if s.offered[req.Action] || s.standing[req.Action] {
			return nil
		}
		return fmt.Errorf("%w: action %q is not available now", errdefs.ErrFailedPrecondition, req.Action)
	}
	return s.run(ctx, req.Action, check, func(ctx context.Context) error {
		return h(ctx, req)
	})
}

func (s *Session) begin(ctx context.Context, j Journey) error {
	s.enter(j)
	switch j.ID {
	case BankAccount:
		return s.startBankAccount(ctx)
	case PersonalLoan:
		return s.startPersonalLoan(ctx)
	case CreditCard:
		return s.startCreditCard(ctx)
	case TaxPlanning:
		return s.startTaxPlanning(ctx)
	case Investment:
		return s.startInvestment(ctx)
	case Insurance:
		return s.startInsurance(ctx)
	default:
		return fmt.Errorf("%w: journey %q", errdefs.ErrNotImplemented, j.ID)
	}
}

// run serializes an operation. check runs under the lock before the
// operation is admitted. When pressed succeeds without prompting again in its
// lane, that lane's actions are withdrawn so the button cannot fire twice.
func (s *Session) run(ctx context.Context, pressed ActionID, check func() error, fn func(context.Context) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.busy {
		s.mu.Unlock()
		return fmt.Errorf("%w: agent is still responding", errdefs.ErrConflict)
	}
	if check != nil {
		if err := check(); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.busy = true
	clear(s.replaced)
	s.lastActive = s.opts.Now()
	s.mu.Unlock()
	s.notify(Event{Type: EventBusy, Busy: true})

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	defer func() {
		stop()
		cancel()
	}()

	err := fn(ctx)

	s.mu.Lock()
	s.busy = false
	s.lastActive = s.opts.Now()
	var removed []int64
	if err != nil {
		removed = s.timeline.DropTransient()
	} else if pressed != "" {
		if l := laneOf(pressed); l != laneStanding && !s.replaced[l] {
			s.clearLane(l)
		}
	}
	s.mu.Unlock()

	if len(removed) > 0 {
		s.notify(Event{Type: EventMessageRemoved, Removed: removed})
	}
	s.notify(Event{Type: EventBusy, Busy: false})
	if err != nil {
		s.opts.Logger.Debug("journey operation stopped", "user_id", s.userID, "error", err)
	}
	return err
}

func (s *Session) notify(ev Event) {
	if s.opts.Observer != nil {
		s.opts.Observer(ev)
	}
}

func (s *Session) pause(ctx context.Context, d time.Duration) error {
	return s.opts.Pacer.Wait(ctx, d)
}

// emit appends m. The first prompt of an operation in a lane replaces that
// lane's offered actions; later prompts in the same operation add to it.
func (s *Session) emit(m Message) Message {
	s.mu.Lock()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.opts.Now()
	}
	m = s.timeline.Append(m)
	for _, id := range m.actionIDs() {
		l := laneOf(id)
		if l == laneStanding {
			s.standing[id] = true
			continue
		}
		if !s.replaced[l] {
			s.clearLane(l)
		}
		s.offered[id] = true
	}
	s.mu.Unlock()
	out := m.clone()
	s.notify(Event{Type: EventMessage, Message: &out})
	return m
}

func (s *Session) echo(text string) {
	s.emit(Message{Kind: KindUser, Text: text})
}

func (s *Session) say(text string) {
	s.emit(Message{Kind: KindAgent, Text: text})
}

// think shows steps one by one in a transient entry over total, then removes
// it.
func (s *Session) think(ctx context.Context, steps []string, total time.Duration) error {
	interval := total / time.Duration(max(len(steps), 1))
	for i := range steps {
		s.mu.Lock()
		m, removed := s.timeline.SetTransient(steps[:i+1], s.opts.Now())
		m = m.clone()
		s.mu.Unlock()
		if len(removed) > 0 {
			s.notify(Event{Type: EventMessageRemoved, Removed: removed})
		}
		s.notify(Event{Type: EventMessage, Message: &m})
		if err := s.pause(ctx, interval); err != nil {
			return err
		}
	}
	s.mu.Lock()
	removed := s.timeline.DropTransient()
	s.mu.Unlock()
	if len(removed) > 0 {
		s.notify(Event{Type: EventMessageRemoved, Removed: removed})
	}
	return nil
}

// clearLane withdraws the offered actions of l and marks the lane as
// replaced for the running operation. Callers hold s.mu.
func (s *Session) clearLane(l lane) {
	for id := range s.offered {
		if laneOf(id) == l {
			delete(s.offered, id)
		}
	}
	s.replaced[l] = true
}

// expect fails unless id is the active journey and, for step >= 0, step is
// the one in progress. Handlers call it before echoing so a stale press
// leaves the timeline untouched.
func (s *Session) expect(id ID, step int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != id {
		return fmt.Errorf("%w: %s is not the active journey", errdefs.ErrFailedPrecondition, id)
	}
	if step >= 0 {
		if cur := s.tracker.Current(); cur != step {
			return fmt.Errorf("%w: step %d is not in progress", errdefs.ErrFailedPrecondition, step)
		}
	}
	return nil
}

// enter makes j the active journey with a fresh tracker whose first step, if
// any, is already in progress.
func (s *Session) enter(j Journey) {
	s.mu.Lock()
	s.clearLane(laneJourney)
	s.active = j.ID
	s.tracker = NewTracker(j.Steps)
	if s.tracker.Len() > 0 {
		_ = s.tracker.Start(0)
	}
	steps := s.tracker.Steps()
	s.mu.Unlock()
	s.notify(Event{Type: EventJourney, Journey: j.ID})
	s.notify(Event{Type: EventSteps, Steps: steps})
}

// enterAt makes id active with every step before i already completed.
func (s *Session) enterAt(id ID, i int) error {
	j, err := s.opts.Catalog.Get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	t := NewTracker(j.Steps)
	if err := t.StartAt(i); err != nil {
		s.mu.Unlock()
		return err
	}
	s.clearLane(laneJourney)
	s.active = id
	s.tracker = t
	steps := t.Steps()
	s.mu.Unlock()
	s.notify(Event{Type: EventJourney, Journey: id})
	s.notify(Event{Type: EventSteps, Steps: steps})
	return nil
}

func (s *Session) step(fn func(*Tracker) error) error {
	s.mu.Lock()
	err := fn(s.tracker)
	steps := s.tracker.Steps()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(Event{Type: EventSteps, Steps: steps})
	return nil
}

// advance completes step i and starts step i+1.
func (s *Session) advance(i int) error {
	return s.step(func(t *Tracker) error { return t.Advance(i) })
}

// complete finishes step i without starting another.
func (s *Session) complete(i int) error {
	return s.step(func(t *Tracker) error { return t.Complete(i) })
}

// finish clears the active journey and withdraws its actions. The tracker
// keeps its steps.
func (s *Session) finish() {
	s.mu.Lock()
	s.active = ""
	s.clearLane(laneJourney)
	s.mu.Unlock()
	s.notify(Event{Type: EventJourney})
}

func (s *Session) setVars(fn func(*Vars)) {
	s.mu.Lock()
	fn(&s.vars)
	s.mu.Unlock()
}

func (s *Session) getVars() Vars {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vars
}

func (s *Session) kycStatus(ctx context.Context, req Request) (KYCStatus, error) {
	if req.KYC != "" {
		return req.KYC, nil
	}
	st, err := s.opts.KYC.KYCStatus(ctx, s.userID)
	if err != nil {
		return "", fmt.Errorf("%w: resolve KYC status: %v", errdefs.ErrUnavailable, err)
	}
	return st, nil
}

func (s *Session) ref(prefix string) string {
	return s.opts.Refs.Next(prefix)
}

func sortedActions(set map[ActionID]bool) []ActionID {
	var out []ActionID
	for _, a := range allActions {
		if set[a] {
			out = append(out, a)
		}
	}
	return out
}

func capabilities(p Profile) string {
	return fmt.Sprintf("I can help you with:\n\n"+
		"- Open a savings account with instant eKYC\n"+
		"- Personal loans with pre-approved offers up to ₹15L\n"+
		"- Credit cards matched to your %s income\n"+
		"- Tax planning under Section 80C and 80D\n"+
		"- Goal-based investments and SIPs\n"+
		"- Health insurance cover\n\n"+
		"Try \"open a bank account\" or \"I need a personal loan\".", p.Income())
}
