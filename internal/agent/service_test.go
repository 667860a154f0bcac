package agent

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/finagent/internal/journey"
	"github.com/ashureev/finagent/internal/metrics"
	"github.com/ashureev/finagent/internal/store"
	"github.com/containerd/errdefs"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestRepo(t *testing.T) *store.SQLiteStore {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "finagent.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newTestService(t *testing.T, repo store.Repository, opts Options) *Service {
	t.Helper()
	if opts.Pacer == nil {
		opts.Pacer = journey.NoDelay{}
	}
	if opts.Refs == nil {
		opts.Refs = &journey.SequenceRefs{}
	}
	if opts.KYC == nil {
		opts.KYC = journey.StaticKYC(journey.KYCPartial)
	}
	svc := NewService(repo, opts)
	t.Cleanup(svc.Close)
	return svc
}

func TestServiceStartPersistsAndRestores(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	svc := newTestService(t, repo, Options{})
	res, err := svc.Start(ctx, "anon_1", "tab-1", journey.BankAccount)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if res.Active != journey.BankAccount || len(res.Steps) != 6 {
		t.Fatalf("result active %q steps %d", res.Active, len(res.Steps))
	}
	if len(res.Messages) == 0 || res.Messages[0].Kind != journey.KindUser {
		t.Fatalf("first new message = %+v", res.Messages)
	}
	for _, m := range res.Messages {
		if m.Kind == journey.KindThinking {
			t.Errorf("thinking entry leaked into result: %+v", m)
		}
	}

	stored, err := repo.GetJourneySession(ctx, "anon_1", "tab-1")
	if err != nil || stored == nil {
		t.Fatalf("stored session = %v, %v", stored, err)
	}
	if stored.ActiveJourney != string(journey.BankAccount) {
		t.Errorf("stored active = %q", stored.ActiveJourney)
	}

	// A fresh service (as after a restart) picks the conversation up.
	restarted := newTestService(t, repo, Options{})
	snap, err := restarted.Snapshot(ctx, "anon_1", "tab-1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Messages) != len(res.Messages) || snap.LastSeq != res.LastSeq {
		t.Fatalf("restored %d messages (last %d), want %d (last %d)",
			len(snap.Messages), snap.LastSeq, len(res.Messages), res.LastSeq)
	}

	res, err = restarted.Do(ctx, "anon_1", "tab-1", journey.Request{Action: journey.ActVerifyMobileOTP, Value: "123456"})
	if err != nil {
		t.Fatalf("Do after restore: %v", err)
	}
	if res.Steps[0].Status != journey.StepCompleted || res.Steps[1].Status != journey.StepInProgress {
		t.Errorf("steps after OTP = %+v", res.Steps)
	}
	if res.Messages[0].Seq <= snap.LastSeq {
		t.Errorf("new message seq %d not after restored %d", res.Messages[0].Seq, snap.LastSeq)
	}
}

func TestServiceTabsAreIndependent(t *testing.T) {
	svc := newTestService(t, newTestRepo(t), Options{})
	ctx := context.Background()

	if _, err := svc.Start(ctx, "anon_1", "tab-1", journey.PersonalLoan); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, err := svc.Do(ctx, "anon_1", "tab-2", journey.Request{Action: journey.ActConfirmPLApplicant})
	if !errdefs.IsFailedPrecondition(err) {
		t.Errorf("action from another tab: err = %v, want failed precondition", err)
	}
	if svc.Len() != 2 {
		t.Errorf("live sessions = %d, want 2", svc.Len())
	}
}

func TestServiceRejectsMissingUser(t *testing.T) {
	svc := newTestService(t, newTestRepo(t), Options{})
	if _, err := svc.Send(context.Background(), "", "tab", "hi"); !errdefs.IsInvalidArgument(err) {
		t.Errorf("err = %v, want invalid argument", err)
	}
}

func TestServiceResetPublishes(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo, Options{})
	ctx := context.Background()
	events, unsubscribe := svc.Subscribe(1024)
	defer unsubscribe()

	if _, err := svc.Send(ctx, "anon_1", "tab-1", "I want a credit card"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := svc.Reset(ctx, "anon_1", "tab-1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if stored, _ := repo.GetJourneySession(ctx, "anon_1", "tab-1"); stored != nil {
		t.Error("snapshot survived reset")
	}

	var sawJourney, sawReset bool
	for done := false; !done; {
		select {
		case env := <-events:
			if env.UserID != "anon_1" || env.SessionID != "tab-1" {
				t.Errorf("envelope addressed to %s/%s", env.UserID, env.SessionID)
			}
			switch env.Event.Type {
			case journey.EventJourney:
				sawJourney = sawJourney || env.Event.Journey == journey.CreditCard
			case EventReset:
				sawReset = true
				done = true
			}
		case <-time.After(time.Second):
			done = true
		}
	}
	if !sawJourney || !sawReset {
		t.Errorf("sawJourney=%v sawReset=%v", sawJourney, sawReset)
	}

	snap, err := svc.Snapshot(ctx, "anon_1", "tab-1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Messages) != 0 || snap.Active != "" {
		t.Errorf("snapshot after reset = %+v", snap)
	}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestServiceSweepIdle(t *testing.T) {
	clk := &clock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	repo := newTestRepo(t)
	svc := newTestService(t, repo, Options{Now: clk.Now})
	ctx := context.Background()

	if _, err := svc.Start(ctx, "anon_1", "tab-1", journey.TaxPlanning); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clk.Add(30 * time.Minute)
	if _, err := svc.Start(ctx, "anon_2", "tab-1", journey.Insurance); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clk.Add(45 * time.Minute)

	if n := svc.SweepIdle(time.Hour); n != 1 {
		t.Fatalf("SweepIdle = %d, want 1", n)
	}
	if svc.Len() != 1 {
		t.Errorf("live sessions = %d, want 1", svc.Len())
	}

	// The swept conversation is still on disk and comes back on demand.
	snap, err := svc.Snapshot(ctx, "anon_1", "tab-1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Messages) == 0 {
		t.Error("swept conversation lost its messages")
	}
}

func TestServiceCloseRejectsNewWork(t *testing.T) {
	svc := NewService(newTestRepo(t), Options{Pacer: journey.NoDelay{}})
	svc.Close()
	if _, err := svc.Start(context.Background(), "anon_1", "tab", journey.BankAccount); !errdefs.IsUnavailable(err) {
		t.Errorf("err = %v, want unavailable", err)
	}
}

func TestBusDropsWhenFull(t *testing.T) {
	b := NewBus()
	ch, unsubscribe := b.Subscribe(1)
	b.Publish(Envelope{UserID: "a"})
	b.Publish(Envelope{UserID: "b"})
	if got := (<-ch).UserID; got != "a" {
		t.Errorf("first = %q", got)
	}
	select {
	case env := <-ch:
		t.Errorf("unexpected %+v", env)
	default:
	}
	unsubscribe()
	unsubscribe()
	if _, ok := <-ch; ok {
		t.Error("channel open after unsubscribe")
	}
	b.Close()
	b.Publish(Envelope{})
}

func TestBusResyncsLaggingSubscriber(t *testing.T) {
	b := NewBus()
	defer b.Close()
	ch, unsubscribe := b.Subscribe(2)
	defer unsubscribe()

	dropped := testutil.ToFloat64(metrics.BusEventsDropped)
	b.Publish(Envelope{UserID: "a", SessionID: "t", Event: journey.Event{Type: journey.EventBusy}})
	b.Publish(Envelope{UserID: "a", SessionID: "t", Event: journey.Event{Type: journey.EventSteps}})
	b.Publish(Envelope{UserID: "b", SessionID: "t", Event: journey.Event{Type: journey.EventMessage}})
	if got := testutil.ToFloat64(metrics.BusEventsDropped) - dropped; got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
	<-ch
	<-ch

	b.Publish(Envelope{UserID: "a", SessionID: "t", Event: journey.Event{Type: journey.EventBusy}})
	resync := <-ch
	if resync.UserID != "b" || resync.SessionID != "t" || resync.Event.Type != EventResync {
		t.Errorf("first after drain = %+v, want resync for b/t", resync)
	}
	if next := <-ch; next.UserID != "a" || next.Event.Type != journey.EventBusy {
		t.Errorf("second after drain = %+v", next)
	}
}

// lingerPacer blocks until the operation is cancelled and then takes a
// little longer to return, like a step that is winding down.
type lingerPacer struct {
	once    sync.Once
	entered chan struct{}
}

func (p *lingerPacer) Wait(ctx context.Context, _ time.Duration) error {
	p.once.Do(func() { close(p.entered) })
	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)
	return ctx.Err()
}

func TestResetDuringOperationStaysReset(t *testing.T) {
	repo := newTestRepo(t)
	pacer := &lingerPacer{entered: make(chan struct{})}
	svc := newTestService(t, repo, Options{Pacer: pacer})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Start(ctx, "anon_1", "tab-1", journey.Investment)
		done <- err
	}()
	<-pacer.entered

	if err := svc.Reset(ctx, "anon_1", "tab-1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Start: err = %v, want context.Canceled", err)
	}

	stored, err := repo.GetJourneySession(ctx, "anon_1", "tab-1")
	if err != nil {
		t.Fatalf("GetJourneySession: %v", err)
	}
	if stored != nil {
		t.Error("cancelled operation saved the conversation after reset")
	}
	snap, err := svc.Snapshot(ctx, "anon_1", "tab-1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Messages) != 0 {
		t.Errorf("snapshot after reset has %d messages", len(snap.Messages))
	}
}

func TestOperationOnSweptSessionRestores(t *testing.T) {
	clk := &clock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	svc := newTestService(t, newTestRepo(t), Options{Now: clk.Now})
	ctx := context.Background()

	if _, err := svc.Start(ctx, "anon_1", "tab-1", journey.TaxPlanning); err != nil {
		t.Fatalf("Start: %v", err)
	}
	e, err := svc.get(ctx, "anon_1", "tab-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	clk.Add(2 * time.Hour)
	if n := svc.SweepIdle(time.Hour); n != 1 {
		t.Fatalf("SweepIdle = %d, want 1", n)
	}

	res, err := svc.opOn(ctx, e, func(ctx context.Context, sess *journey.Session) error {
		return sess.Do(ctx, journey.Request{Action: journey.ActStartInvestments})
	})
	if err != nil {
		t.Fatalf("operation on swept entry: %v", err)
	}
	if n := len(res.Messages); n == 0 || res.Messages[n-1].Kind != journey.KindSuccess {
		t.Errorf("result = %+v, want the plan activation", res.Messages)
	}
	if svc.Len() != 1 {
		t.Errorf("live sessions = %d, want 1", svc.Len())
	}
}
