package journey

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/containerd/errdefs"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) observe(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) steps() [][]Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out [][]Step
	for _, ev := range r.events {
		if ev.Type == EventSteps {
			out = append(out, ev.Steps)
		}
	}
	return out
}

func newTestSession(t *testing.T, kyc KYCStatus) (*Session, *recorder) {
	t.Helper()
	rec := &recorder{}
	s := NewSession("user-1", Options{
		KYC:      StaticKYC(kyc),
		Refs:     &SequenceRefs{},
		Pacer:    NoDelay{},
		Observer: rec.observe,
	})
	t.Cleanup(s.Close)
	return s, rec
}

func mustDo(t *testing.T, s *Session, action ActionID, value string) {
	t.Helper()
	if err := s.Do(context.Background(), Request{Action: action, Value: value}); err != nil {
		t.Fatalf("Do(%s, %q): %v", action, value, err)
	}
}

func lastMessage(t *testing.T, s *Session) Message {
	t.Helper()
	msgs := s.Snapshot().Messages
	if len(msgs) == 0 {
		t.Fatal("timeline is empty")
	}
	return msgs[len(msgs)-1]
}

func statuses(steps []Step) []StepStatus {
	out := make([]StepStatus, len(steps))
	for i, st := range steps {
		out[i] = st.Status
	}
	return out
}

func countKind(msgs []Message, kind Kind) int {
	n := 0
	for _, m := range msgs {
		if m.Kind == kind {
			n++
		}
	}
	return n
}

func hasAction(msgs []Message, id ActionID) bool {
	for _, m := range msgs {
		for _, a := range m.actionIDs() {
			if a == id {
				return true
			}
		}
	}
	return false
}

func TestStartInitializesSteps(t *testing.T) {
	for _, j := range DefaultCatalog().List() {
		t.Run(string(j.ID), func(t *testing.T) {
			s, _ := newTestSession(t, KYCPartial)
			if err := s.Start(context.Background(), j.ID); err != nil {
				t.Fatalf("Start: %v", err)
			}
			snap := s.Snapshot()
			if snap.Active != j.ID {
				t.Errorf("active = %q, want %q", snap.Active, j.ID)
			}
			if len(snap.Steps) != len(j.Steps) {
				t.Fatalf("got %d steps, want %d", len(snap.Steps), len(j.Steps))
			}
			for i, st := range snap.Steps {
				want := StepPending
				if i == 0 {
					want = StepInProgress
				}
				if st.Status != want {
					t.Errorf("step %d status = %s, want %s", i, st.Status, want)
				}
				if st.Label != j.Steps[i] {
					t.Errorf("step %d label = %q, want %q", i, st.Label, j.Steps[i])
				}
			}
			if snap.Messages[0].Kind != KindUser || snap.Messages[0].Text != j.Title {
				t.Errorf("first message = %+v, want user echo of %q", snap.Messages[0], j.Title)
			}
		})
	}
}

func TestBankAccountMobileOTP(t *testing.T) {
	s, _ := newTestSession(t, KYCPartial)
	if err := s.Start(context.Background(), BankAccount); err != nil {
		t.Fatalf("Start: %v", err)
	}
	mustDo(t, s, ActVerifyMobileOTP, "123456")

	snap := s.Snapshot()
	if snap.Steps[0].Status != StepCompleted || snap.Steps[1].Status != StepInProgress {
		t.Fatalf("steps = %v, want step 0 completed and step 1 in progress", statuses(snap.Steps))
	}

	last := lastMessage(t, s)
	if last.Kind != KindInteractive || last.Text != "Please confirm your PAN details:" {
		t.Fatalf("last message = %q (%s), want PAN confirmation", last.Text, last.Kind)
	}
	if len(last.Actions) != 1 || last.Actions[0].ID != ActVerifyPAN {
		t.Errorf("actions = %+v, want verify-pan", last.Actions)
	}
	fields := last.Payload.(FieldList).Fields
	if len(fields) != 2 || fields[0].Label != "PAN Number" || fields[1].Label != "Name" {
		t.Errorf("fields = %+v", fields)
	}
}

func TestCreditCardKYCBranch(t *testing.T) {
	const card = "Kotak811 Royale Signature Credit Card"

	tests := []struct {
		name       string
		kyc        KYCStatus
		wantSteps  []StepStatus
		wantKind   Kind
		wantAction ActionID
	}{
		{
			name: "full skips aadhaar",
			kyc:  KYCFull,
			wantSteps: []StepStatus{
				StepCompleted, StepCompleted, StepCompleted, StepCompleted,
				StepCompleted, StepInProgress, StepPending, StepPending,
			},
			wantKind:   KindInteractive,
			wantAction: ActConfirmDeliveryAddress,
		},
		{
			name: "partial asks for aadhaar otp",
			kyc:  KYCPartial,
			wantSteps: []StepStatus{
				StepCompleted, StepCompleted, StepCompleted, StepCompleted,
				StepInProgress, StepPending, StepPending, StepPending,
			},
			wantKind:   KindInfoCard,
			wantAction: ActVerifyCCAadhaarOTP,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// The configured resolver disagrees with the per-request status
			// to prove the override wins.
			s, _ := newTestSession(t, KYCNone)
			ctx := context.Background()
			if err := s.Start(ctx, CreditCard); err != nil {
				t.Fatalf("Start: %v", err)
			}
			mustDo(t, s, ActConfirmApplicant, "")
			mustDo(t, s, ActConsentBureau, "")
			if err := s.Do(ctx, Request{Action: ActSelectCreditCardOffer, Value: card, KYC: tt.kyc}); err != nil {
				t.Fatalf("select card: %v", err)
			}

			snap := s.Snapshot()
			if got := statuses(snap.Steps); !reflect.DeepEqual(got, tt.wantSteps) {
				t.Errorf("steps = %v, want %v", got, tt.wantSteps)
			}
			last := snap.Messages[len(snap.Messages)-1]
			if last.Kind != tt.wantKind || !hasAction([]Message{last}, tt.wantAction) {
				t.Errorf("last message = %s %+v, want %s offering %s", last.Kind, last.Actions, tt.wantKind, tt.wantAction)
			}
			if tt.kyc == KYCFull {
				if hasAction(snap.Messages, ActVerifyCCAadhaarOTP) {
					t.Error("full KYC must not prompt for an Aadhaar OTP")
				}
				if last.Text != "Please confirm your card delivery address:" {
					t.Errorf("text = %q", last.Text)
				}
				prev := snap.Messages[len(snap.Messages)-2]
				if prev.Text != "Your KYC is already complete. We can skip to delivery address confirmation." {
					t.Errorf("agent text = %q", prev.Text)
				}
			} else {
				if got := last.Payload.(InfoCard).Title; got != "Aadhaar e-KYC" {
					t.Errorf("card title = %q", got)
				}
			}
		})
	}
}

func TestPersonalLoanCompletes(t *testing.T) {
	s, rec := newTestSession(t, KYCPartial)
	ctx := context.Background()
	if err := s.Start(ctx, PersonalLoan); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var prefixes [][]Message
	prefixes = append(prefixes, s.Snapshot().Messages)
	for _, step := range []struct {
		action ActionID
		value  string
	}{
		{ActConfirmPLApplicant, ""},
		{ActConsentPLBureau, ""},
		{ActSelectLoan, "₹10L for 48 months"},
		{ActVerifyPLAadhaarOTP, "246810"},
		{ActConfirmPLDisbursal, ""},
		{ActSetupPLEnachUPI, ""},
		{ActConfirmPLSubmit, ""},
	} {
		mustDo(t, s, step.action, step.value)
		prefixes = append(prefixes, s.Snapshot().Messages)
	}

	snap := s.Snapshot()
	if snap.Active != "" {
		t.Errorf("active = %q after completion, want none", snap.Active)
	}
	for i, st := range snap.Steps {
		if st.Status != StepCompleted {
			t.Errorf("step %d = %s, want completed", i, st.Status)
		}
	}
	if n := countKind(snap.Messages, KindSuccess); n != 1 {
		t.Fatalf("got %d success messages, want 1", n)
	}
	success := lastMessage(t, s).Payload.(Success)
	if success.Reference != "PL00000001" {
		t.Errorf("reference = %q", success.Reference)
	}
	if snap.Vars.SelectedLoan != "₹10L for 48 months" || snap.Vars.Mandate != "UPI eMandate" {
		t.Errorf("vars = %+v", snap.Vars)
	}
	if countKind(snap.Messages, KindThinking) != 0 {
		t.Error("thinking entries left in timeline")
	}

	// Earlier timelines are prefixes of later ones.
	for i := 1; i < len(prefixes); i++ {
		prev, next := prefixes[i-1], prefixes[i]
		if len(next) < len(prev) {
			t.Fatalf("timeline shrank from %d to %d", len(prev), len(next))
		}
		for j := range prev {
			if prev[j].Seq != next[j].Seq {
				t.Fatalf("snapshot %d diverges at %d", i, j)
			}
		}
	}

	// Statuses never regress and at most one step is in progress.
	rank := map[StepStatus]int{StepPending: 0, StepInProgress: 1, StepCompleted: 2}
	history := rec.steps()
	for i, steps := range history {
		inProgress := 0
		for j, st := range steps {
			if st.Status == StepInProgress {
				inProgress++
			}
			if i > 0 && rank[st.Status] < rank[history[i-1][j].Status] {
				t.Errorf("step %d regressed from %s to %s", j, history[i-1][j].Status, st.Status)
			}
		}
		if inProgress > 1 {
			t.Errorf("event %d has %d steps in progress", i, inProgress)
		}
	}
}

func TestBankAccountThenCreditOffers(t *testing.T) {
	s, _ := newTestSession(t, KYCFull)
	ctx := context.Background()
	if err := s.Start(ctx, BankAccount); err != nil {
		t.Fatalf("Start: %v", err)
	}
	mustDo(t, s, ActVerifyMobileOTP, "123456")
	mustDo(t, s, ActVerifyPAN, "")
	mustDo(t, s, ActVerifyPANAadhaar, "")
	mustDo(t, s, ActVerifyAadhaarOTP, "654321")
	mustDo(t, s, ActScheduleVKYCSlot2, "")
	mustDo(t, s, ActAddCalendar, "")
	mustDo(t, s, ActConfirmPreferences, "")

	snap := s.Snapshot()
	if snap.Active != "" {
		t.Errorf("active = %q, want none", snap.Active)
	}
	if n := countKind(snap.Messages, KindSuccess); n != 1 {
		t.Errorf("got %d success messages, want 1", n)
	}
	if n := countKind(snap.Messages, KindDocument); n != 1 {
		t.Errorf("got %d calendar documents, want 1", n)
	}
	if snap.Vars.VKYCSlot != "Today 4:00 PM" || snap.Vars.AccountNumber == "" {
		t.Errorf("vars = %+v", snap.Vars)
	}

	mustDo(t, s, ActViewCreditOffers, "")
	snap = s.Snapshot()
	if snap.Active != CreditCard {
		t.Fatalf("active = %q, want credit-card", snap.Active)
	}
	if got := s.tracker.Current(); got != 3 {
		t.Fatalf("current step = %d, want 3", got)
	}

	mustDo(t, s, ActSelectCreditCardOffer, "Kotak811 White Reserve Credit Card")
	mustDo(t, s, ActConfirmDeliveryAddress, "")
	mustDo(t, s, ActSetupAutopaySalary, "")
	mustDo(t, s, ActConfirmCCApplication, "")
	if s.Active() != "" || !s.tracker.Done() {
		t.Errorf("credit card journey did not complete: active=%q steps=%v", s.Active(), statuses(s.Snapshot().Steps))
	}

	// Follow-ups stay available after the journey ends.
	mustDo(t, s, ActEmailDetails, "")
	mustDo(t, s, ActActivateVCard, "")
	mustDo(t, s, ActVerifyCardDetails, "")
	mustDo(t, s, ActVerifyCardOTP, "111222")
	mustDo(t, s, ActFinalizeCard, "")
	mustDo(t, s, ActViewCardApp, "")
	mustDo(t, s, ActManageCard, "")
	mustDo(t, s, ActRequestSalaryAccount, "")
	mustDo(t, s, ActSelectCard, "Kotak811 811 Super Credit Card")
	mustDo(t, s, ActConfirmCardDetails, "")

	last := lastMessage(t, s).Payload.(Success)
	if last.Reference != "CC00000004" {
		t.Errorf("reference = %q, want CC00000004", last.Reference)
	}
}

func TestAdvisoryJourneys(t *testing.T) {
	tests := []struct {
		journey ID
		actions []ActionID
		prefix  string
	}{
		{TaxPlanning, []ActionID{ActStartInvestments}, RefTax},
		{Investment, []ActionID{ActStartSIP}, RefSIP},
		{Insurance, []ActionID{ActPurchaseInsurance, ActConfirmHealth}, RefInsurance},
	}
	for _, tt := range tests {
		t.Run(string(tt.journey), func(t *testing.T) {
			s, _ := newTestSession(t, KYCPartial)
			if err := s.Start(context.Background(), tt.journey); err != nil {
				t.Fatalf("Start: %v", err)
			}
			for _, a := range tt.actions {
				mustDo(t, s, a, "")
			}
			snap := s.Snapshot()
			if snap.Active != "" {
				t.Errorf("active = %q, want none", snap.Active)
			}
			if len(snap.Steps) != 0 {
				t.Errorf("got %d steps, want none", len(snap.Steps))
			}
			if got := lastMessage(t, s).Payload.(Success).Reference; got != tt.prefix+"00000001" {
				t.Errorf("reference = %q", got)
			}
		})
	}
}

func TestSendMatchesJourney(t *testing.T) {
	s, _ := newTestSession(t, KYCPartial)
	if err := s.Send(context.Background(), "I want a Personal Loan"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	snap := s.Snapshot()
	if snap.Active != PersonalLoan {
		t.Errorf("active = %q, want personal-loan", snap.Active)
	}
	if snap.Messages[0].Text != "I want a Personal Loan" {
		t.Errorf("echo = %q", snap.Messages[0].Text)
	}
}

func TestSendFallback(t *testing.T) {
	s, _ := newTestSession(t, KYCPartial)
	if err := s.Send(context.Background(), "hello there"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	snap := s.Snapshot()
	if snap.Active != "" {
		t.Errorf("active = %q, want none", snap.Active)
	}
	if len(snap.Messages) != 2 || snap.Messages[1].Kind != KindAgent {
		t.Fatalf("messages = %+v, want echo and capabilities", snap.Messages)
	}

	if err := s.Send(context.Background(), "   "); !errdefs.IsInvalidArgument(err) {
		t.Errorf("empty text: err = %v, want invalid argument", err)
	}
}

func TestInvalidOTPLeavesStateUnchanged(t *testing.T) {
	for _, otp := range []string{"", "12345", "1234567", "12a456", "１２３４５６"} {
		t.Run(otp, func(t *testing.T) {
			s, _ := newTestSession(t, KYCPartial)
			if err := s.Start(context.Background(), BankAccount); err != nil {
				t.Fatalf("Start: %v", err)
			}
			before := s.Snapshot()
			err := s.Do(context.Background(), Request{Action: ActVerifyMobileOTP, Value: otp})
			if !errdefs.IsInvalidArgument(err) {
				t.Fatalf("err = %v, want invalid argument", err)
			}
			after := s.Snapshot()
			if len(after.Messages) != len(before.Messages) {
				t.Errorf("timeline grew from %d to %d", len(before.Messages), len(after.Messages))
			}
			if !reflect.DeepEqual(after.Steps, before.Steps) {
				t.Errorf("steps changed: %v -> %v", statuses(before.Steps), statuses(after.Steps))
			}
		})
	}
}

func TestActionPreconditions(t *testing.T) {
	s, _ := newTestSession(t, KYCPartial)
	ctx := context.Background()

	err := s.Do(ctx, Request{Action: ActVerifyMobileOTP, Value: "123456"})
	if !errdefs.IsFailedPrecondition(err) {
		t.Fatalf("before start: err = %v, want failed precondition", err)
	}

	if err := s.Start(ctx, PersonalLoan); err != nil {
		t.Fatalf("Start: %v", err)
	}
	err = s.Do(ctx, Request{Action: ActConfirmPLSubmit})
	if !errdefs.IsFailedPrecondition(err) {
		t.Errorf("out of order: err = %v, want failed precondition", err)
	}
	err = s.Do(ctx, Request{Action: ActConfirmApplicant})
	if !errdefs.IsFailedPrecondition(err) {
		t.Errorf("other journey's action: err = %v, want failed precondition", err)
	}

	mustDo(t, s, ActConfirmPLApplicant, "")
	mustDo(t, s, ActConsentPLBureau, "")
	err = s.Do(ctx, Request{Action: ActSelectLoan, Value: "₹99L for 1 month"})
	if !errdefs.IsInvalidArgument(err) {
		t.Errorf("unknown plan: err = %v, want invalid argument", err)
	}
	err = s.Do(ctx, Request{Action: ActSelectLoan})
	if !errdefs.IsInvalidArgument(err) {
		t.Errorf("missing plan: err = %v, want invalid argument", err)
	}

	err = s.Do(ctx, Request{Action: "no-such-action"})
	if !errdefs.IsNotImplemented(err) {
		t.Errorf("unknown action: err = %v, want not implemented", err)
	}
}

type failingKYC struct{}

func (failingKYC) KYCStatus(context.Context, string) (KYCStatus, error) {
	return "", errors.New("bureau offline")
}

func TestKYCResolverFailure(t *testing.T) {
	s := NewSession("user-1", Options{KYC: failingKYC{}, Pacer: NoDelay{}, Refs: &SequenceRefs{}})
	defer s.Close()
	ctx := context.Background()
	if err := s.Start(ctx, CreditCard); err != nil {
		t.Fatalf("Start: %v", err)
	}
	mustDo(t, s, ActConfirmApplicant, "")
	mustDo(t, s, ActConsentBureau, "")
	before := len(s.Snapshot().Messages)
	err := s.Do(ctx, Request{Action: ActSelectCreditCardOffer, Value: creditCards[0].Name})
	if !errdefs.IsUnavailable(err) {
		t.Fatalf("err = %v, want unavailable", err)
	}
	if got := len(s.Snapshot().Messages); got != before {
		t.Errorf("timeline grew from %d to %d", before, got)
	}
}

// gatePacer blocks every wait until the context is cancelled.
type gatePacer struct {
	once    sync.Once
	entered chan struct{}
}

func (g *gatePacer) Wait(ctx context.Context, _ time.Duration) error {
	g.once.Do(func() { close(g.entered) })
	<-ctx.Done()
	return ctx.Err()
}

func TestBusyAndClose(t *testing.T) {
	gate := &gatePacer{entered: make(chan struct{})}
	s := NewSession("user-1", Options{Pacer: gate, Refs: &SequenceRefs{}})

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background(), Investment) }()
	<-gate.entered

	if !s.Busy() {
		t.Fatal("session should be busy while waiting")
	}
	if err := s.Send(context.Background(), "tax"); !errdefs.IsConflict(err) {
		t.Errorf("concurrent Send: err = %v, want conflict", err)
	}

	s.Close()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Start after Close: err = %v, want context.Canceled", err)
	}

	snap := s.Snapshot()
	if len(snap.Messages) != 1 || snap.Messages[0].Kind != KindUser {
		t.Errorf("messages = %+v, want only the echo", snap.Messages)
	}
	if snap.Busy {
		t.Error("session still busy after cancellation")
	}
	if err := s.Start(context.Background(), Investment); !errdefs.IsFailedPrecondition(err) {
		t.Errorf("Start on closed session: err = %v, want failed precondition", err)
	}
}

func TestSnapshotRestore(t *testing.T) {
	s, _ := newTestSession(t, KYCPartial)
	if err := s.Start(context.Background(), BankAccount); err != nil {
		t.Fatalf("Start: %v", err)
	}
	mustDo(t, s, ActVerifyMobileOTP, "123456")
	snap := s.Snapshot()

	restored, _ := newTestSession(t, KYCPartial)
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	mustDo(t, restored, ActVerifyPAN, "")

	got := restored.Snapshot()
	if got.Steps[1].Status != StepCompleted || got.Steps[2].Status != StepInProgress {
		t.Errorf("steps = %v", statuses(got.Steps))
	}
	if got.Messages[len(snap.Messages)].Seq <= snap.LastSeq {
		t.Error("restored session reused a sequence number")
	}

	bad := snap
	bad.Steps = []Step{{Label: "a", Status: StepPending}, {Label: "b", Status: StepCompleted}}
	fresh, _ := newTestSession(t, KYCPartial)
	if err := fresh.Restore(bad); !errdefs.IsInvalidArgument(err) {
		t.Errorf("Restore(bad steps): err = %v, want invalid argument", err)
	}
}

func TestEveryActionHasHandler(t *testing.T) {
	s, _ := newTestSession(t, KYCPartial)
	for _, a := range AllActions() {
		if s.handlerFor(a) == nil {
			t.Errorf("action %q has no handler", a)
		}
	}
}

func TestParseAction(t *testing.T) {
	if got, err := ParseAction(" verify-pan "); err != nil || got != ActVerifyPAN {
		t.Errorf("ParseAction(verify-pan) = %q, %v", got, err)
	}
	if _, err := ParseAction("launch-rocket"); !errdefs.IsInvalidArgument(err) {
		t.Errorf("ParseAction(unknown): err = %v, want invalid argument", err)
	}
}

type press struct {
	action ActionID
	value  string
}

func openAccount(t *testing.T, s *Session) {
	t.Helper()
	if err := s.Start(context.Background(), BankAccount); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, p := range []press{
		{ActVerifyMobileOTP, "123456"},
		{ActVerifyPAN, ""},
		{ActVerifyPANAadhaar, ""},
		{ActVerifyAadhaarOTP, "654321"},
		{ActScheduleVKYCSlot1, ""},
		{ActConfirmPreferences, ""},
	} {
		mustDo(t, s, p.action, p.value)
	}
}

func TestFinishedJourneyRejectsRepeatSubmit(t *testing.T) {
	tests := []struct {
		journey ID
		presses []press
	}{
		{TaxPlanning, []press{{ActStartInvestments, ""}}},
		{Investment, []press{{ActStartSIP, ""}}},
		{Insurance, []press{{ActPurchaseInsurance, ""}, {ActConfirmHealth, ""}}},
		{BankAccount, []press{
			{ActVerifyMobileOTP, "123456"},
			{ActVerifyPAN, ""},
			{ActVerifyPANAadhaar, ""},
			{ActVerifyAadhaarOTP, "654321"},
			{ActScheduleVKYCSlot1, ""},
			{ActConfirmPreferences, ""},
		}},
		{PersonalLoan, []press{
			{ActConfirmPLApplicant, ""},
			{ActConsentPLBureau, ""},
			{ActSelectLoan, "₹5L for 36 months"},
			{ActVerifyPLAadhaarOTP, "112233"},
			{ActConfirmPLDisbursal, ""},
			{ActSetupPLEnachBank, ""},
			{ActConfirmPLSubmit, ""},
		}},
		{CreditCard, []press{
			{ActConfirmApplicant, ""},
			{ActConsentBureau, ""},
			{ActSelectCreditCardOffer, "Kotak811 811 Super Credit Card"},
			{ActVerifyCCAadhaarOTP, "445566"},
			{ActConfirmDeliveryAddress, ""},
			{ActSetupAutopayUPI, ""},
			{ActConfirmCCApplication, ""},
		}},
	}
	for _, tt := range tests {
		t.Run(string(tt.journey), func(t *testing.T) {
			s, _ := newTestSession(t, KYCPartial)
			ctx := context.Background()
			if err := s.Start(ctx, tt.journey); err != nil {
				t.Fatalf("Start: %v", err)
			}
			for _, p := range tt.presses {
				mustDo(t, s, p.action, p.value)
			}

			before := s.Snapshot()
			if len(before.Offered) != 0 {
				t.Errorf("offered after completion = %v, want none", before.Offered)
			}
			terminal := tt.presses[len(tt.presses)-1]
			err := s.Do(ctx, Request{Action: terminal.action, Value: terminal.value})
			if !errdefs.IsFailedPrecondition(err) {
				t.Fatalf("second %s: err = %v, want failed precondition", terminal.action, err)
			}
			after := s.Snapshot()
			if len(after.Messages) != len(before.Messages) {
				t.Errorf("timeline grew from %d to %d", len(before.Messages), len(after.Messages))
			}
			if n := countKind(after.Messages, KindSuccess); n != 1 {
				t.Errorf("got %d success messages, want 1", n)
			}
		})
	}
}

func TestSideFlowKeepsJourneyActions(t *testing.T) {
	s, _ := newTestSession(t, KYCPartial)
	ctx := context.Background()
	openAccount(t, s)

	if err := s.Start(ctx, PersonalLoan); err != nil {
		t.Fatalf("Start: %v", err)
	}
	mustDo(t, s, ActActivateVCard, "")
	offered := s.Snapshot().Offered
	want := []ActionID{ActConfirmPLApplicant, ActVerifyCardDetails}
	if !reflect.DeepEqual(offered, want) {
		t.Fatalf("offered = %v, want %v", offered, want)
	}

	// Both threads advance independently.
	mustDo(t, s, ActConfirmPLApplicant, "")
	mustDo(t, s, ActVerifyCardDetails, "")
	mustDo(t, s, ActConsentPLBureau, "")
	mustDo(t, s, ActVerifyCardOTP, "778899")
	mustDo(t, s, ActFinalizeCard, "")
	if err := s.Do(ctx, Request{Action: ActFinalizeCard}); !errdefs.IsFailedPrecondition(err) {
		t.Errorf("second finalize-card: err = %v, want failed precondition", err)
	}

	mustDo(t, s, ActSelectLoan, "₹15L for 60 months")
	if got := s.tracker.Current(); got != 4 {
		t.Errorf("current step = %d, want 4", got)
	}
	snap := s.Snapshot()
	if !reflect.DeepEqual(snap.Offered, []ActionID{ActVerifyPLAadhaarOTP}) {
		t.Errorf("offered = %v, want only the loan OTP", snap.Offered)
	}
	for _, a := range []ActionID{ActViewCardApp, ActManageCard, ActActivateVCard} {
		if !slices.Contains(snap.Standing, a) {
			t.Errorf("standing action %s missing", a)
		}
	}

	mustDo(t, s, ActRequestSalaryAccount, "")
	mustDo(t, s, ActSelectCard, "Kotak811 Royale Signature Credit Card")
	mustDo(t, s, ActConfirmCardDetails, "")
	if err := s.Do(ctx, Request{Action: ActConfirmCardDetails}); !errdefs.IsFailedPrecondition(err) {
		t.Errorf("second confirm-card-details: err = %v, want failed precondition", err)
	}
	mustDo(t, s, ActVerifyPLAadhaarOTP, "135790")
}

func TestStaleActionLeavesTimelineUnchanged(t *testing.T) {
	steps := make([]Step, 0, 8)
	for _, label := range mustJourney(t, CreditCard).Steps {
		steps = append(steps, Step{Label: label, Status: StepCompleted})
	}
	s, _ := newTestSession(t, KYCPartial)
	if err := s.Restore(Snapshot{
		Active:  CreditCard,
		Steps:   steps,
		Offered: []ActionID{ActConfirmCCApplication},
	}); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	err := s.Do(context.Background(), Request{Action: ActConfirmCCApplication})
	if !errdefs.IsFailedPrecondition(err) {
		t.Fatalf("err = %v, want failed precondition", err)
	}
	if n := len(s.Snapshot().Messages); n != 0 {
		t.Errorf("rejected action appended %d messages", n)
	}
}

func mustJourney(t *testing.T, id ID) Journey {
	t.Helper()
	j, err := DefaultCatalog().Get(id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	return j
}
