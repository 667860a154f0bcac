package journey

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/containerd/errdefs"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	wantSteps := map[ID]int{
		BankAccount:  6,
		PersonalLoan: 8,
		CreditCard:   8,
		TaxPlanning:  0,
		Investment:   0,
		Insurance:    0,
	}
	for id, n := range wantSteps {
		j, err := c.Get(id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		if len(j.Steps) != n {
			t.Errorf("%s has %d steps, want %d", id, len(j.Steps), n)
		}
	}
	if _, err := c.Get("mortgage"); !errdefs.IsNotFound(err) {
		t.Errorf("Get(mortgage): err = %v, want not found", err)
	}
}

func TestLoadCatalogRejects(t *testing.T) {
	full := string(defaultCatalogYAML)
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed", "journeys: [\n"},
		{"unknown journey", full + "\n  - id: mortgage\n    keywords: [house]\n"},
		{"duplicate", full + "\n  - id: insurance\n    keywords: [cover]\n"},
		{"missing journey", "journeys:\n  - id: insurance\n    keywords: [cover]\n"},
		{"no keywords", strings.Replace(full, "      - insurance\n      - health cover\n      - policy\n      - term plan\n", "", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadCatalog([]byte(tt.yaml)); !errdefs.IsInvalidArgument(err) {
				t.Errorf("err = %v, want invalid argument", err)
			}
		})
	}
}

func TestMatcher(t *testing.T) {
	m := NewMatcher(DefaultCatalog())
	tests := []struct {
		text   string
		want   ID
		wantOK bool
	}{
		{"I want a Personal Loan", PersonalLoan, true},
		{"OPEN ACCOUNT please", BankAccount, true},
		{"need a credit card with cashback", CreditCard, true},
		{"can I get credit?", PersonalLoan, true},
		{"what's my EMI", PersonalLoan, true},
		{"help me save tax", TaxPlanning, true},
		{"start a SIP", Investment, true},
		{"health insurance for parents", Insurance, true},
		{"salary account upgrade", BankAccount, true},
		{"hello", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := m.Match(tt.text)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Match(%q) = %q, %v; want %q, %v", tt.text, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestValidateOTP(t *testing.T) {
	if got, err := ValidateOTP(" 123456 "); err != nil || got != "123456" {
		t.Errorf("ValidateOTP(123456) = %q, %v", got, err)
	}
	for _, bad := range []string{"", "12345", "abcdef", "123 456"} {
		if _, err := ValidateOTP(bad); !errdefs.IsInvalidArgument(err) {
			t.Errorf("ValidateOTP(%q): err = %v, want invalid argument", bad, err)
		}
	}
}

func TestParseKYCStatus(t *testing.T) {
	if got, err := ParseKYCStatus(" FULL "); err != nil || got != KYCFull {
		t.Errorf("ParseKYCStatus(FULL) = %q, %v", got, err)
	}
	if _, err := ParseKYCStatus("half"); !errdefs.IsInvalidArgument(err) {
		t.Errorf("ParseKYCStatus(half): err = %v, want invalid argument", err)
	}
}

func TestTimerPacer(t *testing.T) {
	p := TimerPacer{Scale: 0.001}
	start := time.Now()
	if err := p.Wait(context.Background(), time.Second); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("scaled wait took %v", elapsed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (TimerPacer{Scale: 1}).Wait(ctx, time.Hour); err != context.Canceled {
		t.Errorf("cancelled Wait: err = %v, want context.Canceled", err)
	}
}

func TestRefs(t *testing.T) {
	var seq SequenceRefs
	if got := seq.Next(RefTax); got != "TAX00000001" {
		t.Errorf("first ref = %q", got)
	}
	a, b := UUIDRefs{}.Next(RefPersonalLoan), UUIDRefs{}.Next(RefPersonalLoan)
	if a == b || !strings.HasPrefix(a, "PL") || len(a) != len("PL")+32 {
		t.Errorf("uuid refs %q, %q", a, b)
	}
}

func TestProfileFormatting(t *testing.T) {
	p := DemoProfile()
	if got := p.Income(); got != "₹8.5L" {
		t.Errorf("Income = %q", got)
	}
	if got := p.MaskedPhone(); got != "XXXXXX3210" {
		t.Errorf("MaskedPhone = %q", got)
	}
	p.AnnualSalary = 1200000
	if got := p.Income(); got != "₹12L" {
		t.Errorf("Income = %q", got)
	}
}
