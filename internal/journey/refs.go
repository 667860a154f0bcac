package journey

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Reference number prefixes per product.
const (
	RefPersonalLoan  = "PL"
	RefCreditCard    = "CC"
	RefTax           = "TAX"
	RefSIP           = "SIP"
	RefInsurance     = "INS"
	RefSalaryAccount = "SAL"
	RefAccount       = "AC"
)

// RefGenerator issues application reference numbers.
type RefGenerator interface {
	Next(prefix string) string
}

// UUIDRefs derives references from time-ordered UUIDs so they sort by issue
// time and never collide across processes.
type UUIDRefs struct{}

// Next returns prefix followed by the upper-case hex of a UUIDv7.
func (UUIDRefs) Next(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return prefix + strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
}

// SequenceRefs issues prefix plus a zero-padded counter.
type SequenceRefs struct {
	mu sync.Mutex
	n  int
}

// Next returns the next reference in sequence.
func (s *SequenceRefs) Next(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s%08d", prefix, s.n)
}
