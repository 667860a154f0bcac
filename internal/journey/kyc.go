package journey

import (
	"context"
	"fmt"
	"strings"

	"github.com/containerd/errdefs"
)

// KYCStatus is the customer's know-your-customer completeness.
type KYCStatus string

const (
	KYCFull    KYCStatus = "full"
	KYCPartial KYCStatus = "partial"
	KYCNone    KYCStatus = "none"
)

// ParseKYCStatus validates a KYC status from config or the wire.
func ParseKYCStatus(s string) (KYCStatus, error) {
	switch k := KYCStatus(strings.ToLower(strings.TrimSpace(s))); k {
	case KYCFull, KYCPartial, KYCNone:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown KYC status %q", errdefs.ErrInvalidArgument, s)
	}
}

// KYCResolver answers whether a user's KYC is already complete. Journeys that
// sell credit skip the Aadhaar OTP when it is.
type KYCResolver interface {
	KYCStatus(ctx context.Context, userID string) (KYCStatus, error)
}

// StaticKYC reports the same status for every user.
type StaticKYC KYCStatus

// KYCStatus implements KYCResolver.
func (s StaticKYC) KYCStatus(context.Context, string) (KYCStatus, error) {
	return KYCStatus(s), nil
}
