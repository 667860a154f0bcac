package journey

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/containerd/errdefs"
)

var otpPattern = regexp.MustCompile(`^[0-9]{6}$`)

// ValidateOTP accepts exactly six ASCII digits.
func ValidateOTP(otp string) (string, error) {
	otp = strings.TrimSpace(otp)
	if !otpPattern.MatchString(otp) {
		return "", fmt.Errorf("%w: OTP must be 6 digits", errdefs.ErrInvalidArgument)
	}
	return otp, nil
}

func requireOption(value string, options []string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: an option must be selected", errdefs.ErrInvalidArgument)
	}
	for _, o := range options {
		if strings.EqualFold(o, value) {
			return o, nil
		}
	}
	return "", fmt.Errorf("%w: unknown option %q", errdefs.ErrInvalidArgument, value)
}
