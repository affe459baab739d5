package session

import (
	"strings"

	apperrors "github.com/GriffinCanCode/screenrec/internal/errors"
)

// NegotiateFormat returns the first candidate the probe accepts. Candidates
// are in preference order; nothing unverified is ever returned.
func NegotiateFormat(candidates []string, supports func(string) bool) (string, error) {
	for _, c := range candidates {
		if supports(c) {
			return c, nil
		}
	}
	return "", apperrors.New(apperrors.CodeUnsupportedFormat, "no supported recording format found").
		WithMetadata("candidates", strings.Join(candidates, " | "))
}
