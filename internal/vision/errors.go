package vision

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrQuotaExhausted marks provider-side quota/rate-limit failures.
	// The pipeline retries these like any transient failure but they are
	// the highest-priority signal for operators.
	ErrQuotaExhausted = errors.New("enhancement provider quota exhausted")

	// ErrModelUnavailable marks a missing or unavailable model.
	ErrModelUnavailable = errors.New("enhancement model unavailable")

	// ErrNoImage is returned when the model responds without image data.
	ErrNoImage = errors.New("no generated image in response")
)

// wrapAPIError classifies a raw provider error into the taxonomy above so
// callers can errors.Is on the failure subtype.
func wrapAPIError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "quota"),
		strings.Contains(msg, "429"),
		strings.Contains(msg, "RESOURCE_EXHAUSTED"):
		return fmt.Errorf("%w: %v", ErrQuotaExhausted, err)
	// The Gemini API reports a missing model as "models/<name> is not
	// found for API version ..." with code NOT_FOUND.
	case strings.Contains(msg, "NOT_FOUND"),
		strings.Contains(msg, "is not found"):
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	default:
		return err
	}
}
