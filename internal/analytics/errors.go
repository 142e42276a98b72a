package analytics

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorKind classifies why fresh analytics could not be produced.
type ErrorKind string

const (
	// KindNone marks a successful resolution.
	KindNone ErrorKind = ""
	// KindNotConfigured means no usable username or external id is linked.
	KindNotConfigured ErrorKind = "not_configured"
	// KindRateLimited means the provider pushed back. Callers must back off.
	KindRateLimited ErrorKind = "rate_limited"
	// KindTransient is any other provider failure. No fallback is attempted.
	KindTransient ErrorKind = "transient_error"
	// KindPersistenceFailure is a failed snapshot write-back. It is only logged.
	KindPersistenceFailure ErrorKind = "persistence_failure"
)

var (
	ErrNotConfigured      = errors.New("analytics: no linked account")
	ErrRateLimited        = errors.New("analytics: provider rate limited")
	ErrTransient          = errors.New("analytics: provider unavailable")
	ErrPersistenceFailure = errors.New("analytics: snapshot write-back failed")

	ErrInfluencerNotFound  = errors.New("analytics: influencer not found")
	ErrUnsupportedPlatform = errors.New("analytics: unsupported platform")

	// ErrSnapshotSuperseded is returned by stores when a snapshot at the same
	// or a later time is already stored for the pair.
	ErrSnapshotSuperseded = errors.New("analytics: newer snapshot already stored")
	// ErrExternalIDAlreadySet is returned by stores when the link already
	// carries an external id other than the one being replaced.
	ErrExternalIDAlreadySet = errors.New("analytics: external id already set")
)

var kindSentinels = map[ErrorKind]error{
	KindNotConfigured:      ErrNotConfigured,
	KindRateLimited:        ErrRateLimited,
	KindTransient:          ErrTransient,
	KindPersistenceFailure: ErrPersistenceFailure,
}

// ResolutionError is the terminal condition of a resolution attempt.
type ResolutionError struct {
	Kind       ErrorKind
	Tier       string
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e *ResolutionError) Error() string {
	msg := string(e.Kind)
	if e.Tier != "" {
		msg = fmt.Sprintf("%s (%s tier)", msg, e.Tier)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind, so errors.Is(err, ErrRateLimited)
// holds for every rate-limited resolution.
func (e *ResolutionError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// KindOf extracts the ErrorKind from err. Unclassified errors are transient.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindTransient
}

// ProviderError is a failed call to the analytics provider. Status is zero
// when the request never produced an HTTP response.
type ProviderError struct {
	Status     int
	Message    string
	RetryAfter time.Duration
}

func (e *ProviderError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("provider request failed: %s", e.Message)
	}
	return fmt.Sprintf("provider returned %d: %s", e.Status, e.Message)
}

// RateLimited reports whether the provider refused the call for backpressure.
func (e *ProviderError) RateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

// InvalidIdentifier reports whether the provider rejected the identifier for
// the requested platform.
func (e *ProviderError) InvalidIdentifier() bool {
	return e.Status == http.StatusBadRequest || e.Status == http.StatusNotFound
}
