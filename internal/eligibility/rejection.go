package eligibility

import (
	"errors"
	"fmt"
)

// Reason names why a registration attempt was refused.
type Reason string

const (
	RegistrationClosed    Reason = "RegistrationClosed"
	InvalidIdentityFormat Reason = "InvalidIdentityFormat"
	WrongLength           Reason = "WrongLength"
	InvalidLeadingDigit   Reason = "InvalidLeadingDigit"
	NonDigitCharacters    Reason = "NonDigitCharacters"
	DuplicateEvent        Reason = "DuplicateEvent"
	SoloQuotaExceeded     Reason = "SoloQuotaExceeded"
	TeamQuotaExceeded     Reason = "TeamQuotaExceeded"
	UnknownEvent          Reason = "UnknownEvent"
	StoreUnavailable      Reason = "StoreUnavailable"
)

// Rejection is a refused registration. It is an expected outcome shown to the
// registrant, not a crash; Current and Limit carry the quota context.
type Rejection struct {
	Reason  Reason
	Sub     Reason
	Event   string
	Current int
	Limit   int
	Err     error
}

func (r *Rejection) Error() string {
	switch r.Reason {
	case RegistrationClosed:
		return "registration is closed"
	case InvalidIdentityFormat:
		switch r.Sub {
		case WrongLength:
			return "identity number must be exactly 12 digits"
		case InvalidLeadingDigit:
			return "identity number cannot start with 0 or 1"
		case NonDigitCharacters:
			return "identity number must contain only digits"
		}
		return "invalid identity number"
	case DuplicateEvent:
		return fmt.Sprintf("participant is already registered for %s", r.Event)
	case SoloQuotaExceeded:
		return fmt.Sprintf("%d/%d solo events already used", r.Current, r.Limit)
	case TeamQuotaExceeded:
		return fmt.Sprintf("%d/%d team events already used", r.Current, r.Limit)
	case UnknownEvent:
		return fmt.Sprintf("unknown event %q", r.Event)
	case StoreUnavailable:
		return "registration store is unavailable, please try again"
	}
	return string(r.Reason)
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

// Retryable reports whether the same attempt may succeed later unchanged.
func (r *Rejection) Retryable() bool {
	return r.Reason == StoreUnavailable
}

func reject(reason Reason) *Rejection {
	return &Rejection{Reason: reason}
}

// Closed is the rejection for any attempt made while the registration gate is shut.
func Closed() *Rejection {
	return reject(RegistrationClosed)
}

// Unavailable wraps a store failure. Callers must treat it as a refusal.
func Unavailable(err error) *Rejection {
	return &Rejection{Reason: StoreUnavailable, Err: err}
}

func Unknown(label string) *Rejection {
	return &Rejection{Reason: UnknownEvent, Event: label}
}

// IsReason reports whether err is a rejection with the given reason or sub-reason.
func IsReason(err error, reason Reason) bool {
	var r *Rejection
	if !errors.As(err, &r) {
		return false
	}
	return r.Reason == reason || (r.Sub != "" && r.Sub == reason)
}

// AsRejection unwraps err into a rejection.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	ok := errors.As(err, &r)
	return r, ok
}
