package market

import "fmt"

// Reject is a typed, caller-visible refusal: a protocol code plus a
// human-readable reason. Validation and precondition rejections are
// returned as *Reject values, never panics, so callers can render one
// specific message per failure.
type Reject struct {
	Code   string
	Reason string

	// CooldownSeconds is set when Code is E_COOLDOWN.
	CooldownSeconds int64
}

func (r *Reject) Error() string {
	return r.Code + ": " + r.Reason
}

func reject(code, format string, args ...any) *Reject {
	return &Reject{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// RejectCode extracts the protocol code from an error, or "" if the error
// is not a rejection.
func RejectCode(err error) string {
	if r, ok := err.(*Reject); ok {
		return r.Code
	}
	return ""
}
