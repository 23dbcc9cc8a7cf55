package protocol

import "fmt"

// ErrorKind partitions failures the way handlers react to them: drop,
// answer negatively, or disconnect. Room-visible state never reflects a
// failed attempt.
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindAuth
	KindRateLimit
	KindNotFound
	KindConflict
	KindIO
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate-limit"
	case KindNotFound:
		return "not-found"
	case KindConflict:
		return "conflict"
	case KindIO:
		return "io"
	}
	return "internal"
}

// Error is a typed operation failure; only the originating connection
// ever sees it.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func Errf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
