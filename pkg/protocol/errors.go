package protocol

import "errors"

var (
	ErrInvalidRoom         = errors.New("invalid room id")
	ErrMissingIdentity     = errors.New("display name is required")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrNotInRoom           = errors.New("not in a room")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrUnknownEvent        = errors.New("unknown event")
	ErrInvalidSignal       = errors.New("invalid signal")

	// ErrMessageTooLarge is raised before sending and has no wire code.
	ErrMessageTooLarge = errors.New("message too large")
)

// Wire codes for errors carried in ErrorPayload.
const (
	CodeInvalidRoom         = "invalid_room"
	CodeMissingIdentity     = "missing_identity"
	CodeUnsupportedLanguage = "unsupported_language"
	CodeNotInRoom           = "not_in_room"
	CodeRateLimited         = "rate_limited"
	CodeUnknownEvent        = "unknown_event"
	CodeInvalidSignal       = "invalid_signal"
	CodeInternal            = "internal"
)

var codes = map[error]string{
	ErrInvalidRoom:         CodeInvalidRoom,
	ErrMissingIdentity:     CodeMissingIdentity,
	ErrUnsupportedLanguage: CodeUnsupportedLanguage,
	ErrNotInRoom:           CodeNotInRoom,
	ErrRateLimited:         CodeRateLimited,
	ErrUnknownEvent:        CodeUnknownEvent,
	ErrInvalidSignal:       CodeInvalidSignal,
}

// CodeOf returns the wire code for err, matching wrapped sentinels.
func CodeOf(err error) string {
	for sentinel, code := range codes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeInternal
}

// ErrorFromPayload maps a received error payload back to its sentinel so
// callers can use errors.Is. Unknown codes produce a plain error.
func ErrorFromPayload(p *ErrorPayload) error {
	if p == nil {
		return errors.New("unknown error from server")
	}
	for sentinel, code := range codes {
		if code == p.Code {
			return sentinel
		}
	}
	if p.Message != "" {
		return errors.New(p.Message)
	}
	return errors.New(p.Code)
}
