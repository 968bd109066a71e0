package circulation

import "errors"

// Kind groups domain errors by how a caller can react to them.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindInvalidTransition
	KindInUse
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindInUse:
		return "in_use"
	case KindInvalid:
		return "invalid"
	}
	return "unknown"
}

// Error is a classified domain error. Code is a stable machine-readable name.
type Error struct {
	Kind Kind
	Code string
	msg  string
}

func (e *Error) Error() string { return e.msg }

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, msg: msg}
}

var (
	ErrTitleNotFound    = newError(KindNotFound, "title_not_found", "title not found")
	ErrBorrowerNotFound = newError(KindNotFound, "borrower_not_found", "borrower not found")
	ErrLoanNotFound     = newError(KindNotFound, "loan_not_found", "loan not found")

	ErrNoAvailableCopy = newError(KindConflict, "no_available_copy", "no available copy")
	ErrAlreadyReturned = newError(KindConflict, "already_returned", "loan already returned")
	ErrCodeExists      = newError(KindConflict, "code_exists", "copy code already exists")

	ErrInvalidTransition = newError(KindInvalidTransition, "invalid_transition", "loan is not open")

	ErrCodeInUse = newError(KindInUse, "code_in_use", "copy code is on loan")

	ErrEmptyCode       = newError(KindInvalid, "empty_code", "copy code must not be empty")
	ErrDueDateInPast   = newError(KindInvalid, "due_date_in_past", "new due date must be in the future")
	ErrUnknownCategory = newError(KindInvalid, "unknown_category", "unknown borrower category")
	ErrUnknownCode     = newError(KindNotFound, "code_not_found", "copy code not found")
)

// ErrNotOpen is returned by ledgers when a conditional write found the record
// no longer open. Lifecycle re-reads the record to classify it.
var ErrNotOpen = errors.New("loan record is not open")

// KindOf classifies err. Unclassified errors are system errors (KindUnknown).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the stable code of a domain error, or "internal".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}
