package forge

import "errors"

// CodedError is the structural interface every stage error satisfies: a
// stable machine-readable code plus the id of the offending node or
// connection. Stage packages implement it independently, so the engine
// can classify any error without importing them all for their types.
type CodedError interface {
	error
	ErrorCode() string
	Subject() string
}

// Classify extracts the stable code and subject from any pipeline error.
// Errors without a code map to INTERNAL_ERROR.
func Classify(err error) (code, subject string) {
	var ce CodedError
	if errors.As(err, &ce) {
		return ce.ErrorCode(), ce.Subject()
	}
	return "INTERNAL_ERROR", ""
}
