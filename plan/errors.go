package plan

import "fmt"

// Code is a stable error code for plan assembly failures.
type Code string

const (
	CodeUnreachableComposite Code = "UNREACHABLE_COMPOSITE"
	CodeBlitImpossible       Code = "BLIT_IMPOSSIBLE"
	CodeMissingBundle        Code = "MISSING_BUNDLE"
)

// Error reports a plan assembly failure anchored at a node.
type Error struct {
	Code Code
	Node string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("plan: %s node=%s: %s", e.Code, e.Node, e.Msg)
}

// ErrorCode satisfies the structural coded-error interface.
func (e *Error) ErrorCode() string { return string(e.Code) }

// Subject returns the offending node id.
func (e *Error) Subject() string { return e.Node }
