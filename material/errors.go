package material

import "fmt"

// Code is a stable error code for material compilation failures.
type Code string

const (
	CodeUnknownNodeType      Code = "UNKNOWN_NODE_TYPE"
	CodeMissingInput         Code = "MISSING_INPUT"
	CodeTypeMismatch         Code = "TYPE_MISMATCH"
	CodeUnsupportedAttribute Code = "UNSUPPORTED_ATTRIBUTE"
	CodeCycle                Code = "CYCLE_IN_MATERIAL_GRAPH"
)

// Error reports a compile failure anchored at a node.
type Error struct {
	Code Code
	Node string
	Port string
	Msg  string
}

func (e *Error) Error() string {
	s := fmt.Sprintf("material: %s node=%s", e.Code, e.Node)
	if e.Port != "" {
		s += " port=" + e.Port
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

// ErrorCode satisfies the structural coded-error interface.
func (e *Error) ErrorCode() string { return string(e.Code) }

// Subject returns the offending node id.
func (e *Error) Subject() string { return e.Node }
