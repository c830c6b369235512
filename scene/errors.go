package scene

import "strings"

// Code is a stable machine-readable error code carried by every scene error.
type Code string

const (
	CodeParse             Code = "PARSE_ERROR"
	CodeSchema            Code = "SCHEMA_ERROR"
	CodeDuplicateID       Code = "DUPLICATE_ID"
	CodeDanglingEndpoint  Code = "DANGLING_ENDPOINT"
	CodeUnknownNodeType   Code = "UNKNOWN_NODE_TYPE"
	CodeTypeIncompatible  Code = "TYPE_INCOMPATIBLE_PORTS"
	CodeCycle             Code = "CYCLE"
	CodeNoRenderTarget    Code = "NO_RENDER_TARGET"
	CodeAmbiguousTarget   Code = "AMBIGUOUS_RENDER_TARGET"
	CodeMissingRequired   Code = "MISSING_REQUIRED_PARAM"
	CodeMissingConnection Code = "MISSING_CONNECTION"
)

// Error is the tagged error produced by parsing and preparation. It carries
// the offending node or connection id so the transport layer can point the
// client at the problem.
type Error struct {
	Code Code

	// Node is the offending node id, when one exists.
	Node string

	// Conn is the offending connection id, when one exists.
	Conn string

	// CycleNodes lists the members of the offending cycle for CodeCycle.
	CycleNodes []string

	Msg string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("scene: ")
	b.WriteString(string(e.Code))
	if e.Node != "" {
		b.WriteString(" node=")
		b.WriteString(e.Node)
	}
	if e.Conn != "" {
		b.WriteString(" conn=")
		b.WriteString(e.Conn)
	}
	if len(e.CycleNodes) > 0 {
		b.WriteString(" cycle=[")
		b.WriteString(strings.Join(e.CycleNodes, " -> "))
		b.WriteString("]")
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	return b.String()
}

// ErrorCode satisfies the structural coded-error interface consumed by the
// transport layer.
func (e *Error) ErrorCode() string { return string(e.Code) }

// Subject returns the id of the entity the error is about.
func (e *Error) Subject() string {
	if e.Node != "" {
		return e.Node
	}
	return e.Conn
}
