// Package validate is a thin adapter over the bundled naga compiler: it
// parses every generated shader module and reports failures with the
// offending pass name and a source excerpt. It never rewrites bad
// output; a module that fails here aborts plan binding.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gogpu/naga"
	"github.com/nodeforge/forge/plan"
)

// ValidationError reports one module that failed validation.
type ValidationError struct {
	Pass   string
	Stage  string
	Line   int
	Detail string

	// Excerpt is a window of the generated source around the failing
	// line, or the module head when no position was recoverable.
	Excerpt string
}

func (e *ValidationError) Error() string {
	pos := ""
	if e.Line > 0 {
		pos = fmt.Sprintf(" line %d", e.Line)
	}
	return fmt.Sprintf("validate: pass %q %s shader%s: %s\n%s", e.Pass, e.Stage, pos, e.Detail, e.Excerpt)
}

// ErrorCode satisfies the structural coded-error interface.
func (e *ValidationError) ErrorCode() string { return "VALIDATION_ERROR" }

// Subject returns the failing pass name.
func (e *ValidationError) Subject() string { return e.Pass }

// Module validates one shader module by compiling it with naga.
func Module(pass, stage, source string) error {
	if _, err := naga.Compile(source); err != nil {
		ve := &ValidationError{
			Pass:   pass,
			Stage:  stage,
			Detail: err.Error(),
		}
		ve.Line = lineOf(err.Error())
		ve.Excerpt = excerpt(source, ve.Line)
		return ve
	}
	return nil
}

// Plan validates every module of a render plan, stopping at the first
// failure.
func Plan(p *plan.Plan) error {
	for i := range p.Passes {
		spec := &p.Passes[i]
		if err := Module(spec.Name, "vertex", spec.VertexSrc); err != nil {
			return err
		}
		if err := Module(spec.Name, "fragment", spec.FragmentSrc); err != nil {
			return err
		}
	}
	return nil
}

var linePattern = regexp.MustCompile(`(?::|line[ :])(\d+)`)

// lineOf pulls a line number out of a naga diagnostic, best effort.
func lineOf(msg string) int {
	m := linePattern.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// excerpt returns the failing line with two lines of context on either
// side, or the module head when the position is unknown.
func excerpt(source string, line int) string {
	lines := strings.Split(source, "\n")
	lo, hi := 0, len(lines)
	if line > 0 {
		lo = line - 3
		hi = line + 2
		if lo < 0 {
			lo = 0
		}
		if hi > len(lines) {
			hi = len(lines)
		}
	} else if hi > 5 {
		hi = 5
	}
	var b strings.Builder
	for i := lo; i < hi; i++ {
		marker := "  "
		if i == line-1 {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s%4d | %s\n", marker, i+1, lines[i])
	}
	return b.String()
}
