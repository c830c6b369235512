package material

import (
	"fmt"
	"strings"

	"github.com/nodeforge/forge/internal/ident"
	"github.com/nodeforge/forge/registry"
	"github.com/nodeforge/forge/scene"
)

// closure lowers a MathClosure node: the user-provided WGSL body becomes a
// named function whose parameters mirror the node's input bindings, and
// the node's expression is a call site. The body is never interpreted on
// the host; it travels verbatim into the shader module where the validator
// judges it.
func (c *Compiler) closure(n *scene.Node, ctx *Context) (TypedExpr, error) {
	params := c.prep.Params[n.ID]
	body, _ := params["body"].(string)
	if strings.TrimSpace(body) == "" {
		return TypedExpr{}, &Error{Code: CodeMissingInput, Node: n.ID, Port: "body",
			Msg: "closure has no body"}
	}

	type arg struct {
		name string
		expr TypedExpr
	}
	var args []arg
	usesTime := false
	for _, dyn := range n.Inputs {
		binding, ok := n.Binding(dyn.ID)
		if !ok {
			// Unbound dynamic ports are inert: the body cannot name them.
			continue
		}
		e, err := c.compileInput(n, dyn.ID, ctx)
		if err != nil {
			return TypedExpr{}, err
		}
		args = append(args, arg{name: binding.Var, expr: e})
		usesTime = usesTime || e.UsesTime
	}

	ret := closureReturnKind(n, params)
	fname := "fn_" + ident.Sanitize(n.ID)

	var decl strings.Builder
	decl.WriteString("fn " + fname + "(")
	for i, a := range args {
		if i > 0 {
			decl.WriteString(", ")
		}
		decl.WriteString(a.name + ": " + a.expr.Kind.WGSL())
	}
	decl.WriteString(") -> " + ret.WGSL() + " {\n")
	if strings.Contains(body, "return") {
		decl.WriteString(indent(body))
	} else {
		decl.WriteString("    return (" + strings.TrimSpace(body) + ");\n")
	}
	decl.WriteString("}")
	ctx.addFunction(fname, decl.String())

	call := make([]string, len(args))
	for i, a := range args {
		call[i] = a.expr.Src
	}
	return TypedExpr{Kind: ret,
		Src:      fmt.Sprintf("%s(%s)", fname, strings.Join(call, ", ")),
		UsesTime: usesTime}, nil
}

// closureReturnKind picks the function return kind: a concretely typed
// dynamic result port wins, then a returnType parameter, then f32.
func closureReturnKind(n *scene.Node, params map[string]any) Kind {
	if d, ok := n.DynamicOutput("result"); ok {
		if k, ok := kindOfPortType(registry.PortType(d.Type)); ok {
			return k
		}
	}
	if s := scene.ParamString(params, "returnType", ""); s != "" {
		if k, ok := kindOfPortType(registry.PortType(s)); ok {
			return k
		}
	}
	return F32
}

func kindOfPortType(t registry.PortType) (Kind, bool) {
	switch t {
	case registry.TypeFloat, registry.TypeInt, registry.TypeBool:
		return F32, true
	case registry.TypeVector2:
		return Vec2, true
	case registry.TypeVector3:
		return Vec3, true
	case registry.TypeVector4, registry.TypeColor:
		return Vec4, true
	}
	return 0, false
}

func indent(body string) string {
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	var b strings.Builder
	for _, l := range lines {
		b.WriteString("    " + l + "\n")
	}
	return b.String()
}
