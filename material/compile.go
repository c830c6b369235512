package material

import (
	"fmt"

	"github.com/nodeforge/forge/registry"
	"github.com/nodeforge/forge/scene"
)

// Compiler walks material subgraphs of a prepared scene and lowers them to
// WGSL expressions.
type Compiler struct {
	prep *scene.Prepared
}

// NewCompiler returns a compiler over the prepared scene.
func NewCompiler(p *scene.Prepared) *Compiler {
	return &Compiler{prep: p}
}

// CompileExpr compiles the expression produced at the given output port.
// Results are memoized in ctx keyed by (node, port); a second request for
// the same endpoint returns the cached expression.
func (c *Compiler) CompileExpr(nodeID, portID string, ctx *Context) (TypedExpr, error) {
	ep := scene.Endpoint{NodeID: nodeID, PortID: portID}
	if e, ok := ctx.cache[ep]; ok {
		return e, nil
	}
	if ctx.inProgress[nodeID] {
		return TypedExpr{}, &Error{Code: CodeCycle, Node: nodeID,
			Msg: "material graph cycles back into a node being compiled"}
	}
	ctx.inProgress[nodeID] = true
	e, err := c.compileNode(nodeID, portID, ctx)
	delete(ctx.inProgress, nodeID)
	if err != nil {
		return TypedExpr{}, err
	}
	ctx.cache[ep] = e
	if e.UsesTime {
		ctx.usesTime = true
	}
	return e, nil
}

func (c *Compiler) compileNode(nodeID, portID string, ctx *Context) (TypedExpr, error) {
	n := c.prep.NodeByID(nodeID)
	if n == nil {
		return TypedExpr{}, &Error{Code: CodeUnknownNodeType, Node: nodeID, Msg: "node not in prepared scene"}
	}
	params := c.prep.Params[nodeID]

	switch n.Type {
	case "ColorInput":
		rgba := scene.ParamVecOr(params, "rgba", []float64{1, 1, 1, 1})
		return c.leaf(n, Vec4, rgba, ctx), nil

	case "FloatInput":
		return c.leaf(n, F32, []float64{scene.ParamFloat(params, "value", 0)}, ctx), nil

	case "IntInput":
		return c.leaf(n, F32, []float64{float64(scene.ParamInt(params, "value", 0))}, ctx), nil

	case "BoolInput":
		v := 0.0
		if scene.ParamBool(params, "value", false) {
			v = 1.0
		}
		return c.leaf(n, F32, []float64{v}, ctx), nil

	case "Vector2Input":
		return c.leaf(n, Vec2, scene.ParamVecOr(params, "value", []float64{0, 0}), ctx), nil

	case "Vector3Input":
		return c.leaf(n, Vec3, scene.ParamVecOr(params, "value", []float64{0, 0, 0}), ctx), nil

	case "Vector4Input":
		return c.leaf(n, Vec4, scene.ParamVecOr(params, "value", []float64{0, 0, 0, 0}), ctx), nil

	case "Time":
		return TypedExpr{Kind: F32, Src: "params.time", UsesTime: true}, nil

	case "Attribute":
		name := scene.ParamString(params, "name", "uv")
		if name != "uv" {
			return TypedExpr{}, &Error{Code: CodeUnsupportedAttribute, Node: nodeID,
				Msg: fmt.Sprintf("attribute %q is not supported (only uv)", name)}
		}
		return TypedExpr{Kind: Vec2, Src: "in.uv"}, nil

	case "ImageTexture":
		ref := ctx.RegisterTexture(nodeID, TexImage)
		return TypedExpr{Kind: Vec4,
			Src: fmt.Sprintf("textureSample(%s, %s, in.uv)", ref.TextureVar(), ref.SamplerVar())}, nil

	case "RenderTexture":
		ref := ctx.RegisterTexture(nodeID, TexPass)
		return TypedExpr{Kind: Vec4,
			Src: fmt.Sprintf("textureSample(%s, %s, in.uv)", ref.TextureVar(), ref.SamplerVar())}, nil

	case "PassTexture":
		conn := c.prep.Incoming(nodeID, "pass")
		if conn == nil {
			return TypedExpr{}, &Error{Code: CodeMissingInput, Node: nodeID, Port: "pass",
				Msg: "PassTexture has no incoming pass"}
		}
		ref := ctx.RegisterTexture(conn.From.NodeID, TexPass)
		return TypedExpr{Kind: Vec4,
			Src: fmt.Sprintf("textureSample(%s, %s, in.uv)", ref.TextureVar(), ref.SamplerVar())}, nil

	case "Add", "Subtract", "Multiply", "Divide":
		return c.binary(n, opFor(n.Type), ctx)

	case "Mix":
		return c.mix(n, ctx)

	case "Clamp":
		return c.clamp(n, ctx)

	case "Sin", "Cos":
		in, err := c.compileInput(n, "input", ctx)
		if err != nil {
			return TypedExpr{}, err
		}
		fn := "sin"
		if n.Type == "Cos" {
			fn = "cos"
		}
		return TypedExpr{Kind: in.Kind, Src: fmt.Sprintf("%s(%s)", fn, in.Src), UsesTime: in.UsesTime}, nil

	case "Normalize":
		in, err := c.compileInput(n, "input", ctx)
		if err != nil {
			return TypedExpr{}, err
		}
		if in.Kind == F32 {
			return TypedExpr{}, &Error{Code: CodeTypeMismatch, Node: nodeID,
				Msg: "normalize requires a vector operand"}
		}
		return TypedExpr{Kind: in.Kind, Src: fmt.Sprintf("normalize(%s)", in.Src), UsesTime: in.UsesTime}, nil

	case "DotProduct":
		a, err := c.compileInput(n, "a", ctx)
		if err != nil {
			return TypedExpr{}, err
		}
		b, err := c.compileInput(n, "b", ctx)
		if err != nil {
			return TypedExpr{}, err
		}
		if a.Kind == F32 || a.Kind != b.Kind {
			return TypedExpr{}, &Error{Code: CodeTypeMismatch, Node: nodeID,
				Msg: fmt.Sprintf("dot requires two vectors of equal width, got %s and %s", a.Kind, b.Kind)}
		}
		return TypedExpr{Kind: F32, Src: fmt.Sprintf("dot(%s, %s)", a.Src, b.Src),
			UsesTime: a.UsesTime || b.UsesTime}, nil

	case "CrossProduct":
		a, err := c.compileInput(n, "a", ctx)
		if err != nil {
			return TypedExpr{}, err
		}
		b, err := c.compileInput(n, "b", ctx)
		if err != nil {
			return TypedExpr{}, err
		}
		if a.Kind != Vec3 || b.Kind != Vec3 {
			return TypedExpr{}, &Error{Code: CodeTypeMismatch, Node: nodeID,
				Msg: fmt.Sprintf("cross requires two vec3 operands, got %s and %s", a.Kind, b.Kind)}
		}
		return TypedExpr{Kind: Vec3, Src: fmt.Sprintf("cross(%s, %s)", a.Src, b.Src),
			UsesTime: a.UsesTime || b.UsesTime}, nil

	case "MathClosure":
		return c.closure(n, ctx)
	}

	// A pass consumed inside a material chain is a texture sample of its
	// output.
	if c.prep.CategoryOf(nodeID) == registry.CategoryPass {
		ref := ctx.RegisterTexture(nodeID, TexPass)
		return TypedExpr{Kind: Vec4,
			Src: fmt.Sprintf("textureSample(%s, %s, in.uv)", ref.TextureVar(), ref.SamplerVar())}, nil
	}

	return TypedExpr{}, &Error{Code: CodeUnknownNodeType, Node: nodeID,
		Msg: fmt.Sprintf("no material lowering for node type %q", n.Type)}
}

// leaf lowers a constant input node: a literal normally, a GraphInputs
// uniform slot when the node is marked uniform. The slot holds the value
// the node had at compile time.
func (c *Compiler) leaf(n *scene.Node, kind Kind, comps []float64, ctx *Context) TypedExpr {
	if scene.ParamBool(c.prep.Params[n.ID], "uniform", false) {
		var v [4]float64
		copy(v[:], comps)
		gi := ctx.RegisterGraphInput(n.ID, kind, v)
		src := fmt.Sprintf("graph_inputs.v%d", gi.Slot)
		switch kind {
		case F32:
			src += ".x"
		case Vec2:
			src += ".xy"
		case Vec3:
			src += ".xyz"
		}
		return TypedExpr{Kind: kind, Src: src}
	}
	return TypedExpr{Kind: kind, Src: VecLit(kind, comps)}
}

// CompileInput compiles the expression feeding one input port of a node,
// applying the input precedence rules. Pass generators use this to pull a
// pass's material or a blur's sigma field.
func (c *Compiler) CompileInput(nodeID, portID string, ctx *Context) (TypedExpr, error) {
	n := c.prep.NodeByID(nodeID)
	if n == nil {
		return TypedExpr{}, &Error{Code: CodeUnknownNodeType, Node: nodeID, Msg: "node not in prepared scene"}
	}
	return c.compileInput(n, portID, ctx)
}

// compileInput resolves one node input by precedence: incoming connection,
// then a same-named effective parameter (inline constants and registry
// defaults are already merged), else MissingInput.
func (c *Compiler) compileInput(n *scene.Node, port string, ctx *Context) (TypedExpr, error) {
	if conn := c.prep.Incoming(n.ID, port); conn != nil {
		return c.CompileExpr(conn.From.NodeID, conn.From.PortID, ctx)
	}
	if v, ok := c.prep.Params[n.ID][port]; ok {
		return inlineConstant(v)
	}
	return TypedExpr{}, &Error{Code: CodeMissingInput, Node: n.ID, Port: port,
		Msg: fmt.Sprintf("input %q has no connection, inline value, or default", port)}
}

func inlineConstant(v any) (TypedExpr, error) {
	switch x := v.(type) {
	case bool:
		if x {
			return TypedExpr{Kind: F32, Src: Lit(1)}, nil
		}
		return TypedExpr{Kind: F32, Src: Lit(0)}, nil
	case float64:
		return TypedExpr{Kind: F32, Src: Lit(x)}, nil
	case int:
		return TypedExpr{Kind: F32, Src: Lit(float64(x))}, nil
	case []any, []float64, []int:
		if arr, ok := scene.ParamVec(map[string]any{"v": v}, "v", lenOf(v)); ok {
			switch len(arr) {
			case 2:
				return TypedExpr{Kind: Vec2, Src: VecLit(Vec2, arr)}, nil
			case 3:
				return TypedExpr{Kind: Vec3, Src: VecLit(Vec3, arr)}, nil
			case 4:
				return TypedExpr{Kind: Vec4, Src: VecLit(Vec4, arr)}, nil
			}
		}
	}
	return TypedExpr{}, fmt.Errorf("material: inline constant %v has no WGSL lowering", v)
}

func lenOf(v any) int {
	switch x := v.(type) {
	case []any:
		return len(x)
	case []float64:
		return len(x)
	case []int:
		return len(x)
	}
	return 0
}

func opFor(typ string) string {
	switch typ {
	case "Add":
		return "+"
	case "Subtract":
		return "-"
	case "Multiply":
		return "*"
	}
	return "/"
}

func (c *Compiler) binary(n *scene.Node, op string, ctx *Context) (TypedExpr, error) {
	a, err := c.compileInput(n, "a", ctx)
	if err != nil {
		return TypedExpr{}, err
	}
	b, err := c.compileInput(n, "b", ctx)
	if err != nil {
		return TypedExpr{}, err
	}
	ca, cb, ok := Coerce(a, b)
	if !ok {
		return TypedExpr{}, &Error{Code: CodeTypeMismatch, Node: n.ID,
			Msg: fmt.Sprintf("cannot combine %s and %s", a.Kind, b.Kind)}
	}
	return TypedExpr{Kind: ca.Kind,
		Src:      fmt.Sprintf("(%s %s %s)", ca.Src, op, cb.Src),
		UsesTime: ca.UsesTime || cb.UsesTime}, nil
}

func (c *Compiler) mix(n *scene.Node, ctx *Context) (TypedExpr, error) {
	a, err := c.compileInput(n, "a", ctx)
	if err != nil {
		return TypedExpr{}, err
	}
	b, err := c.compileInput(n, "b", ctx)
	if err != nil {
		return TypedExpr{}, err
	}
	if a.Kind != b.Kind {
		return TypedExpr{}, &Error{Code: CodeTypeMismatch, Node: n.ID,
			Msg: fmt.Sprintf("mix endpoints must agree, got %s and %s", a.Kind, b.Kind)}
	}
	t, err := c.compileInput(n, "t", ctx)
	if err != nil {
		return TypedExpr{}, err
	}
	// WGSL accepts a scalar interpolant for vector endpoints; anything
	// else must match the endpoint kind.
	if t.Kind != F32 && t.Kind != a.Kind {
		return TypedExpr{}, &Error{Code: CodeTypeMismatch, Node: n.ID,
			Msg: fmt.Sprintf("mix factor must be scalar or %s, got %s", a.Kind, t.Kind)}
	}
	return TypedExpr{Kind: a.Kind,
		Src:      fmt.Sprintf("mix(%s, %s, %s)", a.Src, b.Src, t.Src),
		UsesTime: a.UsesTime || b.UsesTime || t.UsesTime}, nil
}

func (c *Compiler) clamp(n *scene.Node, ctx *Context) (TypedExpr, error) {
	x, err := c.compileInput(n, "input", ctx)
	if err != nil {
		return TypedExpr{}, err
	}
	lo, err := c.compileInput(n, "low", ctx)
	if err != nil {
		return TypedExpr{}, err
	}
	hi, err := c.compileInput(n, "high", ctx)
	if err != nil {
		return TypedExpr{}, err
	}
	if lo.Kind != hi.Kind {
		return TypedExpr{}, &Error{Code: CodeTypeMismatch, Node: n.ID,
			Msg: fmt.Sprintf("clamp bounds must agree, got %s and %s", lo.Kind, hi.Kind)}
	}
	switch {
	case x.Kind == lo.Kind:
	case x.Kind == F32:
		x = Splat(x, lo.Kind)
	case lo.Kind == F32:
		lo, hi = Splat(lo, x.Kind), Splat(hi, x.Kind)
	default:
		return TypedExpr{}, &Error{Code: CodeTypeMismatch, Node: n.ID,
			Msg: fmt.Sprintf("clamp value %s does not coerce to bounds %s", x.Kind, lo.Kind)}
	}
	return TypedExpr{Kind: x.Kind,
		Src:      fmt.Sprintf("clamp(%s, %s, %s)", x.Src, lo.Src, hi.Src),
		UsesTime: x.UsesTime || lo.UsesTime || hi.UsesTime}, nil
}

// FinalColor wraps an arbitrary material result into the fragment output:
// a vec4 with premultiplied alpha. Scalars broadcast to grayscale, vec2
// maps to red/green, vec3 gains full alpha. Premultiplication is skipped
// when the pass declares its output straight-alpha.
func FinalColor(e TypedExpr, premultiply bool) string {
	switch e.Kind {
	case F32:
		return fmt.Sprintf("vec4<f32>(vec3<f32>(%s), 1.0)", e.Src)
	case Vec2:
		return fmt.Sprintf("vec4<f32>(%s, 0.0, 1.0)", e.Src)
	case Vec3:
		return fmt.Sprintf("vec4<f32>(%s, 1.0)", e.Src)
	}
	if !premultiply {
		return e.Src
	}
	return fmt.Sprintf("premultiply(%s)", e.Src)
}
