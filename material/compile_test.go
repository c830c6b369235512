package material

import (
	"errors"
	"strings"
	"testing"

	"github.com/nodeforge/forge/registry"
	"github.com/nodeforge/forge/scene"
)

// buildPrep assembles a scene with the given material nodes feeding a
// render pass, and prepares it.
func buildPrep(t *testing.T, nodes []*scene.Node, conns []*scene.Connection, materialSrc, materialPort string) *scene.Prepared {
	t.Helper()
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	all := append([]*scene.Node{}, nodes...)
	all = append(all,
		&scene.Node{ID: "rp", Type: "RenderPass", Params: map[string]any{}},
		&scene.Node{ID: "screen", Type: "Screen", Params: map[string]any{}},
	)
	allConns := append([]*scene.Connection{}, conns...)
	allConns = append(allConns,
		&scene.Connection{ID: "c.mat",
			From: scene.Endpoint{NodeID: materialSrc, PortID: materialPort},
			To:   scene.Endpoint{NodeID: "rp", PortID: "material"}},
		&scene.Connection{ID: "c.out",
			From: scene.Endpoint{NodeID: "rp", PortID: "pass"},
			To:   scene.Endpoint{NodeID: "screen", PortID: "pass"}},
	)
	p, err := scene.Prepare(&scene.Scene{
		Version:     "1.0",
		Metadata:    scene.Metadata{Name: "mat-test"},
		Nodes:       all,
		Connections: allConns,
	}, reg)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	return p
}

func mnode(id, typ string, params map[string]any) *scene.Node {
	if params == nil {
		params = map[string]any{}
	}
	return &scene.Node{ID: id, Type: typ, Params: params}
}

func mconn(id, fn, fp, tn, tp string) *scene.Connection {
	return &scene.Connection{ID: id,
		From: scene.Endpoint{NodeID: fn, PortID: fp},
		To:   scene.Endpoint{NodeID: tn, PortID: tp}}
}

func compileMaterial(t *testing.T, p *scene.Prepared) (TypedExpr, *Context) {
	t.Helper()
	ctx := NewContext()
	expr, err := NewCompiler(p).CompileInput("rp", "material", ctx)
	if err != nil {
		t.Fatalf("CompileInput: %v", err)
	}
	return expr, ctx
}

func TestCompileColorLiteral(t *testing.T) {
	p := buildPrep(t,
		[]*scene.Node{mnode("c", "ColorInput", map[string]any{"rgba": []any{1.0, 0.0, 0.0, 1.0}})},
		nil, "c", "value")
	expr, ctx := compileMaterial(t, p)
	if expr.Kind != Vec4 {
		t.Errorf("kind = %s", expr.Kind)
	}
	if expr.Src != "vec4<f32>(1.0, 0.0, 0.0, 1.0)" {
		t.Errorf("src = %s", expr.Src)
	}
	if expr.UsesTime || ctx.UsesTime() {
		t.Error("constant color should not use time")
	}
}

func TestCompileAttributeUV(t *testing.T) {
	p := buildPrep(t,
		[]*scene.Node{mnode("uv", "Attribute", nil)},
		nil, "uv", "value")
	expr, _ := compileMaterial(t, p)
	if expr.Kind != Vec2 || expr.Src != "in.uv" {
		t.Errorf("attribute expr = %+v", expr)
	}
}

func TestCompileUnsupportedAttribute(t *testing.T) {
	p := buildPrep(t,
		[]*scene.Node{mnode("n", "Attribute", map[string]any{"name": "normal"})},
		nil, "n", "value")
	ctx := NewContext()
	_, err := NewCompiler(p).CompileInput("rp", "material", ctx)
	var merr *Error
	if !errors.As(err, &merr) || merr.Code != CodeUnsupportedAttribute {
		t.Fatalf("want UNSUPPORTED_ATTRIBUTE, got %v", err)
	}
}

func TestCompileTimePropagation(t *testing.T) {
	p := buildPrep(t,
		[]*scene.Node{
			mnode("t", "Time", nil),
			mnode("s", "Sin", nil),
		},
		[]*scene.Connection{mconn("c1", "t", "value", "s", "input")},
		"s", "result")
	expr, ctx := compileMaterial(t, p)
	if !expr.UsesTime || !ctx.UsesTime() {
		t.Error("sin(time) must propagate the time flag")
	}
	if expr.Src != "sin(params.time)" {
		t.Errorf("src = %s", expr.Src)
	}
}

func TestCompileScalarSplat(t *testing.T) {
	p := buildPrep(t,
		[]*scene.Node{
			mnode("c", "ColorInput", map[string]any{"rgba": []any{0.5, 0.5, 0.5, 1.0}}),
			mnode("f", "FloatInput", map[string]any{"value": 2.0}),
			mnode("mul", "Multiply", nil),
		},
		[]*scene.Connection{
			mconn("c1", "c", "value", "mul", "a"),
			mconn("c2", "f", "value", "mul", "b"),
		},
		"mul", "result")
	expr, _ := compileMaterial(t, p)
	if expr.Kind != Vec4 {
		t.Errorf("kind = %s, scalar should splat up", expr.Kind)
	}
	if !strings.Contains(expr.Src, "vec4<f32>(2.0)") {
		t.Errorf("expected splat in %s", expr.Src)
	}
}

func TestCompileVectorWidthMismatch(t *testing.T) {
	p := buildPrep(t,
		[]*scene.Node{
			mnode("v2", "Vector2Input", map[string]any{"value": []any{1.0, 2.0}}),
			mnode("v3", "Vector3Input", map[string]any{"value": []any{1.0, 2.0, 3.0}}),
			mnode("add", "Add", nil),
		},
		[]*scene.Connection{
			mconn("c1", "v2", "value", "add", "a"),
			mconn("c2", "v3", "value", "add", "b"),
		},
		"add", "result")
	ctx := NewContext()
	_, err := NewCompiler(p).CompileInput("rp", "material", ctx)
	var merr *Error
	if !errors.As(err, &merr) || merr.Code != CodeTypeMismatch {
		t.Fatalf("want TYPE_MISMATCH, got %v", err)
	}
}

func TestCompileMixRules(t *testing.T) {
	p := buildPrep(t,
		[]*scene.Node{
			mnode("a", "Vector3Input", map[string]any{"value": []any{1.0, 0.0, 0.0}}),
			mnode("b", "Vector3Input", map[string]any{"value": []any{0.0, 0.0, 1.0}}),
			mnode("t", "FloatInput", map[string]any{"value": 0.5}),
			mnode("mix", "Mix", nil),
		},
		[]*scene.Connection{
			mconn("c1", "a", "value", "mix", "a"),
			mconn("c2", "b", "value", "mix", "b"),
			mconn("c3", "t", "value", "mix", "t"),
		},
		"mix", "result")
	expr, _ := compileMaterial(t, p)
	if expr.Kind != Vec3 {
		t.Errorf("kind = %s", expr.Kind)
	}
	if !strings.HasPrefix(expr.Src, "mix(") {
		t.Errorf("src = %s", expr.Src)
	}
}

func TestCompileClampInlineDefaults(t *testing.T) {
	// Clamp's low/high come from registry defaults via params when
	// unconnected.
	p := buildPrep(t,
		[]*scene.Node{
			mnode("f", "FloatInput", map[string]any{"value": 3.0}),
			mnode("cl", "Clamp", nil),
		},
		[]*scene.Connection{mconn("c1", "f", "value", "cl", "input")},
		"cl", "result")
	expr, _ := compileMaterial(t, p)
	if expr.Src != "clamp(3.0, 0.0, 1.0)" {
		t.Errorf("src = %s", expr.Src)
	}
}

func TestCompileDotAndCross(t *testing.T) {
	p := buildPrep(t,
		[]*scene.Node{
			mnode("a", "Vector3Input", map[string]any{"value": []any{1.0, 0.0, 0.0}}),
			mnode("b", "Vector3Input", map[string]any{"value": []any{0.0, 1.0, 0.0}}),
			mnode("cross", "CrossProduct", nil),
			mnode("dot", "DotProduct", nil),
		},
		[]*scene.Connection{
			mconn("c1", "a", "value", "cross", "a"),
			mconn("c2", "b", "value", "cross", "b"),
			mconn("c3", "cross", "result", "dot", "a"),
			mconn("c4", "a", "value", "dot", "b"),
		},
		"dot", "result")
	expr, _ := compileMaterial(t, p)
	if expr.Kind != F32 {
		t.Errorf("dot kind = %s", expr.Kind)
	}
	if !strings.Contains(expr.Src, "cross(") {
		t.Errorf("src = %s", expr.Src)
	}
}

func TestCompileNormalizeRejectsScalar(t *testing.T) {
	p := buildPrep(t,
		[]*scene.Node{
			mnode("f", "FloatInput", map[string]any{"value": 1.0}),
			mnode("n", "Normalize", nil),
		},
		[]*scene.Connection{mconn("c1", "f", "value", "n", "input")},
		"n", "result")
	ctx := NewContext()
	_, err := NewCompiler(p).CompileInput("rp", "material", ctx)
	var merr *Error
	if !errors.As(err, &merr) || merr.Code != CodeTypeMismatch {
		t.Fatalf("want TYPE_MISMATCH, got %v", err)
	}
}

// Expression caching: one producer feeding two consumers compiles once.
func TestCompileExpressionCaching(t *testing.T) {
	p := buildPrep(t,
		[]*scene.Node{
			mnode("f", "FloatInput", map[string]any{"value": 2.0}),
			mnode("add", "Add", nil),
		},
		[]*scene.Connection{
			mconn("c1", "f", "value", "add", "a"),
			mconn("c2", "f", "value", "add", "b"),
		},
		"add", "result")
	_, ctx := compileMaterial(t, p)
	// Distinct endpoints: f.value and add.result.
	if ctx.CachedCount() != 2 {
		t.Errorf("cached expressions = %d, want 2", ctx.CachedCount())
	}
}

func TestCompileImageTextureRegistersBinding(t *testing.T) {
	p := buildPrep(t,
		[]*scene.Node{mnode("img", "ImageTexture", map[string]any{"source": "a.png"})},
		nil, "img", "texture")
	expr, ctx := compileMaterial(t, p)
	if expr.Kind != Vec4 {
		t.Errorf("kind = %s", expr.Kind)
	}
	refs := ctx.Textures()
	if len(refs) != 1 || refs[0].NodeID != "img" || refs[0].Kind != TexImage {
		t.Errorf("textures = %+v", refs)
	}
	if !strings.Contains(expr.Src, refs[0].TextureVar()) {
		t.Errorf("sample should reference %s: %s", refs[0].TextureVar(), expr.Src)
	}
}

func TestCompileGraphInputSlot(t *testing.T) {
	p := buildPrep(t,
		[]*scene.Node{mnode("c", "ColorInput", map[string]any{
			"rgba": []any{0.2, 0.4, 0.6, 1.0}, "uniform": true,
		})},
		nil, "c", "value")
	expr, ctx := compileMaterial(t, p)
	gis := ctx.GraphInputs()
	if len(gis) != 1 || gis[0].Slot != 0 {
		t.Fatalf("graph inputs = %+v", gis)
	}
	if expr.Src != "graph_inputs.v0" {
		t.Errorf("src = %s", expr.Src)
	}
	if gis[0].Value != [4]float64{0.2, 0.4, 0.6, 1.0} {
		t.Errorf("value = %v", gis[0].Value)
	}
}

func TestFinalColorShapes(t *testing.T) {
	cases := []struct {
		expr TypedExpr
		want string
	}{
		{TypedExpr{Kind: F32, Src: "x"}, "vec4<f32>(vec3<f32>(x), 1.0)"},
		{TypedExpr{Kind: Vec2, Src: "in.uv"}, "vec4<f32>(in.uv, 0.0, 1.0)"},
		{TypedExpr{Kind: Vec3, Src: "v"}, "vec4<f32>(v, 1.0)"},
		{TypedExpr{Kind: Vec4, Src: "c"}, "premultiply(c)"},
	}
	for _, c := range cases {
		if got := FinalColor(c.expr, true); got != c.want {
			t.Errorf("FinalColor(%s) = %s, want %s", c.expr.Kind, got, c.want)
		}
	}
	if got := FinalColor(TypedExpr{Kind: Vec4, Src: "c"}, false); got != "c" {
		t.Errorf("straight alpha should pass through, got %s", got)
	}
}

func TestCompileClosure(t *testing.T) {
	p := buildPrep(t,
		[]*scene.Node{
			mnode("f", "FloatInput", map[string]any{"value": 3.0}),
			{ID: "cl", Type: "MathClosure",
				Params: map[string]any{"body": "x * 2.0"},
				Inputs: []scene.DynamicPort{{ID: "in_0", Type: "float"}},
				InputBindings: []scene.InputBinding{
					{PortID: "in_0", Var: "x"},
				}},
		},
		[]*scene.Connection{mconn("c1", "f", "value", "cl", "in_0")},
		"cl", "result")
	expr, ctx := compileMaterial(t, p)
	if expr.Kind != F32 {
		t.Errorf("kind = %s", expr.Kind)
	}
	if !strings.HasPrefix(expr.Src, "fn_") || !strings.Contains(expr.Src, "(3.0)") {
		t.Errorf("call site = %s", expr.Src)
	}
	fns := ctx.Functions()
	if len(fns) != 1 {
		t.Fatalf("functions = %d", len(fns))
	}
	if !strings.Contains(fns[0], "x: f32") || !strings.Contains(fns[0], "return (x * 2.0);") {
		t.Errorf("closure decl:\n%s", fns[0])
	}
	// The host never evaluates the body: the declaration carries it
	// verbatim.
	if !strings.Contains(fns[0], "x * 2.0") {
		t.Errorf("body not carried verbatim:\n%s", fns[0])
	}
}

func TestCompileClosureMultiStatement(t *testing.T) {
	body := "let y = x + 1.0;\nreturn y * y;"
	p := buildPrep(t,
		[]*scene.Node{
			mnode("f", "FloatInput", map[string]any{"value": 1.0}),
			{ID: "cl", Type: "MathClosure",
				Params: map[string]any{"body": body, "returnType": "float"},
				Inputs: []scene.DynamicPort{{ID: "in_0", Type: "float"}},
				InputBindings: []scene.InputBinding{
					{PortID: "in_0", Var: "x"},
				}},
		},
		[]*scene.Connection{mconn("c1", "f", "value", "cl", "in_0")},
		"cl", "result")
	_, ctx := compileMaterial(t, p)
	fns := ctx.Functions()
	if len(fns) != 1 || !strings.Contains(fns[0], "let y = x + 1.0;") {
		t.Errorf("multi-statement body mangled:\n%v", fns)
	}
}

func TestCompileMissingInput(t *testing.T) {
	// Sin has no default for its input.
	p := buildPrep(t,
		[]*scene.Node{mnode("s", "Sin", nil)},
		nil, "s", "result")
	ctx := NewContext()
	_, err := NewCompiler(p).CompileInput("rp", "material", ctx)
	var merr *Error
	if !errors.As(err, &merr) || merr.Code != CodeMissingInput {
		t.Fatalf("want MISSING_INPUT, got %v", err)
	}
}

func TestLitFormatting(t *testing.T) {
	cases := map[float64]string{
		1:    "1.0",
		0.5:  "0.5",
		-2:   "-2.0",
		0:    "0.0",
		1e21: "1e+21",
	}
	for in, want := range cases {
		if got := Lit(in); got != want {
			t.Errorf("Lit(%v) = %s, want %s", in, got, want)
		}
	}
}
