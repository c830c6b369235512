package resolve

import (
	"testing"

	"github.com/nodeforge/forge/registry"
	"github.com/nodeforge/forge/scene"
)

func prepare(t *testing.T, s *scene.Scene) *scene.Prepared {
	t.Helper()
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	p, err := scene.Prepare(s, reg)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	return p
}

func node(id, typ string, params map[string]any) *scene.Node {
	if params == nil {
		params = map[string]any{}
	}
	return &scene.Node{ID: id, Type: typ, Params: params}
}

func conn(id, fn, fp, tn, tp string) *scene.Connection {
	return &scene.Connection{
		ID:   id,
		From: scene.Endpoint{NodeID: fn, PortID: fp},
		To:   scene.Endpoint{NodeID: tn, PortID: tp},
	}
}

func sceneOf(nodes []*scene.Node, conns []*scene.Connection) *scene.Scene {
	return &scene.Scene{
		Version:     "1.0",
		Metadata:    scene.Metadata{Name: "resolve-test"},
		Nodes:       nodes,
		Connections: conns,
	}
}

func rectScene() *scene.Scene {
	return sceneOf(
		[]*scene.Node{
			node("color", "ColorInput", nil),
			node("rect", "Rect2DGeometry", map[string]any{
				"width": 200, "height": 100, "position": []any{10.0, 20.0},
			}),
			node("rtex", "RenderTexture", map[string]any{"width": 800, "height": 600}),
			node("rp", "RenderPass", nil),
			node("comp", "Composite", nil),
			node("screen", "Screen", nil),
		},
		[]*scene.Connection{
			conn("e1", "color", "value", "rp", "material"),
			conn("e2", "rect", "geometry", "rp", "geometry"),
			conn("e3", "rtex", "texture", "rp", "target"),
			conn("e4", "rp", "pass", "comp", "pass"),
			conn("e5", "comp", "pass", "screen", "pass"),
		},
	)
}

func TestResolveRoles(t *testing.T) {
	r, err := Resolve(prepare(t, rectScene()))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	cases := map[string]Role{
		"rp":     RoleDrawPass,
		"comp":   RoleCompositionRoute,
		"screen": RoleCompositionRoute,
		"color":  RoleOther,
		"rect":   RoleOther,
		"rtex":   RoleOther,
	}
	for id, want := range cases {
		if got := r.Roles[id]; got != want {
			t.Errorf("role of %s = %s, want %s", id, got, want)
		}
	}
}

func TestResolveRectContext(t *testing.T) {
	r, err := Resolve(prepare(t, rectScene()))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ctx, ok := r.Contexts["rp"]
	if !ok {
		t.Fatal("no context for rp")
	}
	if ctx.Fullscreen {
		t.Error("rect pass should not be fullscreen")
	}
	if ctx.Geometry != "rect" {
		t.Errorf("geometry = %s", ctx.Geometry)
	}
	if ctx.TargetSizePx != [2]float64{800, 600} {
		t.Errorf("target size = %v, want explicit texture size", ctx.TargetSizePx)
	}
	if ctx.GeoSizePx != [2]float64{200, 100} {
		t.Errorf("geo size = %v", ctx.GeoSizePx)
	}
	// Center is the rect position plus half its size.
	if ctx.CenterPx != [2]float64{110, 70} {
		t.Errorf("center = %v", ctx.CenterPx)
	}
	if r.TargetTexture["rp"] != "rtex" {
		t.Errorf("target texture = %s", r.TargetTexture["rp"])
	}
	if r.CompositeOf["rp"] != "comp" {
		t.Errorf("composite of rp = %s", r.CompositeOf["rp"])
	}
}

func TestResolveFullscreenFallback(t *testing.T) {
	s := sceneOf(
		[]*scene.Node{
			node("color", "ColorInput", nil),
			node("rp", "RenderPass", nil),
			node("screen", "Screen", nil),
		},
		[]*scene.Connection{
			conn("e1", "color", "value", "rp", "material"),
			conn("e2", "rp", "pass", "screen", "pass"),
		},
	)
	r, err := Resolve(prepare(t, s))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ctx := r.Contexts["rp"]
	if !ctx.Fullscreen {
		t.Error("pass without geometry should be fullscreen")
	}
	// Inherits the routing composite's domain, which defaults to the
	// screen size.
	if ctx.TargetSizePx != [2]float64{1280, 720} {
		t.Errorf("target size = %v", ctx.TargetSizePx)
	}
	if ctx.GeoSizePx != ctx.TargetSizePx {
		t.Errorf("fullscreen geo should cover target, got %v", ctx.GeoSizePx)
	}
}

func TestResolveExplicitTransform(t *testing.T) {
	s := rectScene()
	for _, n := range s.Nodes {
		if n.ID == "rp" {
			n.Params["geoTranslate"] = []any{5.0, -5.0}
			n.Params["geoScale"] = []any{2.0, 2.0}
		}
	}
	r, err := Resolve(prepare(t, s))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ctx := r.Contexts["rp"]
	if ctx.GeoTranslate != [2]float64{5, -5} {
		t.Errorf("geoTranslate = %v", ctx.GeoTranslate)
	}
	if ctx.GeoScale != [2]float64{2, 2} {
		t.Errorf("geoScale = %v", ctx.GeoScale)
	}
}

func TestResolveCompositeDomain(t *testing.T) {
	r, err := Resolve(prepare(t, rectScene()))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// Synthesized composite target inherits the pass texture size.
	d, ok := r.Domains["comp"]
	if !ok {
		t.Fatal("no domain for comp")
	}
	if d.Width != 800 || d.Height != 600 {
		t.Errorf("domain = %+v", d)
	}
}

func TestResolveInstancedRect(t *testing.T) {
	s := rectScene()
	for _, n := range s.Nodes {
		if n.ID == "rect" {
			n.Params["count"] = 5
		}
	}
	r, err := Resolve(prepare(t, s))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := r.Contexts["rp"].Instances; got != 5 {
		t.Errorf("instances = %d, want 5", got)
	}
}
