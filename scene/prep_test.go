package scene

import (
	"errors"
	"testing"

	"github.com/nodeforge/forge/registry"
)

func mustRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r, err := registry.Default()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return r
}

func node(id, typ string, params map[string]any) *Node {
	if params == nil {
		params = map[string]any{}
	}
	return &Node{ID: id, Type: typ, Params: params}
}

func conn(id, fromNode, fromPort, toNode, toPort string) *Connection {
	return &Connection{
		ID:   id,
		From: Endpoint{NodeID: fromNode, PortID: fromPort},
		To:   Endpoint{NodeID: toNode, PortID: toPort},
	}
}

func testScene(nodes []*Node, conns []*Connection) *Scene {
	return &Scene{
		Version:     "1.0",
		Metadata:    Metadata{Name: "test"},
		Nodes:       nodes,
		Connections: conns,
	}
}

// solidColorScene is the canonical single-pass scene: a color drawn
// through a rect into a 1024x1024 texture, composited to screen.
func solidColorScene() *Scene {
	return testScene(
		[]*Node{
			node("color", "ColorInput", map[string]any{"rgba": []any{1.0, 0.0, 0.0, 1.0}}),
			node("rect", "Rect2DGeometry", map[string]any{"width": 1024, "height": 1024}),
			node("rtex", "RenderTexture", map[string]any{"width": 1024, "height": 1024}),
			node("rp", "RenderPass", nil),
			node("comp", "Composite", nil),
			node("screen", "Screen", nil),
		},
		[]*Connection{
			conn("e1", "color", "value", "rp", "material"),
			conn("e2", "rect", "geometry", "rp", "geometry"),
			conn("e3", "rtex", "texture", "rp", "target"),
			conn("e4", "rp", "pass", "comp", "pass"),
			conn("e5", "comp", "pass", "screen", "pass"),
		},
	)
}

func wantCode(t *testing.T, err error, code Code) {
	t.Helper()
	var serr *Error
	if !errors.As(err, &serr) {
		t.Fatalf("want scene error %s, got %v", code, err)
	}
	if serr.Code != code {
		t.Fatalf("want code %s, got %s (%v)", code, serr.Code, serr)
	}
}

func TestPrepareSolidColor(t *testing.T) {
	p, err := Prepare(solidColorScene(), mustRegistry(t))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if p.Target != "screen" {
		t.Errorf("target = %s", p.Target)
	}
	// Composite had no explicit target; one is synthesized, inheriting
	// the routed pass's 1024x1024 texture size.
	synth := p.NodeByID(AutoCompositeTargetID)
	if synth == nil {
		t.Fatal("composite target not synthesized")
	}
	if w := ParamInt(p.Params[AutoCompositeTargetID], "width", 0); w != 1024 {
		t.Errorf("synthesized target width = %d, want 1024", w)
	}
	// No auto-wrap: a color into a material input compiles directly.
	for _, n := range p.Scene.Nodes {
		if n.Type == "FullscreenPass" {
			t.Errorf("unexpected auto-wrap node %s", n.ID)
		}
	}
	layers := p.Layers["comp"]
	if len(layers) != 1 || layers[0].Source != "rp" {
		t.Errorf("composite layers = %+v", layers)
	}
	// Topological order respects every edge.
	pos := map[string]int{}
	for i, id := range p.Order {
		pos[id] = i
	}
	for _, c := range p.Scene.Connections {
		if pos[c.From.NodeID] >= pos[c.To.NodeID] {
			t.Errorf("order violates edge %s: %v", c.ID, p.Order)
		}
	}
}

func TestPrepareTreeShake(t *testing.T) {
	s := solidColorScene()
	s.Nodes = append(s.Nodes, node("orphan", "ColorInput", nil))
	p, err := Prepare(s, mustRegistry(t))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if p.NodeByID("orphan") != nil {
		t.Error("unreachable node survived tree-shake")
	}
}

func TestPrepareNoRenderTarget(t *testing.T) {
	s := testScene([]*Node{node("c", "ColorInput", nil)}, nil)
	_, err := Prepare(s, mustRegistry(t))
	wantCode(t, err, CodeNoRenderTarget)
}

func TestPrepareMultipleRenderTargets(t *testing.T) {
	s := testScene(
		[]*Node{node("s1", "Screen", nil), node("s2", "Screen", nil)},
		nil,
	)
	_, err := Prepare(s, mustRegistry(t))
	wantCode(t, err, CodeAmbiguousTarget)

	// outputs.composite disambiguates.
	s.Outputs = map[string]string{"composite": "s2"}
	p, err := Prepare(s, mustRegistry(t))
	if err != nil {
		t.Fatalf("Prepare with outputs: %v", err)
	}
	if p.Target != "s2" {
		t.Errorf("target = %s, want s2", p.Target)
	}
}

func TestPrepareDuplicateIDs(t *testing.T) {
	s := testScene(
		[]*Node{node("x", "Screen", nil), node("x", "ColorInput", nil)},
		nil,
	)
	_, err := Prepare(s, mustRegistry(t))
	wantCode(t, err, CodeDuplicateID)
}

func TestPrepareDanglingEndpoint(t *testing.T) {
	s := testScene(
		[]*Node{node("screen", "Screen", nil)},
		[]*Connection{conn("e", "ghost", "pass", "screen", "pass")},
	)
	_, err := Prepare(s, mustRegistry(t))
	wantCode(t, err, CodeDanglingEndpoint)

	s = testScene(
		[]*Node{node("screen", "Screen", nil), node("c", "ColorInput", nil)},
		[]*Connection{conn("e", "c", "nope", "screen", "pass")},
	)
	_, err = Prepare(s, mustRegistry(t))
	wantCode(t, err, CodeDanglingEndpoint)
}

func TestPrepareUnknownNodeType(t *testing.T) {
	s := testScene([]*Node{node("w", "Widget", nil)}, nil)
	_, err := Prepare(s, mustRegistry(t))
	wantCode(t, err, CodeUnknownNodeType)
}

func TestPrepareTypeIncompatible(t *testing.T) {
	s := testScene(
		[]*Node{
			node("rect", "Rect2DGeometry", nil),
			node("rp", "RenderPass", nil),
			node("screen", "Screen", nil),
		},
		[]*Connection{
			conn("e1", "rect", "geometry", "rp", "material"),
			conn("e2", "rp", "pass", "screen", "pass"),
		},
	)
	_, err := Prepare(s, mustRegistry(t))
	wantCode(t, err, CodeTypeIncompatible)
}

func TestPrepareSingleSinkInputs(t *testing.T) {
	s := solidColorScene()
	s.Nodes = append(s.Nodes, node("color2", "ColorInput", nil))
	s.Connections = append(s.Connections, conn("e6", "color2", "value", "rp", "material"))
	_, err := Prepare(s, mustRegistry(t))
	wantCode(t, err, CodeSchema)
}

func TestPrepareCycle(t *testing.T) {
	s := testScene(
		[]*Node{
			node("a", "RenderPass", nil),
			node("b", "RenderPass", nil),
			node("screen", "Screen", nil),
		},
		[]*Connection{
			conn("e1", "a", "pass", "b", "material"),
			conn("e2", "b", "pass", "a", "material"),
			conn("e3", "b", "pass", "screen", "pass"),
		},
	)
	_, err := Prepare(s, mustRegistry(t))
	var serr *Error
	if !errors.As(err, &serr) || serr.Code != CodeCycle {
		t.Fatalf("want CYCLE, got %v", err)
	}
	found := map[string]bool{}
	for _, id := range serr.CycleNodes {
		found[id] = true
	}
	if !found["a"] || !found["b"] {
		t.Errorf("cycle should name both nodes, got %v", serr.CycleNodes)
	}
}

func TestPrepareSelfLoop(t *testing.T) {
	s := testScene(
		[]*Node{
			node("a", "RenderPass", nil),
			node("screen", "Screen", nil),
		},
		[]*Connection{
			conn("e1", "a", "pass", "a", "material"),
			conn("e2", "a", "pass", "screen", "pass"),
		},
	)
	_, err := Prepare(s, mustRegistry(t))
	wantCode(t, err, CodeCycle)
}

func TestPrepareMissingRequiredParam(t *testing.T) {
	s := testScene(
		[]*Node{
			node("img", "ImageTexture", nil),
			node("blur", "GuassianBlurPass", nil),
			node("screen", "Screen", nil),
		},
		[]*Connection{
			conn("e1", "img", "texture", "blur", "input"),
			conn("e2", "blur", "pass", "screen", "pass"),
		},
	)
	_, err := Prepare(s, mustRegistry(t))
	wantCode(t, err, CodeMissingRequired)
}

func TestAutoWrapCompositeLayer(t *testing.T) {
	s := testScene(
		[]*Node{
			node("color", "ColorInput", nil),
			{ID: "comp", Type: "Composite", Params: map[string]any{},
				Inputs: []DynamicPort{{ID: "dynamic_0", Type: "pass"}}},
			node("screen", "Screen", nil),
		},
		[]*Connection{
			conn("e1", "color", "value", "comp", "dynamic_0"),
			conn("e2", "comp", "pass", "screen", "pass"),
		},
	)
	p, err := Prepare(s, mustRegistry(t))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	wrapID := AutoWrapPrefix + "e1"
	wrap := p.NodeByID(wrapID)
	if wrap == nil {
		t.Fatalf("expected synthesized node %s", wrapID)
	}
	if wrap.Type != "FullscreenPass" {
		t.Errorf("wrap type = %s", wrap.Type)
	}
	if c := p.Incoming(wrapID, "material"); c == nil || c.From.NodeID != "color" {
		t.Errorf("wrap material input = %+v", c)
	}
	layers := p.Layers["comp"]
	if len(layers) != 1 || layers[0].Source != wrapID {
		t.Errorf("composite layer should reference the wrap pass, got %+v", layers)
	}
}

// Running preparation over its own normalized output must not synthesize
// anything new.
func TestAutoWrapIdempotent(t *testing.T) {
	reg := mustRegistry(t)
	s := testScene(
		[]*Node{
			node("color", "ColorInput", nil),
			{ID: "comp", Type: "Composite", Params: map[string]any{},
				Inputs: []DynamicPort{{ID: "dynamic_0", Type: "pass"}}},
			node("screen", "Screen", nil),
		},
		[]*Connection{
			conn("e1", "color", "value", "comp", "dynamic_0"),
			conn("e2", "comp", "pass", "screen", "pass"),
		},
	)
	p1, err := Prepare(s, reg)
	if err != nil {
		t.Fatalf("first Prepare: %v", err)
	}
	p2, err := Prepare(p1.Scene, reg)
	if err != nil {
		t.Fatalf("second Prepare: %v", err)
	}
	if len(p1.Scene.Nodes) != len(p2.Scene.Nodes) {
		t.Errorf("node count changed on re-prepare: %d vs %d",
			len(p1.Scene.Nodes), len(p2.Scene.Nodes))
	}
	for i, id := range p1.Order {
		if p2.Order[i] != id {
			t.Errorf("order changed on re-prepare: %v vs %v", p1.Order, p2.Order)
			break
		}
	}
}

func TestOutputContractRawPass(t *testing.T) {
	s := testScene(
		[]*Node{
			node("color", "ColorInput", nil),
			node("rp", "RenderPass", nil),
			node("screen", "Screen", nil),
		},
		[]*Connection{
			conn("e1", "color", "value", "rp", "material"),
			conn("e2", "rp", "pass", "screen", "pass"),
		},
	)
	p, err := Prepare(s, mustRegistry(t))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	comp := p.NodeByID(AutoCompositeID)
	if comp == nil {
		t.Fatal("composite not synthesized for raw pass into render target")
	}
	if c := p.Incoming("screen", "pass"); c == nil || c.From.NodeID != AutoCompositeID {
		t.Errorf("screen.pass should come from the composite, got %+v", c)
	}
	if c := p.Incoming(AutoCompositeID, "pass"); c == nil || c.From.NodeID != "rp" {
		t.Errorf("composite layer 0 should be the raw pass, got %+v", c)
	}
	if p.NodeByID(AutoCompositeTargetID) == nil {
		t.Error("composite target not synthesized")
	}
}

func TestEmptySceneContract(t *testing.T) {
	s := testScene([]*Node{node("screen", "Screen", nil)}, nil)
	p, err := Prepare(s, mustRegistry(t))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if p.NodeByID(AutoCompositeID) == nil || p.NodeByID(AutoCompositeTargetID) == nil {
		t.Fatal("empty scene should gain a default composite and target")
	}
	if len(p.Layers[AutoCompositeID]) != 0 {
		t.Errorf("default composite should have no layers, got %+v", p.Layers[AutoCompositeID])
	}
}

func TestCompositeLayerOrdering(t *testing.T) {
	// Connections inserted in reverse; declared dynamic-port order wins.
	s := testScene(
		[]*Node{
			node("p0", "RenderPass", nil),
			node("p1", "RenderPass", nil),
			node("p2", "RenderPass", nil),
			node("c0", "ColorInput", nil),
			{ID: "comp", Type: "Composite", Params: map[string]any{
				"blend_dynamic_1": "add",
			}, Inputs: []DynamicPort{
				{ID: "dynamic_0", Type: "pass"},
				{ID: "dynamic_1", Type: "pass"},
			}},
			node("screen", "Screen", nil),
		},
		[]*Connection{
			conn("z9", "p2", "pass", "comp", "dynamic_1"),
			conn("a1", "p1", "pass", "comp", "dynamic_0"),
			conn("m5", "p0", "pass", "comp", "pass"),
			conn("e1", "c0", "value", "p0", "material"),
			conn("e2", "c0", "value", "p1", "material"),
			conn("e3", "c0", "value", "p2", "material"),
			conn("out", "comp", "pass", "screen", "pass"),
		},
	)
	p, err := Prepare(s, mustRegistry(t))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	layers := p.Layers["comp"]
	if len(layers) != 3 {
		t.Fatalf("want 3 layers, got %+v", layers)
	}
	wantOrder := []string{"p0", "p1", "p2"}
	for i, want := range wantOrder {
		if layers[i].Source != want {
			t.Errorf("layer %d source = %s, want %s", i, layers[i].Source, want)
		}
		if layers[i].Index != i {
			t.Errorf("layer %d index = %d", i, layers[i].Index)
		}
	}
	if layers[2].Blend != BlendAdd {
		t.Errorf("layer 2 blend = %s, want add", layers[2].Blend)
	}
	if layers[0].Blend != BlendNormal {
		t.Errorf("layer 0 blend = %s, want normal", layers[0].Blend)
	}
}
