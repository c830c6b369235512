package scene

import (
	"errors"
	"testing"
)

func TestParseSceneMalformed(t *testing.T) {
	_, err := ParseScene([]byte("{not json"))
	var serr *Error
	if !errors.As(err, &serr) || serr.Code != CodeParse {
		t.Fatalf("want PARSE_ERROR, got %v", err)
	}
}

func TestParseSceneSchema(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"missing version", `{"metadata":{"name":"x"},"nodes":[],"connections":[]}`},
		{"node without id", `{"version":"1","nodes":[{"type":"Screen"}],"connections":[]}`},
		{"node without type", `{"version":"1","nodes":[{"id":"a"}],"connections":[]}`},
		{"connection without id", `{"version":"1","nodes":[],"connections":[{"from":{"nodeId":"a","portId":"p"},"to":{"nodeId":"b","portId":"q"}}]}`},
		{"endpoint without port", `{"version":"1","nodes":[],"connections":[{"id":"c","from":{"nodeId":"a"},"to":{"nodeId":"b","portId":"q"}}]}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseScene([]byte(c.raw))
			var serr *Error
			if !errors.As(err, &serr) || serr.Code != CodeSchema {
				t.Fatalf("want SCHEMA_ERROR, got %v", err)
			}
		})
	}
}

func TestParseSceneToleratesUnknownFields(t *testing.T) {
	raw := `{"version":"1.0","metadata":{"name":"x"},"nodes":[],"connections":[],"editorState":{"zoom":2}}`
	if _, err := ParseScene([]byte(raw)); err != nil {
		t.Fatalf("unknown top-level fields should be ignored: %v", err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	s := &Scene{
		Version:  "1.0",
		Metadata: Metadata{Name: "round"},
		Nodes: []*Node{
			{ID: "screen", Type: "Screen", Params: map[string]any{}},
			{ID: "c", Type: "ColorInput", Params: map[string]any{"rgba": []any{1.0, 0.0, 0.0, 1.0}}},
		},
		Connections: []*Connection{
			{ID: "e1", From: Endpoint{NodeID: "c", PortID: "value"}, To: Endpoint{NodeID: "screen", PortID: "pass"}},
		},
		Outputs: map[string]string{"composite": "screen"},
	}
	raw, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back, err := ParseScene(raw)
	if err != nil {
		t.Fatalf("ParseScene: %v", err)
	}
	if back.Version != s.Version || len(back.Nodes) != 2 || len(back.Connections) != 1 {
		t.Errorf("round trip lost structure: %+v", back)
	}
	if back.Outputs["composite"] != "screen" {
		t.Errorf("round trip lost outputs map")
	}
}

func TestBindingLookup(t *testing.T) {
	n := &Node{
		ID:   "cl",
		Type: "MathClosure",
		Inputs: []DynamicPort{
			{ID: "in_0", Type: "float"},
		},
		InputBindings: []InputBinding{
			{PortID: "in_0", Var: "x"},
		},
	}
	b, ok := n.Binding("in_0")
	if !ok || b.Var != "x" {
		t.Errorf("Binding lookup failed: %+v ok=%v", b, ok)
	}
	if _, ok := n.Binding("in_1"); ok {
		t.Error("unexpected binding for undeclared port")
	}
	if p, ok := n.DynamicInput("in_0"); !ok || p.Type != "float" {
		t.Errorf("DynamicInput lookup failed: %+v", p)
	}
}
