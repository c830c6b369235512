package planviz

import (
	"strings"
	"testing"

	"github.com/nodeforge/forge/plan"
)

func TestExportSVG(t *testing.T) {
	d := &plan.Description{
		Passes: []plan.PassDescription{
			{Name: "draw", ColorTarget: "tex", Blend: "normal", LoadOp: "clear", Sampled: true},
			{Name: "present", ColorTarget: "out", Blend: "normal", LoadOp: "clear", Textures: []string{"tex"}},
		},
		Output:    "out",
		PassCount: 2,
	}
	raw, err := ExportSVG(d, DefaultOptions())
	if err != nil {
		t.Fatalf("ExportSVG: %v", err)
	}
	svg := string(raw)
	for _, want := range []string{"<svg", "draw", "present", "tex", "output: out", "</svg>"} {
		if !strings.Contains(svg, want) {
			t.Errorf("SVG missing %q", want)
		}
	}
	// The present pass samples tex, so one edge path is drawn.
	if !strings.Contains(svg, "<path") {
		t.Error("sampling edge not drawn")
	}
}

func TestExportSVGNil(t *testing.T) {
	if _, err := ExportSVG(nil, DefaultOptions()); err == nil {
		t.Error("nil description accepted")
	}
}
