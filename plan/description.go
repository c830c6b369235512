package plan

import (
	"encoding/json"
	"sort"

	"github.com/gogpu/gputypes"
)

// Description is the JSON-serializable summary of a plan: what the
// offline compiler prints and what render_result envelopes carry. Shader
// sources are elided to lengths; the full text stays host-side.
type Description struct {
	Passes    []PassDescription    `json:"passes"`
	Textures  []TextureDescription `json:"textures"`
	Buffers   []string             `json:"buffers"`
	Output    string               `json:"output"`
	UsesTime  bool                 `json:"usesTime"`
	PassCount int                  `json:"passCount"`
}

// PassDescription summarizes one pass.
type PassDescription struct {
	Name        string   `json:"name"`
	ColorTarget string   `json:"colorTarget"`
	Geometry    string   `json:"geometry,omitempty"`
	Blend       string   `json:"blend"`
	LoadOp      string   `json:"loadOp"`
	Sampled     bool     `json:"sampled"`
	UsesTime    bool     `json:"usesTime"`
	Instances   int      `json:"instances"`
	Textures    []string `json:"textures,omitempty"`
	VertexLen   int      `json:"vertexLen"`
	FragmentLen int      `json:"fragmentLen"`
}

// TextureDescription summarizes one texture resource.
type TextureDescription struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Image  string `json:"image,omitempty"`
}

// Describe builds the summary view of a plan.
func Describe(p *Plan) *Description {
	d := &Description{
		Output:    p.Output,
		UsesTime:  p.UsesTime,
		PassCount: len(p.Passes),
	}
	for i := range p.Passes {
		spec := &p.Passes[i]
		pd := PassDescription{
			Name:        spec.Name,
			ColorTarget: spec.ColorTarget,
			Geometry:    spec.Geometry,
			Blend:       string(spec.Blend),
			LoadOp:      loadOpName(spec),
			Sampled:     spec.Sampled,
			UsesTime:    spec.UsesTime,
			Instances:   spec.Instances,
			VertexLen:   len(spec.VertexSrc),
			FragmentLen: len(spec.FragmentSrc),
		}
		for _, t := range spec.Bindings.Textures {
			pd.Textures = append(pd.Textures, t.NodeID)
		}
		d.Passes = append(d.Passes, pd)
	}
	for _, name := range sortedTextureNames(p) {
		t := p.Resources.Textures[name]
		d.Textures = append(d.Textures, TextureDescription{
			Name: t.Name, Width: t.Width, Height: t.Height, Image: t.Image,
		})
	}
	for name := range p.Resources.Buffers {
		d.Buffers = append(d.Buffers, name)
	}
	sort.Strings(d.Buffers)
	return d
}

// JSON renders the description as indented JSON with stable ordering.
func (d *Description) JSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

func loadOpName(spec *PassSpec) string {
	if spec.LoadOp == gputypes.LoadOpClear {
		return "clear"
	}
	return "load"
}

func sortedTextureNames(p *Plan) []string {
	names := make([]string, 0, len(p.Resources.Textures))
	for n := range p.Resources.Textures {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
