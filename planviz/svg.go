// Package planviz renders a plan description as an SVG pass graph: one
// box per pass laid out in execution order, edges for every sampled
// texture. A debugging artifact, reachable from the offline compiler.
package planviz

import (
	"bytes"
	"fmt"

	svg "github.com/ajstarks/svgo"
	"github.com/nodeforge/forge/plan"
)

// Options configures the SVG export.
type Options struct {
	BoxWidth   int
	BoxHeight  int
	ColumnGap  int
	RowGap     int
	Margin     int
	ShowLoadOp bool
	Title      string
}

// DefaultOptions returns sensible export defaults.
func DefaultOptions() Options {
	return Options{
		BoxWidth:   220,
		BoxHeight:  56,
		ColumnGap:  60,
		RowGap:     24,
		Margin:     40,
		ShowLoadOp: true,
		Title:      "Render Plan",
	}
}

// ExportSVG renders the pass graph. Passes stack top to bottom in
// execution order; a curve connects each producer to every pass that
// samples its target.
func ExportSVG(d *plan.Description, opts Options) ([]byte, error) {
	if d == nil {
		return nil, fmt.Errorf("planviz: nil description")
	}
	if opts.BoxWidth <= 0 || opts.BoxHeight <= 0 {
		opts = DefaultOptions()
	}

	width := opts.Margin*2 + opts.BoxWidth + 320
	height := opts.Margin*2 + len(d.Passes)*(opts.BoxHeight+opts.RowGap) + 40

	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, "fill:#ffffff")
	if opts.Title != "" {
		canvas.Text(opts.Margin, opts.Margin-12, opts.Title, "font-family:monospace;font-size:16px;fill:#222")
	}

	// Target-producer index: pass i writes its colorTarget; later
	// passes sampling that target get an edge.
	writerOf := map[string]int{}
	boxY := func(i int) int { return opts.Margin + i*(opts.BoxHeight+opts.RowGap) }

	for i, p := range d.Passes {
		if _, seen := writerOf[p.ColorTarget]; !seen {
			writerOf[p.ColorTarget] = i
		}
		for _, tex := range p.Textures {
			from, ok := writerOf[tex]
			if !ok {
				continue
			}
			x := opts.Margin + opts.BoxWidth
			y0 := boxY(from) + opts.BoxHeight/2
			y1 := boxY(i) + opts.BoxHeight/2
			ctrl := x + 60 + (i-from)*12
			canvas.Path(fmt.Sprintf("M %d %d C %d %d %d %d %d %d",
				x, y0, ctrl, y0, ctrl, y1, x, y1),
				"fill:none;stroke:#4a7bd0;stroke-width:1.5")
		}
	}

	for i, p := range d.Passes {
		y := boxY(i)
		fill := "#eef3fb"
		if p.Sampled {
			fill = "#e4f2e4"
		}
		canvas.Roundrect(opts.Margin, y, opts.BoxWidth, opts.BoxHeight, 6, 6,
			fmt.Sprintf("fill:%s;stroke:#667;stroke-width:1", fill))
		canvas.Text(opts.Margin+10, y+20, p.Name, "font-family:monospace;font-size:12px;fill:#111")
		detail := fmt.Sprintf("-> %s  [%s]", p.ColorTarget, p.Blend)
		if opts.ShowLoadOp {
			detail += "  " + p.LoadOp
		}
		canvas.Text(opts.Margin+10, y+38, detail, "font-family:monospace;font-size:10px;fill:#555")
		if p.UsesTime {
			canvas.Text(opts.Margin+opts.BoxWidth-16, y+20, "t", "font-family:monospace;font-size:12px;fill:#b5651d")
		}
	}

	canvas.Text(opts.Margin, height-opts.Margin+16,
		fmt.Sprintf("%d passes, output: %s", d.PassCount, d.Output),
		"font-family:monospace;font-size:11px;fill:#333")
	canvas.End()
	return buf.Bytes(), nil
}
