// Command forgec compiles a scene document offline: it writes the
// generated WGSL per pass, a JSON plan description, and optionally an
// SVG visualization of the pass graph.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	forge "github.com/nodeforge/forge"
	"github.com/nodeforge/forge/plan"
	"github.com/nodeforge/forge/planviz"
	"github.com/nodeforge/forge/transport"
)

func main() {
	scenePath := flag.String("scene", "", "scene JSON document to compile")
	outDir := flag.String("out", "", "directory to write per-pass WGSL into")
	planOut := flag.String("plan", "", "file to write the JSON plan description to (- for stdout)")
	svgOut := flag.String("svg", "", "file to write the pass-graph SVG to")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if *scenePath == "" {
		fmt.Fprintln(os.Stderr, "usage: forgec -scene scene.json [-out dir] [-plan out.json] [-svg out.svg]")
		os.Exit(2)
	}
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	forge.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	raw, err := transport.LoadSceneFile(*scenePath)
	if err != nil {
		fatal(err)
	}
	result, err := forge.Compile(raw, nil)
	if err != nil {
		code, subject := forge.Classify(err)
		fmt.Fprintf(os.Stderr, "forgec: %s", code)
		if subject != "" {
			fmt.Fprintf(os.Stderr, " (%s)", subject)
		}
		fmt.Fprintf(os.Stderr, ": %v\n", err)
		os.Exit(1)
	}

	desc := plan.Describe(result.Plan)
	fmt.Printf("compiled %d passes, output texture %q\n", desc.PassCount, desc.Output)

	if *outDir != "" {
		if err := writeShaders(*outDir, result.Plan); err != nil {
			fatal(err)
		}
	}
	if *planOut != "" {
		data, err := desc.JSON()
		if err != nil {
			fatal(err)
		}
		if *planOut == "-" {
			fmt.Println(string(data))
		} else if err := os.WriteFile(*planOut, data, 0o644); err != nil {
			fatal(err)
		}
	}
	if *svgOut != "" {
		data, err := planviz.ExportSVG(desc, planviz.DefaultOptions())
		if err != nil {
			fatal(err)
		}
		if err := os.WriteFile(*svgOut, data, 0o644); err != nil {
			fatal(err)
		}
	}
}

func writeShaders(dir string, p *plan.Plan) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i := range p.Passes {
		spec := &p.Passes[i]
		base := strings.ReplaceAll(spec.Name, "/", "_")
		if err := os.WriteFile(filepath.Join(dir, base+".vert.wgsl"), []byte(spec.VertexSrc), 0o644); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, base+".frag.wgsl"), []byte(spec.FragmentSrc), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "forgec:", err)
	os.Exit(1)
}
