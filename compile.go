// Package forge compiles declarative scene graphs into executable GPU
// work: validated render-pass pipelines, typed resources, and ordered
// submission, with WGSL generated per pass.
package forge

import (
	"fmt"

	"github.com/nodeforge/forge/material"
	"github.com/nodeforge/forge/plan"
	"github.com/nodeforge/forge/registry"
	"github.com/nodeforge/forge/resolve"
	"github.com/nodeforge/forge/scene"
	"github.com/nodeforge/forge/validate"
	"github.com/nodeforge/forge/wgsl"
)

// CompileResult carries everything a backend needs to bind one scene.
type CompileResult struct {
	Prep *scene.Prepared
	Res  *resolve.Resolution
	Plan *plan.Plan

	// Bindings maps each pass name to the texture resource bound at
	// each of its sampler slots.
	Bindings map[string][]plan.ResourceName
}

// Compile runs the full pipeline over a raw scene document: parse,
// prepare, resolve, compile materials, generate shaders, assemble the
// plan, and validate every generated module. It is pure CPU work; no
// GPU state is touched.
func Compile(raw []byte, reg *registry.Registry) (*CompileResult, error) {
	if reg == nil {
		var err error
		reg, err = registry.Default()
		if err != nil {
			return nil, err
		}
	}

	s, err := scene.ParseScene(raw)
	if err != nil {
		return nil, err
	}
	prep, err := scene.Prepare(s, reg)
	if err != nil {
		return nil, err
	}
	res, err := resolve.Resolve(prep)
	if err != nil {
		return nil, err
	}

	comp := material.NewCompiler(prep)
	bundles := make(map[string]*wgsl.Bundle)
	synth := make(map[string][]wgsl.SynthPass)

	for _, id := range res.DrawOrder {
		n := prep.NodeByID(id)
		params := prep.Params[id]
		switch n.Type {
		case "RenderPass", "FullscreenPass":
			mctx := material.NewContext()
			expr, err := comp.CompileInput(id, "material", mctx)
			if err != nil {
				return nil, err
			}
			Logger().Debug("forge: compiled material",
				"pass", id, "kind", expr.Kind.String(),
				"exprs", mctx.CachedCount(), "usesTime", mctx.UsesTime())
			bundle, err := wgsl.Generate(wgsl.PassInput{
				Node:          id,
				Ctx:           res.Contexts[id],
				Material:      expr,
				MCtx:          mctx,
				StraightAlpha: scene.ParamBool(params, "straightAlpha", false),
				Camera:        hasCamera(params),
			})
			if err != nil {
				return nil, err
			}
			bundles[id] = bundle

		case "GuassianBlurPass":
			src, w, h, err := blurSource(prep, res, id)
			if err != nil {
				return nil, err
			}
			synth[id] = wgsl.ExpandGaussian(id, scene.ParamFloat(params, "sigma", 8), src, w, h)

		case "BloomPass":
			src, w, h, err := blurSource(prep, res, id)
			if err != nil {
				return nil, err
			}
			synth[id] = wgsl.ExpandBloom(id,
				scene.ParamFloat(params, "threshold", 1),
				scene.ParamFloat(params, "intensity", 1),
				scene.ParamFloat(params, "sigma", 4),
				src, w, h)

		case "GradientBlurPass":
			src, w, h, err := blurSource(prep, res, id)
			if err != nil {
				return nil, err
			}
			mctx := material.NewContext()
			sigmaExpr, err := comp.CompileInput(id, "sigma", mctx)
			if err != nil {
				return nil, err
			}
			synth[id] = wgsl.ExpandGradientBlur(id,
				scene.ParamFloat(params, "maxSigma", 16),
				src, sigmaExpr, mctx, w, h)

		default:
			return nil, fmt.Errorf("forge: draw pass %q has unsupported type %q", id, n.Type)
		}
	}

	p, err := plan.Build(plan.Inputs{Prep: prep, Res: res, Bundles: bundles, Synth: synth})
	if err != nil {
		return nil, err
	}

	bindings := make(map[string][]plan.ResourceName, len(p.Passes))
	for i := range p.Passes {
		spec := &p.Passes[i]
		bindings[spec.Name] = p.TextureResources(prep, res, spec)
	}

	if err := validate.Plan(p); err != nil {
		return nil, err
	}

	return &CompileResult{Prep: prep, Res: res, Plan: p, Bindings: bindings}, nil
}

func hasCamera(params map[string]any) bool {
	_, ok := scene.ParamVec(params, "camera", 16)
	return ok
}

// blurSource resolves a blur-family node's input to the resource it
// samples and that resource's pixel size.
func blurSource(prep *scene.Prepared, res *resolve.Resolution, id string) (string, int, int, error) {
	conn := prep.Incoming(id, "input")
	if conn == nil {
		return "", 0, 0, &material.Error{Code: material.CodeMissingInput, Node: id, Port: "input",
			Msg: "blur pass has no input"}
	}
	srcID := conn.From.NodeID
	switch prep.CategoryOf(srcID) {
	case registry.CategoryPass:
		ctx, ok := res.Contexts[srcID]
		if !ok {
			return "", 0, 0, &material.Error{Code: material.CodeMissingInput, Node: id,
				Msg: fmt.Sprintf("blur input pass %q was dropped", srcID)}
		}
		return plan.ResourceFor(res, srcID), int(ctx.TargetSizePx[0]), int(ctx.TargetSizePx[1]), nil
	case registry.CategoryComposite:
		d := res.Domains[srcID]
		if c := prep.Incoming(srcID, "target"); c != nil {
			return c.From.NodeID, d.Width, d.Height, nil
		}
		return srcID, d.Width, d.Height, nil
	case registry.CategoryTexture:
		params := prep.Params[srcID]
		w := scene.ParamInt(params, "width", 512)
		h := scene.ParamInt(params, "height", 512)
		return srcID, w, h, nil
	}
	return "", 0, 0, &material.Error{Code: material.CodeTypeMismatch, Node: id,
		Msg: fmt.Sprintf("blur input %q does not own a texture", srcID)}
}
