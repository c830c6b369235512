// Package resolve classifies prepared scene nodes into draw roles and
// infers, for every draw pass, the geometry placement and target
// coordinate domain it renders with.
package resolve

import (
	"fmt"
	"sort"

	"github.com/nodeforge/forge/registry"
	"github.com/nodeforge/forge/scene"
)

// Role classifies a node's contribution to the pass graph.
type Role int

const (
	// RoleOther covers value-only nodes: shader values, math, geometry,
	// textures, closures.
	RoleOther Role = iota

	// RoleDrawPass marks nodes that consume a geometry and write pixels
	// to a color target.
	RoleDrawPass

	// RoleCompositionRoute marks nodes that route pass outputs without
	// producing pixels of their own: composites and render targets.
	RoleCompositionRoute
)

func (r Role) String() string {
	switch r {
	case RoleDrawPass:
		return "DrawPass"
	case RoleCompositionRoute:
		return "CompositionRoute"
	}
	return "Other"
}

// DrawContext is the resolved geometry placement for one draw pass.
type DrawContext struct {
	// Geometry is the node id of the geometry feeding the pass, or ""
	// for the synthesized full-screen quad.
	Geometry string

	// Fullscreen is set when the pass draws the full-target quad.
	Fullscreen bool

	// TargetSizePx is the pixel size of the pass's color target.
	TargetSizePx [2]float64

	// GeoSizePx is the pixel size of the geometry being drawn.
	GeoSizePx [2]float64

	// CenterPx is the geometry center in target pixels, bottom-left
	// origin.
	CenterPx [2]float64

	GeoTranslate [2]float64
	GeoScale     [2]float64

	// Instances is the instance count for instanced rectangle draws.
	Instances int
}

// Domain is the coordinate domain of a composite target: bottom-left
// origin, pixel-centered fragment coordinates, and the pixel size of its
// RenderTexture.
type Domain struct {
	Width  int
	Height int
}

// Resolution is the output of Resolve.
type Resolution struct {
	Roles map[string]Role

	// Contexts maps every retained draw pass to its draw context.
	Contexts map[string]DrawContext

	// Domains maps every composite to its target coordinate domain.
	Domains map[string]Domain

	// CompositeOf maps a draw pass to the composite that routes it, when
	// one does.
	CompositeOf map[string]string

	// TargetTexture maps a draw pass to its explicit RenderTexture node
	// id, or "" when the pass renders into a plan-allocated texture.
	TargetTexture map[string]string

	// DrawOrder lists retained draw passes in scene topological order.
	DrawOrder []string

	// Dropped lists draw passes removed because nothing samples or
	// composites their output.
	Dropped []string
}

// Resolve computes roles, draw contexts, and composite domains for a
// prepared scene.
func Resolve(p *scene.Prepared) (*Resolution, error) {
	if p == nil {
		return nil, fmt.Errorf("resolve: nil prepared scene")
	}
	r := &Resolution{
		Roles:         make(map[string]Role),
		Contexts:      make(map[string]DrawContext),
		Domains:       make(map[string]Domain),
		CompositeOf:   make(map[string]string),
		TargetTexture: make(map[string]string),
	}

	for _, id := range p.Order {
		switch p.CategoryOf(id) {
		case registry.CategoryPass:
			r.Roles[id] = RoleDrawPass
		case registry.CategoryComposite, registry.CategoryRenderTarget:
			r.Roles[id] = RoleCompositionRoute
		default:
			r.Roles[id] = RoleOther
		}
	}

	r.resolveDomains(p)
	r.resolveRouting(p)
	retained := r.shakeUnsampled(p)

	for _, id := range p.Order {
		if r.Roles[id] != RoleDrawPass || !retained[id] {
			continue
		}
		r.Contexts[id] = r.resolveContext(p, id)
		r.DrawOrder = append(r.DrawOrder, id)
	}
	return r, nil
}

// resolveDomains computes each composite's target coordinate domain from
// its RenderTexture, falling back to the render target's size when the
// composite target was synthesized without explicit dimensions.
func (r *Resolution) resolveDomains(p *scene.Prepared) {
	sw := scene.ParamInt(p.Params[p.Target], "width", 1280)
	sh := scene.ParamInt(p.Params[p.Target], "height", 720)
	for _, id := range p.Order {
		if p.CategoryOf(id) != registry.CategoryComposite {
			continue
		}
		d := Domain{Width: sw, Height: sh}
		if c := p.Incoming(id, "target"); c != nil {
			tex := p.Params[c.From.NodeID]
			d.Width = scene.ParamInt(tex, "width", sw)
			d.Height = scene.ParamInt(tex, "height", sh)
		}
		r.Domains[id] = d
	}
}

// resolveRouting follows each draw pass's output downstream to the
// composite (or render target) that routes it and records any explicit
// RenderTexture target.
func (r *Resolution) resolveRouting(p *scene.Prepared) {
	for _, id := range p.Order {
		if r.Roles[id] != RoleDrawPass {
			continue
		}
		if c := p.Incoming(id, "target"); c != nil {
			r.TargetTexture[id] = c.From.NodeID
		}
		if comp, ok := findComposite(p, id, map[string]bool{}); ok {
			r.CompositeOf[id] = comp
		}
	}
}

func findComposite(p *scene.Prepared, id string, seen map[string]bool) (string, bool) {
	if seen[id] {
		return "", false
	}
	seen[id] = true
	for _, c := range p.Outgoing(id) {
		to := c.To.NodeID
		switch p.CategoryOf(to) {
		case registry.CategoryComposite:
			return to, true
		case registry.CategoryPass, registry.CategoryShaderValue:
			if comp, ok := findComposite(p, to, seen); ok {
				return comp, true
			}
		}
	}
	return "", false
}

// shakeUnsampled drops draw passes whose output is never sampled by a later
// pass nor composited toward the render target, then iterates until no
// more passes fall out.
func (r *Resolution) shakeUnsampled(p *scene.Prepared) map[string]bool {
	retained := make(map[string]bool)
	for _, id := range p.Order {
		retained[id] = true
	}
	for changed := true; changed; {
		changed = false
		for _, id := range p.Order {
			if r.Roles[id] != RoleDrawPass || !retained[id] {
				continue
			}
			if !passIsUsed(p, retained, id) {
				retained[id] = false
				r.Dropped = append(r.Dropped, id)
				changed = true
			}
		}
	}
	sort.Strings(r.Dropped)
	return retained
}

// passIsUsed reports whether any retained consumer reads the pass output.
func passIsUsed(p *scene.Prepared, retained map[string]bool, id string) bool {
	for _, c := range p.Outgoing(id) {
		if !retained[c.To.NodeID] {
			continue
		}
		switch p.CategoryOf(c.To.NodeID) {
		case registry.CategoryComposite, registry.CategoryRenderTarget,
			registry.CategoryPass, registry.CategoryShaderValue, registry.CategoryMath,
			registry.CategoryClosure:
			return true
		}
	}
	return false
}

// resolveContext infers the draw context for one pass. Resolution order,
// first match wins:
//
//  1. explicit geometry transform parameters on the pass itself
//  2. the routing composite's target domain
//  3. an upstream Rect2DGeometry (or mesh asset) in pixel space
//  4. a full-screen quad at target resolution
func (r *Resolution) resolveContext(p *scene.Prepared, id string) DrawContext {
	ctx := DrawContext{
		GeoScale:  [2]float64{1, 1},
		Instances: 1,
	}

	// Target size: explicit RenderTexture, else routing composite's
	// domain, else the render target itself.
	switch {
	case r.TargetTexture[id] != "":
		tex := p.Params[r.TargetTexture[id]]
		ctx.TargetSizePx = [2]float64{
			scene.ParamFloat(tex, "width", 1024),
			scene.ParamFloat(tex, "height", 1024),
		}
	case r.CompositeOf[id] != "":
		d := r.Domains[r.CompositeOf[id]]
		ctx.TargetSizePx = [2]float64{float64(d.Width), float64(d.Height)}
	default:
		tp := p.Params[p.Target]
		ctx.TargetSizePx = [2]float64{
			scene.ParamFloat(tp, "width", 1280),
			scene.ParamFloat(tp, "height", 720),
		}
	}

	node := p.NodeByID(id)
	params := p.Params[id]

	explicitTransform := false
	if node != nil {
		_, hasT := node.Params["geoTranslate"]
		_, hasS := node.Params["geoScale"]
		explicitTransform = hasT || hasS
	}
	if explicitTransform {
		ctx.GeoTranslate = vec2(scene.ParamVecOr(params, "geoTranslate", []float64{0, 0}))
		ctx.GeoScale = vec2(scene.ParamVecOr(params, "geoScale", []float64{1, 1}))
	}

	if c := p.Incoming(id, "geometry"); c != nil {
		geo := c.From.NodeID
		gp := p.Params[geo]
		ctx.Geometry = geo
		ctx.GeoSizePx = [2]float64{
			scene.ParamFloat(gp, "width", ctx.TargetSizePx[0]),
			scene.ParamFloat(gp, "height", ctx.TargetSizePx[1]),
		}
		pos := vec2(scene.ParamVecOr(gp, "position", []float64{0, 0}))
		ctx.CenterPx = [2]float64{
			pos[0] + ctx.GeoSizePx[0]/2,
			pos[1] + ctx.GeoSizePx[1]/2,
		}
		ctx.Instances = scene.ParamInt(gp, "count", 1)
		if ctx.Instances < 1 {
			ctx.Instances = 1
		}
		return ctx
	}

	// No geometry input: full-screen quad at target resolution.
	ctx.Fullscreen = true
	ctx.GeoSizePx = ctx.TargetSizePx
	ctx.CenterPx = [2]float64{ctx.TargetSizePx[0] / 2, ctx.TargetSizePx[1] / 2}
	return ctx
}

func vec2(v []float64) [2]float64 {
	out := [2]float64{}
	if len(v) > 0 {
		out[0] = v[0]
	}
	if len(v) > 1 {
		out[1] = v[1]
	}
	return out
}
