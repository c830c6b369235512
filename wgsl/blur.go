package wgsl

import (
	"fmt"
	"math"
	"strings"

	"github.com/nodeforge/forge/material"
)

// SynthPass is a generator-created pass that has no node of its own in
// the scene: pyramid levels, separated blur taps, bright extraction, and
// similar expansions. The render plan folds these into the pass list.
type SynthPass struct {
	Name   string
	Bundle *Bundle

	// Source and Target are resource names. Target sizes are explicit
	// because pyramid levels shrink below the scene's texture sizes.
	Source string
	Target string
	Width  int
	Height int

	// Additive requests additive blending into an existing target.
	Additive bool
}

// gaussianKernel8 computes the 8 distinct weights and texel offsets of a
// symmetric 15-tap Gaussian. Weights are normalized so the center tap
// plus twice the wing taps sum to one; the generated fragment samples
// both wings per tap.
func gaussianKernel8(sigma float64) (offsets, weights [8]float64) {
	if sigma < 0.25 {
		sigma = 0.25
	}
	sum := 0.0
	for i := 0; i < 8; i++ {
		x := float64(i)
		offsets[i] = x
		weights[i] = math.Exp(-(x * x) / (2 * sigma * sigma))
		if i == 0 {
			sum += weights[i]
		} else {
			sum += 2 * weights[i]
		}
	}
	for i := range weights {
		weights[i] /= sum
	}
	return offsets, weights
}

func wgslArray8(vals [8]float64) string {
	parts := make([]string, 8)
	for i, v := range vals {
		parts[i] = material.Lit(math.Round(v*1e6) / 1e6)
	}
	return "array<f32, 8>(" + strings.Join(parts, ", ") + ")"
}

// separableBlur builds one direction of a separated Gaussian: the kernel
// is precomputed on the host and embedded as constant arrays.
func separableBlur(name, srcRes string, horizontal bool, sigma float64) *Bundle {
	offsets, weights := gaussianKernel8(sigma)
	dir := "vec2<f32>(1.0, 0.0)"
	if !horizontal {
		dir = "vec2<f32>(0.0, 1.0)"
	}

	mctx := material.NewContext()
	ref := mctx.RegisterTexture(srcRes, material.TexPass)
	bind := BindingLayout{Textures: mctx.Textures()}
	preamble := preambleFor(bind, false)

	frag := preamble + fmt.Sprintf(`
const blur_offsets = %s;
const blur_weights = %s;

@fragment
fn fs_main(in: VSOut) -> @location(0) vec4<f32> {
    let texel = %s / params.target_size;
    var acc = textureSample(%[4]s, %[5]s, in.uv) * blur_weights[0];
    for (var i = 1; i < 8; i = i + 1) {
        let off = texel * blur_offsets[i];
        acc = acc + textureSample(%[4]s, %[5]s, in.uv + off) * blur_weights[i];
        acc = acc + textureSample(%[4]s, %[5]s, in.uv - off) * blur_weights[i];
    }
    return acc;
}
`, wgslArray8(offsets), wgslArray8(weights), dir, ref.TextureVar(), ref.SamplerVar())

	blit := Blit(name, srcRes)
	return &Bundle{
		Name:        name,
		VertexSrc:   blit.VertexSrc,
		FragmentSrc: frag,
		Bindings:    bind,
		Instances:   1,
	}
}

// ExpandGaussian lowers a Gaussian blur node into its pass pyramid:
// bilinear downsamples while the residual sigma stays large, then a
// horizontal and a vertical separated tap pass. The final target carries
// the node's own resource name so downstream samplers resolve it.
func ExpandGaussian(node string, sigma float64, src string, w, h int) []SynthPass {
	var out []SynthPass
	cur := src
	cw, ch := w, h
	level := 0
	for sigma > 4 && level < 4 && cw > 8 && ch > 8 {
		cw, ch = cw/2, ch/2
		sigma /= 2
		name := fmt.Sprintf("%s.down%d", node, level)
		out = append(out, SynthPass{
			Name: name, Bundle: Blit(name, cur),
			Source: cur, Target: name, Width: cw, Height: ch,
		})
		cur = name
		level++
	}

	hName := node + ".h"
	out = append(out, SynthPass{
		Name: hName, Bundle: separableBlur(hName, cur, true, sigma),
		Source: cur, Target: hName, Width: cw, Height: ch,
	})
	vName := node + ".v"
	out = append(out, SynthPass{
		Name: vName, Bundle: separableBlur(vName, hName, false, sigma),
		Source: hName, Target: node, Width: cw, Height: ch,
	})
	return out
}

// brightExtract keeps only the energy above threshold, preserving alpha.
func brightExtract(name, srcRes string, threshold float64) *Bundle {
	mctx := material.NewContext()
	ref := mctx.RegisterTexture(srcRes, material.TexPass)
	bind := BindingLayout{Textures: mctx.Textures()}
	preamble := preambleFor(bind, false)

	frag := preamble + fmt.Sprintf(`
@fragment
fn fs_main(in: VSOut) -> @location(0) vec4<f32> {
    let c = textureSample(%s, %s, in.uv);
    let bright = max(c.rgb - vec3<f32>(%s), vec3<f32>(0.0));
    return vec4<f32>(bright, c.a);
}
`, ref.TextureVar(), ref.SamplerVar(), material.Lit(threshold))

	blit := Blit(name, srcRes)
	return &Bundle{Name: name, VertexSrc: blit.VertexSrc, FragmentSrc: frag, Bindings: bind, Instances: 1}
}

// bloomCombine adds the blurred bright field back onto the source.
func bloomCombine(name, srcRes, bloomRes string, intensity float64) *Bundle {
	mctx := material.NewContext()
	src := mctx.RegisterTexture(srcRes, material.TexPass)
	bloom := mctx.RegisterTexture(bloomRes, material.TexPass)
	bind := BindingLayout{Textures: mctx.Textures()}
	preamble := preambleFor(bind, false)

	frag := preamble + fmt.Sprintf(`
@fragment
fn fs_main(in: VSOut) -> @location(0) vec4<f32> {
    let base = textureSample(%s, %s, in.uv);
    let glow = textureSample(%s, %s, in.uv);
    return base + glow * %s;
}
`, src.TextureVar(), src.SamplerVar(), bloom.TextureVar(), bloom.SamplerVar(), material.Lit(intensity))

	blit := Blit(name, srcRes)
	return &Bundle{Name: name, VertexSrc: blit.VertexSrc, FragmentSrc: frag, Bindings: bind, Instances: 1}
}

// ExpandBloom lowers a bloom node: bright-extract, blur the bright field
// through the Gaussian pyramid, then additively recombine with the source.
func ExpandBloom(node string, threshold, intensity, sigma float64, src string, w, h int) []SynthPass {
	brightName := node + ".bright"
	out := []SynthPass{{
		Name: brightName, Bundle: brightExtract(brightName, src, threshold),
		Source: src, Target: brightName, Width: w, Height: h,
	}}
	out = append(out, ExpandGaussian(node+".blur", sigma, brightName, w, h)...)
	blurRes := node + ".blur"

	combineName := node + ".combine"
	out = append(out, SynthPass{
		Name: combineName, Bundle: bloomCombine(combineName, src, blurRes, intensity),
		Source: src, Target: node, Width: w, Height: h,
	})
	return out
}

// gradientFinal maps an evaluated sigma field to a blended pyramid level.
// Adjacent levels are mixed by the fractional level. The finer level is
// scaled by the sum of its cubic B-spline weights, which is one, so both
// levels enter the mix as single bilinear samples; no bicubic filtering
// is applied.
func gradientFinal(name string, levels []string, sigmaExpr material.TypedExpr, mctx *material.Context, maxSigma float64) *Bundle {
	refs := make([]material.TextureRef, 0, len(levels))
	for _, l := range levels {
		refs = append(refs, mctx.RegisterTexture(l, material.TexPass))
	}
	mctx.NeedHelper("cubic_weights")
	bind := BindingLayout{
		Textures:    mctx.Textures(),
		GraphInputs: mctx.GraphInputs(),
	}
	preamble := preambleFor(bind, false)
	helpers, _ := emitHelpers(mctx.Helpers())

	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("\n// --- Extra WGSL declarations ---\n")
	b.WriteString(helpers + "\n")
	for _, fn := range mctx.Functions() {
		b.WriteString("\n" + fn + "\n")
	}
	fmt.Fprintf(&b, `
@fragment
fn fs_main(in: VSOut) -> @location(0) vec4<f32> {
    let sigma = clamp(%s, 0.0, %s);
    let level = clamp(log2(max(sigma, 1.0)), 0.0, %s);
    let lo = u32(floor(level));
    let t = fract(level);
    let w = cubic_weights(t);
    var fine: vec4<f32>;
    var coarse: vec4<f32>;
`, scalarOf(sigmaExpr), material.Lit(maxSigma), material.Lit(float64(len(levels)-1)))

	// A switch over pyramid levels keeps sampling uniform per branch.
	b.WriteString("    switch lo {\n")
	for i := 0; i < len(levels); i++ {
		next := i + 1
		if next >= len(levels) {
			next = len(levels) - 1
		}
		caseKw := fmt.Sprintf("        case %du", i)
		if i == len(levels)-1 {
			caseKw = "        default"
		}
		// textureSampleLevel: the selector varies per fragment, so the
		// implicit-derivative form is not allowed here.
		fmt.Fprintf(&b, "%s: {\n            fine = textureSampleLevel(%s, %s, in.uv, 0.0);\n            coarse = textureSampleLevel(%s, %s, in.uv, 0.0);\n        }\n",
			caseKw,
			refs[i].TextureVar(), refs[i].SamplerVar(),
			refs[next].TextureVar(), refs[next].SamplerVar())
	}
	b.WriteString("    }\n")
	b.WriteString("    let sharp = fine * (w.x + w.y + w.z + w.w);\n")
	b.WriteString("    return mix(sharp, coarse, t);\n")
	b.WriteString("}\n")

	blit := Blit(name, levels[0])
	return &Bundle{
		Name:        name,
		VertexSrc:   blit.VertexSrc,
		FragmentSrc: b.String(),
		Bindings:    bind,
		UsesTime:    sigmaExpr.UsesTime,
		Instances:   1,
	}
}

func scalarOf(e material.TypedExpr) string {
	switch e.Kind {
	case material.F32:
		return e.Src
	case material.Vec2:
		return "(" + e.Src + ").x"
	case material.Vec3:
		return "(" + e.Src + ").x"
	}
	return "(" + e.Src + ").x"
}

// ExpandGradientBlur lowers a gradient blur node: a pad pass, a mip
// pyramid, and a final pass that maps the sigma field onto the pyramid.
func ExpandGradientBlur(node string, maxSigma float64, src string, sigmaExpr material.TypedExpr, mctx *material.Context, w, h int) []SynthPass {
	padName := node + ".pad"
	out := []SynthPass{{
		Name: padName, Bundle: Blit(padName, src),
		Source: src, Target: padName, Width: w, Height: h,
	}}

	levels := []string{padName}
	cw, ch := w, h
	for i := 0; i < 3 && cw > 8 && ch > 8; i++ {
		cw, ch = cw/2, ch/2
		name := fmt.Sprintf("%s.mip%d", node, i)
		out = append(out, SynthPass{
			Name: name, Bundle: Blit(name, levels[len(levels)-1]),
			Source: levels[len(levels)-1], Target: name, Width: cw, Height: ch,
		})
		levels = append(levels, name)
	}

	out = append(out, SynthPass{
		Name:   node + ".grade",
		Bundle: gradientFinal(node+".grade", levels, sigmaExpr, mctx, maxSigma),
		Source: padName, Target: node, Width: w, Height: h,
	})
	return out
}
