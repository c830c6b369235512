package wgsl

import (
	"fmt"
	"sort"
	"strings"
)

// helperLib is the catalog of helper functions a material expression may
// demand. Each entry is a complete WGSL declaration; dependencies list
// other helpers that must be emitted first.
var helperLib = map[string]struct {
	deps []string
	src  string
}{
	"premultiply": {src: `fn premultiply(c: vec4<f32>) -> vec4<f32> {
    return vec4<f32>(c.rgb * c.a, c.a);
}`},

	"unpremultiply": {src: `fn unpremultiply(c: vec4<f32>) -> vec4<f32> {
    if (c.a == 0.0) {
        return vec4<f32>(0.0);
    }
    return vec4<f32>(c.rgb / c.a, c.a);
}`},

	"sdf_circle": {src: `fn sdf_circle(p: vec2<f32>, r: f32) -> f32 {
    return length(p) - r;
}`},

	"sdf_rect": {src: `fn sdf_rect(p: vec2<f32>, half_size: vec2<f32>) -> f32 {
    let d = abs(p) - half_size;
    return length(max(d, vec2<f32>(0.0))) + min(max(d.x, d.y), 0.0);
}`},

	"sdf_rrect": {deps: []string{"sdf_rect"}, src: `fn sdf_rrect(p: vec2<f32>, half_size: vec2<f32>, radius: f32) -> f32 {
    return sdf_rect(p, half_size - vec2<f32>(radius)) - radius;
}`},

	"blend_screen": {src: `fn blend_screen(dst: vec3<f32>, src: vec3<f32>) -> vec3<f32> {
    return dst + src - dst * src;
}`},

	"blend_multiply": {src: `fn blend_multiply(dst: vec3<f32>, src: vec3<f32>) -> vec3<f32> {
    return dst * src;
}`},

	"rgb2hsv": {src: `fn rgb2hsv(c: vec3<f32>) -> vec3<f32> {
    let k = vec4<f32>(0.0, -1.0 / 3.0, 2.0 / 3.0, -1.0);
    let p = mix(vec4<f32>(c.bg, k.wz), vec4<f32>(c.gb, k.xy), step(c.b, c.g));
    let q = mix(vec4<f32>(p.xyw, c.r), vec4<f32>(c.r, p.yzx), step(p.x, c.r));
    let d = q.x - min(q.w, q.y);
    let e = 1.0e-10;
    return vec3<f32>(abs(q.z + (q.w - q.y) / (6.0 * d + e)), d / (q.x + e), q.x);
}`},

	"hsv2rgb": {src: `fn hsv2rgb(c: vec3<f32>) -> vec3<f32> {
    let k = vec4<f32>(1.0, 2.0 / 3.0, 1.0 / 3.0, 3.0);
    let p = abs(fract(c.xxx + k.xyz) * 6.0 - k.www);
    return c.z * mix(k.xxx, clamp(p - k.xxx, vec3<f32>(0.0), vec3<f32>(1.0)), c.y);
}`},

	"cubic_weights": {src: `fn cubic_weights(t: f32) -> vec4<f32> {
    let t2 = t * t;
    let t3 = t2 * t;
    let w0 = -t3 + 3.0 * t2 - 3.0 * t + 1.0;
    let w1 = 3.0 * t3 - 6.0 * t2 + 4.0;
    let w2 = -3.0 * t3 + 3.0 * t2 + 3.0 * t + 1.0;
    let w3 = t3;
    return vec4<f32>(w0, w1, w2, w3) / 6.0;
}`},
}

// HelperNames returns all known helper names, sorted. Exposed for tests.
func HelperNames() []string {
	names := make([]string, 0, len(helperLib))
	for n := range helperLib {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// emitHelpers expands the requested helper set, dependencies first, into
// one declaration block. Unknown names are an error: a compiler bug, not
// a scene defect.
func emitHelpers(names []string) (string, error) {
	var out []string
	emitted := map[string]bool{}
	var emit func(name string) error
	emit = func(name string) error {
		if emitted[name] {
			return nil
		}
		h, ok := helperLib[name]
		if !ok {
			return fmt.Errorf("wgsl: unknown helper %q", name)
		}
		emitted[name] = true
		for _, d := range h.deps {
			if err := emit(d); err != nil {
				return err
			}
		}
		out = append(out, h.src)
		return nil
	}
	sorted := append([]string{}, names...)
	sort.Strings(sorted)
	for _, n := range sorted {
		if err := emit(n); err != nil {
			return "", err
		}
	}
	return strings.Join(out, "\n\n"), nil
}
