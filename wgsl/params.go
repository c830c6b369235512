// Package wgsl assembles complete vertex and fragment shader sources for
// draw passes: the shared Params uniform, the VSOut varying block, the
// standard pixel-space vertex transform, compiled material expressions,
// and any helper declarations the expressions demand.
package wgsl

import "strings"

// ParamsData mirrors the Params uniform struct in the generated WGSL.
// Field order and the 16-byte alignment boundaries are a binary contract:
// reordering fields changes every compiled shader.
type ParamsData struct {
	TargetSize   [2]float32
	GeoSize      [2]float32
	Center       [2]float32
	GeoTranslate [2]float32
	GeoScale     [2]float32
	Time         float32
	Pad          float32
	Color        [4]float32
}

// ParamsCameraData is ParamsData with a trailing column-major camera
// matrix, used by passes that carry a camera transform.
type ParamsCameraData struct {
	ParamsData
	Camera [16]float32
}

// paramsStruct emits the WGSL declaration matching ParamsData. The
// camera variant appends a mat4x4 after the color field.
func paramsStruct(camera bool) string {
	var b strings.Builder
	b.WriteString("struct Params {\n")
	b.WriteString("    target_size: vec2<f32>,\n")
	b.WriteString("    geo_size: vec2<f32>,\n")
	b.WriteString("    center: vec2<f32>,\n")
	b.WriteString("    geo_translate: vec2<f32>,\n")
	b.WriteString("    geo_scale: vec2<f32>,\n")
	b.WriteString("    time: f32,\n")
	b.WriteString("    _pad: f32,\n")
	b.WriteString("    color: vec4<f32>,\n")
	if camera {
		b.WriteString("    camera: mat4x4<f32>,\n")
	}
	b.WriteString("};\n")
	return b.String()
}

// vsOutStruct emits the varying block carried from vertex to fragment
// stage. localPx3 selects a depth-carrying vec3 local coordinate for
// camera passes.
func vsOutStruct(localPx3 bool) string {
	local := "vec2<f32>"
	if localPx3 {
		local = "vec3<f32>"
	}
	var b strings.Builder
	b.WriteString("struct VSOut {\n")
	b.WriteString("    @builtin(position) position: vec4<f32>,\n")
	b.WriteString("    @location(0) uv: vec2<f32>,\n")
	b.WriteString("    @location(1) frag_coord_gl: vec2<f32>,\n")
	b.WriteString("    @location(2) local_px: " + local + ",\n")
	b.WriteString("    @location(3) geo_size_px: vec2<f32>,\n")
	b.WriteString("};\n")
	return b.String()
}
