package registry

// PortType identifies the value domain of a node port.
// The set is closed: the scene format rejects any type tag outside it.
type PortType string

const (
	TypeAny           PortType = "any"
	TypeBool          PortType = "bool"
	TypeColor         PortType = "color"
	TypeFloat         PortType = "float"
	TypeInt           PortType = "int"
	TypeMaterial      PortType = "material"
	TypePass          PortType = "pass"
	TypeRenderTexture PortType = "renderTexture"
	TypeShader        PortType = "shader"
	TypeTexture       PortType = "texture"
	TypeVector2       PortType = "vector2"
	TypeVector3       PortType = "vector3"
	TypeVector4       PortType = "vector4"
	TypeGeometry      PortType = "geometry"
)

var portTypes = map[PortType]bool{
	TypeAny: true, TypeBool: true, TypeColor: true, TypeFloat: true,
	TypeInt: true, TypeMaterial: true, TypePass: true, TypeRenderTexture: true,
	TypeShader: true, TypeTexture: true, TypeVector2: true, TypeVector3: true,
	TypeVector4: true, TypeGeometry: true,
}

// ValidPortType reports whether t is a member of the closed port-type enum.
func ValidPortType(t PortType) bool {
	return portTypes[t]
}

// IsShaderValue reports whether t is a raw shader value: a type that can be
// lowered directly to a WGSL expression (colors, scalars, vectors, booleans,
// and the generic shader type itself).
func IsShaderValue(t PortType) bool {
	switch t {
	case TypeBool, TypeColor, TypeFloat, TypeInt, TypeShader,
		TypeVector2, TypeVector3, TypeVector4:
		return true
	}
	return false
}

// IsScalar reports whether t is a single-component numeric type.
func IsScalar(t PortType) bool {
	return t == TypeFloat || t == TypeInt || t == TypeBool
}

// IsVector reports whether t is a multi-component numeric type.
// Colors count: a color is a vec4 on the wire and in shaders.
func IsVector(t PortType) bool {
	switch t {
	case TypeVector2, TypeVector3, TypeVector4, TypeColor:
		return true
	}
	return false
}

// Compatible reports whether a value of type src may flow into an input of
// type dst. The rules, in order:
//
//   - any matches everything, on either side
//   - identical types match
//   - float and int widen into each other
//   - a scalar widens into any vector slot via splat
//   - the generic shader type accepts any shader value, and vice versa
//   - a material input accepts raw shader values (the material expression
//     tree is built from them directly)
//   - a pass input accepts raw shader values; scene prep bridges the edge
//     with a synthesized full-screen pass
//   - a texture input accepts renderTexture and pass sources (sampling the
//     pass output texture)
func Compatible(src, dst PortType) bool {
	if src == TypeAny || dst == TypeAny {
		return true
	}
	if src == dst {
		return true
	}
	if IsScalar(src) && IsScalar(dst) {
		return true
	}
	if IsScalar(src) && IsVector(dst) {
		return true
	}
	if src == TypeColor && dst == TypeVector4 || src == TypeVector4 && dst == TypeColor {
		return true
	}
	if dst == TypeShader && IsShaderValue(src) {
		return true
	}
	if src == TypeShader && IsShaderValue(dst) {
		return true
	}
	if dst == TypeMaterial && IsShaderValue(src) {
		return true
	}
	if dst == TypePass && IsShaderValue(src) {
		return true
	}
	if dst == TypeTexture && (src == TypeRenderTexture || src == TypePass) {
		return true
	}
	// Samplable sources flow into material expression slots: the compiler
	// lowers them to a textureSample of the source's output texture.
	if (dst == TypeMaterial || dst == TypeShader) &&
		(src == TypeTexture || src == TypeRenderTexture || src == TypePass) {
		return true
	}
	return false
}

// NeedsFullscreenWrap reports whether an edge src → dst requires scene prep
// to synthesize a bridging full-screen pass: a raw shader value flowing into
// a pass-typed slot cannot be consumed directly and must be rendered first.
func NeedsFullscreenWrap(src, dst PortType) bool {
	return dst == TypePass && IsShaderValue(src)
}
