package scene

// BlendMode selects how a composite layer combines with the pixels below
// it. All modes operate on premultiplied alpha.
type BlendMode string

const (
	BlendNormal   BlendMode = "normal"
	BlendAdd      BlendMode = "add"
	BlendMultiply BlendMode = "multiply"
	BlendScreen   BlendMode = "screen"
)

// ParseBlendMode maps a parameter value to a BlendMode, defaulting to
// premultiplied normal for anything unrecognized.
func ParseBlendMode(v any) BlendMode {
	s, _ := v.(string)
	switch BlendMode(s) {
	case BlendAdd, BlendMultiply, BlendScreen:
		return BlendMode(s)
	}
	return BlendNormal
}
