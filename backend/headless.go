package backend

import (
	"fmt"
	"sync"

	"github.com/nodeforge/forge/plan"
)

// Headless is a GPU implementation that materializes nothing. It records
// the bound plan and frame count so the compile pipeline can run on
// machines with no device: tests, CI, and the offline compiler.
type Headless struct {
	mu       sync.Mutex
	plan     *plan.Plan
	bindings map[string][]plan.ResourceName
	time     float32
	frames   int
}

// NewHeadless returns an empty headless backend.
func NewHeadless() *Headless { return &Headless{} }

// Bind records the plan after checking referential integrity: every pass
// target and every texture binding must name a declared resource.
func (h *Headless) Bind(p *plan.Plan, bindings map[string][]plan.ResourceName) error {
	for i := range p.Passes {
		spec := &p.Passes[i]
		if _, ok := p.Resources.Textures[spec.ColorTarget]; !ok {
			return fmt.Errorf("backend: pass %q targets undeclared texture %q", spec.Name, spec.ColorTarget)
		}
		if spec.Geometry != "" {
			if _, ok := p.Resources.Buffers[spec.Geometry]; !ok {
				return fmt.Errorf("backend: pass %q draws undeclared buffer %q", spec.Name, spec.Geometry)
			}
		}
		for _, res := range bindings[spec.Name] {
			if _, ok := p.Resources.Textures[res]; !ok {
				return fmt.Errorf("backend: pass %q samples undeclared texture %q", spec.Name, res)
			}
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.plan = p
	h.bindings = bindings
	return nil
}

// SetTime records the frame clock.
func (h *Headless) SetTime(t float32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.time = t
}

// Render counts a frame.
func (h *Headless) Render() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.plan == nil {
		return fmt.Errorf("backend: no plan bound")
	}
	h.frames++
	return nil
}

// Output returns the bound plan's output texture name.
func (h *Headless) Output() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.plan == nil {
		return ""
	}
	return h.plan.Output
}

// Release drops the bound plan.
func (h *Headless) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.plan = nil
	h.bindings = nil
}

// Plan returns the currently bound plan. Test hook.
func (h *Headless) Plan() *plan.Plan {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.plan
}

// Frames returns the number of rendered frames. Test hook.
func (h *Headless) Frames() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frames
}
