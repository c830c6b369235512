// Package backend defines the contract between the render plan and the
// graphics API that owns the device and command queue. The compile
// pipeline never talks to the GPU directly; it hands a validated plan to
// a GPU implementation and steps it once per frame.
package backend

import "github.com/nodeforge/forge/plan"

// GPU materializes render plans. Implementations own all GPU state.
//
// Bind is atomic with respect to the previously bound plan: on error the
// prior plan's resources stay live and renderable. Render submits one
// frame in the plan's pass order; the backend must not reorder passes.
type GPU interface {
	// Bind declares the plan's resources and pipelines and prepares
	// them for rendering. bindings supplies, per pass, the
	// resource bound at each texture slot.
	Bind(p *plan.Plan, bindings map[string][]plan.ResourceName) error

	// SetTime writes the frame clock into the Params uniform of every
	// pass whose expressions read time. All other uniform contents are
	// written once at bind.
	SetTime(t float32)

	// Render submits one frame.
	Render() error

	// Output returns the name under which the final texture view is
	// exposed to the host UI runtime.
	Output() string

	// Release frees all resources of the currently bound plan.
	Release()
}
