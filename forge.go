package forge

import (
	"errors"
	"time"

	"github.com/nodeforge/forge/backend"
	"github.com/nodeforge/forge/plan"
	"github.com/nodeforge/forge/registry"
)

// ErrQueueFull is returned by Submit when the bounded update channel is
// at capacity. The caller drops or retries; the render thread is never
// blocked by transport pressure.
var ErrQueueFull = errors.New("forge: scene update queue is full")

// Config configures an Engine. Zero values select working defaults: the
// embedded registry, a headless backend, a 16-deep update queue, and a
// monotonic frame clock.
type Config struct {
	Registry *registry.Registry
	GPU      backend.GPU

	// QueueDepth bounds the incoming scene channel.
	QueueDepth int

	// Clock supplies the Params.time value per frame. Injectable for
	// tests.
	Clock func() float32
}

// Engine owns the compile pipeline's only mutable state: the bounded
// incoming-scene channel and the last successfully bound plan. It runs
// single-threaded on the render thread; a background listener feeds the
// channel and the render thread drains at most one update per frame.
type Engine struct {
	reg     *registry.Registry
	gpu     backend.GPU
	updates chan []byte
	clock   func() float32

	last *CompileResult
}

// New creates an engine. The error is reserved for a broken embedded
// registry, which is a build defect.
func New(cfg Config) (*Engine, error) {
	reg := cfg.Registry
	if reg == nil {
		var err error
		reg, err = registry.Default()
		if err != nil {
			return nil, err
		}
	}
	gpu := cfg.GPU
	if gpu == nil {
		gpu = backend.NewHeadless()
	}
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = 16
	}
	clock := cfg.Clock
	if clock == nil {
		start := time.Now()
		clock = func() float32 { return float32(time.Since(start).Seconds()) }
	}
	return &Engine{
		reg:     reg,
		gpu:     gpu,
		updates: make(chan []byte, depth),
		clock:   clock,
	}, nil
}

// Submit places a raw scene document on the update channel without
// blocking. Safe to call from any goroutine.
func (e *Engine) Submit(raw []byte) error {
	select {
	case e.updates <- raw:
		return nil
	default:
		return ErrQueueFull
	}
}

// Step runs one frame on the render thread: drain at most one pending
// scene update, then issue the frame. A failed update is returned but
// leaves the last good plan rendering.
func (e *Engine) Step() error {
	var updateErr error
	select {
	case raw := <-e.updates:
		updateErr = e.Apply(raw)
	default:
	}

	if e.last != nil {
		if e.last.Plan.UsesTime {
			e.gpu.SetTime(e.clock())
		}
		if err := e.gpu.Render(); err != nil {
			return err
		}
	}
	return updateErr
}

// Apply compiles and binds a scene document atomically: any failure at
// any stage leaves the previous plan live. On success the old plan's
// resources are released by the backend swap.
func (e *Engine) Apply(raw []byte) error {
	result, err := Compile(raw, e.reg)
	if err != nil {
		code, subject := Classify(err)
		Logger().Warn("forge: scene update rejected", "code", code, "subject", subject, "error", err)
		return err
	}
	if err := e.gpu.Bind(result.Plan, result.Bindings); err != nil {
		Logger().Warn("forge: backend bind failed", "error", err)
		return err
	}

	prev := e.last
	e.last = result
	logSwap(prev, result)
	return nil
}

// Plan returns the last successfully bound plan, or nil before the
// first successful update.
func (e *Engine) Plan() *plan.Plan {
	if e.last == nil {
		return nil
	}
	return e.last.Plan
}

// Output returns the name of the texture the host displays.
func (e *Engine) Output() string { return e.gpu.Output() }

// Close releases the backend's resources. The update channel stays open.
func (e *Engine) Close() {
	e.gpu.Release()
}

func logSwap(prev, next *CompileResult) {
	prevPasses, prevTex := 0, 0
	if prev != nil {
		prevPasses = len(prev.Plan.Passes)
		prevTex = len(prev.Plan.Resources.Textures)
	}
	Logger().Info("forge: plan swapped",
		"passes", len(next.Plan.Passes),
		"passesDelta", len(next.Plan.Passes)-prevPasses,
		"textures", len(next.Plan.Resources.Textures),
		"texturesDelta", len(next.Plan.Resources.Textures)-prevTex,
		"output", next.Plan.Output,
		"usesTime", next.Plan.UsesTime)
}
