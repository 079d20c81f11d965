package maternal

import (
	"fmt"
	"strings"
	"time"
)

// DefaultMaxSteps is the step cap used when none is configured
const DefaultMaxSteps = 1000

// RenderMode selects how an environment is displayed by its Renderer
type RenderMode string

const (
	// RenderNone runs headless
	RenderNone RenderMode = ""
	// RenderHuman drives a live display after every step
	RenderHuman RenderMode = "human"
	// RenderRGBArray produces pixel buffers on demand
	RenderRGBArray RenderMode = "rgb_array"
)

// ParseRenderMode accepts "human", "rgb_array", and "" or "none" for headless
func ParseRenderMode(s string) (RenderMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return RenderNone, nil
	case string(RenderHuman):
		return RenderHuman, nil
	case string(RenderRGBArray):
		return RenderRGBArray, nil
	}
	return RenderNone, fmt.Errorf("%w: %q", ErrUnknownRenderMode, s)
}

// Config is fixed for the lifetime of an Environment
type Config struct {
	MaxSteps   int
	RenderMode RenderMode
}

// DefaultConfig returns a headless config with the default step cap
func DefaultConfig() Config {
	return Config{
		MaxSteps:   DefaultMaxSteps,
		RenderMode: RenderNone,
	}
}

// Validate checks the step cap and render mode
func (c Config) Validate() error {
	if c.MaxSteps <= 0 {
		return fmt.Errorf("%w: max steps must be positive, got %d", ErrInvalidConfiguration, c.MaxSteps)
	}
	if _, err := ParseRenderMode(string(c.RenderMode)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfiguration, err)
	}
	return nil
}

// Scene is the read-only snapshot handed to a Renderer
type Scene struct {
	Step       int
	MaxSteps   int
	Vitals     VitalSigns
	Severity   Severity
	LastAction Intervention
	LastReward float64
	Terminated bool
}

// Renderer displays scenes. Renderers are owned by the caller and injected
// into the environment with WithRenderer.
type Renderer interface {
	Render(*Scene) error
}

// Info is the auxiliary mapping returned by Reset and Step. Always empty.
type Info map[string]interface{}

// StepResult is everything Step returns on success
type StepResult struct {
	Observation Observation
	Reward      float64
	Terminated  bool
	Truncated   bool
	Info        Info
}

// Option configures an Environment at construction
type Option func(*Environment)

// WithSeed seeds the environment's random source
func WithSeed(seed uint64) Option {
	return func(e *Environment) {
		e.sampler.Seed(seed)
	}
}

// WithRenderer injects the renderer used by Render
func WithRenderer(r Renderer) Option {
	return func(e *Environment) {
		e.renderer = r
	}
}

// Environment simulates maternal vital signs over a bounded episode.
// An Environment is not safe for concurrent use.
type Environment struct {
	config   Config
	sampler  *Sampler
	renderer Renderer

	vitals      VitalSigns
	currentStep int
	lastAction  Intervention
	lastReward  float64
}

// NewEnvironment validates config and samples an initial state
func NewEnvironment(config Config, opts ...Option) (*Environment, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	mode, _ := ParseRenderMode(string(config.RenderMode))
	config.RenderMode = mode

	e := &Environment{
		config:  config,
		sampler: NewSampler(uint64(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.vitals = e.sampler.Sample()
	return e, nil
}

// Reset starts a new episode with freshly sampled vitals
func (e *Environment) Reset() (Observation, Info) {
	e.vitals = e.sampler.Sample()
	e.currentStep = 0
	e.lastAction = Monitor
	e.lastReward = 0
	return e.vitals.Observation(), Info{}
}

// ResetWithSeed reseeds the random source before resetting
func (e *Environment) ResetWithSeed(seed uint64) (Observation, Info) {
	e.sampler.Seed(seed)
	return e.Reset()
}

// Step applies action to the current vitals and resamples them.
// The reward is scored against the vitals before resampling; the returned
// observation is the new state. The new state depends on neither the action
// nor the previous state.
func (e *Environment) Step(action Intervention) (StepResult, error) {
	if !action.Valid() {
		return StepResult{}, fmt.Errorf("%w: %d is not in [0, %d)", ErrInvalidAction, int(action), NumInterventions)
	}
	if e.Terminated() {
		return StepResult{}, fmt.Errorf("%w: step %d of %d, reset required", ErrEpisodeTerminated, e.currentStep, e.config.MaxSteps)
	}
	reward, err := Reward(e.vitals, action)
	if err != nil {
		return StepResult{}, err
	}

	e.lastAction = action
	e.lastReward = reward
	e.currentStep += 1
	e.vitals = e.sampler.Sample()

	result := StepResult{
		Observation: e.vitals.Observation(),
		Reward:      reward,
		Terminated:  e.Terminated(),
		Truncated:   false,
		Info:        Info{},
	}
	if e.config.RenderMode == RenderHuman {
		if err := e.Render(); err != nil {
			return result, fmt.Errorf("%w: %w", ErrRender, err)
		}
	}
	return result, nil
}

// Render passes the current scene to the injected renderer.
// It is a no-op when headless or when no renderer was injected.
func (e *Environment) Render() error {
	if e.renderer == nil || e.config.RenderMode == RenderNone {
		return nil
	}
	return e.renderer.Render(e.Scene())
}

// Scene returns a snapshot of the episode for rendering
func (e *Environment) Scene() *Scene {
	return &Scene{
		Step:       e.currentStep,
		MaxSteps:   e.config.MaxSteps,
		Vitals:     e.vitals,
		Severity:   e.vitals.Severity(),
		LastAction: e.lastAction,
		LastReward: e.lastReward,
		Terminated: e.Terminated(),
	}
}

// Terminated is true once the step cap is reached
func (e *Environment) Terminated() bool {
	return e.currentStep >= e.config.MaxSteps
}

// Observation returns the current observation
func (e *Environment) Observation() Observation {
	return e.vitals.Observation()
}

// Vitals returns a copy of the current state
func (e *Environment) Vitals() VitalSigns {
	return e.vitals
}

func (e *Environment) CurrentStep() int {
	return e.currentStep
}

func (e *Environment) MaxSteps() int {
	return e.config.MaxSteps
}

func (e *Environment) LastAction() Intervention {
	return e.lastAction
}

func (e *Environment) Config() Config {
	return e.config
}
