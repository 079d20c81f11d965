package maternal

import "errors"

var (
	// ErrInvalidAction is returned for an action outside the five interventions
	ErrInvalidAction = errors.New("invalid action")
	// ErrInvalidConfiguration is returned by NewEnvironment for a bad Config
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrEpisodeTerminated is returned by Step once the step cap is reached, until the next Reset
	ErrEpisodeTerminated = errors.New("episode terminated")
	// ErrUnknownRenderMode is returned for a render mode other than human, rgb_array or none
	ErrUnknownRenderMode = errors.New("unknown render mode")
	// ErrRender is returned by Step when the renderer fails. The step itself was applied.
	ErrRender = errors.New("render failed")
)
