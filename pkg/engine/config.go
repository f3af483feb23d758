package engine

import "github.com/mdsxbm/tapcanvas/pkg/api"

// Config holds configuration for the dispatcher.
type Config struct {
	// Validation limits applied to every task request.
	Validation api.ValidationConfig

	// StartProgress is the percentage announced with the running status
	// before the adapter is invoked. Zero means 5.
	StartProgress float64
}

func (c Config) startProgress() float64 {
	if c.StartProgress <= 0 {
		return 5
	}
	return c.StartProgress
}
