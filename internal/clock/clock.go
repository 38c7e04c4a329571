// Package clock abstracts "now" so hold-period and featured-window math is
// deterministic in tests.
package clock

import (
	"time"

	"go.uber.org/fx"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

func NewSystemClock() Clock {
	return systemClock{}
}

// Module provides the wall clock.
var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)
