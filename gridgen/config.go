package gridgen

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/royalcat/dfcigrid/dfci"
	"github.com/royalcat/dfcigrid/projection"
)

type Config struct {
	// ResolutionThresholds separates the levels: a resolution above
	// ResolutionThresholds[0] selects level 0, above [1] level 1, above [2]
	// level 2, anything else level 3.
	ResolutionThresholds [3]float64
	// NativeBound limits the enumerated cells, in NativeCRS units.
	NativeBound orb.Bound
	NativeCRS   string
}

func ConfigDefault() Config {
	return Config{
		ResolutionThresholds: [3]float64{1000, 100, 20},
		NativeBound: orb.Bound{
			Min: orb.Point{0, 1_600_000},
			Max: orb.Point{1_100_000, 2_600_000},
		},
		NativeCRS: projection.NativeCRS,
	}
}

var ErrInvalidConfig = errors.New("invalid generator config")

func (c Config) validate() error {
	t := c.ResolutionThresholds
	if !(t[2] > 0 && t[1] > t[2] && t[0] > t[1]) {
		return fmt.Errorf("%w: thresholds %v must be positive and decreasing", ErrInvalidConfig, t)
	}
	if c.NativeBound.Max[0] <= c.NativeBound.Min[0] || c.NativeBound.Max[1] <= c.NativeBound.Min[1] {
		return fmt.Errorf("%w: empty native bound", ErrInvalidConfig)
	}
	if c.NativeCRS == "" {
		return fmt.Errorf("%w: native crs is not set", ErrInvalidConfig)
	}
	return nil
}

// ResolutionForLevel returns a resolution that selects level.
func (c Config) ResolutionForLevel(level dfci.Level) float64 {
	t := c.ResolutionThresholds
	switch level {
	case dfci.Level0:
		return t[0] * 2
	case dfci.Level1:
		return (t[0] + t[1]) / 2
	case dfci.Level2:
		return (t[1] + t[2]) / 2
	default:
		return t[2] / 2
	}
}

type options struct {
	logger *slog.Logger
}

func loadOptions(opts ...Option) options {
	options := options{
		logger: slog.Default(),
	}
	for _, o := range opts {
		o.apply(&options)
	}
	return options
}

type Option interface {
	apply(*options)
}

type loggerOption struct {
	logger *slog.Logger
}

func (l loggerOption) apply(o *options) {
	o.logger = l.logger
}

// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return loggerOption{logger: logger}
}
