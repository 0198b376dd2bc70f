package fusion

import "log/slog"

// Config controls which kernel families are compiled for a program.
type Config struct {
	VectorWidths []int        // Vectorized families compiled next to the scalar one.
	Inplace      bool         // Whether in-place variants may be selected.
	Logger       *slog.Logger // Receives selection decisions at debug level.
}

// DefaultConfig returns widths matching 64- and 128-bit vector loads of float32.
func DefaultConfig() Config {
	return Config{
		VectorWidths: []int{2, 4},
		Inplace:      true,
		Logger:       slog.Default(),
	}
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
