package fusion

import (
	"log/slog"

	"github.com/born-ml/fusion/internal/tensor"
	"github.com/pkg/errors"
)

// Selector holds the registered kernel families of one fused program and
// picks the best one per call. Registered kernels are immutable, so a
// Selector is safe for concurrent use once registration is done.
type Selector struct {
	name    string
	kernels []FusionKernel
	logger  *slog.Logger
}

// NewSelector creates an empty selector.
func NewSelector(name string, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{name: name, logger: logger}
}

// Register adds a kernel family. On equal priority the later registration wins.
func (s *Selector) Register(kernel FusionKernel) {
	s.kernels = append(s.kernels, kernel)
}

// Len returns the number of registered families.
func (s *Selector) Len() int {
	return len(s.kernels)
}

// Priorities ranks every registered family for the call, in registration order.
// Every family is Unavailable when handles and inputs differ in length.
func (s *Selector) Priorities(handles []Handle, inputs, outputs []tensor.Description) []Priority {
	priorities := make([]Priority, len(s.kernels))
	if len(handles) != len(inputs) {
		for i := range priorities {
			priorities[i] = Unavailable()
		}
		return priorities
	}
	for i, kernel := range s.kernels {
		priorities[i] = kernel.Priority(handles, inputs, outputs)
	}
	return priorities
}

// Best returns the index and priority of the family preferred for the call,
// or -1 when none is available.
func (s *Selector) Best(handles []Handle, inputs, outputs []tensor.Description) (int, Priority) {
	best, bestPriority := -1, Unavailable()
	if len(handles) != len(inputs) {
		return best, bestPriority
	}
	for i, kernel := range s.kernels {
		priority := kernel.Priority(handles, inputs, outputs)
		if !priority.IsAvailable() {
			continue
		}
		if best < 0 || priority.Compare(bestPriority) >= 0 {
			best, bestPriority = i, priority
		}
	}
	return best, bestPriority
}

// Select ranks every family and prepares the launch of the winner.
func (s *Selector) Select(handles []Handle, inputs, outputs []tensor.Description) (SelectedKernel, error) {
	if len(handles) != len(inputs) {
		return SelectedKernel{}, errors.Errorf("%s: %d input handles for %d input descriptions",
			s.name, len(handles), len(inputs))
	}

	index, priority := s.Best(handles, inputs, outputs)
	if index < 0 {
		return SelectedKernel{}, errors.Wrapf(tensor.ErrConfiguration,
			"%s: no kernel available among %d registered", s.name, len(s.kernels))
	}

	selected, err := s.kernels[index].Kernel(handles, inputs, outputs)
	if err != nil {
		return SelectedKernel{}, err
	}

	s.logger.Debug("fusion: kernel selected",
		"program", s.name,
		"kernel", selected.Kernel.Source().ID(),
		"priority", priority.String(),
		"workgroup", selected.Kernel.WorkGroup(),
		"outputs", selected.Outputs,
	)
	return selected, nil
}
