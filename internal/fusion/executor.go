package fusion

import (
	"context"
	"log/slog"

	"github.com/born-ml/fusion/internal/compute"
	"github.com/born-ml/fusion/internal/jit"
	"github.com/born-ml/fusion/internal/tensor"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Executor runs a fused program on one client: it selects the kernel,
// allocates or reuses output buffers and launches.
// It keeps no per-call state and is safe for concurrent use.
type Executor struct {
	client   compute.Client
	selector *Selector
	logger   *slog.Logger
}

// NewExecutor binds selector to client.
func NewExecutor(client compute.Client, selector *Selector, cfg Config) *Executor {
	return &Executor{client: client, selector: selector, logger: cfg.logger()}
}

// Execute launches the program over inputs and returns one tensor per output description.
//
// Execute consumes inputs: their references are released whether or not the
// call succeeds. Clone an input first to keep using it; a cloned input is
// shared and will not be overwritten in place.
func (e *Executor) Execute(inputs []*jit.Tensor, outputs []tensor.Description) ([]*jit.Tensor, error) {
	defer func() {
		for _, in := range inputs {
			in.Release()
		}
	}()

	handles := make([]Handle, len(inputs))
	descriptions := make([]tensor.Description, len(inputs))
	bindings := make([]compute.Binding, 0, len(inputs)+len(outputs))
	for i, in := range inputs {
		handles[i] = Handle{Handle: in.Handle(), Strides: in.Strides()}
		descriptions[i] = in.Description()
		bindings = append(bindings, in.Binding())
	}

	selected, err := e.selector.Select(handles, descriptions, outputs)
	if err != nil {
		return nil, err
	}

	results := make([]*jit.Tensor, len(outputs))
	release := func() {
		for _, r := range results {
			if r != nil {
				r.Release()
			}
		}
	}

	for pos, info := range selected.Outputs {
		out := outputs[pos]
		if info.Inplace {
			in := inputs[info.InputIndex]
			results[pos] = jit.New(e.client, out.Shape.Clone(), in.Strides().Clone(), in.Handle().Clone(), out.DType)
			continue
		}

		handle, err := e.client.Empty(info.Size)
		if err != nil {
			release()
			return nil, err
		}
		results[pos] = jit.NewContiguous(e.client, out.Shape, handle, out.DType)
		bindings = append(bindings, results[pos].Binding())
	}

	if err := e.client.Execute(selected.Kernel, bindings); err != nil {
		release()
		return nil, err
	}
	return results, nil
}

// ReadAll reads several tensors back to the host concurrently.
func ReadAll(ctx context.Context, tensors []*jit.Tensor) ([]*tensor.Data, error) {
	data := make([]*tensor.Data, len(tensors))

	g, ctx := errgroup.WithContext(ctx)
	for i, t := range tensors {
		g.Go(func() error {
			d, err := jit.IntoData(ctx, t)
			if err != nil {
				return errors.WithMessagef(err, "read output %d", i)
			}
			data[i] = d
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}
