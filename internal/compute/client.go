// Package compute defines the contract between the fusion engine and a device
// runtime: reference-counted buffer handles, the client that allocates, reads
// and launches, and kernel launch geometry.
package compute

import (
	"context"

	"github.com/born-ml/fusion/internal/tensor"
)

// Binding is one buffer argument of a launch together with the layout the
// kernel must use to address it.
type Binding struct {
	Handle  *Handle
	Shape   tensor.Shape
	Strides tensor.Strides
	DType   tensor.DataType
}

// Client is the device collaborator: it owns the buffer pool, moves bytes
// between host and device and launches kernels. Implementations are safe for
// concurrent use.
type Client interface {
	// Device returns the device this client drives.
	Device() tensor.Device

	// Create allocates a buffer initialised with data.
	Create(data []byte) (*Handle, error)

	// Empty allocates an uninitialised buffer of size bytes.
	Empty(size int) (*Handle, error)

	// Read blocks until pending work on the buffer is done and returns its bytes.
	Read(handle *Handle) ([]byte, error)

	// ReadAsync is Read that gives up when ctx is done.
	ReadAsync(ctx context.Context, handle *Handle) ([]byte, error)

	// Execute launches kernel with bindings ordered inputs first, then outputs.
	Execute(kernel Kernel, bindings []Binding) error
}

// ReadAsync runs read in its own goroutine and waits for it or for ctx.
// Runtimes whose reads block the calling goroutine use it to implement
// Client.ReadAsync.
func ReadAsync(ctx context.Context, read func() ([]byte, error)) ([]byte, error) {
	type result struct {
		bytes []byte
		err   error
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan result, 1)
	go func() {
		bytes, err := read()
		done <- result{bytes, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.bytes, r.err
	}
}
