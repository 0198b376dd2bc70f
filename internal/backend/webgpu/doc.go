// Package webgpu implements a GPU runtime for the fusion engine over
// go-webgpu (github.com/go-webgpu/webgpu): buffers live in GPU storage
// buffers and elementwise programs are compiled to WGSL compute shaders.
//
// The runtime itself is only built on Windows, where the wgpu-native
// bindings are available. Shader generation is platform independent.
package webgpu
