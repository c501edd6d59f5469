// Package corgi is the rendering core of an interactive Mandelbrot explorer.
//
// It turns a description of a view (center, zoom, iteration budget, colouring
// parameters) into a rasterised image using GPU compute, at zoom depths far
// past the dynamic range of single-precision floats. Deep zooms use
// perturbation theory: a single reference orbit is computed on the CPU in
// arbitrary precision (package probe), and every pixel's orbit is expressed
// on the GPU as a small float32 perturbation of that orbit
// (internal/gpu). Shallow zooms use a direct per-pixel float32 iteration.
//
// The root package holds the data model: Viewport and Image describe what to
// render, ImageDiff decides which pipeline stages a changed request actually
// needs, and ComputeParams/RenderParams are the uniform blocks shared with
// the WGSL kernels. Rendering itself is driven by package worker, which owns
// the GPU resources and consumes render requests from a channel.
package corgi
