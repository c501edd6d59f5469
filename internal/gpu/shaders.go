package gpu

import _ "embed"

// Embedded WGSL shader sources.
// These are compiled at build time using go:embed directives.

//go:embed shaders/perturb.wgsl
var perturbShaderSource string

//go:embed shaders/direct.wgsl
var directShaderSource string

//go:embed shaders/color.wgsl
var colorShaderSource string
