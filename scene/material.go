package scene

import "metal-duck/core"

// Material describes surface appearance for a mesh.
type Material struct {
	Name      string
	Albedo    core.Color
	Roughness float32
	Metallic  float32
}

// DefaultMaterial returns a plain white matte material.
func DefaultMaterial() *Material {
	return &Material{
		Name:      "default",
		Albedo:    core.ColorWhite,
		Roughness: 1,
	}
}
