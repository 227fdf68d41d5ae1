package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"metal-duck/core"
)

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// Transform returns the AABB enclosing the eight corners of b under m.
func (b AABB) Transform(m mgl32.Mat4) AABB {
	inf := float32(math.Inf(1))
	out := AABB{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
	for i := 0; i < 8; i++ {
		c := mgl32.Vec3{b.Min[0], b.Min[1], b.Min[2]}
		if i&1 != 0 {
			c[0] = b.Max[0]
		}
		if i&2 != 0 {
			c[1] = b.Max[1]
		}
		if i&4 != 0 {
			c[2] = b.Max[2]
		}
		w := mgl32.TransformCoordinate(c, m)
		for k := 0; k < 3; k++ {
			out.Min[k] = min(out.Min[k], w[k])
			out.Max[k] = max(out.Max[k], w[k])
		}
	}
	return out
}

func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Mesh holds CPU-side vertex/index data.
// GPU upload is managed by the renderer backend.
type Mesh struct {
	Name     string
	Vertices []core.Vertex
	Indices  []uint32

	// Cached local-space AABB (computed by CreateMeshFromData).
	LocalAABB    AABB
	HasLocalAABB bool

	// Material holds surface shading properties. If nil, DefaultMaterial() is used.
	Material *Material

	// GPUData is set by the renderer backend.
	GPUData any
}

// CreateMeshFromData builds a Mesh and pre-computes its local-space AABB.
func CreateMeshFromData(name string, vertices []core.Vertex, indices []uint32) *Mesh {
	m := &Mesh{
		Name:     name,
		Vertices: vertices,
		Indices:  indices,
	}
	if len(vertices) > 0 {
		m.LocalAABB = computeLocalAABB(vertices)
		m.HasLocalAABB = true
	}
	return m
}

// IndexCount is the number of indices drawn; non-indexed meshes draw every vertex.
func (m *Mesh) IndexCount() int {
	if len(m.Indices) > 0 {
		return len(m.Indices)
	}
	return len(m.Vertices)
}

// Triangle returns the vertex indices of triangle i.
func (m *Mesh) Triangle(i int) (uint32, uint32, uint32) {
	if len(m.Indices) > 0 {
		return m.Indices[3*i], m.Indices[3*i+1], m.Indices[3*i+2]
	}
	b := uint32(3 * i)
	return b, b + 1, b + 2
}

func (m *Mesh) TriangleCount() int {
	return m.IndexCount() / 3
}

func computeLocalAABB(vertices []core.Vertex) AABB {
	lo := vertices[0].Position
	hi := vertices[0].Position
	for _, v := range vertices[1:] {
		p := v.Position
		for k := 0; k < 3; k++ {
			lo[k] = min(lo[k], p[k])
			hi[k] = max(hi[k], p[k])
		}
	}
	return AABB{Min: lo, Max: hi}
}

// CreateCube builds an axis-aligned cube of edge length size centred on the origin.
func CreateCube(size float32, color core.Color) *Mesh {
	s := size / 2
	faces := []struct {
		normal  mgl32.Vec3
		corners [4]mgl32.Vec3
	}{
		{mgl32.Vec3{0, 0, 1}, [4]mgl32.Vec3{{-s, -s, s}, {s, -s, s}, {s, s, s}, {-s, s, s}}},
		{mgl32.Vec3{0, 0, -1}, [4]mgl32.Vec3{{s, -s, -s}, {-s, -s, -s}, {-s, s, -s}, {s, s, -s}}},
		{mgl32.Vec3{0, 1, 0}, [4]mgl32.Vec3{{-s, s, s}, {s, s, s}, {s, s, -s}, {-s, s, -s}}},
		{mgl32.Vec3{0, -1, 0}, [4]mgl32.Vec3{{-s, -s, -s}, {s, -s, -s}, {s, -s, s}, {-s, -s, s}}},
		{mgl32.Vec3{1, 0, 0}, [4]mgl32.Vec3{{s, -s, s}, {s, -s, -s}, {s, s, -s}, {s, s, s}}},
		{mgl32.Vec3{-1, 0, 0}, [4]mgl32.Vec3{{-s, -s, -s}, {-s, -s, s}, {-s, s, s}, {-s, s, -s}}},
	}
	uvs := [4]mgl32.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

	vertices := make([]core.Vertex, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(vertices))
		for i, c := range f.corners {
			vertices = append(vertices, core.Vertex{Position: c, Normal: f.normal, UV: uvs[i], Color: color})
		}
		indices = append(indices, base, base+1, base+2, base+2, base+3, base)
	}

	m := CreateMeshFromData("Cube", vertices, indices)
	m.Material = &Material{Name: "cube", Albedo: color, Roughness: 1}
	return m
}
