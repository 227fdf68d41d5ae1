// Package picking turns pointer positions into world-space rays and tests them
// against mesh geometry.
package picking

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"metal-duck/core"
	"metal-duck/scene"
)

// Ray represents a ray in 3D space
type Ray struct {
	Origin    mgl32.Vec3
	Direction mgl32.Vec3
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float32) mgl32.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// HitResult stores the result of a ray intersection test
type HitResult struct {
	Hit      bool
	Distance float32
	Point    mgl32.Vec3
	Node     *scene.Node
	FaceIdx  int
}

// ToNDC maps a viewport pixel into normalized device coordinates of the canvas
// occupying bounds. Y points up in NDC.
func ToNDC(x, y float32, bounds core.Rect) mgl32.Vec2 {
	return mgl32.Vec2{
		(x-bounds.X)/bounds.Width*2 - 1,
		1 - (y-bounds.Y)/bounds.Height*2,
	}
}

// ScreenToRay builds the ray from the camera through ndc.
func ScreenToRay(ndc mgl32.Vec2, camera *scene.Camera) Ray {
	inv := camera.GetViewProjectionMatrix().Inv()
	near := mgl32.TransformCoordinate(mgl32.Vec3{ndc[0], ndc[1], -1}, inv)
	far := mgl32.TransformCoordinate(mgl32.Vec3{ndc[0], ndc[1], 1}, inv)
	return Ray{
		Origin:    near,
		Direction: far.Sub(near).Normalize(),
	}
}

// Raycast tests ray against every mesh under root and returns the closest hit.
// Sub-meshes are only narrow-phased when their world AABB is in reach.
func Raycast(ray Ray, root *scene.Node) HitResult {
	closest := HitResult{Distance: math.MaxFloat32}
	if root == nil {
		return closest
	}
	for _, node := range root.MeshNodes() {
		world := node.GetWorldMatrix()
		if node.Mesh.HasLocalAABB {
			t, ok := rayAABBIntersect(ray, node.Mesh.LocalAABB.Transform(world))
			if !ok || t > closest.Distance {
				continue
			}
		}
		if res := rayMeshIntersect(ray, node, world); res.Hit && res.Distance < closest.Distance {
			closest = res
		}
	}
	return closest
}

func rayAABBIntersect(ray Ray, box scene.AABB) (float32, bool) {
	tmin := float32(math.Inf(-1))
	tmax := float32(math.Inf(1))
	for k := 0; k < 3; k++ {
		inv := 1 / ray.Direction[k]
		t1 := (box.Min[k] - ray.Origin[k]) * inv
		t2 := (box.Max[k] - ray.Origin[k]) * inv
		tmin = max(tmin, min(t1, t2))
		tmax = min(tmax, max(t1, t2))
	}
	if tmax < 0 || tmin > tmax {
		return 0, false
	}
	return max(tmin, 0), true
}

func rayMeshIntersect(ray Ray, node *scene.Node, world mgl32.Mat4) HitResult {
	mesh := node.Mesh
	closest := HitResult{Distance: math.MaxFloat32}
	for i := 0; i < mesh.TriangleCount(); i++ {
		i0, i1, i2 := mesh.Triangle(i)
		v0 := mgl32.TransformCoordinate(mesh.Vertices[i0].Position, world)
		v1 := mgl32.TransformCoordinate(mesh.Vertices[i1].Position, world)
		v2 := mgl32.TransformCoordinate(mesh.Vertices[i2].Position, world)

		if t, hit := mollerTrumbore(ray, v0, v1, v2); hit && t < closest.Distance {
			closest = HitResult{
				Hit:      true,
				Distance: t,
				Point:    ray.At(t),
				Node:     node,
				FaceIdx:  i,
			}
		}
	}
	return closest
}

// mollerTrumbore is the Möller–Trumbore ray-triangle test. Triangles are
// two-sided.
func mollerTrumbore(ray Ray, v0, v1, v2 mgl32.Vec3) (float32, bool) {
	const epsilon = 1e-7

	edge1 := v1.Sub(v0)
	edge2 := v2.Sub(v0)
	h := ray.Direction.Cross(edge2)
	a := edge1.Dot(h)
	if a > -epsilon && a < epsilon {
		return 0, false // parallel
	}

	f := 1 / a
	s := ray.Origin.Sub(v0)
	u := f * s.Dot(h)
	if u < 0 || u > 1 {
		return 0, false
	}

	q := s.Cross(edge1)
	v := f * ray.Direction.Dot(q)
	if v < 0 || u+v > 1 {
		return 0, false
	}

	t := f * edge2.Dot(q)
	return t, t > epsilon
}
