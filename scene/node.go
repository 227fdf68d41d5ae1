package scene

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"metal-duck/core"
)

// Node represents an object in the scene graph
type Node struct {
	Name      string
	Transform core.Transform
	Parent    *Node
	Children  []*Node
	Mesh      *Mesh
	Visible   bool
	Id        uint32

	CastShadow    bool
	ReceiveShadow bool

	// Cached world transform
	worldMatrixDirty bool
	worldMatrix      mgl32.Mat4
}

var nodeIdCounter atomic.Uint32

func NewNode(name string) *Node {
	return &Node{
		Name:             name,
		Transform:        core.NewTransform(),
		Visible:          true,
		Id:               nodeIdCounter.Add(1),
		worldMatrixDirty: true,
	}
}

func (n *Node) AddChild(child *Node) {
	if child.Parent != nil {
		child.Parent.RemoveChild(child)
	}
	child.Parent = n
	n.Children = append(n.Children, child)
	child.MarkWorldMatrixDirty()
}

// RemoveChild detaches child and reports whether it was a direct child of n.
func (n *Node) RemoveChild(child *Node) bool {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			child.Parent = nil
			child.MarkWorldMatrixDirty()
			return true
		}
	}
	return false
}

func (n *Node) GetWorldMatrix() mgl32.Mat4 {
	if n.worldMatrixDirty {
		local := n.Transform.GetMatrix()
		if n.Parent != nil {
			n.worldMatrix = n.Parent.GetWorldMatrix().Mul4(local)
		} else {
			n.worldMatrix = local
		}
		n.worldMatrixDirty = false
	}
	return n.worldMatrix
}

func (n *Node) MarkWorldMatrixDirty() {
	n.worldMatrixDirty = true
	for _, child := range n.Children {
		child.MarkWorldMatrixDirty()
	}
}

func (n *Node) SetPosition(pos mgl32.Vec3) {
	n.Transform.Position = pos
	n.MarkWorldMatrixDirty()
}

func (n *Node) SetRotation(rot mgl32.Quat) {
	n.Transform.Rotation = rot
	n.MarkWorldMatrixDirty()
}

func (n *Node) SetScale(scale mgl32.Vec3) {
	n.Transform.Scale = scale
	n.MarkWorldMatrixDirty()
}

// SetYaw replaces the rotation with a pure rotation about +Y.
func (n *Node) SetYaw(rad float32) {
	n.SetRotation(mgl32.QuatRotate(rad, mgl32.Vec3{0, 1, 0}))
}

// WorldPosition is the translation part of the world matrix.
func (n *Node) WorldPosition() mgl32.Vec3 {
	return n.GetWorldMatrix().Col(3).Vec3()
}

// Traverse visits all nodes in the graph, depth first
func (n *Node) Traverse(callback func(*Node)) {
	callback(n)
	for _, child := range n.Children {
		child.Traverse(callback)
	}
}

// Find finds a node by name
func (n *Node) Find(name string) *Node {
	if n.Name == name {
		return n
	}
	for _, child := range n.Children {
		if found := child.Find(name); found != nil {
			return found
		}
	}
	return nil
}

// MeshNodes returns every visible node under n that carries a mesh.
func (n *Node) MeshNodes() []*Node {
	var out []*Node
	n.Traverse(func(node *Node) {
		if node.Visible && node.Mesh != nil {
			out = append(out, node)
		}
	})
	return out
}
