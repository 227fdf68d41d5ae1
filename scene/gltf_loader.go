package scene

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"metal-duck/core"
	"metal-duck/logging"
)

// Model is the scene graph and embedded clips converted from one glTF document.
type Model struct {
	Root   *Node // wraps every root of the default scene
	Clips  []*Clip
	Meshes []*Mesh
}

// LoadGLTF opens a .glb or .gltf file from disk and converts it.
func LoadGLTF(path string, logger *log.Logger) (*Model, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gltf open %q: %w", path, err)
	}
	return BuildModel(doc, logger)
}

// BuildModel converts a decoded glTF document into a scene graph. Geometry,
// base colours, the node hierarchy and TRS animation channels are populated;
// primitives that cannot be read are skipped with a warning.
func BuildModel(doc *gltf.Document, logger *log.Logger) (*Model, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	model := &Model{Root: NewNode("model")}

	// ── 1. Materials ─────────────────────────────────────────────────────────
	matCache := make([]*Material, len(doc.Materials))
	for i, gm := range doc.Materials {
		mat := DefaultMaterial()
		mat.Name = gm.Name
		if pbr := gm.PBRMetallicRoughness; pbr != nil {
			cf := pbr.BaseColorFactorOrDefault()
			mat.Albedo = core.Color{R: float32(cf[0]), G: float32(cf[1]), B: float32(cf[2]), A: float32(cf[3])}
			mat.Roughness = float32(pbr.RoughnessFactorOrDefault())
			mat.Metallic = float32(pbr.MetallicFactorOrDefault())
		}
		matCache[i] = mat
	}

	// ── 2. Mesh primitives ────────────────────────────────────────────────────
	meshPrims := make([][]*Mesh, len(doc.Meshes))
	for mi, gm := range doc.Meshes {
		for pi, prim := range gm.Primitives {
			m, err := loadGLTFPrimitive(doc, gm.Name, pi, prim)
			if err != nil {
				logger.Warn("skipping primitive", "mesh", mi, "prim", pi, "err", err)
				continue
			}
			if prim.Material != nil && *prim.Material >= 0 && *prim.Material < len(matCache) {
				m.Material = matCache[*prim.Material]
			}
			meshPrims[mi] = append(meshPrims[mi], m)
			model.Meshes = append(model.Meshes, m)
		}
	}

	// ── 3. Nodes ──────────────────────────────────────────────────────────────
	nodes := make([]*Node, len(doc.Nodes))
	for i, gn := range doc.Nodes {
		name := gn.Name
		if name == "" {
			name = fmt.Sprintf("node_%d", i)
		}
		n := NewNode(name)

		t := gn.TranslationOrDefault()
		n.SetPosition(mgl32.Vec3{float32(t[0]), float32(t[1]), float32(t[2])})
		sc := gn.ScaleOrDefault()
		n.SetScale(mgl32.Vec3{float32(sc[0]), float32(sc[1]), float32(sc[2])})
		r := gn.RotationOrDefault() // [x, y, z, w]
		n.SetRotation(mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}})

		if gn.Mesh != nil && *gn.Mesh >= 0 && *gn.Mesh < len(meshPrims) {
			prims := meshPrims[*gn.Mesh]
			switch len(prims) {
			case 0:
			case 1:
				n.Mesh = prims[0]
			default:
				// one child node per primitive
				for pi, p := range prims {
					child := NewNode(fmt.Sprintf("%s_prim%d", name, pi))
					child.Mesh = p
					n.AddChild(child)
				}
			}
		}
		nodes[i] = n
	}

	for i, gn := range doc.Nodes {
		for _, childIdx := range gn.Children {
			if childIdx < 0 || childIdx >= len(nodes) {
				continue
			}
			if isAncestor(nodes[childIdx], nodes[i]) {
				return nil, fmt.Errorf("gltf: node %d and child %d form a cycle", i, childIdx)
			}
			nodes[i].AddChild(nodes[childIdx])
		}
	}

	// ── 4. Roots ──────────────────────────────────────────────────────────────
	var roots []int
	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
		roots = doc.Scenes[*doc.Scene].Nodes
	} else if len(doc.Scenes) > 0 {
		roots = doc.Scenes[0].Nodes
	} else {
		for i, n := range nodes {
			if n.Parent == nil {
				roots = append(roots, i)
			}
		}
	}
	for _, idx := range roots {
		if idx >= 0 && idx < len(nodes) {
			model.Root.AddChild(nodes[idx])
		}
	}
	if len(model.Root.Children) == 0 {
		return nil, errors.New("gltf: document has no nodes")
	}
	if len(model.Meshes) == 0 {
		return nil, errors.New("gltf: document has no readable geometry")
	}

	// ── 5. Animations ─────────────────────────────────────────────────────────
	for ai, ga := range doc.Animations {
		name := ga.Name
		if name == "" {
			name = fmt.Sprintf("animation_%d", ai)
		}
		clip, err := loadGLTFAnimation(doc, ga, name, nodes)
		if err != nil {
			logger.Warn("skipping animation", "name", name, "err", err)
			continue
		}
		model.Clips = append(model.Clips, clip)
	}

	return model, nil
}

// isAncestor reports whether a is n or one of its parents.
func isAncestor(a, n *Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == a {
			return true
		}
	}
	return false
}

func accessor(doc *gltf.Document, idx int) (*gltf.Accessor, error) {
	if idx < 0 || idx >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range (%d accessors)", idx, len(doc.Accessors))
	}
	return doc.Accessors[idx], nil
}

// loadGLTFPrimitive converts one glTF mesh primitive into a scene.Mesh.
func loadGLTFPrimitive(doc *gltf.Document, meshName string, primIdx int, prim *gltf.Primitive) (*Mesh, error) {
	name := fmt.Sprintf("%s_p%d", meshName, primIdx)
	if meshName == "" {
		name = fmt.Sprintf("prim_%d", primIdx)
	}
	if prim.Mode != gltf.PrimitiveTriangles {
		return nil, fmt.Errorf("unsupported primitive mode %d", prim.Mode)
	}

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		// compressed primitives carry no plain POSITION accessor
		return nil, errors.New("no POSITION attribute")
	}
	posAcc, err := accessor(doc, posIdx)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	positions, err := modeler.ReadPosition(doc, posAcc, nil)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	if len(positions) == 0 {
		return nil, errors.New("positions: no vertices")
	}

	var normals [][3]float32
	var uvs [][2]float32
	// unreadable normals or uvs keep the defaults below
	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		if acc, err := accessor(doc, idx); err == nil {
			normals, _ = modeler.ReadNormal(doc, acc, nil)
		}
	}
	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		if acc, err := accessor(doc, idx); err == nil {
			uvs, _ = modeler.ReadTextureCoord(doc, acc, nil)
		}
	}

	verts := make([]core.Vertex, len(positions))
	for i, p := range positions {
		v := core.Vertex{
			Position: mgl32.Vec3{p[0], p[1], p[2]},
			Normal:   mgl32.Vec3{0, 1, 0},
			Color:    core.ColorWhite,
		}
		if i < len(normals) {
			v.Normal = mgl32.Vec3{normals[i][0], normals[i][1], normals[i][2]}
		}
		if i < len(uvs) {
			v.UV = mgl32.Vec2{uvs[i][0], uvs[i][1]}
		}
		verts[i] = v
	}

	var indices []uint32
	if prim.Indices != nil {
		acc, err := accessor(doc, *prim.Indices)
		if err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
		indices, err = modeler.ReadIndices(doc, acc, nil)
		if err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
	}
	for _, ix := range indices {
		if int(ix) >= len(verts) {
			return nil, fmt.Errorf("index %d out of range (%d vertices)", ix, len(verts))
		}
	}

	return CreateMeshFromData(name, verts, indices), nil
}

func loadGLTFAnimation(doc *gltf.Document, ga *gltf.Animation, name string, nodes []*Node) (*Clip, error) {
	var channels []*Channel
	for ci, gc := range ga.Channels {
		if gc.Target.Node == nil || *gc.Target.Node < 0 || *gc.Target.Node >= len(nodes) {
			continue
		}
		if gc.Sampler < 0 || gc.Sampler >= len(ga.Samplers) {
			return nil, fmt.Errorf("channel %d: invalid sampler %d", ci, gc.Sampler)
		}
		var path TRSPath
		switch gc.Target.Path {
		case gltf.TRSTranslation:
			path = PathTranslation
		case gltf.TRSRotation:
			path = PathRotation
		case gltf.TRSScale:
			path = PathScale
		default:
			// morph target weights are not animated
			continue
		}
		gs := ga.Samplers[gc.Sampler]

		in, err := accessor(doc, gs.Input)
		if err != nil {
			return nil, fmt.Errorf("channel %d input: %w", ci, err)
		}
		out, err := accessor(doc, gs.Output)
		if err != nil {
			return nil, fmt.Errorf("channel %d output: %w", ci, err)
		}
		rawTimes, err := modeler.ReadAccessor(doc, in, nil)
		if err != nil {
			return nil, fmt.Errorf("channel %d input: %w", ci, err)
		}
		times, ok := rawTimes.([]float32)
		if !ok {
			return nil, fmt.Errorf("channel %d input: unexpected type %T", ci, rawTimes)
		}
		rawValues, err := modeler.ReadAccessor(doc, out, nil)
		if err != nil {
			return nil, fmt.Errorf("channel %d output: %w", ci, err)
		}
		values, err := toVec4s(rawValues)
		if err != nil {
			return nil, fmt.Errorf("channel %d output: %w", ci, err)
		}

		ch := &Channel{
			Target: nodes[*gc.Target.Node],
			Path:   path,
			Times:  times,
			Values: values,
		}
		switch gs.Interpolation {
		case gltf.InterpolationStep:
			ch.Interpolation = InterpolationStep
		case gltf.InterpolationCubicSpline:
			ch.Interpolation = InterpolationCubicSpline
		}
		want := len(times)
		if ch.Interpolation == InterpolationCubicSpline {
			want *= 3
		}
		if len(values) < want {
			return nil, fmt.Errorf("channel %d: %d values for %d keyframes", ci, len(values), len(times))
		}
		channels = append(channels, ch)
	}
	return NewClip(name, channels), nil
}

// toVec4s widens accessor output to x, y, z, w, de-normalizing integer rotations.
func toVec4s(data any) ([]mgl32.Vec4, error) {
	switch d := data.(type) {
	case [][3]float32:
		out := make([]mgl32.Vec4, len(d))
		for i, v := range d {
			out[i] = mgl32.Vec4{v[0], v[1], v[2], 0}
		}
		return out, nil
	case [][4]float32:
		out := make([]mgl32.Vec4, len(d))
		for i, v := range d {
			out[i] = mgl32.Vec4(v)
		}
		return out, nil
	case [][4]int8:
		out := make([]mgl32.Vec4, len(d))
		for i, v := range d {
			for k := range v {
				out[i][k] = max(float32(v[k])/127, -1)
			}
		}
		return out, nil
	case [][4]int16:
		out := make([]mgl32.Vec4, len(d))
		for i, v := range d {
			for k := range v {
				out[i][k] = max(float32(v[k])/32767, -1)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported accessor type %T", data)
	}
}
