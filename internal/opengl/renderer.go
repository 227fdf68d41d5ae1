// Package opengl is the OpenGL 4.1 core backend. Every call must happen on the
// goroutine that owns the current GLFW context.
package opengl

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"github.com/charmbracelet/log"
	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"metal-duck/core"
	"metal-duck/logging"
	"metal-duck/scene"
)

// GPUMesh holds the OpenGL buffer objects for an uploaded mesh.
type GPUMesh struct {
	VAO        uint32
	VBO        uint32
	EBO        uint32
	IndexCount int32
	HasIndices bool
}

// Renderer implements renderer.Backend.
type Renderer struct {
	logger *log.Logger

	program    uint32
	shadowProg uint32

	mvpLoc           int32
	modelLoc         int32
	lightViewProjLoc int32

	lightDirLoc       int32
	lightColorLoc     int32
	lightIntensityLoc int32
	ambientColorLoc   int32
	matAlbedoLoc      int32

	shadowMapLoc      int32
	hasShadowsLoc     int32
	receiveShadowLoc  int32
	shadowLightMVPLoc int32

	shadowMap *ShadowMap

	viewportW, viewportH int32

	gpuMeshes map[*scene.Mesh]*GPUMesh
}

// NewRenderer returns an uninitialized backend. Init must run after the GLFW
// context is made current.
func NewRenderer(logger *log.Logger) *Renderer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Renderer{
		logger:    logger,
		gpuMeshes: make(map[*scene.Mesh]*GPUMesh),
	}
}

func (r *Renderer) Init(width, height int) error {
	if err := gl.Init(); err != nil {
		return fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	r.logger.Info("OpenGL ready", "version", gl.GoStr(gl.GetString(gl.VERSION)))

	prog, err := newProgram(vertSrc, fragSrc)
	if err != nil {
		return fmt.Errorf("main shader compile: %w", err)
	}
	shadowProg, err := newProgram(depthVertSrc, depthFragSrc)
	if err != nil {
		gl.DeleteProgram(prog)
		return fmt.Errorf("depth shader compile: %w", err)
	}
	r.program, r.shadowProg = prog, shadowProg

	r.mvpLoc = uniform(prog, "mvp")
	r.modelLoc = uniform(prog, "model")
	r.lightViewProjLoc = uniform(prog, "lightViewProj")
	r.lightDirLoc = uniform(prog, "lightDir")
	r.lightColorLoc = uniform(prog, "lightColor")
	r.lightIntensityLoc = uniform(prog, "lightIntensity")
	r.ambientColorLoc = uniform(prog, "ambientColor")
	r.matAlbedoLoc = uniform(prog, "matAlbedo")
	r.shadowMapLoc = uniform(prog, "shadowMap")
	r.hasShadowsLoc = uniform(prog, "hasShadows")
	r.receiveShadowLoc = uniform(prog, "receiveShadow")
	r.shadowLightMVPLoc = uniform(shadowProg, "lightMVP")

	gl.UseProgram(prog)
	gl.Uniform1i(r.shadowMapLoc, 1)
	ident := mgl32.Ident4()
	gl.UniformMatrix4fv(r.lightViewProjLoc, 1, false, &ident[0])

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)

	r.SetViewport(width, height)
	return nil
}

func uniform(prog uint32, name string) int32 {
	return gl.GetUniformLocation(prog, gl.Str(name+"\x00"))
}

func (r *Renderer) SetViewport(width, height int) {
	r.viewportW, r.viewportH = int32(width), int32(height)
	gl.Viewport(0, 0, r.viewportW, r.viewportH)
}

// Upload copies mesh into GPU buffers. Already-resident meshes are skipped.
func (r *Renderer) Upload(mesh *scene.Mesh) error {
	if _, ok := r.gpuMeshes[mesh]; ok {
		return nil
	}
	if len(mesh.Vertices) == 0 {
		return errors.New("mesh has no vertices")
	}

	stride := int32(unsafe.Sizeof(core.Vertex{}))
	gpu := &GPUMesh{
		IndexCount: int32(len(mesh.Indices)),
		HasIndices: len(mesh.Indices) > 0,
	}

	gl.GenVertexArrays(1, &gpu.VAO)
	gl.GenBuffers(1, &gpu.VBO)
	gl.BindVertexArray(gpu.VAO)

	gl.BindBuffer(gl.ARRAY_BUFFER, gpu.VBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(mesh.Vertices)*int(stride), gl.Ptr(mesh.Vertices), gl.STATIC_DRAW)

	var v core.Vertex
	attribs := []struct {
		size   int32
		offset uintptr
	}{
		{3, unsafe.Offsetof(v.Position)},
		{3, unsafe.Offsetof(v.Normal)},
		{2, unsafe.Offsetof(v.UV)},
		{4, unsafe.Offsetof(v.Color)},
	}
	for i, a := range attribs {
		gl.EnableVertexAttribArray(uint32(i))
		gl.VertexAttribPointer(uint32(i), a.size, gl.FLOAT, false, stride, gl.PtrOffset(int(a.offset)))
	}

	if gpu.HasIndices {
		gl.GenBuffers(1, &gpu.EBO)
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, gpu.EBO)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(mesh.Indices)*4, gl.Ptr(mesh.Indices), gl.STATIC_DRAW)
	}
	gl.BindVertexArray(0)

	r.gpuMeshes[mesh] = gpu
	mesh.GPUData = gpu
	return nil
}

// Release frees the GPU buffers of a mesh.
func (r *Renderer) Release(mesh *scene.Mesh) {
	gpu, ok := r.gpuMeshes[mesh]
	if !ok {
		return
	}
	gl.DeleteVertexArrays(1, &gpu.VAO)
	gl.DeleteBuffers(1, &gpu.VBO)
	if gpu.EBO != 0 {
		gl.DeleteBuffers(1, &gpu.EBO)
	}
	delete(r.gpuMeshes, mesh)
	mesh.GPUData = nil
}

// Draw renders one frame: a shadow pass when the directional light casts
// shadows, then the lit pass.
func (r *Renderer) Draw(s *scene.Scene) error {
	nodes := s.GetVisibleNodes()
	sun := s.Light(scene.LightTypeDirectional)

	lightVP := mgl32.Ident4()
	hasShadows := false
	if sun != nil && sun.CastShadow {
		if err := r.ensureShadowMap(sun.ShadowMapSize); err != nil {
			return err
		}
		lightVP = lightViewProj(sun.Position)
		r.shadowPass(nodes, lightVP)
		hasShadows = true
	}

	sky := s.SkyColor
	gl.ClearColor(sky.R, sky.G, sky.B, sky.A)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	gl.UseProgram(r.program)
	gl.UniformMatrix4fv(r.lightViewProjLoc, 1, false, &lightVP[0])
	r.applyLights(s, sun)
	if hasShadows {
		gl.ActiveTexture(gl.TEXTURE1)
		gl.BindTexture(gl.TEXTURE_2D, r.shadowMap.DepthTex)
		gl.Uniform1i(r.hasShadowsLoc, 1)
	} else {
		gl.Uniform1i(r.hasShadowsLoc, 0)
	}

	vp := s.Camera.GetViewProjectionMatrix()
	for _, n := range nodes {
		gpu, ok := r.gpuMeshes[n.Mesh]
		if !ok {
			continue
		}
		model := n.GetWorldMatrix()
		mvp := vp.Mul4(model)
		gl.UniformMatrix4fv(r.mvpLoc, 1, false, &mvp[0])
		gl.UniformMatrix4fv(r.modelLoc, 1, false, &model[0])
		gl.Uniform1i(r.receiveShadowLoc, boolToInt(n.ReceiveShadow))

		mat := n.Mesh.Material
		if mat == nil {
			mat = scene.DefaultMaterial()
		}
		a := mat.Albedo
		gl.Uniform4f(r.matAlbedoLoc, a.R, a.G, a.B, a.A)
		drawGPU(gpu, n.Mesh)
	}
	return nil
}

func (r *Renderer) applyLights(s *scene.Scene, sun *scene.Light) {
	ambient := mgl32.Vec3{}
	if l := s.Light(scene.LightTypeAmbient); l != nil {
		ambient = l.Color.Vec3().Mul(l.Intensity)
	}
	gl.Uniform3f(r.ambientColorLoc, ambient[0], ambient[1], ambient[2])

	if sun == nil {
		gl.Uniform1f(r.lightIntensityLoc, 0)
		return
	}
	dir := sun.Direction()
	c := sun.Color
	gl.Uniform3f(r.lightDirLoc, dir[0], dir[1], dir[2])
	gl.Uniform3f(r.lightColorLoc, c.R, c.G, c.B)
	gl.Uniform1f(r.lightIntensityLoc, sun.Intensity)
}

func (r *Renderer) ensureShadowMap(size int) error {
	if r.shadowMap != nil && int(r.shadowMap.Size) == size {
		return nil
	}
	if r.shadowMap != nil {
		r.shadowMap.Destroy()
		r.shadowMap = nil
	}
	sm, err := NewShadowMap(size)
	if err != nil {
		return err
	}
	r.shadowMap = sm
	return nil
}

func (r *Renderer) shadowPass(nodes []*scene.Node, lightVP mgl32.Mat4) {
	r.shadowMap.bind()
	gl.UseProgram(r.shadowProg)
	for _, n := range nodes {
		if !n.CastShadow {
			continue
		}
		gpu, ok := r.gpuMeshes[n.Mesh]
		if !ok {
			continue
		}
		lightMVP := lightVP.Mul4(n.GetWorldMatrix())
		gl.UniformMatrix4fv(r.shadowLightMVPLoc, 1, false, &lightMVP[0])
		drawGPU(gpu, n.Mesh)
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(0, 0, r.viewportW, r.viewportH)
}

func drawGPU(gpu *GPUMesh, mesh *scene.Mesh) {
	gl.BindVertexArray(gpu.VAO)
	if gpu.HasIndices {
		gl.DrawElements(gl.TRIANGLES, gpu.IndexCount, gl.UNSIGNED_INT, nil)
	} else {
		gl.DrawArrays(gl.TRIANGLES, 0, int32(len(mesh.Vertices)))
	}
	gl.BindVertexArray(0)
}

// Destroy frees every GPU object the backend owns.
func (r *Renderer) Destroy() error {
	for mesh := range r.gpuMeshes {
		r.Release(mesh)
	}
	if r.shadowMap != nil {
		r.shadowMap.Destroy()
		r.shadowMap = nil
	}
	if r.program != 0 {
		gl.DeleteProgram(r.program)
		r.program = 0
	}
	if r.shadowProg != 0 {
		gl.DeleteProgram(r.shadowProg)
		r.shadowProg = 0
	}
	return nil
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func newProgram(vertSrc, fragSrc string) (uint32, error) {
	vert, err := compileShader(vertSrc, gl.VERTEX_SHADER)
	if err != nil {
		return 0, fmt.Errorf("vertex: %w", err)
	}
	frag, err := compileShader(fragSrc, gl.FRAGMENT_SHADER)
	if err != nil {
		gl.DeleteShader(vert)
		return 0, fmt.Errorf("fragment: %w", err)
	}

	prog := gl.CreateProgram()
	gl.AttachShader(prog, vert)
	gl.AttachShader(prog, frag)
	gl.LinkProgram(prog)
	gl.DeleteShader(vert)
	gl.DeleteShader(frag)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLen)
		msg := strings.Repeat("\x00", int(logLen+1))
		gl.GetProgramInfoLog(prog, logLen, nil, gl.Str(msg))
		gl.DeleteProgram(prog)
		return 0, fmt.Errorf("link failed: %v", msg)
	}
	return prog, nil
}

func compileShader(src string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csrc, free := gl.Strs(src)
	gl.ShaderSource(shader, 1, csrc, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		msg := strings.Repeat("\x00", int(logLen+1))
		gl.GetShaderInfoLog(shader, logLen, nil, gl.Str(msg))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("compile failed: %v", msg)
	}
	return shader, nil
}
