package opengl

import (
	"fmt"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
)

// shadowExtent is the half-width of the orthographic volume the directional
// light renders into. It covers the focus object and the ground around it.
const shadowExtent = 5

// ShadowMap is a depth-only framebuffer sampled with hardware PCF.
type ShadowMap struct {
	FBO      uint32
	DepthTex uint32
	Size     int32
}

// NewShadowMap allocates a size×size DEPTH_COMPONENT32F target.
func NewShadowMap(size int) (*ShadowMap, error) {
	if size <= 0 {
		return nil, fmt.Errorf("shadow map size %d", size)
	}
	sm := &ShadowMap{Size: int32(size)}

	gl.GenTextures(1, &sm.DepthTex)
	gl.BindTexture(gl.TEXTURE_2D, sm.DepthTex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.DEPTH_COMPONENT32F,
		sm.Size, sm.Size, 0, gl.DEPTH_COMPONENT, gl.FLOAT, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_BORDER)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_BORDER)
	// outside the map counts as lit
	border := [4]float32{1, 1, 1, 1}
	gl.TexParameterfv(gl.TEXTURE_2D, gl.TEXTURE_BORDER_COLOR, &border[0])
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_COMPARE_MODE, gl.COMPARE_REF_TO_TEXTURE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_COMPARE_FUNC, gl.LEQUAL)

	gl.GenFramebuffers(1, &sm.FBO)
	gl.BindFramebuffer(gl.FRAMEBUFFER, sm.FBO)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.TEXTURE_2D, sm.DepthTex, 0)
	gl.DrawBuffer(gl.NONE)
	gl.ReadBuffer(gl.NONE)

	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if status != gl.FRAMEBUFFER_COMPLETE {
		sm.Destroy()
		return nil, fmt.Errorf("shadow FBO incomplete: status=0x%X", status)
	}
	return sm, nil
}

// lightViewProj maps world space into the light's clip space. The light sits
// at pos and looks at the origin.
func lightViewProj(pos mgl32.Vec3) mgl32.Mat4 {
	up := mgl32.Vec3{0, 1, 0}
	if d := pos.Normalize(); d.Cross(up).Len() < 1e-4 {
		up = mgl32.Vec3{0, 0, 1}
	}
	view := mgl32.LookAtV(pos, mgl32.Vec3{}, up)
	far := pos.Len() + shadowExtent*2
	proj := mgl32.Ortho(-shadowExtent, shadowExtent, -shadowExtent, shadowExtent, 0.1, far)
	return proj.Mul4(view)
}

func (sm *ShadowMap) bind() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, sm.FBO)
	gl.Viewport(0, 0, sm.Size, sm.Size)
	gl.Clear(gl.DEPTH_BUFFER_BIT)
}

// Destroy frees GPU resources.
func (sm *ShadowMap) Destroy() {
	if sm.FBO != 0 {
		gl.DeleteFramebuffers(1, &sm.FBO)
		sm.FBO = 0
	}
	if sm.DepthTex != 0 {
		gl.DeleteTextures(1, &sm.DepthTex)
		sm.DepthTex = 0
	}
}
