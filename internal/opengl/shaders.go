package opengl

// Lambert diffuse over a flat ambient term, with one directional light
// attenuated by a hardware-PCF shadow lookup.
const vertSrc = `
#version 410 core
layout(location = 0) in vec3 inPosition;
layout(location = 1) in vec3 inNormal;
layout(location = 2) in vec2 inUV;
layout(location = 3) in vec4 inColor;

uniform mat4 mvp;
uniform mat4 model;
uniform mat4 lightViewProj;

out vec3 vNormal;
out vec4 vColor;
out vec4 vLightSpace;

void main() {
    vec4 world = model * vec4(inPosition, 1.0);
    vNormal = mat3(transpose(inverse(model))) * inNormal;
    vColor = inColor;
    vLightSpace = lightViewProj * world;
    gl_Position = mvp * vec4(inPosition, 1.0);
}
` + "\x00"

const fragSrc = `
#version 410 core
in vec3 vNormal;
in vec4 vColor;
in vec4 vLightSpace;

uniform vec3 lightDir;
uniform vec3 lightColor;
uniform float lightIntensity;
uniform vec3 ambientColor;
uniform vec4 matAlbedo;
uniform bool hasShadows;
uniform bool receiveShadow;
uniform sampler2DShadow shadowMap;

out vec4 fragColor;

float shadowFactor(vec3 n) {
    if (!hasShadows || !receiveShadow) {
        return 1.0;
    }
    vec3 p = vLightSpace.xyz / vLightSpace.w * 0.5 + 0.5;
    if (p.z > 1.0) {
        return 1.0;
    }
    float bias = max(0.005 * (1.0 - dot(n, -lightDir)), 0.0005);
    vec2 texel = 1.0 / vec2(textureSize(shadowMap, 0));
    float sum = 0.0;
    for (int x = -1; x <= 1; ++x) {
        for (int y = -1; y <= 1; ++y) {
            sum += texture(shadowMap, vec3(p.xy + vec2(x, y) * texel, p.z - bias));
        }
    }
    return sum / 9.0;
}

void main() {
    vec3 n = normalize(vNormal);
    vec4 base = matAlbedo * vColor;
    float diffuse = max(dot(n, -lightDir), 0.0);
    vec3 lit = ambientColor + lightColor * lightIntensity * diffuse * shadowFactor(n);
    fragColor = vec4(base.rgb * lit, base.a);
}
` + "\x00"

const depthVertSrc = `
#version 410 core
layout(location = 0) in vec3 inPosition;
uniform mat4 lightMVP;
void main() {
    gl_Position = lightMVP * vec4(inPosition, 1.0);
}
` + "\x00"

// depth-only fragment shader (OpenGL writes depth implicitly)
const depthFragSrc = `
#version 410 core
void main() {}
` + "\x00"
