package renderer

const meshVertexShader = `
#version 410 core

layout (location = 0) in vec3 aPos;
layout (location = 1) in vec3 aNormal;

uniform mat4 uView;
uniform mat4 uProjection;

out vec3 vWorldPos;
out vec3 vNormal;

void main() {
    vWorldPos = aPos;
    vNormal = aNormal;
    gl_Position = uProjection * uView * vec4(aPos, 1.0);
}
`

const meshFragmentShader = `
#version 410 core

in vec3 vWorldPos;
in vec3 vNormal;

uniform vec3 uColor;
uniform vec3 uSpecular;
uniform float uShininess;
uniform float uOpacity;
uniform bool uFlat;

uniform vec3 uAmbient;
uniform vec3 uSunColor;
uniform vec3 uSunDir;
uniform vec3 uCameraPos;

out vec4 FragColor;

void main() {
    vec3 n;
    if (uFlat) {
        n = normalize(cross(dFdx(vWorldPos), dFdy(vWorldPos)));
    } else {
        n = normalize(vNormal);
    }
    vec3 viewDir = normalize(uCameraPos - vWorldPos);
    if (!gl_FrontFacing) {
        n = -n;
    }

    vec3 l = normalize(uSunDir);
    float diff = max(dot(n, l), 0.0);
    vec3 h = normalize(l + viewDir);
    float spec = pow(max(dot(n, h), 0.0), uShininess);

    vec3 color = uAmbient * uColor + uSunColor * (diff * uColor + spec * uSpecular);
    FragColor = vec4(color, uOpacity);
}
`

const lineVertexShader = `
#version 410 core

layout (location = 0) in vec3 aPos;
layout (location = 1) in vec3 aColor;

uniform mat4 uView;
uniform mat4 uProjection;

out vec3 vColor;

void main() {
    vColor = aColor;
    gl_Position = uProjection * uView * vec4(aPos, 1.0);
}
`

const lineFragmentShader = `
#version 410 core

in vec3 vColor;
out vec4 FragColor;

void main() {
    FragColor = vec4(vColor, 1.0);
}
`

// The overlay quad is a unit square stretched over uRect, given in NDC as
// (left, top, right, bottom).
const overlayVertexShader = `
#version 410 core

layout (location = 0) in vec2 aUV;

uniform vec4 uRect;

out vec2 vUV;

void main() {
    vUV = aUV;
    gl_Position = vec4(mix(uRect.xy, uRect.zw, aUV), 0.0, 1.0);
}
`

const overlayFragmentShader = `
#version 410 core

in vec2 vUV;

uniform sampler2D uTexture;

out vec4 FragColor;

void main() {
    FragColor = texture(uTexture, vUV);
}
`
