package stl

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	vmath "github.com/Faultbox/liverscope/pkg/math"
)

type facet struct {
	n, a, b, c [3]float32
}

// tetra returns the four faces of a unit tetrahedron with outward windings.
func tetra() []facet {
	o := [3]float32{0, 0, 0}
	x := [3]float32{1, 0, 0}
	y := [3]float32{0, 1, 0}
	z := [3]float32{0, 0, 1}
	return []facet{
		{n: [3]float32{0, 0, -1}, a: o, b: y, c: x},
		{n: [3]float32{0, -1, 0}, a: o, b: x, c: z},
		{n: [3]float32{-1, 0, 0}, a: o, b: z, c: y},
		{a: x, b: y, c: z}, // zero normal, recomputed from winding
	}
}

func encodeBinary(header string, facets []facet) []byte {
	var buf bytes.Buffer
	h := make([]byte, headerSize)
	copy(h, header)
	buf.Write(h)
	binary.Write(&buf, binary.LittleEndian, uint32(len(facets)))
	for _, f := range facets {
		for _, v := range [][3]float32{f.n, f.a, f.b, f.c} {
			for _, c := range v {
				binary.Write(&buf, binary.LittleEndian, math.Float32bits(c))
			}
		}
		binary.Write(&buf, binary.LittleEndian, uint16(0))
	}
	return buf.Bytes()
}

func TestDecodeBinary(t *testing.T) {
	m, err := Decode(encodeBinary("tetra", tetra()))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if m.FaceCount() != 4 {
		t.Errorf("FaceCount = %d, want 4", m.FaceCount())
	}
	if m.VertexCount() != 4 {
		t.Errorf("VertexCount = %d, want 4 after welding", m.VertexCount())
	}
	if !m.HasNormals() {
		t.Fatal("expected per-vertex normals")
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	if m.Name != "tetra" {
		t.Errorf("Name = %q, want tetra", m.Name)
	}

	// The corner at (1,1,1)/3 direction gets the recomputed slanted normal.
	b := m.Bounds()
	if b.Max != (vmath.Vec3{X: 1, Y: 1, Z: 1}) {
		t.Errorf("Bounds.Max = %v", b.Max)
	}
}

func TestDecodeBinaryStartingWithSolid(t *testing.T) {
	// Exporters sometimes write "solid" into the binary header.
	m, err := Decode(encodeBinary("solid exported", tetra()))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if m.FaceCount() != 4 {
		t.Errorf("FaceCount = %d, want 4", m.FaceCount())
	}
}

func TestDecodeBinarySolidHeaderWithTrailingBytes(t *testing.T) {
	data := encodeBinary("solid exported by cad", tetra()[:1])
	data = append(data, 0x0d, 0x0a)

	m, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if m.FaceCount() != 1 || m.VertexCount() != 3 {
		t.Errorf("got %d faces %d vertices, want 1 and 3", m.FaceCount(), m.VertexCount())
	}
}

func TestDecodeErrors(t *testing.T) {
	full := encodeBinary("", tetra())

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty input", nil, ErrTruncated},
		{"short header", make([]byte, 40), ErrTruncated},
		{"zero triangles", encodeBinary("", nil), ErrEmptyMesh},
		{"short records", full[:len(full)-10], ErrTruncated},
		{"ascii bad number", []byte("solid x\nfacet normal 0 0 1\nouter loop\nvertex a 0 0\n"), ErrEncoding},
		{"ascii unterminated", []byte("solid x\nfacet normal 0 0 1\nouter loop\nvertex 0 0 0\n"), ErrTruncated},
		{"ascii no facets", []byte("solid x\nendsolid x\n"), ErrEmptyMesh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Decode() error = %v, want %v", err, tt.want)
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Errorf("error %T is not a *DecodeError", err)
			}
		})
	}
}

const asciiTriangle = `solid tri
  facet normal 0 0 1
    outer loop
      vertex 0 0 0
      vertex 2 0 0
      vertex 0 2 0
    endloop
  endfacet
endsolid tri
`

func TestDecodeASCII(t *testing.T) {
	m, err := Decode([]byte(asciiTriangle))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if m.Name != "tri" {
		t.Errorf("Name = %q, want tri", m.Name)
	}
	if m.FaceCount() != 1 || m.VertexCount() != 3 {
		t.Errorf("got %d faces %d vertices, want 1 and 3", m.FaceCount(), m.VertexCount())
	}
	for i, n := range m.Normals {
		if n != (vmath.Vec3{Z: 1}) {
			t.Errorf("normal %d = %v, want +Z", i, n)
		}
	}
}

func TestDecodeDegenerateLeavesNormalsUnset(t *testing.T) {
	line := []facet{{a: [3]float32{0, 0, 0}, b: [3]float32{1, 0, 0}, c: [3]float32{2, 0, 0}}}
	m, err := Decode(encodeBinary("", line))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if m.HasNormals() {
		t.Errorf("expected no normals for a degenerate facet, got %v", m.Normals)
	}
}

func TestDecodeZeroNormalsUseWinding(t *testing.T) {
	faces := tetra()
	for i := range faces {
		faces[i].n = [3]float32{}
	}
	m, err := Decode(encodeBinary("", faces))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !m.HasNormals() {
		t.Fatal("expected normals recomputed from winding")
	}

	got := append([]vmath.Vec3(nil), m.Normals...)
	m.ComputeNormals()
	for i := range got {
		if got[i] != m.Normals[i] {
			t.Errorf("normal %d = %v, want %v", i, got[i], m.Normals[i])
		}
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestDecodeBase64(t *testing.T) {
	raw := encodeBinary("", tetra())
	padded := base64.StdEncoding.EncodeToString(raw)

	wrapped := ""
	for i := 0; i < len(padded); i += 60 {
		end := min(i+60, len(padded))
		wrapped += padded[i:end] + "\n"
	}

	inputs := map[string]string{
		"padded":    padded,
		"unpadded":  base64.RawStdEncoding.EncodeToString(raw),
		"wrapped":   wrapped,
		"data url":  "data:model/stl;base64," + padded,
		"surrounds": "  " + padded + "\r\n",
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			m, err := DecodeBase64(in)
			if err != nil {
				t.Fatalf("DecodeBase64() error = %v", err)
			}
			if m.FaceCount() != 4 {
				t.Errorf("FaceCount = %d, want 4", m.FaceCount())
			}
		})
	}
}

func TestDecodeBase64Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "not*base64!"} {
		_, err := DecodeBase64(in)
		if !errors.Is(err, ErrEncoding) {
			t.Errorf("DecodeBase64(%q) error = %v, want ErrEncoding", in, err)
		}
	}
}
