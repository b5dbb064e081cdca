// Package stl decodes stereolithography meshes into indexed meshes.
//
// Both the binary layout (80-byte header, uint32 triangle count, 50-byte
// records) and the ASCII "solid ... endsolid" form are accepted. Vertices
// that share a position are welded so the result can be smooth shaded.
package stl

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/binary"
	stdmath "math"
	"strconv"
	"strings"

	"github.com/Faultbox/liverscope/pkg/math"
	"github.com/Faultbox/liverscope/pkg/mesh"
)

const (
	headerSize = 80
	countSize  = 4
	recordSize = 50
)

// DecodeBase64 decodes a base64 transport payload and then the mesh inside it.
// Whitespace, a "data:...;base64," prefix and missing padding are tolerated.
func DecodeBase64(s string) (*mesh.Mesh, error) {
	data, err := RawBase64(s)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// RawBase64 returns the STL bytes of a base64 transport payload without
// parsing them. It accepts what DecodeBase64 accepts.
func RawBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, decodeErr(ErrEncoding, "empty payload")
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		var rawErr error
		data, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if rawErr != nil {
			return nil, &DecodeError{Kind: ErrEncoding, Detail: err.Error()}
		}
	}
	return data, nil
}

// Decode parses raw STL bytes. The format is detected from the content.
func Decode(data []byte) (*mesh.Mesh, error) {
	if isASCII(data) {
		return decodeASCII(data)
	}
	return decodeBinary(data)
}

// isASCII reports whether data looks like ASCII STL. Binary files may also
// begin with "solid": a header whose triangle count fits the data wins
// unless the text near the top carries ASCII keywords.
func isASCII(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if !bytes.HasPrefix(trimmed, []byte("solid")) {
		return false
	}
	if len(data) < headerSize+countSize {
		return true
	}
	n := binary.LittleEndian.Uint32(data[headerSize:])
	need := uint64(headerSize+countSize) + uint64(n)*recordSize
	switch {
	case uint64(len(data)) == need:
		return false
	case n > 0 && uint64(len(data)) > need:
		return hasASCIIKeywords(trimmed)
	}
	return true
}

// asciiScanLen bounds how far hasASCIIKeywords looks.
const asciiScanLen = 512

func hasASCIIKeywords(data []byte) bool {
	head := data[:min(len(data), asciiScanLen)]
	return bytes.Contains(head, []byte("facet")) || bytes.Contains(head, []byte("endsolid"))
}

func decodeBinary(data []byte) (*mesh.Mesh, error) {
	if len(data) < headerSize+countSize {
		return nil, decodeErr(ErrTruncated, "need %d header bytes, have %d", headerSize+countSize, len(data))
	}

	name := strings.TrimSpace(string(bytes.TrimRight(data[:headerSize], "\x00")))
	count := binary.LittleEndian.Uint32(data[headerSize:])
	if count == 0 {
		return nil, &DecodeError{Kind: ErrEmptyMesh}
	}

	body := data[headerSize+countSize:]
	need := uint64(count) * recordSize
	if uint64(len(body)) < need {
		return nil, decodeErr(ErrTruncated, "header declares %d triangles (%d bytes), have %d bytes", count, need, len(body))
	}

	b := newBuilder(name, int(count))
	for i := uint32(0); i < count; i++ {
		rec := body[i*recordSize:]
		normal := readVec3(rec[0:])
		b.addFacet(normal, readVec3(rec[12:]), readVec3(rec[24:]), readVec3(rec[36:]))
	}
	return b.finish()
}

func decodeASCII(data []byte) (*mesh.Mesh, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	b := newBuilder("", 0)
	var normal math.Vec3
	var verts []math.Vec3
	inFacet := false
	closed := false

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "solid":
			if len(fields) > 1 {
				b.m.Name = strings.Join(fields[1:], " ")
			}
		case "facet":
			if inFacet {
				return nil, decodeErr(ErrEncoding, "facet opened twice")
			}
			inFacet = true
			verts = verts[:0]
			normal = math.Vec3{}
			if len(fields) >= 5 && fields[1] == "normal" {
				v, err := parseVec3(fields[2:5])
				if err != nil {
					return nil, err
				}
				normal = v
			}
		case "vertex":
			if len(fields) < 4 {
				return nil, decodeErr(ErrEncoding, "vertex with %d coordinates", len(fields)-1)
			}
			v, err := parseVec3(fields[1:4])
			if err != nil {
				return nil, err
			}
			verts = append(verts, v)
		case "endfacet":
			if len(verts) != 3 {
				return nil, decodeErr(ErrEncoding, "facet has %d vertices", len(verts))
			}
			b.addFacet(normal, verts[0], verts[1], verts[2])
			inFacet = false
		case "endsolid":
			closed = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &DecodeError{Kind: ErrEncoding, Detail: err.Error()}
	}
	if inFacet {
		return nil, decodeErr(ErrTruncated, "unterminated facet")
	}
	if !closed && b.faces == 0 {
		return nil, decodeErr(ErrTruncated, "missing endsolid")
	}
	return b.finish()
}

func readVec3(b []byte) math.Vec3 {
	return math.Vec3{
		X: stdmath.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
		Y: stdmath.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
		Z: stdmath.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
	}
}

func parseVec3(fields []string) (math.Vec3, error) {
	var out [3]float32
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return math.Vec3{}, decodeErr(ErrEncoding, "bad number %q", f)
		}
		out[i] = float32(v)
	}
	return math.Vec3{X: out[0], Y: out[1], Z: out[2]}, nil
}
