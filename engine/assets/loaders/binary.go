package loaders

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	gomath "math"

	"github.com/pkg/errors"
)

const (
	fbxMagic = "Kaydara FBX Binary  \x00"
	// Magic, two reserved bytes and the uint32 version.
	fbxHeaderSize = len(fbxMagic) + 2 + 4
	// From 7.5 on, record offsets and counts are 64 bits wide.
	fbxWideVersion = 7500
	// Deflate cannot expand a stream by more than this factor.
	maxInflateRatio = 1032
	// Upper bound for the decoded size of all arrays of one document.
	maxDecodedArrayBytes = 512 << 20
)

var ErrNotBinaryFBX = errors.New("not a binary FBX file")

/** @brief One record of the FBX node tree with its decoded properties. */
type fbxNode struct {
	Name       string
	Properties []interface{}
	Children   []*fbxNode
}

func (n *fbxNode) child(name string) *fbxNode {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (n *fbxNode) children(name string) []*fbxNode {
	var out []*fbxNode
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

/**
 * @brief Reads the node tree of a binary FBX document. Array properties
 * may be zlib compressed. ASCII FBX is not supported.
 */
type fbxReader struct {
	data    []byte
	pos     int
	version uint32
	// Bytes of array data decoded so far.
	decoded uint64
}

func parseFBX(data []byte) (*fbxNode, uint32, error) {
	if len(data) < fbxHeaderSize || string(data[:len(fbxMagic)]) != fbxMagic {
		return nil, 0, ErrNotBinaryFBX
	}
	r := &fbxReader{
		data:    data,
		pos:     fbxHeaderSize,
		version: binary.LittleEndian.Uint32(data[len(fbxMagic)+2:]),
	}

	root := &fbxNode{Name: "root"}
	for {
		node, err := r.readNode()
		if err != nil {
			return nil, 0, err
		}
		if node == nil {
			break
		}
		root.Children = append(root.Children, node)
	}
	return root, r.version, nil
}

func (r *fbxReader) wide() bool {
	return r.version >= fbxWideVersion
}

func (r *fbxReader) need(n int) error {
	if n < 0 || r.pos+n > len(r.data) {
		return errors.Wrapf(ErrMalformedModel, "unexpected end of FBX data at offset %d", r.pos)
	}
	return nil
}

func (r *fbxReader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *fbxReader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *fbxReader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

// offset reads a record header field, 32 or 64 bits depending on the version.
func (r *fbxReader) offset() (uint64, error) {
	if r.wide() {
		return r.u64()
	}
	v, err := r.u32()
	return uint64(v), err
}

func (r *fbxReader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// readNode returns nil at the null record ending a node list.
func (r *fbxReader) readNode() (*fbxNode, error) {
	if r.pos >= len(r.data) {
		return nil, nil
	}
	endOffset, err := r.offset()
	if err != nil {
		return nil, err
	}
	numProperties, err := r.offset()
	if err != nil {
		return nil, err
	}
	if _, err := r.offset(); err != nil {
		return nil, err
	}
	nameLen, err := r.u8()
	if err != nil {
		return nil, err
	}
	if endOffset == 0 {
		return nil, nil
	}
	if endOffset > uint64(len(r.data)) || endOffset <= uint64(r.pos) {
		return nil, errors.Wrapf(ErrMalformedModel, "FBX record end offset %d out of range", endOffset)
	}
	name, err := r.bytes(int(nameLen))
	if err != nil {
		return nil, err
	}

	node := &fbxNode{Name: string(name)}
	for i := uint64(0); i < numProperties; i++ {
		p, err := r.readProperty()
		if err != nil {
			return nil, errors.Wrapf(err, "property %d of '%s'", i, node.Name)
		}
		node.Properties = append(node.Properties, p)
	}
	for uint64(r.pos) < endOffset {
		child, err := r.readNode()
		if err != nil {
			return nil, err
		}
		if child == nil {
			break
		}
		node.Children = append(node.Children, child)
	}
	r.pos = int(endOffset)
	return node, nil
}

func (r *fbxReader) readProperty() (interface{}, error) {
	code, err := r.u8()
	if err != nil {
		return nil, err
	}
	switch code {
	case 'Y':
		b, err := r.bytes(2)
		if err != nil {
			return nil, err
		}
		return int16(binary.LittleEndian.Uint16(b)), nil
	case 'C':
		b, err := r.u8()
		return b != 0, err
	case 'I':
		v, err := r.u32()
		return int32(v), err
	case 'F':
		v, err := r.u32()
		return gomath.Float32frombits(v), err
	case 'D':
		v, err := r.u64()
		return gomath.Float64frombits(v), err
	case 'L':
		v, err := r.u64()
		return int64(v), err
	case 'S', 'R':
		n, err := r.u32()
		if err != nil {
			return nil, err
		}
		b, err := r.bytes(int(n))
		if err != nil {
			return nil, err
		}
		if code == 'S' {
			return string(b), nil
		}
		return append([]byte(nil), b...), nil
	case 'f', 'd', 'l', 'i', 'b':
		return r.readArray(code)
	}
	return nil, errors.Wrapf(ErrMalformedModel, "unknown FBX property type '%c'", code)
}

func (r *fbxReader) readArray(code byte) (interface{}, error) {
	length, err := r.u32()
	if err != nil {
		return nil, err
	}
	encoding, err := r.u32()
	if err != nil {
		return nil, err
	}
	compressedLen, err := r.u32()
	if err != nil {
		return nil, err
	}
	raw, err := r.bytes(int(compressedLen))
	if err != nil {
		return nil, err
	}

	elemSize := map[byte]uint64{'f': 4, 'd': 8, 'l': 8, 'i': 4, 'b': 1}[code]
	size := uint64(length) * elemSize
	switch encoding {
	case 0:
		if uint64(len(raw)) < size {
			return nil, errors.Wrap(ErrMalformedModel, "FBX array shorter than its length")
		}
	case 1:
		if size > uint64(compressedLen)*maxInflateRatio {
			return nil, errors.Wrapf(ErrMalformedModel, "FBX array of %d bytes cannot come from %d compressed bytes", size, compressedLen)
		}
	default:
		return nil, errors.Wrapf(ErrMalformedModel, "unknown FBX array encoding %d", encoding)
	}
	if r.decoded+size > maxDecodedArrayBytes {
		return nil, errors.Wrapf(ErrMalformedModel, "FBX arrays exceed %d decoded bytes", maxDecodedArrayBytes)
	}
	r.decoded += size

	if encoding == 1 {
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, errors.Wrap(ErrMalformedModel, "failed to open compressed FBX array")
		}
		// One extra byte tells a stream that runs past the declared length.
		buf, err := io.ReadAll(io.LimitReader(zr, int64(size)+1))
		zr.Close()
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedModel, "failed to inflate FBX array: %v", err)
		}
		if uint64(len(buf)) != size {
			return nil, errors.Wrapf(ErrMalformedModel, "FBX array inflates to %d bytes, expected %d", len(buf), size)
		}
		raw = buf
	}

	le := binary.LittleEndian
	switch code {
	case 'f':
		out := make([]float32, length)
		for i := range out {
			out[i] = gomath.Float32frombits(le.Uint32(raw[i*4:]))
		}
		return out, nil
	case 'd':
		out := make([]float64, length)
		for i := range out {
			out[i] = gomath.Float64frombits(le.Uint64(raw[i*8:]))
		}
		return out, nil
	case 'l':
		out := make([]int64, length)
		for i := range out {
			out[i] = int64(le.Uint64(raw[i*8:]))
		}
		return out, nil
	case 'i':
		out := make([]int32, length)
		for i := range out {
			out[i] = int32(le.Uint32(raw[i*4:]))
		}
		return out, nil
	}
	out := make([]bool, length)
	for i := range out {
		out[i] = raw[i] != 0
	}
	return out, nil
}
