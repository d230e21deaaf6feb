package vector

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"

	"github.com/hyperjump/regubot/internal/models"
)

const (
	blobMagic   = "RGIX"
	blobVersion = uint16(1)
)

// Encode serialises the index. Layout (little endian): magic, version, dimension,
// entry count, entries (id, document, position, text, vector), document count,
// document names, CRC-32 of everything before it.
func (ix *Index) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteString(blobMagic)
	_ = binary.Write(&buf, binary.LittleEndian, blobVersion)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(ix.dimensions))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(ix.entries)))
	for _, e := range ix.entries {
		writeString(&buf, e.Chunk.ID)
		writeString(&buf, e.Chunk.DocumentID)
		_ = binary.Write(&buf, binary.LittleEndian, uint32(e.Chunk.Index))
		writeString(&buf, e.Chunk.Text)
		buf.Write(float32SliceToBytes(e.Vector))
	}
	docs := ix.Documents()
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(docs)))
	for _, d := range docs {
		writeString(&buf, d)
	}
	_ = binary.Write(&buf, binary.LittleEndian, crc32.ChecksumIEEE(buf.Bytes()))
	return buf.Bytes()
}

// Decode parses a blob produced by Encode. Any structural problem, including a
// checksum mismatch, is reported as ErrIndexCorrupted.
func Decode(data []byte) (*Index, error) {
	if len(data) < len(blobMagic)+2+4+4+4+4 {
		return nil, fmt.Errorf("%w: blob too short (%d bytes)", ErrIndexCorrupted, len(data))
	}
	body, trailer := data[:len(data)-4], data[len(data)-4:]
	if got, want := crc32.ChecksumIEEE(body), binary.LittleEndian.Uint32(trailer); got != want {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrIndexCorrupted)
	}
	if string(body[:len(blobMagic)]) != blobMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrIndexCorrupted)
	}
	r := &blobReader{r: bytes.NewReader(body[len(blobMagic):])}

	version := r.uint16()
	if r.err == nil && version != blobVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrIndexCorrupted, version)
	}
	dim := int(r.uint32())
	n := int(r.uint32())
	if r.err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrIndexCorrupted, r.err)
	}
	if n > 0 && dim == 0 {
		return nil, fmt.Errorf("%w: entries without dimension", ErrIndexCorrupted)
	}
	if n > r.r.Len() {
		return nil, fmt.Errorf("%w: entry count %d exceeds blob", ErrIndexCorrupted, n)
	}

	ix := &Index{dimensions: dim, entries: make([]Entry, 0, n), documents: map[string]struct{}{}}
	vecBuf := make([]byte, dim*4)
	for i := 0; i < n && r.err == nil; i++ {
		var c models.Chunk
		c.ID = r.string()
		c.DocumentID = r.string()
		c.Index = int(r.uint32())
		c.Text = r.string()
		r.read(vecBuf)
		if r.err != nil {
			break
		}
		ix.entries = append(ix.entries, Entry{Chunk: c, Vector: bytesToFloat32Slice(vecBuf)})
	}
	docCount := int(r.uint32())
	if r.err == nil && docCount > r.r.Len() {
		return nil, fmt.Errorf("%w: document count %d exceeds blob", ErrIndexCorrupted, docCount)
	}
	for i := 0; i < docCount && r.err == nil; i++ {
		ix.documents[r.string()] = struct{}{}
	}
	if r.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexCorrupted, r.err)
	}
	if r.r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrIndexCorrupted, r.r.Len())
	}
	return ix, nil
}

type blobReader struct {
	r   *bytes.Reader
	err error
}

func (b *blobReader) read(p []byte) {
	if b.err != nil {
		return
	}
	_, b.err = io.ReadFull(b.r, p)
}

func (b *blobReader) uint16() uint16 {
	var p [2]byte
	b.read(p[:])
	return binary.LittleEndian.Uint16(p[:])
}

func (b *blobReader) uint32() uint32 {
	var p [4]byte
	b.read(p[:])
	return binary.LittleEndian.Uint32(p[:])
}

func (b *blobReader) string() string {
	n := int(b.uint32())
	if b.err != nil {
		return ""
	}
	if n > b.r.Len() {
		b.err = fmt.Errorf("string length %d exceeds blob", n)
		return ""
	}
	p := make([]byte, n)
	b.read(p)
	return string(p)
}

func writeString(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(s)))
	buf.WriteString(s)
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
