package blorb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func chunkBytes(id string, data []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(id)
	buf.Write(be32(uint32(len(data))))
	buf.Write(data)
	if len(data)%2 == 1 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// buildBlorb assembles a minimal IFRS FORM with a single-entry RIdx
// pointing at a GLUL chunk holding gameImage.
func buildBlorb(t *testing.T, gameImage []byte) []byte {
	t.Helper()

	glul := chunkBytes(idGLUL, gameImage)

	// Lay out: IFRS, RIdx(count=1,entry), GLUL(gameImage). RIdx start
	// offsets are relative to the FORM body, right after the 4-byte
	// form type.
	var preRidx bytes.Buffer
	preRidx.WriteString(idIFRS)

	ridxHeaderLen := 8 + 4 + 12 // chunk header + count + one entry
	glulStart := uint32(ridxHeaderLen)

	ridxData := append(be32(1), append([]byte(idExec), append(be32(0), be32(glulStart)...)...)...)
	ridxChunk := chunkBytes(idRIdx, ridxData)

	var form bytes.Buffer
	form.Write(preRidx.Bytes())
	form.Write(ridxChunk)
	form.Write(glul)

	var out bytes.Buffer
	out.WriteString(idFORM)
	out.Write(be32(uint32(form.Len())))
	out.Write(form.Bytes())
	return out.Bytes()
}

func TestLoadBareImagePassesThrough(t *testing.T) {
	img := []byte("Glul\x00\x00\x03\x01rest-of-header")
	got, meta, err := Load(img)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, meta == nil, "bare image should have no metadata")
	assert(t, bytes.Equal(got, img), "bare image should pass through unchanged")
}

func TestLoadExtractsGlulFromBlorb(t *testing.T) {
	gameImage := []byte("Glul\x00\x00\x03\x010123456789")
	blob := buildBlorb(t, gameImage)

	got, meta, err := Load(blob)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, meta == nil, "no IFmd chunk present, expected nil metadata")
	assert(t, bytes.Equal(got, gameImage), "extracted image mismatch: got %q want %q", got, gameImage)
}

func TestLoadRejectsNonIFRSForm(t *testing.T) {
	var form bytes.Buffer
	form.WriteString("WXYZ")

	var out bytes.Buffer
	out.WriteString(idFORM)
	out.Write(be32(uint32(form.Len())))
	out.Write(form.Bytes())

	_, _, err := Load(out.Bytes())
	assert(t, err != nil, "expected error for non-IFRS form type")
}

func TestLoadTruncatedChunkErrors(t *testing.T) {
	_, _, err := Load([]byte("FORM\x00\x00\x00\x10IFRSRIdx\x00\x00\x00\x10\x00\x00\x00\x01"))
	assert(t, err != nil, "expected truncation error")
}
