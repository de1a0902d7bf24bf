// Package blorb extracts a raw Glulx game image from an optional IFF/Blorb
// container (spec.md §6 - "when wrapped in a Blorb container, the loader
// extracts the inner image"). A bare game image (one starting with the
// Glulx magic) passes through unchanged.
package blorb

import (
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
)

var (
	// ErrNotIFF is not returned by Load: input that does not start with
	// the IFF "FORM" id passes through unchanged as a bare image.
	ErrNotIFF = errors.New("blorb: not an IFF FORM container")
	// ErrNotGlulxForm flags an IFF file whose FORM type isn't IFRS, or
	// whose Exec entry doesn't point at a GLUL chunk.
	ErrNotGlulxForm  = errors.New("blorb: not a Glulx Blorb (missing IFRS/Exec/GLUL)")
	ErrTruncated     = errors.New("blorb: truncated chunk")
	ErrChunkTooShort = errors.New("blorb: RIdx chunk too short")
)

const (
	idFORM = "FORM"
	idIFRS = "IFRS"
	idRIdx = "RIdx"
	idExec = "Exec"
	idGLUL = "GLUL"
	idIFmd = "IFmd"
)

// chunk is one IFF chunk: a 4-byte id, a big-endian 32-bit length, and
// that many content bytes (plus a pad byte if length is odd).
type chunk struct {
	id   string
	data []byte
}

// ResourceIndexEntry is one entry of a Blorb RIdx chunk.
type ResourceIndexEntry struct {
	UsageID string // "Pict", "Snd ", "Data", "Exec"
	Number  uint32
	Start   uint32 // byte offset of the resource chunk within the FORM
}

// Metadata is the optional iFiction bibliographic record (IFmd chunk),
// decoded only as far as the fields an interpreter's "about" screen
// would plausibly want; unrecognized elements are ignored by
// encoding/xml's default permissive decoding.
type Metadata struct {
	XMLName xml.Name `xml:"ifindex"`
	Story   struct {
		Identification struct {
			IFID string `xml:"ifid"`
		} `xml:"identification"`
		Bibliographic struct {
			Title   string `xml:"title"`
			Author  string `xml:"author"`
			Genre   string `xml:"genre"`
			Headline string `xml:"headline"`
		} `xml:"bibliographic"`
	} `xml:"story"`
}

// Load extracts the raw Glulx image from data. If data does not begin
// with the IFF "FORM" id, it is returned unchanged (a bare game image).
// If it does, the FORM must be an IFRS/Blorb with a RIdx pointing to an
// Exec resource whose chunk is GLUL; any IFmd chunk present is parsed
// into Metadata (nil if none).
func Load(data []byte) (image []byte, meta *Metadata, err error) {
	if len(data) < 4 || string(data[0:4]) != idFORM {
		return data, nil, nil
	}

	if len(data) < 12 {
		return nil, nil, ErrTruncated
	}
	formLen := binary.BigEndian.Uint32(data[4:8])
	formType := string(data[8:12])
	if formType != idIFRS {
		return nil, nil, ErrNotGlulxForm
	}

	end := 8 + int(formLen)
	if end > len(data) {
		end = len(data)
	}
	body := data[12:end]

	chunks, err := walkChunks(body)
	if err != nil {
		return nil, nil, err
	}

	var entries []ResourceIndexEntry
	var execOffset uint32
	haveExec := false

	for _, c := range chunks {
		switch c.id {
		case idRIdx:
			entries, err = parseRIdx(c.data)
			if err != nil {
				return nil, nil, err
			}
		case idIFmd:
			m := &Metadata{}
			if xerr := xml.Unmarshal(c.data, m); xerr == nil {
				meta = m
			}
		}
	}
	for _, e := range entries {
		if e.UsageID == idExec && e.Number == 0 {
			execOffset = e.Start
			haveExec = true
			break
		}
	}
	if !haveExec {
		return nil, nil, ErrNotGlulxForm
	}

	// Resource offsets in RIdx are relative to the start of the FORM's
	// body (immediately after the 4-byte form type), matching the
	// Blorb spec's "Start" field definition.
	if int(execOffset)+8 > len(body) {
		return nil, nil, ErrTruncated
	}
	execChunkID := string(body[execOffset : execOffset+4])
	execLen := binary.BigEndian.Uint32(body[execOffset+4 : execOffset+8])
	if execChunkID != idGLUL {
		return nil, nil, fmt.Errorf("%w: Exec chunk is %q, not GLUL", ErrNotGlulxForm, execChunkID)
	}
	start := execOffset + 8
	if int(start+execLen) > len(body) {
		return nil, nil, ErrTruncated
	}
	return body[start : start+execLen], meta, nil
}

// walkChunks splits body into a flat sequence of IFF chunks, each
// padded to an even length per the IFF spec.
func walkChunks(body []byte) ([]chunk, error) {
	var out []chunk
	pos := 0
	for pos+8 <= len(body) {
		id := string(body[pos : pos+4])
		length := binary.BigEndian.Uint32(body[pos+4 : pos+8])
		dataStart := pos + 8
		dataEnd := dataStart + int(length)
		if dataEnd > len(body) {
			return nil, ErrTruncated
		}
		out = append(out, chunk{id: id, data: body[dataStart:dataEnd]})
		pos = dataEnd
		if length%2 == 1 {
			pos++ // skip IFF pad byte
		}
	}
	return out, nil
}

// parseRIdx decodes a Blorb resource index: a 4-byte count followed by
// that many (usage[4], number[4], start[4]) 12-byte entries.
func parseRIdx(data []byte) ([]ResourceIndexEntry, error) {
	if len(data) < 4 {
		return nil, ErrChunkTooShort
	}
	count := binary.BigEndian.Uint32(data[0:4])
	entries := make([]ResourceIndexEntry, 0, count)
	pos := 4
	for i := uint32(0); i < count; i++ {
		if pos+12 > len(data) {
			return nil, ErrChunkTooShort
		}
		entries = append(entries, ResourceIndexEntry{
			UsageID: string(data[pos : pos+4]),
			Number:  binary.BigEndian.Uint32(data[pos+4 : pos+8]),
			Start:   binary.BigEndian.Uint32(data[pos+8 : pos+12]),
		})
		pos += 12
	}
	return entries, nil
}
