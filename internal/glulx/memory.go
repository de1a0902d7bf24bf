package glulx

import "encoding/binary"

/*
	Memory Map (C1)

	The image is a single contiguous byte array logically partitioned by
	three addresses from the header, each a multiple of 256:

		[0, ramstart)   ROM   - immutable, writes are fatal
		[ramstart, extstart)  RAM persisted to disk on save
		[extstart, endmem)    RAM beyond the persisted image (zero-filled
		                       extension space), resizable at runtime

	All multi-byte values are big-endian, per the Glulx spec - unlike
	the teacher's little-endian virtual architecture, every read/write
	here goes through encoding/binary.BigEndian.
*/

type Memory struct {
	data     []byte
	ramstart uint32
	extstart uint32
}

func newMemory(initial []byte, ramstart, extstart uint32) *Memory {
	m := &Memory{
		data:     make([]byte, len(initial)),
		ramstart: ramstart,
		extstart: extstart,
	}
	copy(m.data, initial)
	return m
}

// Size returns the current endmem.
func (m *Memory) Size() uint32 { return uint32(len(m.data)) }

func (m *Memory) checkBounds(addr, length uint32) error {
	if uint64(addr)+uint64(length) > uint64(len(m.data)) {
		return ErrOutOfBounds
	}
	return nil
}

func (m *Memory) checkWritable(addr, length uint32) error {
	if addr < m.ramstart {
		return ErrWriteToRom
	}
	return m.checkBounds(addr, length)
}

func (m *Memory) ReadByte(addr uint32) (byte, error) {
	if err := m.checkBounds(addr, 1); err != nil {
		return 0, err
	}
	return m.data[addr], nil
}

func (m *Memory) ReadShort(addr uint32) (uint16, error) {
	if err := m.checkBounds(addr, 2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(m.data[addr:]), nil
}

func (m *Memory) ReadWord(addr uint32) (uint32, error) {
	if err := m.checkBounds(addr, 4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(m.data[addr:]), nil
}

func (m *Memory) WriteByte(addr uint32, v byte) error {
	if err := m.checkWritable(addr, 1); err != nil {
		return err
	}
	m.data[addr] = v
	return nil
}

func (m *Memory) WriteShort(addr uint32, v uint16) error {
	if err := m.checkWritable(addr, 2); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(m.data[addr:], v)
	return nil
}

func (m *Memory) WriteWord(addr uint32, v uint32) error {
	if err := m.checkWritable(addr, 4); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(m.data[addr:], v)
	return nil
}

// writeByteRaw bypasses the ROM check, for internal setup writes (e.g.
// header patching). Bounds are still enforced. MZero and MCopy do not
// use it; they apply the ROM check like any other store.
func (m *Memory) writeByteRaw(addr uint32, v byte) error {
	if err := m.checkBounds(addr, 1); err != nil {
		return err
	}
	m.data[addr] = v
	return nil
}

// MZero zeroes `length` bytes starting at addr.
func (m *Memory) MZero(addr, length uint32) error {
	if err := m.checkWritable(addr, length); err != nil {
		return err
	}
	region := m.data[addr : addr+length]
	for i := range region {
		region[i] = 0
	}
	return nil
}

// MCopy copies `length` bytes from src to dst, matching the spec's
// overlap semantics: when the ranges overlap and dst > src the copy
// runs backward so the result equals copying from an untouched
// snapshot of src.
func (m *Memory) MCopy(src, dst, length uint32) error {
	if err := m.checkBounds(src, length); err != nil {
		return err
	}
	if err := m.checkWritable(dst, length); err != nil {
		return err
	}
	if length == 0 || src == dst {
		return nil
	}
	if dst > src && dst < src+length {
		for i := int64(length) - 1; i >= 0; i-- {
			m.data[dst+uint32(i)] = m.data[src+uint32(i)]
		}
	} else {
		copy(m.data[dst:dst+length], m.data[src:src+length])
	}
	return nil
}

// SetMemSize implements setmemsize: n must be >= extstart and a
// multiple of 256. Growing zero-fills the new region; shrinking
// truncates. Returns nil on success, matching the opcode's "return
// zero on success" contract via a boolean result to the caller.
func (m *Memory) SetMemSize(n uint32) error {
	if n < m.extstart || n%256 != 0 {
		return ErrUnalignedMemSize
	}
	cur := uint32(len(m.data))
	if n == cur {
		return nil
	}
	if n > cur {
		grown := make([]byte, n)
		copy(grown, m.data)
		m.data = grown
	} else {
		m.data = m.data[:n]
	}
	return nil
}

// Bytes exposes the raw backing slice read-only for callers (string
// decoder, save/restore) that need to scan ranges directly rather than
// through ReadByte in a loop.
func (m *Memory) Bytes() []byte { return m.data }

func (m *Memory) RAMStart() uint32 { return m.ramstart }
func (m *Memory) ExtStart() uint32 { return m.extstart }
