package glulx

// heapAllocator implements the malloc/mfree opcode family as a simple
// first-fit free list layered on top of Memory.SetMemSize (spec.md
// §4.5's "Memory management" family). The heap lives entirely in the
// extension-memory region; growing it calls through to SetMemSize so
// extstart/endmem bookkeeping stays in one place.
type heapAllocator struct {
	mem    *Memory
	active bool
	blocks []heapBlock
}

type heapBlock struct {
	addr uint32
	size uint32
	free bool
}

func newHeapAllocator(mem *Memory) *heapAllocator {
	return &heapAllocator{mem: mem}
}

// Malloc allocates n bytes, growing the memory image if no free block
// fits, and returns the block's address or 0 on failure (spec.md's
// "malloc returns 0 if allocation fails" contract - this implementation
// never fails short of a size overflow).
func (h *heapAllocator) Malloc(n uint32) uint32 {
	if n == 0 {
		return 0
	}
	if !h.active {
		h.active = true
	}
	for i := range h.blocks {
		b := &h.blocks[i]
		if b.free && b.size >= n {
			if b.size > n+16 {
				h.blocks = append(h.blocks, heapBlock{})
				copy(h.blocks[i+2:], h.blocks[i+1:])
				h.blocks[i+1] = heapBlock{addr: b.addr + n, size: b.size - n, free: true}
				b = &h.blocks[i]
				b.size = n
			}
			b.free = false
			return b.addr
		}
	}

	cur := h.mem.Size()
	grown := alignUp256(cur + n)
	if err := h.mem.SetMemSize(grown); err != nil {
		return 0
	}
	addr := cur
	h.blocks = append(h.blocks, heapBlock{addr: addr, size: grown - cur, free: false})
	if grown-cur > n {
		h.blocks = append(h.blocks, heapBlock{addr: addr + n, size: grown - cur - n, free: true})
		h.blocks[len(h.blocks)-2].size = n
	}
	return addr
}

// Free releases the block at addr, merging with adjacent free blocks.
func (h *heapAllocator) Free(addr uint32) {
	for i := range h.blocks {
		if h.blocks[i].addr == addr {
			h.blocks[i].free = true
			h.mergeAdjacent()
			return
		}
	}
}

func (h *heapAllocator) mergeAdjacent() {
	for i := 0; i+1 < len(h.blocks); i++ {
		a, b := &h.blocks[i], h.blocks[i+1]
		if a.free && b.free && a.addr+a.size == b.addr {
			a.size += b.size
			h.blocks = append(h.blocks[:i+1], h.blocks[i+2:]...)
			i--
		}
	}
}

func alignUp256(v uint32) uint32 {
	return (v + 255) &^ 255
}
