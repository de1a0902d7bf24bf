package glulx

// Search option bits (spec.md §4.5's search family).
const (
	searchOptKeyIndirect  = 1
	searchOptZeroTerm     = 2
	searchOptReturnIndex  = 4
)

func (vm *VM) keyBytesAt(addr, keySize uint32, keyIndirect bool) ([]byte, error) {
	if !keyIndirect {
		b := make([]byte, keySize)
		switch keySize {
		case 1:
			v, err := vm.Mem.ReadByte(addr)
			b[0] = v
			return b, err
		case 2:
			v, err := vm.Mem.ReadShort(addr)
			b[0], b[1] = byte(v>>8), byte(v)
			return b, err
		default:
			v, err := vm.Mem.ReadWord(addr)
			b[0], b[1], b[2], b[3] = byte(v>>24), byte(v>>16), byte(v>>8), byte(v)
			return b, err
		}
	}
	b := make([]byte, keySize)
	for i := uint32(0); i < keySize; i++ {
		v, err := vm.Mem.ReadByte(addr + i)
		if err != nil {
			return nil, err
		}
		b[i] = v
	}
	return b, nil
}

func (vm *VM) structKeyBytes(structAddr, keyOffset, keySize uint32, keyIndirect bool) ([]byte, error) {
	return vm.keyBytesAt(structAddr+keyOffset, keySize, keyIndirect)
}

func keysEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func keyLess(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// LinearSearch implements the linearsearch opcode.
func (vm *VM) LinearSearch(key, keySize, start, structSize, numStructs, keyOffset, options uint32) (uint32, error) {
	indirect := options&searchOptKeyIndirect != 0
	returnIdx := options&searchOptReturnIndex != 0
	keyBytes, err := vm.keyBytesAt(key, keySize, indirect)
	if err != nil {
		return 0, err
	}
	for i := uint32(0); i < numStructs; i++ {
		addr := start + i*structSize
		cand, err := vm.structKeyBytes(addr, keyOffset, keySize, indirect)
		if err != nil {
			return 0, err
		}
		if keysEqual(keyBytes, cand) {
			if returnIdx {
				return i, nil
			}
			return addr, nil
		}
	}
	if returnIdx {
		return 0xFFFFFFFF, nil
	}
	return 0, nil
}

// BinarySearch implements the binarysearch opcode; the table must
// already be sorted ascending by key.
func (vm *VM) BinarySearch(key, keySize, start, structSize, numStructs, keyOffset, options uint32) (uint32, error) {
	indirect := options&searchOptKeyIndirect != 0
	returnIdx := options&searchOptReturnIndex != 0
	keyBytes, err := vm.keyBytesAt(key, keySize, indirect)
	if err != nil {
		return 0, err
	}
	lo, hi := int64(0), int64(numStructs)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		addr := start + uint32(mid)*structSize
		cand, err := vm.structKeyBytes(addr, keyOffset, keySize, indirect)
		if err != nil {
			return 0, err
		}
		switch {
		case keysEqual(keyBytes, cand):
			if returnIdx {
				return uint32(mid), nil
			}
			return addr, nil
		case keyLess(cand, keyBytes):
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	if returnIdx {
		return 0xFFFFFFFF, nil
	}
	return 0, nil
}

// LinkedSearch implements the linkedsearch opcode: each struct's next
// pointer is read at byte offset nextOffset within it.
func (vm *VM) LinkedSearch(key, keySize, start, keyOffset, nextOffset, options uint32) (uint32, error) {
	indirect := options&searchOptKeyIndirect != 0
	zeroTerm := options&searchOptZeroTerm != 0
	keyBytes, err := vm.keyBytesAt(key, keySize, indirect)
	if err != nil {
		return 0, err
	}
	addr := start
	for addr != 0 {
		cand, err := vm.structKeyBytes(addr, keyOffset, keySize, indirect)
		if err != nil {
			return 0, err
		}
		if keysEqual(keyBytes, cand) {
			return addr, nil
		}
		next, err := vm.Mem.ReadWord(addr + nextOffset)
		if err != nil {
			return 0, err
		}
		if zeroTerm && next == 0 {
			break
		}
		addr = next
	}
	return 0, nil
}
