package memory

// Word is a validated handle to one aligned, in-range word of a Memory.
//
// The zero Word is invalid. Words are small values; copy them freely.
type Word struct {
	mem *Memory
	idx uint32
}

// Valid reports whether w refers to a word.
func (w Word) Valid() bool {
	return w.mem != nil
}

// Addr returns the byte address of w.
func (w Word) Addr() Address {
	if w.mem == nil {
		return 0
	}
	return w.mem.base + Address(w.idx*WordSize)
}

// Memory returns the region w belongs to.
func (w Word) Memory() *Memory {
	return w.mem
}

// Next returns the word immediately after w, or an invalid Word at the end of
// the region.
func (w Word) Next() Word {
	if w.mem == nil || int(w.idx)+1 >= len(w.mem.cells) {
		return Word{}
	}
	return Word{mem: w.mem, idx: w.idx + 1}
}

// String formats the word by address.
func (w Word) String() string {
	if w.mem == nil {
		return "word(invalid)"
	}
	return "word(" + w.Addr().String() + ")"
}
