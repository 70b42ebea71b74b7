package chunker

// Chunk is one contiguous byte range of an upload. Offsets are file
// offsets; the remote assembles by offset, so chunks must be sent in order.
type Chunk struct {
	Offset uint64
	Length uint64
	Last   bool
}

// Chunker plans the sequential chunks of a file of a known size. It holds
// no data; the transfer session reads each range when the chunk is due.
type Chunker struct {
	totalSize uint64
	chunkSize uint64
	next      uint64
}

func NewChunker(totalSize, chunkSize uint64) *Chunker {
	if chunkSize == 0 {
		panic("chunkSize must be > 0")
	}
	return &Chunker{totalSize: totalSize, chunkSize: chunkSize}
}

// Count returns the total number of chunks the plan will produce. A
// zero-length file produces none.
func (ckr *Chunker) Count() uint64 {
	return (ckr.totalSize + ckr.chunkSize - 1) / ckr.chunkSize
}

// Next returns the next chunk in offset order. ok == false means the plan
// is exhausted.
func (ckr *Chunker) Next() (Chunk, bool) {
	if ckr.next >= ckr.totalSize {
		return Chunk{}, false
	}

	offset := ckr.next
	length := ckr.chunkSize
	if remaining := ckr.totalSize - offset; remaining < length {
		length = remaining
	}
	ckr.next = offset + length

	return Chunk{
		Offset: offset,
		Length: length,
		Last:   offset+length == ckr.totalSize,
	}, true
}
