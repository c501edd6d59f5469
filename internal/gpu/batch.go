package gpu

// batch is one contiguous span of iterations dispatched in a single
// compute pass.
type batch struct {
	offset int // first iteration index covered by this batch
	length int // number of iterations
}

// planBatches splits total iterations into spans of at most size. The
// spans are contiguous, cover [0, total) exactly once, and only the last
// one may be short. A total of zero yields no batches.
func planBatches(total, size int) []batch {
	if total <= 0 || size <= 0 {
		return nil
	}
	out := make([]batch, 0, (total+size-1)/size)
	for off := 0; off < total; off += size {
		n := size
		if off+n > total {
			n = total - off
		}
		out = append(out, batch{offset: off, length: n})
	}
	return out
}

// dispatchExtent returns the workgroup grid covering a w by h pixel
// buffer with workgroupDim sized groups.
func dispatchExtent(w, h int) (x, y uint32) {
	x = uint32((w + workgroupDim - 1) / workgroupDim)
	y = uint32((h + workgroupDim - 1) / workgroupDim)
	return x, y
}
