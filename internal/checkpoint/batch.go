package checkpoint

// Batch makes every Nth call to Due a checkpoint.
//
// This amortizes the poll across many loop iterations. Useful for tight
// geometry loops (vertex walks, ring scans) where a poll per iteration
// would dominate.
type Batch struct {
	every int
	count int
}

// NewBatch creates a Batch that is due every N calls.
func NewBatch(every int) *Batch {
	if every < 1 {
		every = 1
	}
	return &Batch{every: every}
}

// Due returns true on every Nth call.
func (b *Batch) Due() bool {
	b.count++
	if b.count < b.every {
		return false
	}
	b.count = 0
	return true
}

// Reset restarts the count.
func (b *Batch) Reset() {
	b.count = 0
}

// Every returns the batch size.
func (b *Batch) Every() int {
	return b.every
}
