package acquisition

import (
	"runtime"
	"sync/atomic"
)

// spinLock is a short-hold mutual-exclusion primitive with bounded
// back-off. The buffer's critical sections are a few hundred bytes of
// copying, rare under contention (one writer, occasional readers), so a
// spin lock avoids the scheduling overhead of a blocking mutex for the
// common uncontended case.
type spinLock struct {
	state uint32
}

func (l *spinLock) Lock() {
	spins := 0
	for !atomic.CompareAndSwapUint32(&l.state, 0, 1) {
		spins++
		if spins < 30 {
			continue
		}
		runtime.Gosched()
	}
}

func (l *spinLock) Unlock() {
	atomic.StoreUint32(&l.state, 0)
}

// Buffer is the fixed-capacity circular window of recent samples. A single
// writer (the reader loop) calls Add; any number of callers may call
// Drain, Tail, or Len, all serialized through the same lock.
type Buffer struct {
	lock spinLock

	timestamps []float64
	data       []float64 // capacity * NumChannels, row-major
	numCh      int
	capacity   int

	firstUsed int
	firstFree int
	count     int
}

// NewBuffer allocates a buffer for numChannels-wide samples with the given
// capacity. capacity must be >= 1.
func NewBuffer(numChannels, capacity int) (*Buffer, error) {
	if capacity < 1 {
		return nil, newErr(StatusInvalidBufferSize, "capacity must be >= 1")
	}
	if numChannels < 1 {
		return nil, newErr(StatusInvalidBufferSize, "numChannels must be >= 1")
	}
	return &Buffer{
		timestamps: make([]float64, capacity),
		data:       make([]float64, capacity*numChannels),
		numCh:      numChannels,
		capacity:   capacity,
	}, nil
}

func (b *Buffer) next(i int) int {
	i++
	if i == b.capacity {
		return 0
	}
	return i
}

// Add inserts one sample. It never blocks longer than the critical
// section and always succeeds; on a full buffer the oldest sample is
// silently overwritten (writer-wins, no overflow signal to the caller).
func (b *Buffer) Add(ts float64, values []float64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	row := b.firstFree * b.numCh
	n := b.numCh
	if len(values) < n {
		n = len(values)
	}
	copy(b.data[row:row+n], values[:n])
	b.timestamps[b.firstFree] = ts

	if b.count < b.capacity {
		b.firstFree = b.next(b.firstFree)
		b.count++
	} else {
		// overwrite: oldest slot advances along with the write cursor
		b.firstFree = b.next(b.firstFree)
		b.firstUsed = b.firstFree
	}
}

// Drain removes up to max oldest samples in insertion order, copying into
// outTS/outData (outData must hold max*numChannels float64s). It returns
// the number of samples actually copied.
func (b *Buffer) Drain(max int, outTS []float64, outData []float64) int {
	b.lock.Lock()
	defer b.lock.Unlock()

	n := max
	if n > b.count {
		n = b.count
	}
	b.copyFromLocked(b.firstUsed, n, outTS, outData)

	b.firstUsed = (b.firstUsed + n) % b.capacity
	b.count -= n
	return n
}

// Tail performs a non-destructive copy of the most recent up-to-max
// samples, oldest-of-the-tail first. It does not mutate Len().
func (b *Buffer) Tail(max int, outTS []float64, outData []float64) int {
	b.lock.Lock()
	defer b.lock.Unlock()

	n := max
	if n > b.count {
		n = b.count
	}
	start := (b.firstUsed + (b.count - n)) % b.capacity
	b.copyFromLocked(start, n, outTS, outData)
	return n
}

// copyFromLocked copies n samples starting at ring index start into the
// caller buffers. Caller must hold b.lock.
func (b *Buffer) copyFromLocked(start, n int, outTS []float64, outData []float64) {
	idx := start
	for i := 0; i < n; i++ {
		outTS[i] = b.timestamps[idx]
		copy(outData[i*b.numCh:(i+1)*b.numCh], b.data[idx*b.numCh:(idx+1)*b.numCh])
		idx = b.next(idx)
	}
}

// Len returns the current sample count.
func (b *Buffer) Len() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.count
}

// NumChannels returns the channel width the buffer was created with.
func (b *Buffer) NumChannels() int { return b.numCh }

// Capacity returns the fixed sample capacity.
func (b *Buffer) Capacity() int { return b.capacity }
