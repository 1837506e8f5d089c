package pipeline

import (
	"sync"
	"time"
)

// Frame is one inbound transport frame, immutable once enqueued.
type Frame struct {
	// Data is raw mu-law encoded audio.
	Data []byte

	// Timestamp is the arrival time.
	Timestamp time.Time
}

// frameQueue is a bounded FIFO of inbound frames. When full, Push drops
// the oldest frame: stale caller audio has negative value in real time.
// Safe for concurrent use.
type frameQueue struct {
	mu       sync.Mutex
	frames   []Frame
	capacity int
	dropped  int
}

func newFrameQueue(capacity int) *frameQueue {
	return &frameQueue{capacity: capacity}
}

// Push enqueues a frame, evicting the oldest when full. Reports whether
// an eviction occurred. Never blocks.
func (q *frameQueue) Push(frame Frame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	evicted := false
	if len(q.frames) == q.capacity {
		copy(q.frames, q.frames[1:])
		q.frames = q.frames[:len(q.frames)-1]
		q.dropped++
		evicted = true
	}
	q.frames = append(q.frames, frame)
	return evicted
}

// PopBatch dequeues up to n frames in arrival order.
func (q *frameQueue) PopBatch(n int) []Frame {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) == 0 {
		return nil
	}
	if n > len(q.frames) {
		n = len(q.frames)
	}
	batch := make([]Frame, n)
	copy(batch, q.frames[:n])
	remaining := copy(q.frames, q.frames[n:])
	q.frames = q.frames[:remaining]
	return batch
}

// Len returns the number of queued frames.
func (q *frameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Dropped returns the number of frames evicted so far.
func (q *frameQueue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// outChunk is one queued outbound audio chunk: PCM at the sample rate
// the synthesizer produced.
type outChunk struct {
	pcm        []int16
	sampleRate int
}

// chunkQueue is a bounded FIFO of outbound chunks. On interruption the
// whole queue is cleared atomically; the pacing loop never observes a
// partial drain. Safe for concurrent use.
type chunkQueue struct {
	mu       sync.Mutex
	chunks   []outChunk
	capacity int
}

func newChunkQueue(capacity int) *chunkQueue {
	return &chunkQueue{capacity: capacity}
}

// Push enqueues a chunk. Reports false when the queue is full; the
// chunk is discarded, truncating the tail of an overlong utterance
// rather than reordering it.
func (q *chunkQueue) Push(chunk outChunk) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.chunks) == q.capacity {
		return false
	}
	q.chunks = append(q.chunks, chunk)
	return true
}

// Pop dequeues the next chunk in enqueue order.
func (q *chunkQueue) Pop() (outChunk, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.chunks) == 0 {
		return outChunk{}, false
	}
	chunk := q.chunks[0]
	remaining := copy(q.chunks, q.chunks[1:])
	q.chunks = q.chunks[:remaining]
	return chunk, true
}

// Clear discards all queued chunks and returns how many were dropped.
func (q *chunkQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.chunks)
	q.chunks = q.chunks[:0]
	return n
}

// Len returns the number of queued chunks.
func (q *chunkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}
