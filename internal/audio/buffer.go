package audio

import "sync"

// frameBuffer collects callback blocks. The mutex is held only while a block
// is appended or the whole buffer is swapped out.
type frameBuffer struct {
	mu     sync.Mutex
	blocks [][]float32
	frames int
}

// append stores a copy of block.
func (b *frameBuffer) append(block []float32) {
	if len(block) == 0 {
		return
	}
	cp := make([]float32, len(block))
	copy(cp, block)

	b.mu.Lock()
	b.blocks = append(b.blocks, cp)
	b.frames += len(cp)
	b.mu.Unlock()
}

// drain returns every stored block and empties the buffer.
func (b *frameBuffer) drain() ([][]float32, int) {
	b.mu.Lock()
	blocks, frames := b.blocks, b.frames
	b.blocks, b.frames = nil, 0
	b.mu.Unlock()
	return blocks, frames
}

func (b *frameBuffer) reset() { b.drain() }

func (b *frameBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

// quantize concatenates blocks into int16 PCM.
func quantize(blocks [][]float32, frames int) []int16 {
	out := make([]int16, 0, frames)
	for _, blk := range blocks {
		for _, x := range blk {
			switch {
			case x != x:
				x = 0
			case x > 1:
				x = 1
			case x < -1:
				x = -1
			}
			out = append(out, int16(x*maxSample))
		}
	}
	return out
}
