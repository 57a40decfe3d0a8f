package audio

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBufferWrapAround(t *testing.T) {
	rb := NewRingBuffer(4)
	assert.Equal(t, 3, rb.Write([]float32{1, 2, 3}))

	out := make([]float32, 2)
	require.Equal(t, 2, rb.Read(out))
	assert.Equal(t, []float32{1, 2}, out)

	assert.Equal(t, 3, rb.Write([]float32{4, 5, 6, 7}), "only free slots are written")
	assert.Equal(t, 4, rb.Len())
	assert.InDelta(t, 100.0, rb.FillPercent(), 1e-9)

	out = make([]float32, 8)
	require.Equal(t, 4, rb.Read(out))
	assert.Equal(t, []float32{3, 4, 5, 6}, out[:4])
	assert.Equal(t, 0, rb.Len())
}

func TestRingBufferSPSC(t *testing.T) {
	rb := NewRingBuffer(64)
	const total = 10000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		next := float32(0)
		for next < total {
			chunk := make([]float32, 0, 16)
			for i := next; i < next+16 && i < total; i++ {
				chunk = append(chunk, i)
			}
			n := rb.Write(chunk)
			next += float32(n)
		}
	}()

	got := make([]float32, 0, total)
	buf := make([]float32, 7)
	for len(got) < total {
		n := rb.Read(buf)
		got = append(got, buf[:n]...)
	}
	wg.Wait()

	for i, v := range got {
		if v != float32(i) {
			t.Fatalf("sample %d = %v", i, v)
		}
	}
}
