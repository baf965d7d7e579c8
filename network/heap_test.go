package network

import (
	"container/heap"
	"testing"

	"gotest.tools/v3/assert"
)

func TestTimerHeapOrdersByExpiry(t *testing.T) {
	h := &timerHeap{}
	heap.Init(h)

	expiries := []float64{5, 1, 3, 2, 4}
	for _, e := range expiries {
		heap.Push(h, &Timer{Expires: e})
	}

	var got []float64
	for h.Len() > 0 {
		got = append(got, heap.Pop(h).(*Timer).Expires)
	}

	assert.DeepEqual(t, got, []float64{1, 2, 3, 4, 5})
}

func TestTimerCancel(t *testing.T) {
	tm := &Timer{Expires: 1}
	assert.Equal(t, tm.Cancelled, false)
	tm.Cancel()
	assert.Equal(t, tm.Cancelled, true)
}
