package scheduler

import "container/heap"

// jobHeap implements container/heap.Interface for Job,
// sorted by RunAt (earliest first — min-heap).
type jobHeap []Job

func (h jobHeap) Len() int           { return len(h) }
func (h jobHeap) Less(i, j int) bool { return h[i].RunAt.Before(h[j].RunAt) }
func (h jobHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) {
	*h = append(*h, x.(Job))
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// heapPush adds a Job to the heap, maintaining the heap invariant.
func heapPush(h *jobHeap, j Job) {
	heap.Push(h, j)
}

// heapPop removes and returns the Job with the earliest RunAt.
// Panics if the heap is empty.
func heapPop(h *jobHeap) Job {
	return heap.Pop(h).(Job)
}

// heapRemoveByKey removes the first Job with the given key.
// Returns true if a job was found and removed, false otherwise.
func heapRemoveByKey(h *jobHeap, key string) bool {
	for i, j := range *h {
		if j.Key == key {
			heap.Remove(h, i)
			return true
		}
	}
	return false
}
