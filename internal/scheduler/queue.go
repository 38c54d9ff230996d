package scheduler

// item is a pending job with its position in the heap.
type item struct {
	job   Job
	seq   uint64
	index int
}

// jobQueue is a container/heap ordered by fire time, insertion order breaking ties.
type jobQueue []*item

func (q jobQueue) Len() int { return len(q) }

func (q jobQueue) Less(i, j int) bool {
	if q[i].job.FireAt.Equal(q[j].job.FireAt) {
		return q[i].seq < q[j].seq
	}
	return q[i].job.FireAt.Before(q[j].job.FireAt)
}

func (q jobQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *jobQueue) Push(x any) {
	it := x.(*item)
	it.index = len(*q)
	*q = append(*q, it)
}

func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*q = old[:n-1]
	return it
}
