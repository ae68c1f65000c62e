package engine

import "container/heap"

// task asks the scheduler to update one native application within one
// user activation.
type task struct {
	app        *Application
	activation *UserActivation
}

type queueItem struct {
	priority string
	task     task
	seq      uint64
}

// taskQueue is a min-priority queue of tasks ordered by the application's
// priority string, then by activation ID. Tasks for the same application and
// activation are therefore adjacent when popped, which lets the scheduler
// collapse duplicates.
//
// The queue is owned by the runtime's single logical thread and is not
// safe for concurrent use.
type taskQueue struct {
	items taskHeap
	seq   uint64
}

func newTaskQueue() *taskQueue {
	return &taskQueue{items: make(taskHeap, 0, 64)}
}

// Push inserts a task at the application's current priority.
func (q *taskQueue) Push(t task) {
	q.seq++
	heap.Push(&q.items, queueItem{priority: t.app.priority, task: t, seq: q.seq})
}

// Pop removes the highest priority task. Callers check Len first.
func (q *taskQueue) Pop() task {
	return heap.Pop(&q.items).(queueItem).task
}

// Peek returns the highest priority task without removing it.
func (q *taskQueue) Peek() (task, bool) {
	if len(q.items) == 0 {
		return task{}, false
	}
	return q.items[0].task, true
}

// Len returns the number of queued tasks, duplicates included.
func (q *taskQueue) Len() int { return len(q.items) }

// Clear drops every queued task.
func (q *taskQueue) Clear() { q.items = q.items[:0] }

type taskHeap []queueItem

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	if a.task.activation.id != b.task.activation.id {
		return a.task.activation.id < b.task.activation.id
	}
	// Different applications can share a priority string across roots.
	if a.task.app.id != b.task.app.id {
		return a.task.app.id < b.task.app.id
	}
	return a.seq < b.seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(queueItem)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
