package trending

import (
	"context"
	"sync"
)

// Outcome is the settled result of one task.
type Outcome[T any] struct {
	Value T
	Err   error
}

// OK reports whether the task succeeded.
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// Task is one unit of work handed to SettleAll.
type Task[T any] func(ctx context.Context) (T, error)

// SettleAll runs every task concurrently and waits for all of them. The
// returned slice holds one outcome per task, in task order. A failing task
// neither cancels nor delays the others.
func SettleAll[T any](ctx context.Context, tasks ...Task[T]) []Outcome[T] {
	out := make([]Outcome[T], len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := task(ctx)
			out[i] = Outcome[T]{Value: v, Err: err}
		}()
	}
	wg.Wait()
	return out
}
