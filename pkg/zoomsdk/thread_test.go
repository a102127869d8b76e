package zoomsdk

import (
	"sync"
	"testing"
)

func TestOSThreadExecute(t *testing.T) {
	th := NewOSThread()
	th.Start()
	defer th.Stop()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			th.Execute(func() {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
			})
		}(i)
	}
	wg.Wait()

	if len(order) != 5 {
		t.Errorf("executed %d commands, want 5", len(order))
	}
}

func TestOSThreadStopped(t *testing.T) {
	th := NewOSThread()
	th.Start()
	th.Stop()
	th.Stop()

	ran := false
	if th.Execute(func() { ran = true }) && !ran {
		t.Error("Execute reported success without running")
	}
}
