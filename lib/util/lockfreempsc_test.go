package util

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestBasicOperations tests basic push and consume functionality
func TestBasicOperations(t *testing.T) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	for i := 0; i < 10; i++ {
		if !q.Push(i) {
			t.Fatalf("Failed to push item %d", i)
		}
	}

	for i := 0; i < 10; i++ {
		select {
		case val := <-q.Recv():
			if val != i {
				t.Errorf("Expected %d, got %v", i, val)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for item %d", i)
		}
	}

	select {
	case val := <-q.Recv():
		t.Errorf("Queue should be empty, but got %v", val)
	case <-time.After(10 * time.Millisecond):
		// Expected timeout, queue is empty
	}
}

// TestConcurrentProducers verifies no item is lost or duplicated with many producers
func TestConcurrentProducers(t *testing.T) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	const numProducers = 10
	const itemsPerProducer = 1000
	totalItems := numProducers * itemsPerProducer

	received := make(map[int]bool, totalItems)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for len(received) < totalItems {
			select {
			case val := <-q.Recv():
				if received[val] {
					t.Errorf("Duplicate item received: %v", val)
				}
				received[val] = true
			case <-time.After(2 * time.Second):
				t.Errorf("Timeout waiting for items, received %d of %d", len(received), totalItems)
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(numProducers)
	for p := 0; p < numProducers; p++ {
		go func(producerID int) {
			defer wg.Done()
			base := producerID * itemsPerProducer
			for i := 0; i < itemsPerProducer; i++ {
				if !q.Push(base + i) {
					t.Errorf("Producer %d failed to push item %d", producerID, i)
				}
				if i%100 == 0 {
					runtime.Gosched()
				}
			}
		}(p)
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Timeout waiting for consumer to finish")
	}

	if len(received) != totalItems {
		t.Errorf("Expected %d items, got %d", totalItems, len(received))
	}
}

// TestPerProducerOrdering checks that each producer's items arrive in push order
func TestPerProducerOrdering(t *testing.T) {
	q := NewLockFreeMPSC[[2]int]()
	defer q.Close()

	const producers = 4
	const items = 2000

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < items; i++ {
				q.Push([2]int{id, i})
			}
		}(p)
	}

	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	for n := 0; n < producers*items; n++ {
		select {
		case v := <-q.Recv():
			if v[1] != last[v[0]]+1 {
				t.Fatalf("producer %d: expected %d, got %d", v[0], last[v[0]]+1, v[1])
			}
			last[v[0]] = v[1]
		case <-time.After(2 * time.Second):
			t.Fatalf("Timeout after %d items", n)
		}
	}
	wg.Wait()
}

// TestCloseQueue verifies closing behavior
func TestCloseQueue(t *testing.T) {
	q := NewLockFreeMPSC[int]()

	for i := 0; i < 5; i++ {
		q.Push(i)
	}

	q.Close()

	if q.Push(100) {
		t.Error("Should not be able to push after queue is closed")
	}
	if !q.IsClosed() {
		t.Error("IsClosed should report true")
	}

	for i := 0; i < 5; i++ {
		select {
		case val := <-q.Recv():
			if val != i {
				t.Errorf("Expected %d, got %v", i, val)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for item %d after close", i)
		}
	}

	select {
	case _, ok := <-q.Recv():
		if ok {
			t.Error("Channel should be closed but is still open")
		}
	case <-time.After(time.Second):
		t.Error("Channel was not closed after draining")
	}
}

// TestWakeAfterIdle makes sure a push after a long idle period is delivered
func TestCloseWhilePushing(t *testing.T) {
	const rounds = 200
	const producers = 8

	for round := 0; round < rounds; round++ {
		q := NewLockFreeMPSC[int]()
		var accepted atomic.Int64
		var wg sync.WaitGroup
		start := make(chan struct{})

		for p := 0; p < producers; p++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for i := 0; i < 50; i++ {
					if !q.Push(i) {
						return
					}
					accepted.Add(1)
				}
			}()
		}

		delivered := make(chan int64)
		go func() {
			var n int64
			for range q.Recv() {
				n++
			}
			delivered <- n
		}()

		close(start)
		runtime.Gosched()
		q.Close()
		wg.Wait()

		select {
		case n := <-delivered:
			if n != accepted.Load() {
				t.Fatalf("round %d: accepted %d items, delivered %d", round, accepted.Load(), n)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("round %d: Recv channel was not closed", round)
		}
	}
}

func TestWakeAfterIdle(t *testing.T) {
	q := NewLockFreeMPSC[string]()
	defer q.Close()

	for round := 0; round < 50; round++ {
		time.Sleep(time.Millisecond)
		q.Push("tick")
		select {
		case v := <-q.Recv():
			if v != "tick" {
				t.Fatalf("unexpected value %q", v)
			}
		case <-time.After(time.Second):
			t.Fatalf("round %d: item was never delivered", round)
		}
	}
}

// BenchmarkSingleProducer benchmarks the queue with a single producer
func BenchmarkSingleProducer(b *testing.B) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	go func() {
		for range q.Recv() {
		}
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.Push(i)
	}
}

// BenchmarkMultiProducer benchmarks the queue with multiple producers
func BenchmarkMultiProducer(b *testing.B) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	go func() {
		for range q.Recv() {
		}
	}()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			q.Push(i)
			i++
		}
	})
}
