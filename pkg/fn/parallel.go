package fn

import "sync"

// ParMapResult applies f to each item with bounded concurrency, returning
// Results in input order.
func ParMapResult[T, U any](items []T, workers int, f func(T) Result[U]) []Result[U] {
	out := make([]Result[U], len(items))
	if len(items) == 0 {
		return out
	}
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, v := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, v T) {
			defer func() { <-sem; wg.Done() }()
			out[i] = f(v)
		}(i, v)
	}
	wg.Wait()
	return out
}

// Parallel2 runs two heterogeneous functions concurrently and returns both
// results. Callers decide how to combine values and failures; the hybrid
// retriever joins a lexical and a vector ranking this way.
func Parallel2[A, B any](f func() Result[A], g func() Result[B]) (Result[A], Result[B]) {
	var (
		ra Result[A]
		rb Result[B]
		wg sync.WaitGroup
	)
	wg.Add(2)
	go func() { defer wg.Done(); ra = f() }()
	go func() { defer wg.Done(); rb = g() }()
	wg.Wait()
	return ra, rb
}
