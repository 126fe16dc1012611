package worker

import (
	"fmt"
	"log"
	"runtime/debug"
	"sync"
)

// Result is the outcome of processing one symbol
type Result[T any] struct {
	Symbol string
	Value  T
	Err    error
}

// ProcessFunc handles a single symbol
type ProcessFunc[T any] func(symbol string) (T, error)

type WorkerPool[T any] struct {
	workers int
	jobs    chan string
	results chan Result[T]
	wg      sync.WaitGroup
	process ProcessFunc[T]
}

// NewPool creates a new worker pool
func NewPool[T any](workers int, process ProcessFunc[T]) *WorkerPool[T] {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool[T]{
		workers: workers,
		jobs:    make(chan string, 100),
		results: make(chan Result[T], 100),
		process: process,
	}
}

// Start launches the worker goroutines
func (p *WorkerPool[T]) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// worker processes jobs from the jobs channel
func (p *WorkerPool[T]) worker(id int) {
	defer p.wg.Done()

	for symbol := range p.jobs {
		p.results <- p.run(id, symbol)
	}
}

func (p *WorkerPool[T]) run(id int, symbol string) (res Result[T]) {
	res.Symbol = symbol
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ [PANIC RECOVERED] Worker %d: %s: %v\n%s", id, symbol, r, debug.Stack())
			res.Err = fmt.Errorf("panic processing %s: %v", symbol, r)
		}
	}()

	res.Value, res.Err = p.process(symbol)
	if res.Err != nil {
		log.Printf("⚠️  Worker %d: Error processing %s: %v", id, symbol, res.Err)
	}
	return res
}

// AddJob adds a symbol to the job queue
func (p *WorkerPool[T]) AddJob(symbol string) {
	p.jobs <- symbol
}

// Run queues every symbol, waits for the workers and returns one result per symbol
func (p *WorkerPool[T]) Run(symbols []string) []Result[T] {
	p.Start()

	out := make([]Result[T], 0, len(symbols))
	done := make(chan struct{})
	go func() {
		for r := range p.results {
			out = append(out, r)
		}
		close(done)
	}()

	for _, s := range symbols {
		p.AddJob(s)
	}
	close(p.jobs)
	p.wg.Wait()
	close(p.results)
	<-done
	return out
}
