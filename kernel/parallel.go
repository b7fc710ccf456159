package kernel

import (
	"runtime"
	"sync"
)

// parallelThreshold is the minimum row count to split a blit across workers.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 64

// rowChunk is a band of target rows for one worker.
type rowChunk struct {
	y0, y1 int
	fn     func(y0, y1 int)
}

// workerPool runs row bands on persistent goroutines. Each band writes
// disjoint rows of the target, so no locking is needed inside a blit.
type workerPool struct {
	numWorkers int

	workChan chan rowChunk
	doneChan chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
}

func newWorkerPool(workers int) *workerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &workerPool{numWorkers: workers}
}

func (p *workerPool) start() {
	if p.running {
		return
	}
	p.workChan = make(chan rowChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *workerPool) stop() {
	if !p.running {
		return
	}
	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

func (p *workerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			chunk.fn(chunk.y0, chunk.y1)
			p.doneChan <- struct{}{}
		}
	}
}

// run calls fn over [0, rows) and returns when every band is done.
func (p *workerPool) run(rows int, fn func(y0, y1 int)) {
	if p.numWorkers < 2 || rows < parallelThreshold {
		fn(0, rows)
		return
	}
	p.start()

	chunkSize := (rows + p.numWorkers - 1) / p.numWorkers
	dispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, rows)
		if start >= end {
			continue
		}
		p.workChan <- rowChunk{y0: start, y1: end, fn: fn}
		dispatched++
	}
	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}
}
