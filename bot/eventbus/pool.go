package eventbus

import (
	"log/slog"
	"sync"
)

// dispatchPool runs tasks with per-key serialization: tasks sharing a key run
// in submission order on one worker at a time, while different keys proceed
// concurrently. A handler blocking on I/O therefore stalls only its own
// table's stream.
type dispatchPool struct {
	do func(*poolTask)

	feeder chan *poolTask
	wg     sync.WaitGroup

	lk     sync.Mutex
	active map[string][]*poolTask
	closed bool
}

type poolTask struct {
	key string
	ev  Event
}

func newDispatchPool(workers int, do func(*poolTask)) *dispatchPool {
	if workers <= 0 {
		workers = 4
	}

	p := &dispatchPool{
		do:     do,
		feeder: make(chan *poolTask),
		active: make(map[string][]*poolTask),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	return p
}

// Add enqueues a task. If a worker already owns the key, the task is appended
// to that key's queue and picked up by the same worker, preserving order.
func (p *dispatchPool) Add(key string, ev Event) {
	t := &poolTask{key: key, ev: ev}

	p.lk.Lock()
	if p.closed {
		p.lk.Unlock()
		slog.Warn("event dropped on closed dispatch pool", "table", key)
		return
	}

	a, ok := p.active[key]
	if ok {
		p.active[key] = append(a, t)
		p.lk.Unlock()
		return
	}

	p.active[key] = []*poolTask{}
	p.lk.Unlock()

	p.feeder <- t
}

func (p *dispatchPool) worker() {
	defer p.wg.Done()
	for work := range p.feeder {
		for work != nil {
			p.do(work)

			p.lk.Lock()
			rem, ok := p.active[work.key]
			if !ok && !p.closed {
				slog.Error("dispatch pool missing active entry for in-flight key", "key", work.key)
			}

			if len(rem) == 0 {
				delete(p.active, work.key)
				work = nil
			} else {
				work = rem[0]
				p.active[work.key] = rem[1:]
			}
			p.lk.Unlock()
		}
	}
}

// Close stops accepting tasks and waits for in-flight work to finish.
// Queued-but-unstarted tasks for busy keys are abandoned.
func (p *dispatchPool) Close() {
	p.lk.Lock()
	if p.closed {
		p.lk.Unlock()
		return
	}
	p.closed = true
	p.active = make(map[string][]*poolTask)
	p.lk.Unlock()

	close(p.feeder)
	p.wg.Wait()
}
