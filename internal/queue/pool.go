package queue

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/tomashavel/faceforge/internal/database"
)

const defaultPollInterval = 2 * time.Second

// Pool runs a fixed number of workers against the durable queue. Each worker
// claims one pending job at a time and processes it end-to-end; cancellation
// is cooperative, a worker finishes its current job before stopping.
type Pool struct {
	worker   *Worker
	store    database.JobStore
	size     int
	interval time.Duration
}

func NewPool(worker *Worker, store database.JobStore, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		worker:   worker,
		store:    store,
		size:     size,
		interval: defaultPollInterval,
	}
}

// Run blocks until ctx is cancelled and every worker has drained.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) loop(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.store.Claim(ctx)
		if err != nil {
			if !errors.Is(err, database.ErrNoJobs) {
				log.Printf("worker %d: claim failed: %v", id, err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.interval):
			}
			continue
		}

		log.Printf("worker %d: processing job %s (%s)", id, job.ID, job.Kind)
		if err := p.worker.Process(ctx, job); err != nil {
			log.Printf("worker %d: job %s failed: %v", id, job.ID, err)
		}
	}
}
