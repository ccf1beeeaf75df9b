package cashier

import (
	"context"
	"sync"
)

// hashJob is one leaf read; done is the owning directory's join point
type hashJob struct {
	node *FileNode
	err  error
	done *sync.WaitGroup
}

// hashManager runs leaf reads on a fixed set of workers. Directory tasks
// submit and wait; workers never wait on other jobs.
type hashManager struct {
	ctx        context.Context
	jobs       chan *hashJob
	wg         sync.WaitGroup
	algorithm  *HashAlgorithm
	bufferSize int
	counters   *runCounters
	closeOnce  sync.Once
}

// newHashManager creates a hash manager and starts its workers
func newHashManager(ctx context.Context, numWorkers int, algorithm *HashAlgorithm, bufferSize int, counters *runCounters) *hashManager {
	if numWorkers < 1 {
		numWorkers = 1
	}
	manager := &hashManager{
		ctx:        ctx,
		jobs:       make(chan *hashJob, numWorkers*4),
		algorithm:  algorithm,
		bufferSize: bufferSize,
		counters:   counters,
	}

	for i := 0; i < numWorkers; i++ {
		manager.wg.Add(1)
		go manager.hashWorker()
	}
	return manager
}

// Submit queues a job. The job's done group must already count it.
func (hm *hashManager) Submit(job *hashJob) {
	select {
	case hm.jobs <- job:
	case <-hm.ctx.Done():
		job.err = hm.ctx.Err()
		job.done.Done()
	}
}

// hashWorker hashes files until the job channel is closed
func (hm *hashManager) hashWorker() {
	defer hm.wg.Done()

	for job := range hm.jobs {
		if IsDebugEnabled("walk") {
			VerboseLog(3, "walk: hashing %s", job.node.Path())
		}
		digest, err := HashFileInterruptible(hm.ctx, job.node.Path(), hm.algorithm, hm.bufferSize)
		if err != nil {
			job.err = err
		} else {
			job.node.SetDigest(digest)
			hm.counters.filesHashed.Add(1)
		}
		job.done.Done()
	}
}

// Shutdown stops accepting jobs and waits for the workers to drain
func (hm *hashManager) Shutdown() {
	hm.closeOnce.Do(func() {
		close(hm.jobs)
	})
	hm.wg.Wait()
}
