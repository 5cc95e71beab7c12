package pipeline

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

const jobQueueSize = 1000

// Runner owns the job queue and worker pool. Submissions enqueue and
// return immediately; workers drive each photo through the state machine
// independently, so jobs for different photos complete in any order.
type Runner struct {
	photos     PhotoStore
	credits    CreditStore
	blobs      BlobStore
	classifier Classifier
	enhancer   Enhancer
	events     EventPublisher
	policy     Policy

	jobs chan Job
	wg   sync.WaitGroup
}

func NewRunner(photos PhotoStore, credits CreditStore, blobs BlobStore, classifier Classifier, enhancer Enhancer, events EventPublisher, policy Policy) *Runner {
	return &Runner{
		photos:     photos,
		credits:    credits,
		blobs:      blobs,
		classifier: classifier,
		enhancer:   enhancer,
		events:     events,
		policy:     policy,
		jobs:       make(chan Job, jobQueueSize),
	}
}

// Start launches the worker pool.
func (r *Runner) Start(workerCount int) {
	log.Info().Int("workers", workerCount).Msg("Starting enhancement worker pool")
	for i := 0; i < workerCount; i++ {
		workerID := i + 1
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for job := range r.jobs {
				r.Process(context.Background(), job)
			}
			log.Debug().Int("worker_id", workerID).Msg("Enhancement worker stopped")
		}()
	}
}

// Enqueue hands a job to the pool without blocking the caller. A full
// queue drops the job; the retry sweeper picks the photo up again since
// it remains pending in the store.
func (r *Runner) Enqueue(job Job) bool {
	select {
	case r.jobs <- job:
		return true
	default:
		log.Warn().Str("photo_id", job.PhotoID.String()).Msg("Job queue full, deferring photo to retry sweep")
		return false
	}
}

// Stop drains the queue and waits for in-flight jobs; there is no
// per-job cancellation, a started job runs to its terminal outcome.
func (r *Runner) Stop() {
	close(r.jobs)
	r.wg.Wait()
}
