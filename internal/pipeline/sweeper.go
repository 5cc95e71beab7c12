package pipeline

import (
	"time"

	"github.com/rs/zerolog/log"
)

const sweepBatchSize = 100

// A record still in processing this long after its attempt stamp belongs
// to a worker that died mid-job; no legitimate enhancement call runs for
// minutes.
const stalledAfter = 10 * time.Minute

// Sweep re-enqueues pending photos that are eligible for another attempt:
// records whose enhancement failed under the cap, plus submissions that
// never reached a worker. Stalled processing records from crashed workers
// are repaired first so they rejoin the retryable set. Wired to a cron
// schedule in main.
func (r *Runner) Sweep() {
	recovered, err := r.photos.RecoverStalled(stalledAfter, r.policy.MaxAttempts)
	if err != nil {
		log.Error().Err(err).Msg("Retry sweep failed to recover stalled photos")
	} else if recovered > 0 {
		log.Warn().Int64("recovered", recovered).Msg("Recovered photos stalled in processing")
	}

	photos, err := r.photos.ListRetryable(r.policy.MinAttemptInterval, r.policy.MaxAttempts, sweepBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Retry sweep failed to list photos")
		return
	}
	if len(photos) == 0 {
		return
	}

	enqueued := 0
	for _, photo := range photos {
		if r.Enqueue(Job{PhotoID: photo.ID, UserID: photo.UserID}) {
			enqueued++
		}
	}
	log.Info().Int("eligible", len(photos)).Int("enqueued", enqueued).Msg("Retry sweep enqueued photos")
}
