package dataexplorer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/soprofile/pkg/logger"
	"github.com/okian/soprofile/pkg/metrics"
)

// Job is one submitted query. It owns its ticker and goroutine; the result
// is published exactly once, when Done is closed.
type Job struct {
	ID        string
	Tag       string
	FromCache bool

	spec    Spec
	client  *Client
	started time.Time

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	polls    atomic.Int64

	// written before done is closed
	rows      []Row
	err       error
	cancelled bool
}

func newJob(c *Client, spec Spec, tag, id string, started time.Time) *Job {
	return &Job{
		ID:      id,
		Tag:     tag,
		spec:    spec,
		client:  c,
		started: started,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func newResolvedJob(spec Spec, tag, id string, rows []Row) *Job {
	j := &Job{
		ID:        id,
		Tag:       tag,
		FromCache: true,
		spec:      spec,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		rows:      rows,
	}
	close(j.done)
	return j
}

// Cancel stops the job. No poll starts after Cancel returns; a poll already
// in flight completes and its answer is dropped. Safe to call repeatedly and
// after completion.
func (j *Job) Cancel() {
	j.stopOnce.Do(func() { close(j.stop) })
}

// Done is closed once the job has resolved, failed or observed a cancel.
func (j *Job) Done() <-chan struct{} { return j.done }

// Polls reports how many status polls were issued.
func (j *Job) Polls() int { return int(j.polls.Load()) }

// Await blocks until the job resolves or ctx is done. Cancellation, by ctx
// or Cancel, returns ok=false with a nil error.
func (j *Job) Await(ctx context.Context) ([]Row, bool, error) {
	select {
	case <-j.done:
		return j.result()
	default:
	}

	select {
	case <-j.done:
		return j.result()
	case <-ctx.Done():
		j.Cancel()
		return nil, false, nil
	}
}

func (j *Job) result() ([]Row, bool, error) {
	if j.err != nil {
		return nil, false, j.err
	}
	if j.cancelled {
		return nil, false, nil
	}
	return j.rows, true, nil
}

func (j *Job) stopped() bool {
	select {
	case <-j.stop:
		return true
	default:
		return false
	}
}

func (j *Job) run(ctx context.Context) {
	defer close(j.done)

	log := j.client.log.With(
		logger.String("query", j.spec.Name),
		logger.String("tag", j.Tag),
		logger.String("job_id", j.ID),
	)

	ticker := time.NewTicker(j.client.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stop:
			j.markCancelled(ctx, log)
			return
		case <-ticker.C:
		}
		// a tick and a cancel can be ready together
		if j.stopped() {
			j.markCancelled(ctx, log)
			return
		}

		n := j.polls.Add(1)
		log.Debug(ctx, "polling query job", logger.Int64("poll", n))
		rows, running, err := j.client.poll(ctx, j.spec, j.ID)

		if j.stopped() {
			j.markCancelled(ctx, log)
			return
		}
		if err != nil {
			j.err = err
			log.Error(ctx, "query job poll failed", logger.Int64("polls", n), logger.Error(err))
			return
		}
		if running {
			continue
		}

		j.rows = rows
		elapsed := time.Since(j.started)
		metrics.RecordJobDuration(j.spec.Name, float64(elapsed.Milliseconds()))
		log.Info(ctx, "query job finished",
			logger.Int64("polls", n), logger.Int("rows", len(rows)), logger.Duration("elapsed", elapsed))
		return
	}
}

func (j *Job) markCancelled(ctx context.Context, log logger.Logger) {
	j.cancelled = true
	metrics.RecordJobCancelled(j.spec.Name)
	log.Info(ctx, "query job cancelled", logger.Int("polls", j.Polls()))
}
