package claim

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EvidenceStore moves uploaded proof objects between locations.
type EvidenceStore interface {
	Move(ctx context.Context, srcKey, dstKey string) error
}

// RelocationJob asks for a claim's evidence to follow its status.
type RelocationJob struct {
	ClaimID uuid.UUID
	Ref     string
	From    Status
	To      Status
}

type RelocatorConfig struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	Backoff     time.Duration
	Timeout     time.Duration
}

// Relocator moves evidence in the background after a review commits. Failures
// are retried and then logged; they never reach the review caller.
type Relocator struct {
	store EvidenceStore
	repo  Repository
	cfg   RelocatorConfig

	mu     sync.Mutex
	closed bool
	jobs   chan RelocationJob
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewRelocator(store EvidenceStore, repo Repository, cfg RelocatorConfig) *Relocator {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Relocator{
		store: store,
		repo:  repo,
		cfg:   cfg,
		jobs:  make(chan RelocationJob, cfg.QueueSize),
	}
}

// Start launches the workers. They exit when Stop is called or ctx ends.
func (r *Relocator) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	log.Info().Int("workers", r.cfg.Workers).Msg("Starting evidence relocator...")
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.loop(ctx)
	}
}

// Stop drains queued jobs and waits for the workers.
func (r *Relocator) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.jobs)
	r.mu.Unlock()

	r.wg.Wait()
	if r.cancel != nil {
		r.cancel()
	}
	log.Info().Msg("Evidence relocator stopped")
}

// Enqueue schedules a job without blocking. It reports false when the job was
// dropped because the queue is full or the relocator is stopped.
func (r *Relocator) Enqueue(job RelocationJob) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	select {
	case r.jobs <- job:
		return true
	default:
		log.Warn().
			Str("claim_id", job.ClaimID.String()).
			Str("evidence_ref", job.Ref).
			Msg("Evidence relocation queue full, dropping job")
		return false
	}
}

func (r *Relocator) loop(ctx context.Context) {
	defer r.wg.Done()
	for job := range r.jobs {
		r.process(ctx, job)
	}
}

func (r *Relocator) process(ctx context.Context, job RelocationJob) {
	dst := RelocateKey(job.Ref, job.From, job.To)
	if dst == job.Ref {
		return
	}

	var err error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		err = r.moveOnce(ctx, job.Ref, dst)
		if err == nil {
			break
		}
		log.Warn().
			Err(err).
			Str("claim_id", job.ClaimID.String()).
			Str("src", job.Ref).
			Str("dst", dst).
			Int("attempt", attempt).
			Msg("Evidence relocation attempt failed")

		if attempt == r.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			attempt = r.cfg.MaxAttempts
		case <-time.After(r.cfg.Backoff * time.Duration(attempt)):
		}
	}
	if err != nil {
		log.Warn().
			Err(err).
			Str("claim_id", job.ClaimID.String()).
			Str("evidence_ref", job.Ref).
			Msg("Evidence relocation gave up")
		return
	}

	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.Timeout)
	defer cancel()
	if err := r.repo.UpdateEvidenceRef(uctx, job.ClaimID, job.Ref, dst); err != nil {
		log.Warn().
			Err(err).
			Str("claim_id", job.ClaimID.String()).
			Str("evidence_ref", dst).
			Msg("Evidence moved but claim ref not updated")
		return
	}

	log.Info().
		Str("claim_id", job.ClaimID.String()).
		Str("evidence_ref", dst).
		Msg("Evidence relocated")
}

func (r *Relocator) moveOnce(ctx context.Context, src, dst string) error {
	mctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	return r.store.Move(mctx, src, dst)
}

// RelocateKey swaps the first path segment naming from for to. Refs without such
// a segment are returned unchanged.
func RelocateKey(ref string, from, to Status) string {
	parts := strings.Split(ref, "/")
	for i, p := range parts {
		if p == string(from) {
			parts[i] = string(to)
			return strings.Join(parts, "/")
		}
	}
	return ref
}
