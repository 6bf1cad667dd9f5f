package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/application/ports"
	"github.com/yash-217/yash.fun/domain/core/entities"
	"github.com/yash-217/yash.fun/domain/events"
	"github.com/yash-217/yash.fun/infrastructure/pdb"
	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

// JobsConfig bounds the background search registry.
type JobsConfig struct {
	// Retention is how long finished jobs stay queryable.
	Retention time.Duration
	// MaxJobs caps jobs that are still running.
	MaxJobs int
}

// SearchJobView is a read-only copy of a job.
type SearchJobView struct {
	ID         string              `json:"id"`
	State      SearchState         `json:"state"`
	Attempts   int                 `json:"attempts"`
	Generation int64               `json:"generation"`
	Stale      bool                `json:"stale"`
	StartedAt  time.Time           `json:"startedAt"`
	FinishedAt *time.Time          `json:"finishedAt,omitempty"`
	TicketID   string              `json:"ticketId,omitempty"`
	Matches    []Match             `json:"matches,omitempty"`
	Error      *pkgerrors.AppError `json:"error,omitempty"`
}

type searchJob struct {
	id         string
	state      SearchState
	attempts   int
	generation int64
	startedAt  time.Time
	finishedAt time.Time
	outcome    *SearchOutcome
	err        error
	cancel     context.CancelFunc
	done       chan struct{}
}

// SearchJobs runs searches in the background so callers can poll for the
// result instead of holding a request open for minutes.
type SearchJobs struct {
	orchestrator *SearchOrchestrator
	bus          ports.EventBus
	logger       *zap.Logger
	cfg          JobsConfig
	now          func() time.Time

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu   sync.Mutex
	jobs map[string]*searchJob
}

// NewSearchJobs creates a registry. bus may be nil.
func NewSearchJobs(orchestrator *SearchOrchestrator, bus ports.EventBus, cfg JobsConfig, logger *zap.Logger) *SearchJobs {
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * time.Minute
	}
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SearchJobs{
		orchestrator: orchestrator,
		bus:          bus,
		logger:       logger,
		cfg:          cfg,
		now:          time.Now,
		baseCtx:      ctx,
		baseCancel:   cancel,
		jobs:         make(map[string]*searchJob),
	}
}

// Start launches a search over residues, which must already be a private
// copy. generation is the graph generation they were taken from.
func (s *SearchJobs) Start(residues []*entities.Residue, generation int64) (string, error) {
	if export := pdb.Export(residues); !export.IsValid {
		return "", pkgerrors.NewValidationError("structure cannot be searched").
			WithDetail("warnings", export.Warnings)
	}

	s.mu.Lock()
	if s.baseCtx.Err() != nil {
		s.mu.Unlock()
		return "", pkgerrors.NewConflictError("search registry is closed")
	}
	s.pruneLocked()
	if running := s.runningLocked(); running >= s.cfg.MaxJobs {
		s.mu.Unlock()
		return "", pkgerrors.NewConflictError("too many searches in flight").
			WithDetail("running", running)
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	job := &searchJob{
		id:         uuid.New().String(),
		state:      SearchIdle,
		generation: generation,
		startedAt:  s.now(),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	s.jobs[job.id] = job
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(ctx, job, residues)

	s.logger.Info("Search job started",
		zap.String("jobID", job.id),
		zap.Int64("generation", generation),
		zap.Int("residues", len(residues)),
	)
	return job.id, nil
}

func (s *SearchJobs) run(ctx context.Context, job *searchJob, residues []*entities.Residue) {
	defer s.wg.Done()
	defer close(job.done)
	defer job.cancel()

	outcome, err := s.orchestrator.SearchWithProgress(ctx, residues, job.generation, func(state SearchState, attempts int) {
		s.mu.Lock()
		job.state = state
		job.attempts = attempts
		s.mu.Unlock()
	})

	s.mu.Lock()
	job.finishedAt = s.now()
	job.err = err
	job.outcome = outcome
	s.mu.Unlock()

	s.publish(job, outcome, err)
}

func (s *SearchJobs) publish(job *searchJob, outcome *SearchOutcome, err error) {
	if s.bus == nil {
		return
	}
	var event events.DomainEvent
	if err == nil {
		event = events.NewSearchCompleted(job.id, job.generation, outcome.TicketID, len(outcome.Matches))
	} else {
		errType := string(pkgerrors.ErrorTypeInternal)
		if appErr := pkgerrors.GetAppError(err); appErr != nil {
			errType = string(appErr.Type)
		}
		event = events.NewSearchFailed(job.id, job.generation, "", errType, err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if pubErr := s.bus.Publish(ctx, []events.DomainEvent{event}); pubErr != nil {
		s.logger.Warn("Failed to publish search event", zap.String("jobID", job.id), zap.Error(pubErr))
	}
}

// Get returns a copy of the job. Stale is left for the caller to decide.
func (s *SearchJobs) Get(id string) (*SearchJobView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("search job").WithDetail("id", id)
	}
	return s.viewLocked(job), nil
}

// List returns every retained job, newest first.
func (s *SearchJobs) List() []*SearchJobView {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()
	out := make([]*SearchJobView, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, s.viewLocked(job))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// Cancel stops a running job. Cancelling a finished job is a no-op.
func (s *SearchJobs) Cancel(id string) error {
	s.mu.Lock()
	job, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return pkgerrors.NewNotFoundError("search job").WithDetail("id", id)
	}
	job.cancel()
	s.logger.Info("Search job cancelled", zap.String("jobID", id))
	return nil
}

// Wait blocks until the job finishes or ctx ends.
func (s *SearchJobs) Wait(ctx context.Context, id string) (*SearchJobView, error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return nil, pkgerrors.NewNotFoundError("search job").WithDetail("id", id)
	}

	select {
	case <-job.done:
		return s.Get(id)
	case <-ctx.Done():
		return nil, pkgerrors.FromContext(ctx, "wait for search")
	}
}

// Close cancels every running job and waits for them to finish.
func (s *SearchJobs) Close() {
	s.mu.Lock()
	s.baseCancel()
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *SearchJobs) viewLocked(job *searchJob) *SearchJobView {
	v := &SearchJobView{
		ID:         job.id,
		State:      job.state,
		Attempts:   job.attempts,
		Generation: job.generation,
		StartedAt:  job.startedAt,
	}
	if !job.finishedAt.IsZero() {
		t := job.finishedAt
		v.FinishedAt = &t
	}
	if job.outcome != nil {
		v.TicketID = job.outcome.TicketID
		v.Matches = append([]Match(nil), job.outcome.Matches...)
	}
	if job.err != nil {
		v.Error = pkgerrors.GetAppError(job.err)
		if v.Error == nil {
			v.Error = pkgerrors.NewInternalError(job.err.Error())
		}
	}
	return v
}

func (s *SearchJobs) runningLocked() int {
	n := 0
	for _, job := range s.jobs {
		if job.finishedAt.IsZero() {
			n++
		}
	}
	return n
}

func (s *SearchJobs) pruneLocked() {
	cutoff := s.now().Add(-s.cfg.Retention)
	for id, job := range s.jobs {
		if !job.finishedAt.IsZero() && job.finishedAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}
