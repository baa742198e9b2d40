// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"oralift.io/oralift/config"
	"oralift.io/oralift/sql/sqlclient"
	"oralift.io/oralift/state"
)

// queueDepth bounds the number of jobs waiting for a worker.
const queueDepth = 256

// resetGrace bounds how long ResetAll waits for cancelled jobs.
const resetGrace = 10 * time.Second

type record struct {
	mu     sync.Mutex
	desc   Descriptor
	job    Job
	cancel context.CancelFunc
	done   chan struct{}
}

// A Service schedules jobs on a bounded FIFO worker pool, tracks their
// descriptors and retains results until reset or LRU eviction.
type Service struct {
	log   *zap.Logger
	reg   *Registry
	st    *state.Store
	cfg   *config.Store
	conns *sqlclient.Client

	mu     sync.Mutex
	recs   map[string]*record
	order  []string
	queue  chan *record
	closed bool

	group  *errgroup.Group
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewService starts the worker pool and returns the service.
func NewService(log *zap.Logger, reg *Registry, st *state.Store, cfg *config.Store, conns *sqlclient.Client) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		log:    log,
		reg:    reg,
		st:     st,
		cfg:    cfg,
		conns:  conns,
		recs:   make(map[string]*record),
		queue:  make(chan *record, queueDepth),
		cancel: cancel,
	}
	workers := cfg.Snapshot().Workers
	if workers < 2 {
		workers = 2
	}
	s.group, _ = errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		s.group.Go(func() error {
			for rec := range s.queue {
				s.run(rec)
			}
			return nil
		})
	}
	return s
}

// Submit enqueues a new job and returns its id. It fails when the
// service is shutting down or the pair is not registered. A full
// migration runs on its own goroutine rather than a pool worker: it
// submits the phase jobs itself and must never hold the worker those
// phases need. At most one full migration is in flight at a time.
func (s *Service) Submit(db DatabaseTag, kind OperationKind) (string, error) {
	j, ok := s.reg.Create(db, kind)
	if !ok {
		return "", ErrNotFound.New("no job registered for %s/%s", db, kind)
	}
	rec := &record{
		job:  j,
		done: make(chan struct{}),
		desc: Descriptor{
			ID:          uuid.NewString(),
			Kind:        kind,
			Database:    db,
			State:       Pending,
			SubmittedAt: time.Now(),
		},
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrShutdown.New("submit rejected")
	}
	if kind == FullMigration && s.fullRunningLocked() {
		s.mu.Unlock()
		return "", ErrBusy.New("a full migration is already in progress")
	}
	s.recs[rec.desc.ID] = rec
	s.order = append(s.order, rec.desc.ID)
	s.evictLocked()
	if kind == FullMigration {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.run(rec)
		}()
		s.mu.Unlock()
	} else {
		select {
		case s.queue <- rec:
			s.mu.Unlock()
		default:
			s.mu.Unlock()
			s.finish(rec, nil, ErrInternal.New("job queue is full"))
			return "", ErrInternal.New("job queue is full")
		}
	}
	s.log.Info("job submitted",
		zap.String("id", rec.desc.ID),
		zap.String("kind", string(kind)),
		zap.String("database", string(db)))
	return rec.desc.ID, nil
}

// fullRunningLocked reports whether a full migration is still in a
// non-terminal state.
func (s *Service) fullRunningLocked() bool {
	for _, rec := range s.recs {
		if rec.desc.Kind == FullMigration && !rec.state().Terminal() {
			return true
		}
	}
	return false
}

// evictLocked drops the oldest terminal descriptors above the cap.
func (s *Service) evictLocked() {
	max := s.cfg.Snapshot().MaxDescriptors
	if max <= 0 || len(s.recs) <= max {
		return
	}
	kept := s.order[:0]
	for _, id := range s.order {
		rec := s.recs[id]
		if len(s.recs) > max && rec != nil && rec.state().Terminal() {
			delete(s.recs, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

func (r *record) state() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.desc.State
}

// run executes a single job on the calling worker.
func (s *Service) run(rec *record) {
	rec.mu.Lock()
	if rec.desc.State != Pending {
		// Cancelled while queued.
		rec.mu.Unlock()
		return
	}
	rec.desc.State = Running
	rec.desc.StartedAt = time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	snap := s.cfg.Snapshot()
	if !rec.desc.Kind.untimed() && snap.ExtractTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, snap.ExtractTimeout)
		base := cancel
		cancel = func() { cancelTimeout(); base() }
	}
	rec.cancel = cancel
	id := rec.desc.ID
	rec.mu.Unlock()
	defer cancel()

	env := &Env{
		State:  s.st,
		Config: snap,
		Conns:  s.conns,
		Log:    s.log.With(zap.String("job", id)),
		Jobs:   s,
		Report: func(pct int, task, details string) {
			s.report(rec, pct, task, details)
		},
	}
	res, err := rec.job.Run(ctx, env)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	s.finish(rec, res, err)
}

// report publishes a progress snapshot. Percentage never decreases and
// is capped below 100 until the job completes.
func (s *Service) report(rec *record, pct int, task, details string) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.desc.State != Running {
		return
	}
	if pct > 99 {
		pct = 99
	}
	if pct < rec.desc.Progress.Percentage {
		pct = rec.desc.Progress.Percentage
	}
	rec.desc.Progress = Progress{Percentage: pct, CurrentTask: task, Details: details}
}

// finish moves the record to its terminal state exactly once.
func (s *Service) finish(rec *record, res *Result, err error) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.desc.State.Terminal() {
		return
	}
	rec.desc.FinishedAt = time.Now()
	switch {
	case err == nil:
		rec.desc.State = Completed
		rec.desc.Result = res
		rec.desc.Progress.Percentage = 100
	case errors.Is(err, context.DeadlineExceeded):
		rec.desc.State = Failed
		rec.desc.Err = ErrTimeout.Wrap(err).Error()
	case errors.Is(err, context.Canceled):
		rec.desc.State = Cancelled
		rec.desc.Err = ErrCancelled.Wrap(err).Error()
	default:
		rec.desc.State = Failed
		rec.desc.Err = err.Error()
	}
	s.log.Info("job finished",
		zap.String("id", rec.desc.ID),
		zap.String("state", string(rec.desc.State)),
		zap.Duration("took", rec.desc.FinishedAt.Sub(rec.desc.StartedAt)))
	close(rec.done)
}

// Status returns a copy of the descriptor.
func (s *Service) Status(id string) (Descriptor, bool) {
	s.mu.Lock()
	rec, ok := s.recs[id]
	s.mu.Unlock()
	if !ok {
		return Descriptor{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.desc, true
}

// Result returns the job result once the job reached a terminal state.
func (s *Service) Result(id string) (*Result, error) {
	s.mu.Lock()
	rec, ok := s.recs[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound.New("job %s", id)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	switch rec.desc.State {
	case Completed:
		return rec.desc.Result, nil
	case Failed, Cancelled:
		return nil, errors.New(rec.desc.Err)
	default:
		return nil, ErrNotReady.New("job %s is %s", id, rec.desc.State)
	}
}

// Cancel requests cooperative cancellation. It reports false when the
// job is already terminal or unknown.
func (s *Service) Cancel(id string) bool {
	s.mu.Lock()
	rec, ok := s.recs[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	rec.mu.Lock()
	switch rec.desc.State {
	case Pending:
		rec.desc.State = Cancelled
		rec.desc.FinishedAt = time.Now()
		rec.desc.Err = ErrCancelled.New("cancelled before start").Error()
		close(rec.done)
		rec.mu.Unlock()
		return true
	case Running:
		cancel := rec.cancel
		rec.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return true
	default:
		rec.mu.Unlock()
		return false
	}
}

// Wait blocks until the job reaches a terminal state or ctx expires.
func (s *Service) Wait(ctx context.Context, id string) (Descriptor, error) {
	s.mu.Lock()
	rec, ok := s.recs[id]
	s.mu.Unlock()
	if !ok {
		return Descriptor{}, ErrNotFound.New("job %s", id)
	}
	select {
	case <-rec.done:
	case <-ctx.Done():
		return Descriptor{}, ctx.Err()
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.desc, nil
}

// ResetAll cancels running jobs, waits a bounded grace period, then
// clears the state store and evicts all non-running descriptors.
func (s *Service) ResetAll(ctx context.Context) error {
	s.mu.Lock()
	var running []*record
	for _, rec := range s.recs {
		if !rec.state().Terminal() {
			running = append(running, rec)
		}
	}
	s.mu.Unlock()
	for _, rec := range running {
		s.Cancel(rec.desc.ID)
	}
	grace, cancel := context.WithTimeout(ctx, resetGrace)
	defer cancel()
	for _, rec := range running {
		select {
		case <-rec.done:
		case <-grace.Done():
		}
	}
	s.st.Reset()
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.order[:0]
	for _, id := range s.order {
		if rec := s.recs[id]; rec != nil && !rec.state().Terminal() {
			kept = append(kept, id)
			continue
		}
		delete(s.recs, id)
	}
	s.order = kept
	return nil
}

// Close stops accepting jobs and waits for the workers to drain.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	err := s.group.Wait()
	s.wg.Wait()
	s.cancel()
	return err
}
