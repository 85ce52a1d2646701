package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lu-zhengda/venvkiller/internal/scanner"
	"github.com/lu-zhengda/venvkiller/internal/store"
)

var (
	ErrScanRunning   = errors.New("a scan is still running")
	ErrDeleteRunning = errors.New("a deletion is still running")
)

// ScanStatus is the lifecycle state of the session's current scan.
type ScanStatus int

const (
	ScanIdle ScanStatus = iota
	ScanRunning
	ScanDone
	ScanCancelled
)

func (s ScanStatus) String() string {
	switch s {
	case ScanRunning:
		return "scanning"
	case ScanDone:
		return "done"
	case ScanCancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

// ScanProgress is a point-in-time view of the current scan.
type ScanProgress struct {
	ID       uint64
	Status   ScanStatus
	Root     string
	Visited  int64
	Found    int64
	Warnings []scanner.Warning
	Dropped  int
	Elapsed  time.Duration
}

// Summary accumulates what a session found and reclaimed.
type Summary struct {
	Found      int
	FoundBytes int64
	Deleted    int
	Failed     int
	FreedBytes int64
}

// Session binds scans to a single Store. Only one scan writes into the
// Store at a time; starting a new one cancels the previous scan and clears
// the Store first. A scan and a deletion batch never overlap.
type Session struct {
	store   *store.Store
	deleter *Deleter
	log     *slog.Logger

	mu      sync.Mutex
	id      uint64
	status  ScanStatus
	root    string
	scanner *scanner.Scanner
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time
	elapsed time.Duration

	deleting   bool
	deleteDone chan struct{}

	summary Summary
	history []Outcome
}

func NewSession(st *store.Store, remover Remover, log *slog.Logger) *Session {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	done := make(chan struct{})
	close(done)
	return &Session{
		store:      st,
		deleter:    NewDeleter(remover, log),
		log:        log,
		done:       done,
		deleteDone: done,
	}
}

func (s *Session) Store() *store.Store { return s.store }

// Start validates opts and begins a new scan, returning its ID. On a
// configuration error the running scan and the Store are left untouched.
// It returns ErrDeleteRunning while a deletion batch is in progress.
func (s *Session) Start(ctx context.Context, opts scanner.Options) (uint64, error) {
	if err := opts.Validate(); err != nil {
		return 0, err
	}
	if opts.Logger == nil {
		opts.Logger = s.log
	}
	if s.Deleting() {
		return 0, ErrDeleteRunning
	}

	s.Cancel()
	s.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleting {
		return 0, ErrDeleteRunning
	}

	s.store.Reset()
	scanCtx, cancel := context.WithCancel(ctx)
	sc := scanner.New(opts)
	ch, err := sc.Scan(scanCtx)
	if err != nil {
		cancel()
		return 0, err
	}

	s.id++
	s.status = ScanRunning
	s.root = opts.Root
	s.scanner = sc
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = time.Now()
	s.elapsed = 0
	s.summary.Found, s.summary.FoundBytes = 0, 0

	s.log.Info("scan started", "id", s.id, "root", opts.Root,
		"recent_days", opts.Thresholds.RecentDays, "old_days", opts.Thresholds.OldDays)
	go s.consume(scanCtx, cancel, s.id, ch, s.done)
	return s.id, nil
}

func (s *Session) consume(ctx context.Context, cancel context.CancelFunc, id uint64, ch <-chan scanner.Environment, done chan struct{}) {
	defer close(done)
	defer cancel()
	for env := range ch {
		if err := s.store.Add(env); err != nil {
			s.log.Warn("dropping environment", "path", env.Path, "err", err)
			continue
		}
		s.mu.Lock()
		s.summary.Found++
		s.summary.FoundBytes += env.SizeBytes
		s.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id != id {
		return
	}
	s.elapsed = time.Since(s.started)
	s.status = ScanDone
	if ctx.Err() != nil {
		s.status = ScanCancelled
	}
	s.log.Info("scan finished", "id", id, "status", s.status, "found", s.summary.Found, "elapsed", s.elapsed)
}

// Cancel stops the running scan, if any. Environments already recorded stay.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Done is closed when the current scan has finished.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Wait blocks until the current scan has finished.
func (s *Session) Wait() {
	<-s.Done()
}

func (s *Session) Progress() ScanProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := ScanProgress{ID: s.id, Status: s.status, Root: s.root, Elapsed: s.elapsed}
	if s.status == ScanRunning {
		p.Elapsed = time.Since(s.started)
	}
	if s.scanner != nil {
		p.Visited = s.scanner.Visited()
		p.Found = s.scanner.Found()
		p.Warnings = s.scanner.Warnings()
		p.Dropped = s.scanner.DroppedWarnings()
	}
	return p
}

// DeleteMarked runs the Deleter over the Store. It refuses while a scan is
// still writing into the Store or another batch is running.
func (s *Session) DeleteMarked(ctx context.Context, onProgress func(Progress)) ([]Outcome, error) {
	s.mu.Lock()
	switch {
	case s.status == ScanRunning:
		s.mu.Unlock()
		return nil, ErrScanRunning
	case s.deleting:
		s.mu.Unlock()
		return nil, ErrDeleteRunning
	}
	done := make(chan struct{})
	s.deleting = true
	s.deleteDone = done
	s.mu.Unlock()

	outcomes := s.deleter.DeleteMarked(ctx, s.store, onProgress)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer close(done)
	s.deleting = false
	for _, o := range outcomes {
		switch {
		case o.OK():
			s.summary.Deleted++
			s.summary.FreedBytes += o.FreedBytes
		case o.Err != nil:
			s.summary.Failed++
		}
	}
	s.history = append(s.history, outcomes...)
	return outcomes, nil
}

// Deleting reports whether a deletion batch is in progress.
func (s *Session) Deleting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleting
}

// WaitDelete blocks until the running deletion batch, if any, has finished
// and its outcomes are recorded.
func (s *Session) WaitDelete() {
	s.mu.Lock()
	done := s.deleteDone
	s.mu.Unlock()
	<-done
}

func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Outcomes returns every deletion outcome of the session, across scans.
func (s *Session) Outcomes() []Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Outcome(nil), s.history...)
}
