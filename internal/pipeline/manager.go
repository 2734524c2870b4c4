package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/bekovrafik/DreamColor/internal/errs"
	"github.com/bekovrafik/DreamColor/internal/metrics"
	"github.com/bekovrafik/DreamColor/internal/model"
	"github.com/bekovrafik/DreamColor/internal/service"
)

const watchBuffer = 16

// Manager owns the single in-flight job and publishes completed pages to the adventure.
type Manager struct {
	orch   *Orchestrator
	ledger service.LedgerService
	adv    *service.Adventure
	log    *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	job          *Job
	running      bool
	regenerating bool
	alive        *Liveness
	cancel   context.CancelFunc
	watchers map[int]chan Job
	nextW    int
	done     chan struct{}
}

// NewManager constructs a job manager.
func NewManager(orch *Orchestrator, ledger service.LedgerService, adv *service.Adventure, log *zap.Logger) *Manager {
	return &Manager{orch: orch, ledger: ledger, adv: adv, log: log, now: time.Now, watchers: map[int]chan Job{}}
}

// Start launches a run for the current adventure. A paid run is used when the
// balance covers one; otherwise the free run must be off cooldown.
func (m *Manager) Start(ctx context.Context) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running || m.regenerating {
		return Job{}, errs.ErrJobActive
	}

	kind, n := KindFor(m.ledger.Snapshot())
	if kind == KindFree {
		if el := m.ledger.CheckFreeEligibility(m.now()); !el.Allowed {
			return Job{}, fmt.Errorf("%w: next free book in %s", errs.ErrCooldown, el.WaitString())
		}
	}

	id, err := uuid.NewV4()
	if err != nil {
		return Job{}, err
	}
	st := m.adv.State()
	req := Request{ChildName: st.ChildName, Theme: st.Theme, Transcript: st.Transcript, Reference: st.Reference}
	job := Job{ID: id, Kind: kind, Status: StatusIdle, Total: n, StartedAt: m.now()}

	// The run outlives the RPC that started it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	alive := NewLiveness()
	done := make(chan struct{})

	m.job, m.running, m.alive, m.cancel, m.done = &job, true, alive, cancel, done
	m.broadcastLocked(job)

	m.log.Info("run started", zap.String("job", id.String()), zap.String("kind", string(kind)), zap.Int("scenes", n))
	go func() {
		defer close(done)
		defer cancel()
		final := m.orch.Run(runCtx, job, req, alive, m.update)
		if alive.Alive() && final.Status == StatusCompleted {
			m.adv.SetPages(final.Pages)
		}
		m.mu.Lock()
		if m.alive == alive {
			m.running = false
		}
		m.mu.Unlock()
	}()
	return job.clone(), nil
}

func (m *Manager) update(j Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.job == nil || m.job.ID != j.ID || !m.alive.Alive() {
		return
	}
	m.job = &j
	m.broadcastLocked(j)
}

// Get returns the latest job snapshot.
func (m *Manager) Get() (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.job == nil {
		return Job{}, errs.ErrNoJob
	}
	return m.job.clone(), nil
}

// Cancel clears the liveness flag of the running job. Its in-flight request is
// not aborted; the result is discarded. A run that is already charging its
// credits finishes and Cancel reports ErrNoJob.
func (m *Manager) Cancel() (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return Job{}, errs.ErrNoJob
	}
	if !m.alive.Stop() {
		return Job{}, fmt.Errorf("%w: run is already finishing", errs.ErrNoJob)
	}
	m.cancel()
	m.running = false
	m.job.Canceled = true
	m.job.FinishedAt = m.now()
	metrics.RecordRun(string(m.job.Kind), "canceled", m.job.FinishedAt.Sub(m.job.StartedAt))
	m.broadcastLocked(*m.job)
	m.log.Info("run canceled", zap.String("job", m.job.ID.String()))
	return m.job.clone(), nil
}

// Running reports whether a run or a page regeneration is in flight.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running || m.regenerating
}

// Wait blocks until the current run goroutine exits or ctx ends.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Watch streams job snapshots, starting with the current one. The returned
// function unsubscribes and closes the channel.
func (m *Manager) Watch() (<-chan Job, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan Job, watchBuffer)
	id := m.nextW
	m.nextW++
	m.watchers[id] = ch
	if m.job != nil {
		ch <- m.job.clone()
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.watchers, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}

// broadcastLocked sends j to every watcher, dropping the oldest queued snapshot
// of a slow watcher. Caller holds mu.
func (m *Manager) broadcastLocked(j Job) {
	for _, ch := range m.watchers {
		snap := j.clone()
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// RegeneratePage redraws page i of the current adventure for one credit.
// The credit is spent before the request and not refunded on failure.
func (m *Manager) RegeneratePage(ctx context.Context, i int, description string) (model.Image, error) {
	m.mu.Lock()
	if m.running || m.regenerating {
		m.mu.Unlock()
		return model.Image{}, errs.ErrJobActive
	}
	m.regenerating = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.regenerating = false
		m.mu.Unlock()
	}()

	st := m.adv.State()
	if i < 0 || i >= len(st.Pages) {
		return model.Image{}, fmt.Errorf("%w: page %d out of range [0,%d)", errs.ErrValidation, i, len(st.Pages))
	}
	ent := m.ledger.Snapshot()
	if !ent.IsPaidUser {
		return model.Image{}, errs.ErrNotPaid
	}
	if _, err := m.ledger.Deduct(ctx, RegenerationCost); err != nil {
		return model.Image{}, err
	}
	metrics.RecordSpend("page", RegenerationCost)

	if description == "" {
		description = defaultScene(st.Theme, st.ChildName)
	}
	prompt := scenePrompt(description, st.Theme, st.ChildName, st.Reference != nil)
	imgs, err := m.orch.c.Images.GenerateImage(context.WithoutCancel(ctx), prompt, st.Reference)
	if err != nil {
		m.log.Warn("page regeneration failed", zap.Int("page", i), zap.Error(err))
		return model.Image{}, classify("regenerate page", err)
	}
	page := firstImage(imgs)
	if page.Empty() {
		metrics.RecordScene("missing")
		return model.Image{}, fmt.Errorf("regenerate page %d: %w", i, errs.ErrSceneImageMissing)
	}
	metrics.RecordScene("ok")
	if err := m.adv.ReplacePage(i, page); err != nil {
		return model.Image{}, err
	}
	return page, nil
}
