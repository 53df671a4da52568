package attempt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/classtrack/quizengine/internal/event"
	"github.com/classtrack/quizengine/internal/store"
)

type ManagerConfig struct {
	Source    Source
	Persister Persister
	Store     store.Store
	EventBus  *event.Bus

	Now           func() time.Time
	NewTickerFunc func(d time.Duration) Ticker
}

// Manager owns the live controllers, keyed per quiz per student. It performs
// the fetches a controller needs (definition, prior submission) and hands
// back the existing controller on repeat calls so an attempt survives across
// requests.
type Manager struct {
	c ManagerConfig

	mu    sync.Mutex
	ctrls map[string]*Controller
}

func NewManager(c ManagerConfig) *Manager {
	return &Manager{
		c:     c,
		ctrls: make(map[string]*Controller),
	}
}

// Attempt returns the controller for one student's attempt at a quiz,
// creating it on first use.
func (m *Manager) Attempt(ctx context.Context, quizID, studentID string) (*Controller, error) {
	key := quizID + "\x00" + studentID

	m.mu.Lock()
	if ctrl, ok := m.ctrls[key]; ok {
		m.mu.Unlock()
		return ctrl, nil
	}
	m.mu.Unlock()

	q, err := m.c.Source.FetchQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	prior, err := m.c.Source.FetchPriorSubmission(ctx, quizID, studentID)
	if err != nil {
		return nil, fmt.Errorf("attempt: fetch prior submission: %w", err)
	}

	ctrl, err := New(ctx, Config{
		Quiz:          q,
		StudentID:     studentID,
		Prior:         prior,
		Store:         m.c.Store,
		Persister:     m.c.Persister,
		EventBus:      m.c.EventBus,
		Now:           m.c.Now,
		NewTickerFunc: m.c.NewTickerFunc,
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// A concurrent request may have won the race; keep the first
	// controller so the attempt has a single owner.
	if existing, ok := m.ctrls[key]; ok {
		ctrl.Close()
		return existing, nil
	}

	m.ctrls[key] = ctrl
	return ctrl, nil
}

// Evict drops a terminal controller so a long-running process does not
// accumulate finished attempts. Controllers still mid-attempt are kept.
func (m *Manager) Evict(quizID, studentID string) {
	key := quizID + "\x00" + studentID

	m.mu.Lock()
	defer m.mu.Unlock()

	ctrl, ok := m.ctrls[key]
	if !ok || !ctrl.Status().Terminal() {
		return
	}

	ctrl.Close()
	delete(m.ctrls, key)
}

// Close tears down every controller. Persisted deadlines are untouched so
// in-progress attempts resume after a restart.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, ctrl := range m.ctrls {
		ctrl.Close()
		delete(m.ctrls, key)
	}
}
