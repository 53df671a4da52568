// Package store is the durable deadline store. The only attempt state that
// must outlive a reload is the absolute deadline of an in-progress session;
// it is kept in a small key-value store injected into the session
// controller, with a Redis implementation for production and an in-memory
// one for tests.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("store: key not found")

type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// DeadlineKey names the deadline entry for one student's attempt at a quiz.
func DeadlineKey(quizID, studentID string) string {
	return fmt.Sprintf("quiz:%s:student:%s:endTime", quizID, studentID)
}

// EncodeDeadline formats a deadline for storage as unix milliseconds.
func EncodeDeadline(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// DecodeDeadline parses a stored deadline.
func DecodeDeadline(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("store: decode deadline %q: %w", s, err)
	}

	return time.UnixMilli(ms), nil
}

// Memory is an in-process Store for tests and single-node setups.
type Memory struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemory() *Memory {
	return &Memory{m: make(map[string]string)}
}

func (s *Memory) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.m[key]
	if !ok {
		return "", ErrNotFound
	}

	return v, nil
}

func (s *Memory) Set(_ context.Context, key, value string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.m[key] = value
	return nil
}

func (s *Memory) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.m, key)
	return nil
}
