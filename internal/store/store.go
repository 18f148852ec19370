// Package store persists schema candidates reported by the agent.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidReport is returned when a report has no URL.
var ErrInvalidReport = errors.New("invalid report")

// Report is a URL the agent believes exposes an API schema document.
type Report struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Note       string    `json:"note,omitempty"`
	ReportedAt time.Time `json:"reported_at"`
}

// Store keeps reports, one per URL.
type Store interface {
	// Save records r. The boolean is false when the URL was already reported,
	// in which case the stored report is returned.
	Save(ctx context.Context, r Report) (Report, bool, error)
	// List returns every report, oldest first.
	List(ctx context.Context) ([]Report, error)
}

// prepare fills in the ID and timestamp and checks the URL.
func prepare(r Report) (Report, error) {
	r.URL = strings.TrimSpace(r.URL)
	if r.URL == "" {
		return r, fmt.Errorf("%w: url is required", ErrInvalidReport)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.ReportedAt.IsZero() {
		r.ReportedAt = time.Now()
	}
	r.ReportedAt = r.ReportedAt.UTC()
	return r, nil
}

// MemoryStore keeps reports for the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	byURL   map[string]int
	reports []Report
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byURL: make(map[string]int)}
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, r Report) (Report, bool, error) {
	r, err := prepare(r)
	if err != nil {
		return Report{}, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.byURL[r.URL]; ok {
		return m.reports[i], false, nil
	}
	m.byURL[r.URL] = len(m.reports)
	m.reports = append(m.reports, r)
	return r, true, nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context) ([]Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Report(nil), m.reports...), nil
}
