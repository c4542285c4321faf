package report

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"lil-report/pkg/charts"
	"lil-report/pkg/llm"
)

// ErrNotFound is returned when no report has the requested id
var ErrNotFound = errors.New("report not found")

// DefaultListLimit applies when List is called without a positive limit
const DefaultListLimit = 50

// Report is a generated answer together with the charts it references
type Report struct {
	ID        string             `json:"id"`
	Query     string             `json:"query"`
	Content   string             `json:"content"`
	Charts    []charts.ChartSpec `json:"charts"`
	CompanyID string             `json:"companyId,omitempty"`
	UserID    string             `json:"userId,omitempty"`
	Model     string             `json:"model"`
	Usage     llm.Usage          `json:"usage"`
	CreatedAt time.Time          `json:"createdAt"`
}

// Store persists reports. Create is a single atomic write.
type Store interface {
	Create(ctx context.Context, r *Report) error
	Get(ctx context.Context, id string) (*Report, error)
	// List returns the newest reports first; an empty userID lists all users
	List(ctx context.Context, userID string, limit int) ([]Report, error)
	Count(ctx context.Context) (int, error)
	Driver() string
	Close() error
}

// MemoryStore keeps reports in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]Report
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]Report)}
}

func (m *MemoryStore) Create(_ context.Context, r *Report) error {
	if r == nil || r.ID == "" {
		return errors.New("report id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[r.ID] = cloneReport(*r)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneReport(r)
	return &out, nil
}

func (m *MemoryStore) List(_ context.Context, userID string, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	m.mu.RLock()
	out := make([]Report, 0, len(m.reports))
	for _, r := range m.reports {
		if userID == "" || r.UserID == userID {
			out = append(out, cloneReport(r))
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.reports), nil
}

func (m *MemoryStore) Driver() string { return "memory" }

func (m *MemoryStore) Close() error { return nil }

// cloneReport copies every slice reachable from the report's charts
func cloneReport(r Report) Report {
	specs := make([]charts.ChartSpec, len(r.Charts))
	for i, spec := range r.Charts {
		spec.Data.Labels = append([]string(nil), spec.Data.Labels...)
		datasets := make([]charts.Dataset, len(spec.Data.Datasets))
		for j, ds := range spec.Data.Datasets {
			ds.Data = append([]float64(nil), ds.Data...)
			ds.BackgroundColor = append(charts.ColorValue(nil), ds.BackgroundColor...)
			ds.BorderColor = append(charts.ColorValue(nil), ds.BorderColor...)
			datasets[j] = ds
		}
		spec.Data.Datasets = datasets
		specs[i] = spec
	}
	r.Charts = specs
	return r
}
