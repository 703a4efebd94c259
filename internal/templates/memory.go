package templates

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/noah-isme/backend-taxcalc/internal/taxes"
)

// MemoryStore keeps templates in process. The CLI uses it to load templates
// from a file, and tests use it in place of PostgreSQL.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]Template
	now  func() time.Time
}

// NewMemoryStore returns a MemoryStore seeded with ts.
func NewMemoryStore(ts ...Template) *MemoryStore {
	m := &MemoryStore{byID: map[string]Template{}, now: time.Now}
	for _, t := range ts {
		_ = m.Save(context.Background(), t)
	}
	return m
}

func (m *MemoryStore) Get(_ context.Context, name string) (Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.byID[name]
	if !ok {
		return Template{}, ErrTemplateNotFound
	}
	t.Lines = slices.Clone(t.Lines)
	return t, nil
}

func (m *MemoryStore) List(_ context.Context, limit, offset int) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.byID))
	for name := range m.byID {
		names = append(names, name)
	}
	slices.Sort(names)
	out := []Summary{}
	for i := offset; i < len(names) && len(out) < limit; i++ {
		t := m.byID[names[i]]
		out = append(out, Summary{Name: t.Name, Title: t.Title, LineCount: len(t.Lines), UpdatedAt: t.UpdatedAt})
	}
	return out, nil
}

func (m *MemoryStore) Count(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.byID)), nil
}

func (m *MemoryStore) Save(_ context.Context, t Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.Lines = slices.Clone(t.Lines)
	for i := range t.Lines {
		t.Lines[i].Idx = i + 1
		// only configuration columns are persisted
		t.Lines[i] = configOnly(t.Lines[i])
	}
	t.UpdatedAt = m.now().UTC()
	m.byID[t.Name] = t
	return nil
}

func configOnly(l taxes.TaxLine) taxes.TaxLine {
	return taxes.TaxLine{
		Idx:            l.Idx,
		ChargeType:     l.ChargeType,
		AccountHead:    l.AccountHead,
		Description:    l.Description,
		Rate:           l.Rate,
		TaxAmount:      l.TaxAmount,
		IncludedInRate: l.IncludedInRate,
		RowReference:   l.RowReference,
		Category:       l.Category,
		AddOrDeduct:    l.AddOrDeduct,
	}
}
