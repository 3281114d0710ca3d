// Package store keeps uploaded datasets and saved settings.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"mfg-report-go/internal/period"
	"mfg-report-go/internal/record"
	"mfg-report-go/internal/resolver"
)

// Dataset names accepted by the store.
const (
	Production     = "production"
	Availability   = "availability"
	CycleTime      = "cycletime"
	Inventory      = "inventory"
	Mold           = "mold"
	PriceList      = "pricelist"
	MaterialDefect = "materialdefect"
)

var datasets = []string{Production, Availability, CycleTime, Inventory, Mold, PriceList, MaterialDefect}

var (
	ErrUnknownDataset = errors.New("unknown dataset")
	ErrNotFound       = errors.New("not found")
)

// Datasets lists every dataset name.
func Datasets() []string { return slices.Clone(datasets) }

// CheckDataset returns ErrUnknownDataset for names outside Datasets.
func CheckDataset(name string) error {
	if !slices.Contains(datasets, name) {
		return fmt.Errorf("%w: %q", ErrUnknownDataset, name)
	}
	return nil
}

// Store is the record collaborator the engine reads from.
type Store interface {
	GetAll(ctx context.Context, dataset string) ([]record.Record, error)
	ReplaceAll(ctx context.Context, dataset string, records []record.Record) error
	// ReplaceMonths swaps out the months present in records and keeps the rest.
	ReplaceMonths(ctx context.Context, dataset string, records []record.Record) error
}

// Settings persists small named JSON documents.
type Settings interface {
	LoadSetting(ctx context.Context, key string) ([]byte, error)
	SaveSetting(ctx context.Context, key string, value []byte) error
}

// dateFieldsOr returns the configured date columns, or the built-in ones.
func dateFieldsOr(fields []string) []string {
	if len(fields) > 0 {
		return slices.Clone(fields)
	}
	return resolver.DefaultAliases().Candidates(resolver.FieldDate)
}

// MemoryStore is an in-process Store and Settings.
type MemoryStore struct {
	mu         sync.RWMutex
	data       map[string][]record.Record
	settings   map[string][]byte
	dateFields []string
}

// NewMemory returns an empty store. dateFields are the columns month-scoped
// replaces read dates from; none means the built-in aliases.
func NewMemory(dateFields ...string) *MemoryStore {
	return &MemoryStore{
		data:       map[string][]record.Record{},
		settings:   map[string][]byte{},
		dateFields: dateFieldsOr(dateFields),
	}
}

func (m *MemoryStore) GetAll(_ context.Context, dataset string) ([]record.Record, error) {
	if err := CheckDataset(dataset); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneAll(m.data[dataset]), nil
}

func (m *MemoryStore) ReplaceAll(_ context.Context, dataset string, records []record.Record) error {
	if err := CheckDataset(dataset); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[dataset] = cloneAll(records)
	return nil
}

func (m *MemoryStore) ReplaceMonths(_ context.Context, dataset string, records []record.Record) error {
	if err := CheckDataset(dataset); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[dataset] = period.MergeByMonth(m.data[dataset], cloneAll(records), nil, m.dateFields)
	return nil
}

func (m *MemoryStore) LoadSetting(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.settings[key]
	if !ok {
		return nil, fmt.Errorf("setting %q: %w", key, ErrNotFound)
	}
	return slices.Clone(v), nil
}

func (m *MemoryStore) SaveSetting(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = slices.Clone(value)
	return nil
}

func cloneAll(in []record.Record) []record.Record {
	out := make([]record.Record, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
