package store

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store used for dry runs and tests.
// Find compares field values by their string form and returns the oldest match.
type Memory struct {
	mu       sync.Mutex
	logger   *slog.Logger
	entities map[string][]Record
}

// NewMemory creates an empty in-memory store.
func NewMemory(logger *slog.Logger) *Memory {
	return &Memory{logger: logger, entities: make(map[string][]Record)}
}

func (m *Memory) Find(_ context.Context, entity, field, value string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.entities[entity] {
		if v, ok := rec[field]; ok && v != nil && fmt.Sprint(v) == value {
			return maps.Clone(rec), nil
		}
	}
	return nil, nil
}

func (m *Memory) Create(_ context.Context, entity string, fields Fields) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := Record(maps.Clone(fields))
	if rec == nil {
		rec = Record{}
	}
	rec["id"] = uuid.NewString()
	m.entities[entity] = append(m.entities[entity], rec)
	m.logger.Info("Created record in memory store", "entity", entity, "id", rec["id"])
	return maps.Clone(rec), nil
}

func (m *Memory) Update(_ context.Context, entity, id string, fields Fields) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.entities[entity] {
		if rec.ID() == id {
			maps.Copy(rec, fields)
			rec["id"] = id
			m.logger.Info("Updated record in memory store", "entity", entity, "id", id)
			return maps.Clone(rec), nil
		}
	}
	return nil, fmt.Errorf("%s %s not found", entity, id)
}

// All returns a copy of every record of entity, in creation order.
func (m *Memory) All(entity string) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.entities[entity]))
	for _, rec := range m.entities[entity] {
		out = append(out, maps.Clone(rec))
	}
	return out
}
