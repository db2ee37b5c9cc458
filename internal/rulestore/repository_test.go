package rulestore

import (
	"context"
	"testing"
)

// memRepository is a minimal in-memory Repository used only to test
// Resolve's version-selection logic independent of any real backend.
type memRepository struct {
	records map[string]map[string]Record
}

func newMemRepository() *memRepository {
	return &memRepository{records: map[string]map[string]Record{}}
}

func (m *memRepository) Put(ctx context.Context, rec Record) error {
	if m.records[rec.Name] == nil {
		m.records[rec.Name] = map[string]Record{}
	}
	m.records[rec.Name][rec.Version] = rec
	return nil
}

func (m *memRepository) Get(ctx context.Context, name, version string) (Record, bool, error) {
	rec, ok := m.records[name][version]
	return rec, ok, nil
}

func (m *memRepository) ListVersions(ctx context.Context, name string) ([]string, error) {
	var out []string
	for v := range m.records[name] {
		out = append(out, v)
	}
	return out, nil
}

func (m *memRepository) Remove(ctx context.Context, name, version string) error {
	delete(m.records[name], version)
	return nil
}

func (m *memRepository) Clear(ctx context.Context, name string) (int64, error) {
	n := int64(len(m.records[name]))
	delete(m.records, name)
	return n, nil
}

func (m *memRepository) Stats(ctx context.Context, name string) (Stats, error) {
	return Stats{NumRecords: len(m.records[name])}, nil
}

func (m *memRepository) Close(ctx context.Context) error  { return nil }
func (m *memRepository) Health(ctx context.Context) error { return nil }

func TestResolvePicksHighestMatchingVersion(t *testing.T) {
	repo := newMemRepository()
	ctx := context.Background()
	for _, v := range []string{"1.0.0", "1.4.0", "2.0.0"} {
		repo.Put(ctx, Record{Name: "discounts", Version: v, Source: "rule \"R\" {}"})
	}

	rec, ok, err := Resolve(ctx, repo, "discounts", "^1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || rec.Version != "1.4.0" {
		t.Fatalf("expected version 1.4.0, got %+v ok=%v", rec, ok)
	}
}

func TestResolveReturnsNotOkWhenNothingMatches(t *testing.T) {
	repo := newMemRepository()
	ctx := context.Background()
	repo.Put(ctx, Record{Name: "discounts", Version: "1.0.0", Source: "rule \"R\" {}"})

	_, ok, err := Resolve(ctx, repo, "discounts", "^2.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no version to satisfy ^2.0.0")
	}
}

func TestRepositoryInterfaceIsSatisfiedByAllBackends(t *testing.T) {
	var _ Repository = (*BoltRepository)(nil)
	var _ Repository = (*CassandraRepository)(nil)
	var _ Repository = (*DynamoDBRepository)(nil)
}
