package reference

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
)

func newDefaultRegistry(t *testing.T) *StaticRegistry {
	t.Helper()
	r, err := NewStaticRegistry(DefaultData())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return r
}

func TestStaticRegistry_DefaultData(t *testing.T) {
	r := newDefaultRegistry(t)
	ctx := context.Background()

	m, err := r.Member(ctx, "M123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Active {
		t.Error("expected M123 to be active")
	}

	m, err = r.Member(ctx, "M456")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Active {
		t.Error("expected M456 to be inactive")
	}

	p, err := r.Procedure(ctx, "P001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.AvgCost != 20000 {
		t.Errorf("expected avg_cost 20000, got %v", p.AvgCost)
	}

	if _, err := r.Provider(ctx, "PR2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	members, procedures, providers := r.Counts()
	if members != 2 || procedures != 2 || providers != 2 {
		t.Errorf("expected 2/2/2 records, got %d/%d/%d", members, procedures, providers)
	}
}

func TestStaticRegistry_NormalizesKeys(t *testing.T) {
	r := newDefaultRegistry(t)
	m, err := r.Member(context.Background(), "  m123 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ID != "M123" {
		t.Errorf("expected M123, got %s", m.ID)
	}
}

func TestStaticRegistry_NotFound(t *testing.T) {
	r := newDefaultRegistry(t)
	ctx := context.Background()

	if _, err := r.Member(ctx, "UNKNOWN"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for member, got %v", err)
	}
	if _, err := r.Procedure(ctx, "P999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for procedure, got %v", err)
	}
	if _, err := r.Provider(ctx, "PR9"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for provider, got %v", err)
	}
}

func TestNewStaticRegistry_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data Data
	}{
		{"empty member id", Data{Members: []Member{{ID: " "}}}},
		{"duplicate member", Data{Members: []Member{{ID: "m1"}, {ID: "M1"}}}},
		{"negative cost", Data{Procedures: []Procedure{{Code: "P1", AvgCost: -1}}}},
		{"duplicate procedure", Data{Procedures: []Procedure{{Code: "P1"}, {Code: "p1"}}}},
		{"empty provider id", Data{Providers: []Provider{{ID: ""}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewStaticRegistry(tt.data); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reference.yaml")
	content := `members:
  - id: m900
    active: true
procedures:
  - code: p900
    avg_cost: 125.5
providers:
  - id: pr900
    name: Clinic
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	d, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r, err := NewStaticRegistry(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, err := r.Procedure(context.Background(), "P900")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.AvgCost != 125.5 {
		t.Errorf("expected 125.5, got %v", p.AvgCost)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

// -- Redis registry --

type fakeHashReader struct {
	hashes map[string]map[string]string
	err    error
	keys   []string
}

func (f *fakeHashReader) HGetAll(_ context.Context, key string) *redis.MapStringStringCmd {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return redis.NewMapStringStringResult(nil, f.err)
	}
	h, ok := f.hashes[key]
	if !ok {
		h = map[string]string{}
	}
	return redis.NewMapStringStringResult(h, nil)
}

func TestRedisRegistry_Lookups(t *testing.T) {
	fake := &fakeHashReader{hashes: map[string]map[string]string{
		"claims:ref:member:M123":    {"active": "true"},
		"claims:ref:procedure:P001": {"avg_cost": "20000"},
		"claims:ref:provider:PR1":   {"name": "Provider One"},
	}}
	r := NewRedisRegistry(fake, "")
	ctx := context.Background()

	m, err := r.Member(ctx, "m123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Active || m.ID != "M123" {
		t.Errorf("unexpected member: %+v", m)
	}
	if fake.keys[0] != "claims:ref:member:M123" {
		t.Errorf("expected normalized key, got %s", fake.keys[0])
	}

	p, err := r.Procedure(ctx, "P001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.AvgCost != 20000 {
		t.Errorf("expected 20000, got %v", p.AvgCost)
	}

	pr, err := r.Provider(ctx, "PR1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pr.Name != "Provider One" {
		t.Errorf("expected Provider One, got %s", pr.Name)
	}
}

func TestRedisRegistry_MissingKey(t *testing.T) {
	r := NewRedisRegistry(&fakeHashReader{}, "x:")
	if _, err := r.Member(context.Background(), "M1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisRegistry_MalformedRecord(t *testing.T) {
	fake := &fakeHashReader{hashes: map[string]map[string]string{
		"claims:ref:procedure:P1": {"avg_cost": "abc"},
	}}
	r := NewRedisRegistry(fake, "")
	_, err := r.Procedure(context.Background(), "P1")
	if err == nil {
		t.Fatal("expected error for malformed avg_cost")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("malformed record must not be reported as not found")
	}
}

func TestRedisRegistry_ConnectionError(t *testing.T) {
	boom := errors.New("connection refused")
	r := NewRedisRegistry(&fakeHashReader{err: boom}, "")
	_, err := r.Provider(context.Background(), "PR1")
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped connection error, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("connection error must not be reported as not found")
	}
}
