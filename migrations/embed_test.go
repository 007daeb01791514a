package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestPostgres_ContainsClaimsTable(t *testing.T) {
	data, err := fs.ReadFile(Postgres(), "001_claims.sql")
	if err != nil {
		t.Fatalf("read embedded migration: %v", err)
	}
	sql := string(data)
	for _, want := range []string{"CREATE TABLE IF NOT EXISTS claims", "claims_pkey", "claims_idempotency_key_key"} {
		if !strings.Contains(sql, want) {
			t.Errorf("expected migration to contain %q", want)
		}
	}
}
