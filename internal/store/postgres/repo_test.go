package postgres

import (
	"context"
	"strings"
	"testing"
)

/*
SQL builder tests. These run without a live server; the end-to-end behavior
of the batch merge is covered by the shared store tests against SQLite,
which exercises the same interface contract.
*/

// TestBuildStageSQL pins the staging table clone statement.
func TestBuildStageSQL(t *testing.T) {
	t.Parallel()

	got := buildStageSQL("public.lines")
	want := `CREATE TEMP TABLE "dedupe_stage" ON COMMIT DROP AS SELECT content, seq FROM "public"."lines" WHERE false`
	if got != want {
		t.Fatalf("buildStageSQL:\n got  %s\n want %s", got, want)
	}
}

// TestBuildMergeSQL pins the grouped upsert. MIN(seq) keeps the earliest
// sighting inside a batch and the conflict arm accumulates hits without
// touching seq.
func TestBuildMergeSQL(t *testing.T) {
	t.Parallel()

	got := buildMergeSQL("lines")
	want := `INSERT INTO "lines" AS t (content, seq, hits)` +
		` SELECT content, MIN(seq), COUNT(*) FROM "dedupe_stage" GROUP BY content` +
		` ON CONFLICT (content) DO UPDATE SET hits = t.hits + EXCLUDED.hits`
	if got != want {
		t.Fatalf("buildMergeSQL:\n got  %s\n want %s", got, want)
	}
}

// TestPgIdentQuoting covers plain and hostile identifiers.
func TestPgIdentQuoting(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "lines", `"lines"`},
		{"embedded_quote", `weird"name`, `"weird""name"`},
		{"empty", "", `""`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := pgIdent(tc.in); got != tc.want {
				t.Fatalf("pgIdent(%q) = %s, want %s", tc.in, got, tc.want)
			}
		})
	}
}

// TestPgFQNQuoting covers bare, qualified, and degenerate names.
func TestPgFQNQuoting(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare", "lines", `"lines"`},
		{"qualified", "public.lines", `"public"."lines"`},
		{"leading_dot", ".lines", `"lines"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := pgFQN(tc.in); got != tc.want {
				t.Fatalf("pgFQN(%q) = %s, want %s", tc.in, got, tc.want)
			}
		})
	}
}

// TestTableLeaf verifies index name derivation for qualified tables.
func TestTableLeaf(t *testing.T) {
	t.Parallel()

	if got := tableLeaf("public.lines"); got != "lines" {
		t.Fatalf("tableLeaf = %q, want lines", got)
	}
	if got := tableLeaf("lines"); got != "lines" {
		t.Fatalf("tableLeaf = %q, want lines", got)
	}
}

// TestNewRepositoryRejectsEmptyConfig verifies config validation happens
// before any connection attempt.
func TestNewRepositoryRejectsEmptyConfig(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, _, err := NewRepository(ctx, Config{Table: "lines"}); err == nil || !strings.Contains(err.Error(), "DSN") {
		t.Fatalf("empty DSN: err = %v, want DSN error", err)
	}
	if _, _, err := NewRepository(ctx, Config{DSN: "postgres://localhost/x"}); err == nil || !strings.Contains(err.Error(), "table") {
		t.Fatalf("empty table: err = %v, want table error", err)
	}
}
