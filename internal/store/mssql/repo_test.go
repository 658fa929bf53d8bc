package mssql

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

// TestBuildStageSQL pins the staging table clone statement, including the
// leftover-table drop that covers pooled session reuse.
func TestBuildStageSQL(t *testing.T) {
	t.Parallel()

	got := buildStageSQL("dbo.lines")
	want := "IF OBJECT_ID('tempdb..#dedupe_stage') IS NOT NULL DROP TABLE [#dedupe_stage];" +
		" SELECT TOP 0 content_key, content, seq INTO [#dedupe_stage] FROM [dbo].[lines]"
	if got != want {
		t.Fatalf("buildStageSQL:\n got  %s\n want %s", got, want)
	}
}

// TestBuildMergeSQL pins the windowed merge. The rank keeps the earliest
// sighting inside a batch, the partition count becomes the hit contribution,
// and the matched arm accumulates hits without touching seq.
func TestBuildMergeSQL(t *testing.T) {
	t.Parallel()

	got := buildMergeSQL("lines")
	want := "MERGE INTO [lines] AS t" +
		" USING (SELECT content_key, content, seq, cnt FROM" +
		" (SELECT content_key, content, seq," +
		" ROW_NUMBER() OVER (PARTITION BY content_key ORDER BY seq ASC) AS rn," +
		" COUNT_BIG(*) OVER (PARTITION BY content_key) AS cnt" +
		" FROM [#dedupe_stage]) AS d WHERE rn = 1) AS s" +
		" ON t.content_key = s.content_key" +
		" WHEN MATCHED THEN UPDATE SET hits = t.hits + s.cnt" +
		" WHEN NOT MATCHED THEN INSERT (content_key, content, seq, hits)" +
		" VALUES (s.content_key, s.content, s.seq, s.cnt);"
	if got != want {
		t.Fatalf("buildMergeSQL:\n got  %s\n want %s", got, want)
	}
}

// TestMsIdentQuoting covers plain and hostile identifiers.
func TestMsIdentQuoting(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "lines", "[lines]"},
		{"embedded_bracket", "weird]name", "[weird]]name]"},
		{"temp_table", "#dedupe_stage", "[#dedupe_stage]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := msIdent(tc.in); got != tc.want {
				t.Fatalf("msIdent(%q) = %s, want %s", tc.in, got, tc.want)
			}
		})
	}
}

// TestMsFQNQuoting covers bare, qualified, and degenerate names.
func TestMsFQNQuoting(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare", "lines", "[lines]"},
		{"qualified", "dbo.lines", "[dbo].[lines]"},
		{"leading_dot", ".lines", "[lines]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := msFQN(tc.in); got != tc.want {
				t.Fatalf("msFQN(%q) = %s, want %s", tc.in, got, tc.want)
			}
		})
	}
}

// TestTableLeaf verifies index name derivation for qualified tables.
func TestTableLeaf(t *testing.T) {
	t.Parallel()

	if got := tableLeaf("dbo.lines"); got != "lines" {
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
	if _, _, err := NewRepository(ctx, Config{DSN: "sqlserver://localhost?database=x"}); err == nil || !strings.Contains(err.Error(), "table") {
		t.Fatalf("empty table: err = %v, want table error", err)
	}
}

// TestNewRepositoryRejectsMalformedDSN verifies the DSN parse runs before
// any connection attempt.
func TestNewRepositoryRejectsMalformedDSN(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, _, err := NewRepository(ctx, Config{DSN: "sqlserver://localhost:notaport", Table: "lines"})
	if err == nil || !strings.Contains(err.Error(), "dsn") {
		t.Fatalf("malformed DSN: err = %v, want dsn error", err)
	}
}
