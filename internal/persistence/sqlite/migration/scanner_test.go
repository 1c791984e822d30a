package migration

import (
	"errors"
	"testing"
	"testing/fstest"
)

func TestScanMigrationsOrdersByNumericVersion(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/010_add_index.sql":      {Data: []byte("CREATE INDEX idx ON t (a);")},
		"migrations/002_add_column.sql":     {Data: []byte("-- Description: Add column b\nALTER TABLE t ADD COLUMN b TEXT;")},
		"migrations/001_create_table.sql":   {Data: []byte("CREATE TABLE t (a TEXT);")},
		"migrations/README.md":              {Data: []byte("ignored")},
		"migrations/nested/003_skipped.sql": {Data: []byte("CREATE TABLE x (a TEXT);")},
	}

	migrations, err := NewFileScanner().ScanMigrations(fsys, "migrations")
	if err != nil {
		t.Fatalf("ScanMigrations failed: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}

	got := []string{migrations[0].Version, migrations[1].Version, migrations[2].Version}
	if got[0] != "001" || got[1] != "002" || got[2] != "010" {
		t.Fatalf("unexpected order %v", got)
	}
	if migrations[0].Description != "create table" {
		t.Fatalf("expected filename description, got %q", migrations[0].Description)
	}
	if migrations[1].Description != "Add column b" {
		t.Fatalf("expected content description, got %q", migrations[1].Description)
	}
	if migrations[0].FilePath != "migrations/001_create_table.sql" {
		t.Fatalf("unexpected file path %q", migrations[0].FilePath)
	}
	if len(migrations[0].Checksum) != 64 {
		t.Fatalf("expected sha256 hex checksum, got %q", migrations[0].Checksum)
	}
}

func TestScanMigrationsRejectsBadFiles(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		files fstest.MapFS
		want  error
	}{
		"bad name": {
			files: fstest.MapFS{"m/create.sql": {Data: []byte("SELECT 1;")}},
			want:  ErrInvalidMigrationFile,
		},
		"empty": {
			files: fstest.MapFS{"m/001_empty.sql": {Data: []byte("  \n")}},
			want:  ErrInvalidMigrationFile,
		},
		"comments only": {
			files: fstest.MapFS{"m/001_comments.sql": {Data: []byte("-- nothing here\n")}},
			want:  ErrInvalidMigrationFile,
		},
		"unbalanced parenthesis": {
			files: fstest.MapFS{"m/001_bad.sql": {Data: []byte("CREATE TABLE t (a TEXT;")}},
			want:  ErrInvalidMigrationFile,
		},
		"unterminated string": {
			files: fstest.MapFS{"m/001_bad.sql": {Data: []byte("INSERT INTO t VALUES ('x);")}},
			want:  ErrInvalidMigrationFile,
		},
		"duplicate version": {
			files: fstest.MapFS{
				"m/001_a.sql":  {Data: []byte("SELECT 1;")},
				"m/0001_b.sql": {Data: []byte("SELECT 2;")},
			},
			want: ErrDuplicateVersion,
		},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := NewFileScanner().ScanMigrations(tc.files, "m")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			var mErr *MigrationError
			if !errors.As(err, &mErr) {
				t.Fatalf("expected MigrationError, got %T", err)
			}
		})
	}
}

func TestScanMigrationsMissingDirectory(t *testing.T) {
	t.Parallel()

	if _, err := NewFileScanner().ScanMigrations(fstest.MapFS{}, "missing"); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func TestSplitStatementsDropsComments(t *testing.T) {
	t.Parallel()

	statements := splitStatements("-- Description: x\nCREATE TABLE a (id TEXT);\n-- trailing\nCREATE INDEX i ON a (id);\n")
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(statements), statements)
	}
	if statements[1] != "CREATE INDEX i ON a (id)" {
		t.Fatalf("unexpected statement %q", statements[1])
	}
}
