package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	logx "jobwrk/pkg/logx"
)

func TestFileLoadCreatesDirAndEmptyState(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state", "nested", "my-state.json")
	st := NewFile(path, logx.Nop())

	v, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m, ok := v.(map[string]any); !ok || len(m) != 0 {
		t.Fatalf("state = %#v, want empty object", v)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read state file: %v", err)
	}
	if string(b) != "{}" {
		t.Fatalf("file content = %q, want {}", string(b))
	}
}

func TestFileLoadExistingState(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "my-state.json")
	if err := os.WriteFile(path, []byte(`{"foo":"bar","n":12.50,"list":[1,2]}`), 0o600); err != nil {
		t.Fatal(err)
	}

	v, err := NewFile(path, logx.Nop()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	m := v.(map[string]any)
	if m["foo"] != "bar" {
		t.Fatalf("foo = %v, want bar", m["foo"])
	}
	if n, ok := m["n"].(interface{ String() string }); !ok || n.String() != "12.50" {
		t.Fatalf("n = %#v, want json.Number 12.50", m["n"])
	}
}

func TestFileLoadParseError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
	}{
		{name: "garbage", content: "not json"},
		{name: "empty", content: ""},
		{name: "truncated", content: `{"a":`},
		{name: "trailing", content: `{"a":1}{"b":2}`},
		{name: "trailing scalar", content: `[1,2] 3`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "state.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			_, err := NewFile(path, logx.Nop()).Load(context.Background())
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("err = %v, want *ParseError", err)
			}
			if pe.Path != path {
				t.Fatalf("ParseError.Path = %q, want %q", pe.Path, path)
			}
			// the file is left untouched
			b, _ := os.ReadFile(path)
			if string(b) != tt.content {
				t.Fatalf("file rewritten to %q", string(b))
			}
		})
	}
}

func TestFileNonObjectStateRoundTrip(t *testing.T) {
	t.Parallel()
	for _, content := range []string{`[1,2]`, `"x"`, `42`, `null`, `[1,2,3]`, `"hello"`, `12.50`} {
		path := filepath.Join(t.TempDir(), "state.json")
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		st := NewFile(path, logx.Nop())
		ctx := context.Background()

		v, err := st.Load(ctx)
		if err != nil {
			t.Fatalf("Load(%s): %v", content, err)
		}
		if err := st.Save(ctx, NewBlobValue(v)); err != nil {
			t.Fatalf("Save(%s): %v", content, err)
		}
		b, _ := os.ReadFile(path)
		if string(b) != content {
			t.Fatalf("round trip %s -> %s", content, b)
		}
	}
}

func TestFileLoadFilesystemError(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	// parent "directory" is a regular file
	_, err := NewFile(filepath.Join(blocker, "sub", "state.json"), logx.Nop()).Load(context.Background())
	var fe *FilesystemError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *FilesystemError", err)
	}
	if fe.Op != "mkdir" {
		t.Fatalf("Op = %q, want mkdir", fe.Op)
	}
}

func TestFileSaveRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state.json")
	st := NewFile(path, logx.Nop())
	ctx := context.Background()

	v, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b := NewBlobValue(v)
	b.Set("foo", "bar")
	b.Set("count", 3)
	if err := st.Save(ctx, b); err != nil {
		t.Fatalf("Save: %v", err)
	}

	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != `{"count":3,"foo":"bar"}` {
		t.Fatalf("file content = %q", string(first))
	}

	// save(load()) is the identity on disk
	m2, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := st.Save(ctx, NewBlobValue(m2)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, _ := os.ReadFile(path)
	if string(second) != string(first) {
		t.Fatalf("round trip changed file: %q -> %q", first, second)
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestFileSaveTruncates(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state.json")
	st := NewFile(path, logx.Nop())
	ctx := context.Background()
	if _, err := st.Load(ctx); err != nil {
		t.Fatal(err)
	}

	big := NewBlob(nil)
	big.Set("payload", "0123456789012345678901234567890123456789")
	if err := st.Save(ctx, big); err != nil {
		t.Fatal(err)
	}
	if err := st.Save(ctx, NewBlob(nil)); err != nil {
		t.Fatal(err)
	}
	b, _ := os.ReadFile(path)
	if string(b) != "{}" {
		t.Fatalf("file content = %q, want {}", string(b))
	}
}

func TestOpenDrivers(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	st, err := Open(Config{Path: filepath.Join(dir, "a.json")}, logx.Logger{})
	if err != nil {
		t.Fatalf("Open(file): %v", err)
	}
	if st.Location() != filepath.Join(dir, "a.json") {
		t.Fatalf("Location = %q", st.Location())
	}
	_ = st.Close()

	if _, err := Open(Config{Driver: "redis", Path: filepath.Join(dir, "b")}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("expected error for missing path")
	}
}
