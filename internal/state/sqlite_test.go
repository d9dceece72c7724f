package state

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	logx "jobwrk/pkg/logx"
)

func TestSQLiteLoadSave(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "db", "state.sqlite")
	ctx := context.Background()

	st, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	v, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok || len(m) != 0 {
		t.Fatalf("initial state = %#v, want empty object", v)
	}

	b := NewBlob(m)
	b.Set("foo", "bar")
	if err := st.Save(ctx, b); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// survives reopen
	st2, err := Open(Config{Driver: "sqlite3", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()
	v2, err := st2.Load(ctx)
	if err != nil {
		t.Fatalf("Load after reopen: %v", err)
	}
	if m2, _ := v2.(map[string]any); m2["foo"] != "bar" {
		t.Fatalf("state = %#v, want foo=bar", v2)
	}
}

func TestSQLiteNonObjectState(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state.sqlite")
	ctx := context.Background()

	st, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	if err := st.Save(ctx, NewBlobValue([]any{json.Number("1"), "two"})); err != nil {
		t.Fatalf("Save: %v", err)
	}
	v, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	out, _ := json.Marshal(v)
	if string(out) != `[1,"two"]` {
		t.Fatalf("state = %s", out)
	}
}

func TestSQLiteParseError(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state.sqlite")
	ctx := context.Background()

	st, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ss := st.(*sqliteStore)
	if err := ss.put(ctx, []byte("{broken")); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, err = st.Load(ctx)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
}
