package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"testing"
	"time"

	"jobwrk/internal/config"
	"jobwrk/internal/state"
	logx "jobwrk/pkg/logx"
)

func TestHeartbeat(t *testing.T) {
	t.Parallel()
	blob := state.NewBlob(map[string]any{"beat.count": json.Number("41")})
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	task := Heartbeat("beat", blob, func() time.Time { return at })

	if err := task(context.Background()); err != nil {
		t.Fatal(err)
	}
	if v, _ := blob.Get("beat.count"); v != int64(42) {
		t.Fatalf("count = %#v, want 42", v)
	}
	if v, _ := blob.Get("beat.last"); v != "2024-05-01T11:00:00Z" {
		t.Fatalf("last = %#v", v)
	}

	_ = task(context.Background())
	if v, _ := blob.Get("beat.count"); v != int64(43) {
		t.Fatalf("count = %#v, want 43", v)
	}
}

func TestHeartbeatNonObjectState(t *testing.T) {
	t.Parallel()
	blob := state.NewBlobValue([]any{json.Number("1"), json.Number("2")})
	task := Heartbeat("beat", blob, time.Now)

	err := task(context.Background())
	if !errors.Is(err, ErrStateNotObject) {
		t.Fatalf("err = %v, want ErrStateNotObject", err)
	}
	if got, ok := blob.Value().([]any); !ok || len(got) != 2 {
		t.Fatalf("state changed to %#v", blob.Value())
	}
}

func TestToInt(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   any
		want int64
	}{
		{in: nil, want: 0},
		{in: 3, want: 3},
		{in: int64(4), want: 4},
		{in: 5.0, want: 5},
		{in: json.Number("6"), want: 6},
		{in: json.Number("7.0"), want: 7},
		{in: "8", want: 8},
		{in: "x", want: 0},
		{in: true, want: 0},
	}
	for _, tt := range tests {
		if got := toInt(tt.in); got != tt.want {
			t.Fatalf("toInt(%#v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func requireBin(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}

func TestExec(t *testing.T) {
	t.Parallel()
	requireBin(t, "true")
	requireBin(t, "false")

	if err := Exec([]string{"true"}, 0, logx.Nop())(context.Background()); err != nil {
		t.Fatalf("true: %v", err)
	}
	err := Exec([]string{"false"}, 0, logx.Nop())(context.Background())
	var ee *exec.ExitError
	if !errors.As(err, &ee) {
		t.Fatalf("false: err = %v, want *exec.ExitError", err)
	}
}

func TestExecEmptyCommand(t *testing.T) {
	t.Parallel()
	for _, argv := range [][]string{nil, {}} {
		task := Exec(argv, time.Second, logx.Nop())
		if err := task(context.Background()); !errors.Is(err, ErrEmptyCommand) {
			t.Fatalf("Exec(%#v): err = %v, want ErrEmptyCommand", argv, err)
		}
	}
}

func TestExecTimeout(t *testing.T) {
	t.Parallel()
	requireBin(t, "sleep")

	start := time.Now()
	err := Exec([]string{"sleep", "5"}, 100*time.Millisecond, logx.Nop())(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if took := time.Since(start); took > 3*time.Second {
		t.Fatalf("timeout not enforced, took %v", took)
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()
	blob := state.NewBlob(nil)

	task, err := Build(config.JobConfig{Key: "b", Task: " Heartbeat ", Every: "1s"}, blob, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	_ = task(context.Background())
	if _, ok := blob.Get("b.count"); !ok {
		t.Fatal("heartbeat task not built")
	}

	if _, err := Build(config.JobConfig{Key: "e", Task: "exec"}, blob, logx.Nop()); err == nil {
		t.Fatal("exec without command accepted")
	}
	if _, err := Build(config.JobConfig{Key: "e", Task: "exec", Command: []string{"true"}, Timeout: "bad"}, blob, logx.Nop()); err == nil {
		t.Fatal("bad timeout accepted")
	}
	if _, err := Build(config.JobConfig{Key: "x", Task: "mail"}, blob, logx.Nop()); err == nil {
		t.Fatal("unknown task accepted")
	}
	if _, err := Build(config.JobConfig{Key: "b", Task: "heartbeat"}, nil, logx.Nop()); err == nil {
		t.Fatal("heartbeat without blob accepted")
	}
}
