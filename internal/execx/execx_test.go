package execx

import (
	"context"
	"testing"
	"time"
)

func TestCommandTrimsOutput(t *testing.T) {
	if !Available("echo") {
		t.Skip("echo not available")
	}
	out, err := Command(context.Background(), "echo", "  hello  ")
	if err != nil {
		t.Fatalf("Command() error: %v", err)
	}
	if out != "hello" {
		t.Errorf("Command() = %q, want %q", out, "hello")
	}
}

func TestCommandMissingBinary(t *testing.T) {
	if _, err := Command(context.Background(), "definitely-not-a-real-binary-xyz"); err == nil {
		t.Error("expected error for missing binary")
	}
}

func TestWithTimeoutSetsDeadline(t *testing.T) {
	var got time.Time
	r := WithTimeout(func(ctx context.Context, name string, args ...string) (string, error) {
		got, _ = ctx.Deadline()
		return "ok", nil
	}, 3*time.Second)

	before := time.Now()
	if _, err := r(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	if got.IsZero() || got.Sub(before) > 3*time.Second+time.Second {
		t.Errorf("deadline = %v, want about 3s from now", got)
	}
}
