package timeouts_test

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/huddle/internal/app/system/timeouts"
	"go.uber.org/zap"
)

func TestDefaults(t *testing.T) {
	timeouts.Reset()
	if timeouts.Short() != timeouts.DefaultShort {
		t.Errorf("Short: got %v", timeouts.Short())
	}
	if timeouts.Medium() != timeouts.DefaultMedium {
		t.Errorf("Medium: got %v", timeouts.Medium())
	}
}

func TestConfigure_IgnoresZero(t *testing.T) {
	defer timeouts.Reset()
	timeouts.Configure(timeouts.Config{Short: 7 * time.Second})
	if timeouts.Short() != 7*time.Second {
		t.Errorf("Short: got %v", timeouts.Short())
	}
	if timeouts.Ping() != timeouts.DefaultPing {
		t.Errorf("Ping changed: %v", timeouts.Ping())
	}
}

func TestConfigureFromEnv(t *testing.T) {
	defer timeouts.Reset()
	t.Setenv("HUDDLE_TIMEOUT_MEDIUM", "3s")
	t.Setenv("HUDDLE_TIMEOUT_LONG", "garbage")

	if n := timeouts.ConfigureFromEnv(); n != 1 {
		t.Errorf("applied: got %d, want 1", n)
	}
	if timeouts.Medium() != 3*time.Second {
		t.Errorf("Medium: got %v", timeouts.Medium())
	}
	if timeouts.Long() != timeouts.DefaultLong {
		t.Errorf("Long: got %v", timeouts.Long())
	}
}

func TestWithTimeout(t *testing.T) {
	ctx, cancel := timeouts.WithTimeout(context.Background(), time.Millisecond, zap.NewNop(), "test")
	<-ctx.Done()
	cancel()
	if ctx.Err() != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", ctx.Err())
	}
}
