package locks

import (
	"context"
	"testing"
	"time"

	"github.com/gitguide/gitguide-backend/internal/apperr"
)

func TestLocalLockerExcludesSameKey(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "project:a", time.Minute)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	if _, err := l.Acquire(ctx, "project:a", time.Minute); !apperr.Is(err, apperr.CodeConflict) {
		t.Fatalf("second acquire on held key: got %v", err)
	}

	// A different key is independent.
	otherRelease, err := l.Acquire(ctx, "project:b", time.Minute)
	if err != nil {
		t.Fatalf("acquire on other key: %v", err)
	}
	otherRelease()

	release()
	release2, err := l.Acquire(ctx, "project:a", time.Minute)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	release2()
}

func TestLocalLockerReleaseIsIdempotentPerHolder(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "project:a", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	release()

	// Re-acquire proves the slot was freed exactly once.
	if _, err := l.Acquire(ctx, "project:a", time.Minute); err != nil {
		t.Fatalf("re-acquire: %v", err)
	}
}
