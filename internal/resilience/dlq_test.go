package resilience

import (
	"errors"
	"testing"
)

func TestDLQEntry_CanRetry(t *testing.T) {
	tests := []struct {
		name       string
		retryCount int
		maxRetries int
		want       bool
	}{
		{"below max", 0, 3, true},
		{"at max", 3, 3, false},
		{"above max", 5, 3, false},
		{"one below max", 2, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := DLQEntry{
				RetryCount: tt.retryCount,
				MaxRetries: tt.maxRetries,
			}
			if got := e.CanRetry(); got != tt.want {
				t.Errorf("CanRetry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"transient error", NewTransientError(errors.New("503"), 503), "transient"},
		{"permanent error", errors.New("invalid input"), "permanent"},
		{"connection reset", errors.New("connection reset by peer"), "transient"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDLQEntry_Subject(t *testing.T) {
	e := DLQEntry{Subject: "000001|2024-12-31|ANNUAL"}
	if e.Subject != "000001|2024-12-31|ANNUAL" {
		t.Errorf("expected subject to round-trip, got %q", e.Subject)
	}
}

func TestMemoryDLQ_EnqueueAndList(t *testing.T) {
	q := NewMemoryDLQ()
	q.Enqueue(DLQEntry{ID: "1", Subject: "a", ErrorType: "transient"})
	q.Enqueue(DLQEntry{ID: "2", Subject: "b", ErrorType: "permanent"})
	q.Enqueue(DLQEntry{ID: "3", Subject: "c", ErrorType: "transient"})

	if got := q.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}

	transient := q.List(DLQFilter{ErrorType: "transient"})
	if len(transient) != 2 {
		t.Fatalf("List(transient) = %d entries, want 2", len(transient))
	}

	limited := q.List(DLQFilter{Limit: 1})
	if len(limited) != 1 {
		t.Fatalf("List(limit=1) = %d entries, want 1", len(limited))
	}
}

func TestMemoryDLQ_ConcurrentEnqueue(t *testing.T) {
	q := NewMemoryDLQ()
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func(i int) {
			q.Enqueue(DLQEntry{ID: string(rune('a' + i))})
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	if got := q.Len(); got != 10 {
		t.Fatalf("Len() = %d, want 10", got)
	}
}
