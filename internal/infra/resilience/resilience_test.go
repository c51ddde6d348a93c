package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sinc-labs/janitor/internal/domain"
	"github.com/sinc-labs/janitor/internal/infra/resilience"
	"github.com/sony/gobreaker"
)

func TestRetryWithBackoff_Success(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_RetriesOnFailure(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     2,
		InitialBackoff: 10 * time.Millisecond,
	}

	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
}

func TestRetryWithBackoff_RespectsContext(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     5,
		InitialBackoff: 1 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := resilience.RetryWithBackoff(ctx, cfg, func() error {
		return errors.New("error")
	})

	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestBulkhead_AcquireRelease(t *testing.T) {
	bh := resilience.NewBulkhead(2)

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}
	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}

	// Third acquire should block; test with timeout context
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := bh.Acquire(ctx)
	if err == nil {
		t.Fatal("expected timeout on third acquire")
	}

	// Release one slot
	bh.Release()

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire after release, got %v", err)
	}
}

func TestRetryWithBackoff_StopsOnNotFound(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return &domain.ErrNotFound{Resource: "account", ID: "a-1"}
	})

	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_StopsOnPermanent(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	sentinel := errors.New("bad request")
	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return resilience.Permanent(sentinel)
	})

	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_ZeroRetriesCallsOnce(t *testing.T) {
	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), resilience.Config{}, func() error {
		callCount++
		return errors.New("boom")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestExecute_OpenBreakerReturnsCircuitOpen(t *testing.T) {
	cb := resilience.NewCircuitBreaker("identity-store")

	for i := 0; i < 5; i++ {
		_ = resilience.Execute(cb, func() error { return errors.New("down") })
	}
	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", cb.State())
	}

	err := resilience.Execute(cb, func() error { return nil })
	var open *domain.ErrCircuitOpen
	if !errors.As(err, &open) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if open.Service != "identity-store" {
		t.Errorf("expected service 'identity-store', got '%s'", open.Service)
	}
}

func TestExecute_NotFoundDoesNotTrip(t *testing.T) {
	cb := resilience.NewCircuitBreaker("record-store")

	for i := 0; i < 10; i++ {
		err := resilience.Execute(cb, func() error {
			return &domain.ErrNotFound{Resource: "account", ID: "gone"}
		})
		if !domain.IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected closed breaker, got %s", cb.State())
	}
}

func TestExecute_FailurePredicateIgnoresRejections(t *testing.T) {
	rejected := errors.New("conflict")
	cb := resilience.NewCircuitBreaker("record-store",
		resilience.WithFailurePredicate(func(err error) bool { return !errors.Is(err, rejected) }))

	for i := 0; i < 10; i++ {
		err := resilience.Execute(cb, func() error { return rejected })
		if !errors.Is(err, rejected) {
			t.Fatalf("expected rejection to pass through, got %v", err)
		}
	}
	if cb.State() != gobreaker.StateClosed {
		t.Fatalf("expected closed breaker, got %s", cb.State())
	}

	for i := 0; i < 5; i++ {
		_ = resilience.Execute(cb, func() error { return errors.New("down") })
	}
	if cb.State() != gobreaker.StateOpen {
		t.Errorf("expected open breaker after outages, got %s", cb.State())
	}
}

func TestBulkhead_DoHoldsSlot(t *testing.T) {
	bh := resilience.NewBulkhead(1)

	err := bh.Do(context.Background(), func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := bh.Acquire(ctx); err == nil {
			t.Error("expected slot to be held during Do")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected slot free after Do, got %v", err)
	}
}

func TestBulkhead_Unbounded(t *testing.T) {
	bh := resilience.NewBulkhead(0)
	for i := 0; i < 100; i++ {
		if err := bh.Acquire(context.Background()); err != nil {
			t.Fatalf("unbounded acquire failed: %v", err)
		}
	}
}
