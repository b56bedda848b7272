package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockPinger{}, &mockPinger{})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["ledger"] != CheckOK {
		t.Errorf("expected ledger %q, got %q", CheckOK, r.Checks["ledger"])
	}
	if r.Checks["content"] != CheckOK {
		t.Errorf("expected content %q, got %q", CheckOK, r.Checks["content"])
	}
}

func TestCheck_LedgerError(t *testing.T) {
	svc := New(&mockPinger{err: errors.New("corrupt")}, &mockPinger{})
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks["ledger"] != CheckError {
		t.Errorf("expected ledger %q, got %q", CheckError, r.Checks["ledger"])
	}
	if r.Checks["content"] != CheckOK {
		t.Errorf("expected content %q, got %q", CheckOK, r.Checks["content"])
	}
}

func TestCheck_ContentError(t *testing.T) {
	svc := New(&mockPinger{}, &mockPinger{err: errors.New("no data dir")})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["content"] != CheckError {
		t.Errorf("expected content %q, got %q", CheckError, r.Checks["content"])
	}
}

func TestCheck_BothFail(t *testing.T) {
	svc := New(&mockPinger{err: errors.New("down")}, &mockPinger{err: errors.New("gone")})
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
}

func TestCheck_NoContent(t *testing.T) {
	svc := New(&mockPinger{}, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks["content"]; ok {
		t.Error("content check should be absent when content is nil")
	}
}
