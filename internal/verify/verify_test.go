package verify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// fakeStatus returns a scripted sequence of health readings, repeating the
// last one once exhausted.
type fakeStatus struct {
	readings []reading
	calls    int
}

type reading struct {
	ready, desired int32
	err            error
}

func (f *fakeStatus) ReadHealth(ctx context.Context, namespace, deployment string) (int32, int32, error) {
	i := f.calls
	if i >= len(f.readings) {
		i = len(f.readings) - 1
	}
	f.calls++
	r := f.readings[i]
	return r.ready, r.desired, r.err
}

func TestVerify_HealthyImmediately(t *testing.T) {
	status := &fakeStatus{readings: []reading{{ready: 3, desired: 3}}}
	v := New(status, time.Millisecond, 100*time.Millisecond, testLogger())
	ok, msg := v.Verify(context.Background(), "default", "demo-app")
	if !ok {
		t.Fatalf("expected healthy, got %q", msg)
	}
	if msg != "healthy: 3/3 replicas ready" {
		t.Errorf("msg = %q", msg)
	}
}

func TestVerify_BecomesHealthyAfterPolling(t *testing.T) {
	status := &fakeStatus{readings: []reading{
		{ready: 0, desired: 2},
		{ready: 1, desired: 2},
		{ready: 2, desired: 2},
	}}
	v := New(status, time.Millisecond, time.Second, testLogger())
	ok, _ := v.Verify(context.Background(), "default", "demo-app")
	if !ok {
		t.Fatal("expected healthy after polling")
	}
	if status.calls < 3 {
		t.Errorf("polled %d times, want at least 3", status.calls)
	}
}

func TestVerify_TimeoutUnhealthy(t *testing.T) {
	status := &fakeStatus{readings: []reading{{ready: 0, desired: 3}}}
	v := New(status, time.Millisecond, 10*time.Millisecond, testLogger())
	ok, msg := v.Verify(context.Background(), "default", "demo-app")
	if ok {
		t.Fatal("expected timeout failure")
	}
	if !strings.HasPrefix(msg, "timeout:") {
		t.Errorf("msg = %q, want timeout prefix", msg)
	}
}

// A failed health query is terminal: the verifier must not keep retrying
// into the timeout budget when it cannot observe the target at all.
func TestVerify_QueryErrorTerminal(t *testing.T) {
	status := &fakeStatus{readings: []reading{{err: errors.New("connection refused")}}}
	v := New(status, time.Millisecond, time.Second, testLogger())
	start := time.Now()
	ok, msg := v.Verify(context.Background(), "default", "demo-app")
	if ok {
		t.Fatal("expected failure on query error")
	}
	if status.calls != 1 {
		t.Errorf("queried %d times, want 1", status.calls)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("error path waited instead of returning immediately")
	}
	if !strings.HasPrefix(msg, "verification failed:") {
		t.Errorf("msg = %q", msg)
	}
}

func TestVerify_ZeroDesiredTreatedAsOne(t *testing.T) {
	status := &fakeStatus{readings: []reading{{ready: 0, desired: 0}}}
	v := New(status, time.Millisecond, 10*time.Millisecond, testLogger())
	ok, _ := v.Verify(context.Background(), "default", "demo-app")
	if ok {
		t.Error("zero ready replicas should not verify as healthy")
	}
}

func TestVerify_ContextCancel(t *testing.T) {
	status := &fakeStatus{readings: []reading{{ready: 0, desired: 1}}}
	v := New(status, 50*time.Millisecond, time.Minute, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok, msg := v.Verify(ctx, "default", "demo-app")
	if ok {
		t.Fatal("expected cancel failure")
	}
	if !strings.HasPrefix(msg, "verification canceled:") {
		t.Errorf("msg = %q", msg)
	}
}
