// Package verify provides the post-action health check for mutating actions.
package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// StatusProvider reads the current replica health of the managed target.
type StatusProvider interface {
	ReadHealth(ctx context.Context, namespace, deployment string) (ready, desired int32, err error)
}

// Verifier polls a target's health after a mutating action until the target
// is ready or the timeout budget is spent.
type Verifier struct {
	status   StatusProvider
	interval time.Duration
	timeout  time.Duration
	log      *logrus.Logger
}

// New creates a verifier. Zero interval defaults to 5s, zero timeout to 30s.
func New(status StatusProvider, interval, timeout time.Duration, log *logrus.Logger) *Verifier {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Verifier{status: status, interval: interval, timeout: timeout, log: log}
}

// Verify polls the target at a fixed interval until ready replicas reach the
// desired count (healthy) or the timeout elapses (unhealthy). A provider
// error is terminal for the attempt: it returns failure immediately rather
// than retrying into the timeout budget.
func (v *Verifier) Verify(ctx context.Context, namespace, deployment string) (bool, string) {
	deadline := time.Now().Add(v.timeout)
	for {
		ready, desired, err := v.status.ReadHealth(ctx, namespace, deployment)
		if err != nil {
			v.log.WithError(err).WithField("deployment", deployment).Warn("Health query failed during verification")
			return false, fmt.Sprintf("verification failed: %v", err)
		}
		if desired < 1 {
			desired = 1
		}
		if ready >= desired {
			return true, fmt.Sprintf("healthy: %d/%d replicas ready", ready, desired)
		}
		if time.Now().After(deadline) {
			return false, fmt.Sprintf("timeout: deployment not healthy after %s", v.timeout)
		}
		select {
		case <-ctx.Done():
			return false, fmt.Sprintf("verification canceled: %v", ctx.Err())
		case <-time.After(v.interval):
		}
	}
}
