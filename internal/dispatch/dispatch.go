// Package dispatch invokes registered action handlers by name and normalizes
// their outcome. It performs no policy decisions: gating has already approved
// the call by the time an action reaches the dispatcher.
package dispatch

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var actionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "remediation_actions_total",
		Help: "Total remediation actions dispatched",
	},
	[]string{"action", "success"},
)

func init() {
	prometheus.MustRegister(actionsTotal)
}

// Handler executes one action with its structured arguments and reports
// (success, human-readable message).
type Handler func(ctx context.Context, args map[string]interface{}) (bool, string)

// Dispatcher maps action names to handlers.
type Dispatcher struct {
	handlers map[string]Handler
	log      *logrus.Logger
}

// New creates an empty dispatcher.
func New(log *logrus.Logger) *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler), log: log}
}

// Register binds a handler to an action name, replacing any previous one.
func (d *Dispatcher) Register(action string, h Handler) {
	d.handlers[action] = h
}

// Registered reports whether a handler exists for the action.
func (d *Dispatcher) Registered(action string) bool {
	_, ok := d.handlers[action]
	return ok
}

// Execute runs the named action. Unregistered names fail with an
// "unknown action" message instead of panicking or falling through.
func (d *Dispatcher) Execute(ctx context.Context, action string, args map[string]interface{}) (bool, string) {
	h, ok := d.handlers[action]
	if !ok {
		actionsTotal.WithLabelValues(action, "false").Inc()
		return false, fmt.Sprintf("unknown action: %s", action)
	}
	success, msg := h(ctx, args)
	actionsTotal.WithLabelValues(action, strconv.FormatBool(success)).Inc()
	d.log.WithFields(logrus.Fields{
		"action": action, "success": success, "result": msg,
	}).Info("Action dispatched")
	return success, msg
}
