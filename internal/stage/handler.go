package stage

import (
	"context"

	"membooth/internal/session"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *session.Session) error
	Execute(context.Context, *session.Session) error
	HealthCheck(context.Context) Health
}

// Health is the outcome of probing a stage. A degraded stage stays
// registered; its Detail travels through the status API so the operator can
// see which endpoint needs attention.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy marks a stage whose endpoints are configured and responding.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Degraded marks a stage that cannot generate right now and says why.
func Degraded(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
