// Package messaging publishes user lifecycle events to RabbitMQ.
package messaging

import (
	"context"
	"time"

	"github.com/oksasatya/go-ddd-user-management/internal/application"
)

// jsonPublisher is satisfied by *helpers.RabbitPublisher.
type jsonPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

type UserEventPublisher struct {
	pub     jsonPublisher
	timeout time.Duration
}

func NewUserEventPublisher(pub jsonPublisher) *UserEventPublisher {
	return &UserEventPublisher{pub: pub, timeout: 3 * time.Second}
}

func (p *UserEventPublisher) Publish(ctx context.Context, ev application.UserEvent) error {
	c, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.pub.PublishJSON(c, ev)
}

var _ application.EventPublisher = (*UserEventPublisher)(nil)
