// Package application collects notifications during a scheduling decision
// and hands them to the outbox when the decision commits.
package application

import (
	"context"
	"encoding/json"

	"github.com/voltahq/volta/internal/notifications/domain"
	"github.com/voltahq/volta/internal/shared/infrastructure/outbox"
)

// Collector accumulates notifications in emission order. It is created
// per request and never shared between goroutines, so the decision logic
// stays pure: emitting is appending, side effects happen at dispatch.
type Collector struct {
	notifications []domain.Notification
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Add(n domain.Notification) {
	c.notifications = append(c.notifications, n)
}

// Items returns the collected notifications in emission order.
func (c *Collector) Items() []domain.Notification {
	return c.notifications
}

func (c *Collector) Empty() bool {
	return len(c.notifications) == 0
}

// Dispatcher writes collected notifications to the outbox. Called inside
// the command's transaction so notifications commit or roll back with
// the schedule change they describe.
type Dispatcher struct {
	outbox outbox.Repository
}

func NewDispatcher(outboxRepo outbox.Repository) *Dispatcher {
	return &Dispatcher{outbox: outboxRepo}
}

func (d *Dispatcher) Dispatch(ctx context.Context, collector *Collector) error {
	if collector == nil || collector.Empty() {
		return nil
	}
	msgs := make([]*outbox.Message, 0, len(collector.notifications))
	for _, n := range collector.notifications {
		payload, err := json.Marshal(n)
		if err != nil {
			return err
		}
		msgs = append(msgs, outbox.NewRawMessage("notification", n.UserID, n.RoutingKey(), payload))
	}
	return d.outbox.SaveBatch(ctx, msgs)
}
