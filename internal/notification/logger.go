package notification

import (
	"context"
	"log/slog"
)

// LoggedPublisher writes each event to the structured logger before
// forwarding it. A nil next only logs.
type LoggedPublisher struct {
	next   Publisher
	logger *slog.Logger
}

func NewLoggedPublisher(next Publisher, logger *slog.Logger) *LoggedPublisher {
	return &LoggedPublisher{next: next, logger: logger}
}

func (p *LoggedPublisher) Publish(ctx context.Context, e Event) error {
	if p == nil {
		return nil
	}
	if p.logger != nil {
		p.logger.Info("change event", "table", e.Table, "type", e.Type, "record_id", e.RecordID, "district", e.District)
	}
	if p.next == nil {
		return nil
	}
	return p.next.Publish(ctx, e)
}
