package sms

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// LogGateway writes messages to the log and reports success. Used in local and
// dev environments.
type LogGateway struct {
	logger *slog.Logger
}

func NewLogGateway(logger *slog.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

func (g *LogGateway) Send(ctx context.Context, to, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := fmt.Sprintf("log-%d", time.Now().UnixNano())
	g.logger.Info("sms (log gateway)",
		slog.String("to", to),
		slog.String("body", body),
		slog.String("message_id", id))
	return id, nil
}

func (g *LogGateway) Name() string  { return "log" }
func (g *LogGateway) Enabled() bool { return false }
