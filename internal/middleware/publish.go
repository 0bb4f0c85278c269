package middleware

import (
	"context"

	"github.com/sofatutor/httpcapture/internal/eventbus"
	"go.uber.org/zap"
)

// PublishAction returns a post-action that turns each finished exchange
// into an eventbus.Event and publishes it off the request goroutine. It is
// the stock collaborator for the capture accessors; applications with other
// needs supply their own Action.
func PublishAction(bus eventbus.EventBus, logger *zap.Logger) Action {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ex *Exchange) {
		evt := eventbus.Event{
			RequestID:         ex.RequestID,
			CorrelationID:     ex.CorrelationID,
			Method:            ex.Method,
			Path:              ex.Path,
			Status:            ex.Status(),
			Duration:          ex.Duration(),
			RequestUnits:      ex.RequestUnits(),
			RequestTruncated:  ex.RequestLimitReached(),
			RequestConsumed:   ex.RequestConsumed(),
			ResponseBody:      ex.ResponseBytes(),
			ResponseUnits:     ex.ResponseUnits(),
			ResponseTruncated: ex.ResponseLimitReached(),
		}

		switch ex.Mode() {
		case ModeBytes:
			body, err := ex.RequestBytes()
			if err != nil {
				logger.Warn("read captured request bytes", zap.Error(err))
			}
			evt.RequestBody = body
		case ModeText:
			text, err := ex.RequestText()
			if err != nil {
				logger.Warn("read captured request text", zap.Error(err))
			}
			evt.RequestText = text
		}

		go bus.Publish(context.Background(), evt)
	}
}
