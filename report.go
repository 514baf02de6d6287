package jwtsession

import (
	"context"
	"io"
	"time"

	"github.com/MrEthical07/jwtsession/internal/report"
	"go.uber.org/zap"
)

// ReportEvent carries the private cause of an authentication failure.
type ReportEvent = report.Event

// ReportSink receives failure reports. Emit runs on the dispatcher
// goroutine, never on the request path.
type ReportSink = report.Sink

// NoOpReportSink discards every report.
type NoOpReportSink = report.NoOpSink

// NewZapReportSink logs reports through logger at warn level.
func NewZapReportSink(logger *zap.Logger) ReportSink {
	return report.NewZapSink(logger)
}

// NewJSONReportSink writes one JSON object per report to w.
func NewJSONReportSink(w io.Writer) ReportSink {
	return report.NewJSONWriterSink(w)
}

// NewChannelReportSink returns a sink that buffers reports in a channel,
// mainly for tests.
func NewChannelReportSink(buffer int) *report.ChannelSink {
	return report.NewChannelSink(buffer)
}

func (e *Engine) report(ctx context.Context, op string, kind, detail error) {
	if e == nil || e.reports == nil {
		return
	}
	event := ReportEvent{
		Timestamp: time.Now().UTC(),
		Operation: op,
		Kind:      kindName(kind),
		RequestID: requestIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
	}
	if detail != nil {
		event.Detail = detail.Error()
	}
	e.reports.Emit(ctx, event)
}
