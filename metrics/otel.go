package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/maxpert/amqp-client-go/protocol"
)

const meterName = "github.com/maxpert/amqp-client-go"

// OTELRecorder reports engine events through an OpenTelemetry meter.
type OTELRecorder struct {
	connections    metric.Int64UpDownCounter
	channels       metric.Int64UpDownCounter
	framesSent     metric.Int64Counter
	framesReceived metric.Int64Counter
	bytesSent      metric.Int64Counter
	bytesReceived  metric.Int64Counter
	published      metric.Int64Counter
	settled        metric.Int64Counter
	delivered      metric.Int64Counter
	acknowledged   metric.Int64Counter
	rejected       metric.Int64Counter
	promises       metric.Int64Gauge
}

var _ Recorder = (*OTELRecorder)(nil)

// NewOTELRecorder creates instruments on a meter from meterProvider. prefix
// is prepended to every instrument name.
func NewOTELRecorder(meterProvider metric.MeterProvider, prefix string) (*OTELRecorder, error) {
	if prefix == "" {
		prefix = "amqp.client"
	}
	meter := meterProvider.Meter(meterName)
	r := &OTELRecorder{}

	var err error
	if r.connections, err = meter.Int64UpDownCounter(prefix+".connections",
		metric.WithDescription("Number of open connections"),
		metric.WithUnit("{connection}")); err != nil {
		return nil, err
	}
	if r.channels, err = meter.Int64UpDownCounter(prefix+".channels",
		metric.WithDescription("Number of open channels"),
		metric.WithUnit("{channel}")); err != nil {
		return nil, err
	}
	if r.framesSent, err = meter.Int64Counter(prefix+".frames.sent",
		metric.WithDescription("Frames written to the broker"),
		metric.WithUnit("{frame}")); err != nil {
		return nil, err
	}
	if r.framesReceived, err = meter.Int64Counter(prefix+".frames.received",
		metric.WithDescription("Frames read from the broker"),
		metric.WithUnit("{frame}")); err != nil {
		return nil, err
	}
	if r.bytesSent, err = meter.Int64Counter(prefix+".bytes.sent",
		metric.WithDescription("Bytes written to the broker"),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if r.bytesReceived, err = meter.Int64Counter(prefix+".bytes.received",
		metric.WithDescription("Bytes read from the broker"),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if r.published, err = meter.Int64Counter(prefix+".messages.published",
		metric.WithDescription("Messages published"),
		metric.WithUnit("{message}")); err != nil {
		return nil, err
	}
	if r.settled, err = meter.Int64Counter(prefix+".messages.settled",
		metric.WithDescription("Published messages settled by the broker, by outcome"),
		metric.WithUnit("{message}")); err != nil {
		return nil, err
	}
	if r.delivered, err = meter.Int64Counter(prefix+".messages.delivered",
		metric.WithDescription("Messages delivered to the client"),
		metric.WithUnit("{message}")); err != nil {
		return nil, err
	}
	if r.acknowledged, err = meter.Int64Counter(prefix+".messages.acknowledged",
		metric.WithDescription("Deliveries acknowledged"),
		metric.WithUnit("{message}")); err != nil {
		return nil, err
	}
	if r.rejected, err = meter.Int64Counter(prefix+".messages.rejected",
		metric.WithDescription("Deliveries rejected or nacked"),
		metric.WithUnit("{message}")); err != nil {
		return nil, err
	}
	if r.promises, err = meter.Int64Gauge(prefix+".promises.pending",
		metric.WithDescription("Live promises awaiting completion"),
		metric.WithUnit("{promise}")); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *OTELRecorder) ConnectionOpened() {
	r.connections.Add(context.Background(), 1)
}

func (r *OTELRecorder) ConnectionClosed() {
	r.connections.Add(context.Background(), -1)
}

func (r *OTELRecorder) ChannelOpened() {
	r.channels.Add(context.Background(), 1)
}

func (r *OTELRecorder) ChannelClosed() {
	r.channels.Add(context.Background(), -1)
}

func (r *OTELRecorder) FrameSent(frameType byte, size int) {
	ctx := context.Background()
	r.framesSent.Add(ctx, 1, frameTypeAttr(frameType))
	r.bytesSent.Add(ctx, int64(size))
}

func (r *OTELRecorder) FrameReceived(frameType byte, size int) {
	ctx := context.Background()
	r.framesReceived.Add(ctx, 1, frameTypeAttr(frameType))
	r.bytesReceived.Add(ctx, int64(size))
}

func (r *OTELRecorder) MessagePublished(size int) {
	r.published.Add(context.Background(), 1)
}

func (r *OTELRecorder) PublishSettled(outcome string) {
	r.settled.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (r *OTELRecorder) MessageDelivered(size int) {
	r.delivered.Add(context.Background(), 1)
}

func (r *OTELRecorder) MessageAcknowledged() {
	r.acknowledged.Add(context.Background(), 1)
}

func (r *OTELRecorder) MessageRejected() {
	r.rejected.Add(context.Background(), 1)
}

func (r *OTELRecorder) PromisesPending(n int) {
	r.promises.Record(context.Background(), int64(n))
}

func frameTypeAttr(frameType byte) metric.AddOption {
	return metric.WithAttributes(attribute.String("frame.type", protocol.FrameTypeName(frameType)))
}
