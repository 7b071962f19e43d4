package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/maxpert/amqp-client-go/protocol"
)

// Collector holds all Prometheus metrics for the AMQP client
type Collector struct {
	// Connection metrics
	ConnectionsTotal   prometheus.Gauge
	ConnectionsCreated prometheus.Counter
	ConnectionsClosed  prometheus.Counter

	// Channel metrics
	ChannelsTotal   prometheus.Gauge
	ChannelsCreated prometheus.Counter
	ChannelsClosed  prometheus.Counter

	// Frame metrics
	FramesSent     *prometheus.CounterVec
	FramesReceived *prometheus.CounterVec
	BytesSent      prometheus.Counter
	BytesReceived  prometheus.Counter

	// Message metrics
	MessagesPublished      prometheus.Counter
	MessagesPublishedBytes prometheus.Counter
	PublishOutcomes        *prometheus.CounterVec
	MessagesDelivered      prometheus.Counter
	MessagesDeliveredBytes prometheus.Counter
	MessagesAcknowledged   prometheus.Counter
	MessagesRejected       prometheus.Counter

	// Engine metrics
	PendingPromises prometheus.Gauge
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a new metrics collector registered with reg. A nil
// reg means the default Prometheus registry.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if namespace == "" {
		namespace = "amqp_client"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		// Connection metrics
		ConnectionsTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Current number of open connections",
		}),
		ConnectionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_created_total",
			Help:      "Total number of connections opened",
		}),
		ConnectionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_closed_total",
			Help:      "Total number of connections closed",
		}),

		// Channel metrics
		ChannelsTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channels_total",
			Help:      "Current number of open channels",
		}),
		ChannelsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channels_created_total",
			Help:      "Total number of channels opened",
		}),
		ChannelsClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channels_closed_total",
			Help:      "Total number of channels closed",
		}),

		// Frame metrics
		FramesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Total number of frames written, by frame type",
		}, []string{"type"}),
		FramesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total number of frames read, by frame type",
		}, []string{"type"}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Total bytes written to the broker",
		}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Total bytes read from the broker",
		}),

		// Message metrics
		MessagesPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Total number of messages published",
		}),
		MessagesPublishedBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_bytes_total",
			Help:      "Total bytes of message bodies published",
		}),
		PublishOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_outcomes_total",
			Help:      "Settled publishes, by outcome",
		}, []string{"outcome"}),
		MessagesDelivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_delivered_total",
			Help:      "Total number of messages delivered to consumers or fetched with basic.get",
		}),
		MessagesDeliveredBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_delivered_bytes_total",
			Help:      "Total bytes of message bodies delivered",
		}),
		MessagesAcknowledged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_acknowledged_total",
			Help:      "Total number of deliveries acknowledged",
		}),
		MessagesRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_rejected_total",
			Help:      "Total number of deliveries rejected or nacked",
		}),

		// Engine metrics
		PendingPromises: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "promises_pending",
			Help:      "Number of live promises awaiting completion",
		}),
	}
}

// ConnectionOpened increments connection creation counter and total
func (c *Collector) ConnectionOpened() {
	c.ConnectionsCreated.Inc()
	c.ConnectionsTotal.Inc()
}

// ConnectionClosed increments connection close counter and decrements total
func (c *Collector) ConnectionClosed() {
	c.ConnectionsClosed.Inc()
	c.ConnectionsTotal.Dec()
}

// ChannelOpened increments channel creation counter and total
func (c *Collector) ChannelOpened() {
	c.ChannelsCreated.Inc()
	c.ChannelsTotal.Inc()
}

// ChannelClosed increments channel close counter and decrements total
func (c *Collector) ChannelClosed() {
	c.ChannelsClosed.Inc()
	c.ChannelsTotal.Dec()
}

func (c *Collector) FrameSent(frameType byte, size int) {
	c.FramesSent.WithLabelValues(protocol.FrameTypeName(frameType)).Inc()
	c.BytesSent.Add(float64(size))
}

func (c *Collector) FrameReceived(frameType byte, size int) {
	c.FramesReceived.WithLabelValues(protocol.FrameTypeName(frameType)).Inc()
	c.BytesReceived.Add(float64(size))
}

// MessagePublished records a published message
func (c *Collector) MessagePublished(size int) {
	c.MessagesPublished.Inc()
	c.MessagesPublishedBytes.Add(float64(size))
}

// PublishSettled records how a published message was settled
func (c *Collector) PublishSettled(outcome string) {
	c.PublishOutcomes.WithLabelValues(outcome).Inc()
}

// MessageDelivered records a delivered message
func (c *Collector) MessageDelivered(size int) {
	c.MessagesDelivered.Inc()
	c.MessagesDeliveredBytes.Add(float64(size))
}

// MessageAcknowledged records an acknowledged message
func (c *Collector) MessageAcknowledged() {
	c.MessagesAcknowledged.Inc()
}

// MessageRejected records a rejected message
func (c *Collector) MessageRejected() {
	c.MessagesRejected.Inc()
}

func (c *Collector) PromisesPending(n int) {
	c.PendingPromises.Set(float64(n))
}
