package metrics

// Publish outcomes reported to PublishSettled.
const (
	OutcomeConfirmed = "confirmed"
	OutcomeNacked    = "nacked"
	OutcomeReturned  = "returned"
	OutcomeFailed    = "failed"
)

// Recorder receives client engine events. Calls happen on the goroutine
// driving the connection and must not block.
type Recorder interface {
	ConnectionOpened()
	ConnectionClosed()

	ChannelOpened()
	ChannelClosed()

	// FrameSent and FrameReceived are called once per frame; frameType is one
	// of the protocol.Frame* constants.
	FrameSent(frameType byte, size int)
	FrameReceived(frameType byte, size int)

	MessagePublished(size int)
	PublishSettled(outcome string)

	MessageDelivered(size int)
	MessageAcknowledged()
	MessageRejected()

	// PromisesPending reports the number of live promises after a change.
	PromisesPending(n int)
}

// NopRecorder discards every event.
type NopRecorder struct{}

var _ Recorder = NopRecorder{}

func (NopRecorder) ConnectionOpened()       {}
func (NopRecorder) ConnectionClosed()       {}
func (NopRecorder) ChannelOpened()          {}
func (NopRecorder) ChannelClosed()          {}
func (NopRecorder) FrameSent(byte, int)     {}
func (NopRecorder) FrameReceived(byte, int) {}
func (NopRecorder) MessagePublished(int)    {}
func (NopRecorder) PublishSettled(string)   {}
func (NopRecorder) MessageDelivered(int)    {}
func (NopRecorder) MessageAcknowledged()    {}
func (NopRecorder) MessageRejected()        {}
func (NopRecorder) PromisesPending(int)     {}

// Multi fans events out to several recorders.
type Multi []Recorder

var _ Recorder = Multi{}

func (m Multi) ConnectionOpened() {
	for _, r := range m {
		r.ConnectionOpened()
	}
}

func (m Multi) ConnectionClosed() {
	for _, r := range m {
		r.ConnectionClosed()
	}
}

func (m Multi) ChannelOpened() {
	for _, r := range m {
		r.ChannelOpened()
	}
}

func (m Multi) ChannelClosed() {
	for _, r := range m {
		r.ChannelClosed()
	}
}

func (m Multi) FrameSent(frameType byte, size int) {
	for _, r := range m {
		r.FrameSent(frameType, size)
	}
}

func (m Multi) FrameReceived(frameType byte, size int) {
	for _, r := range m {
		r.FrameReceived(frameType, size)
	}
}

func (m Multi) MessagePublished(size int) {
	for _, r := range m {
		r.MessagePublished(size)
	}
}

func (m Multi) PublishSettled(outcome string) {
	for _, r := range m {
		r.PublishSettled(outcome)
	}
}

func (m Multi) MessageDelivered(size int) {
	for _, r := range m {
		r.MessageDelivered(size)
	}
}

func (m Multi) MessageAcknowledged() {
	for _, r := range m {
		r.MessageAcknowledged()
	}
}

func (m Multi) MessageRejected() {
	for _, r := range m {
		r.MessageRejected()
	}
}

func (m Multi) PromisesPending(n int) {
	for _, r := range m {
		r.PromisesPending(n)
	}
}
