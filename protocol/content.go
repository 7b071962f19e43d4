package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Property flags for AMQP content header
const (
	FlagContentType     = 0x8000
	FlagContentEncoding = 0x4000
	FlagHeaders         = 0x2000
	FlagDeliveryMode    = 0x1000
	FlagPriority        = 0x0800
	FlagCorrelationID   = 0x0400
	FlagReplyTo         = 0x0200
	FlagExpiration      = 0x0100
	FlagMessageID       = 0x0080
	FlagTimestamp       = 0x0040
	FlagType            = 0x0020
	FlagUserID          = 0x0010
	FlagAppID           = 0x0008
	FlagClusterID       = 0x0004

	// flagContinuation would announce a second flags word. No basic
	// property needs one.
	flagContinuation = 0x0001
)

// Delivery modes
const (
	Transient  uint8 = 1
	Persistent uint8 = 2
)

var ErrPropertyContinuation = errors.New("content header property continuation is not supported")

// Properties are the basic-class message properties. A zero value means
// "absent"; only present properties are written and their flag bits set.
// Priority 0 is therefore never sent, and brokers read a missing priority as
// 0. DeliveryMode 0 is not a valid mode. Only the zero time.Time is an absent
// Timestamp; time.Unix(0, 0) is sent.
type Properties struct {
	ContentType     string
	ContentEncoding string
	Headers         Table
	DeliveryMode    uint8
	Priority        uint8
	CorrelationID   string
	ReplyTo         string
	Expiration      string
	MessageID       string
	Timestamp       time.Time
	Type            string
	UserID          string
	AppID           string
	ClusterID       string
}

func (p *Properties) flags() uint16 {
	var flags uint16
	if p.ContentType != "" {
		flags |= FlagContentType
	}
	if p.ContentEncoding != "" {
		flags |= FlagContentEncoding
	}
	if len(p.Headers) > 0 {
		flags |= FlagHeaders
	}
	if p.DeliveryMode != 0 {
		flags |= FlagDeliveryMode
	}
	if p.Priority != 0 {
		flags |= FlagPriority
	}
	if p.CorrelationID != "" {
		flags |= FlagCorrelationID
	}
	if p.ReplyTo != "" {
		flags |= FlagReplyTo
	}
	if p.Expiration != "" {
		flags |= FlagExpiration
	}
	if p.MessageID != "" {
		flags |= FlagMessageID
	}
	if !p.Timestamp.IsZero() {
		flags |= FlagTimestamp
	}
	if p.Type != "" {
		flags |= FlagType
	}
	if p.UserID != "" {
		flags |= FlagUserID
	}
	if p.AppID != "" {
		flags |= FlagAppID
	}
	if p.ClusterID != "" {
		flags |= FlagClusterID
	}
	return flags
}

// ContentHeader represents the content header frame
type ContentHeader struct {
	ClassID    uint16
	Weight     uint16
	BodySize   uint64
	Properties Properties
}

// PropertyFlags returns the flags word that Serialize would write.
func (h *ContentHeader) PropertyFlags() uint16 {
	return h.Properties.flags()
}

// ReadContentHeader reads a content header frame
func ReadContentHeader(frame *Frame) (*ContentHeader, error) {
	if frame.Type != FrameHeader {
		return nil, fmt.Errorf("expected header frame, got type %d", frame.Type)
	}
	header := &ContentHeader{}
	if err := header.Deserialize(frame.Payload); err != nil {
		return nil, err
	}
	return header, nil
}

// Deserialize decodes a content header payload.
func (h *ContentHeader) Deserialize(data []byte) error {
	// class(2) + weight(2) + body-size(8) + flags(2)
	if len(data) < 14 {
		return fmt.Errorf("content header frame too short")
	}

	h.ClassID = binary.BigEndian.Uint16(data[0:2])
	h.Weight = binary.BigEndian.Uint16(data[2:4])
	h.BodySize = binary.BigEndian.Uint64(data[4:12])
	flags := binary.BigEndian.Uint16(data[12:14])
	if flags&flagContinuation != 0 {
		return ErrPropertyContinuation
	}

	r := newMethodReader("content-header", data)
	r.off = 14
	p := &h.Properties

	if flags&FlagContentType != 0 {
		p.ContentType = r.shortstr("content-type")
	}
	if flags&FlagContentEncoding != 0 {
		p.ContentEncoding = r.shortstr("content-encoding")
	}
	if flags&FlagHeaders != 0 {
		p.Headers = r.table("headers")
	}
	if flags&FlagDeliveryMode != 0 {
		p.DeliveryMode = r.octet("delivery-mode")
	}
	if flags&FlagPriority != 0 {
		p.Priority = r.octet("priority")
	}
	if flags&FlagCorrelationID != 0 {
		p.CorrelationID = r.shortstr("correlation-id")
	}
	if flags&FlagReplyTo != 0 {
		p.ReplyTo = r.shortstr("reply-to")
	}
	if flags&FlagExpiration != 0 {
		p.Expiration = r.shortstr("expiration")
	}
	if flags&FlagMessageID != 0 {
		p.MessageID = r.shortstr("message-id")
	}
	if flags&FlagTimestamp != 0 {
		p.Timestamp = time.Unix(int64(r.longlong("timestamp")), 0)
	}
	if flags&FlagType != 0 {
		p.Type = r.shortstr("type")
	}
	if flags&FlagUserID != 0 {
		p.UserID = r.shortstr("user-id")
	}
	if flags&FlagAppID != 0 {
		p.AppID = r.shortstr("app-id")
	}
	if flags&FlagClusterID != 0 {
		p.ClusterID = r.shortstr("cluster-id")
	}
	return r.err
}

// Serialize encodes the content header payload. Flags are derived from the
// properties that are present.
func (h *ContentHeader) Serialize() ([]byte, error) {
	p := &h.Properties
	flags := p.flags()

	w := &methodWriter{}
	w.short(h.ClassID)
	w.short(h.Weight)
	w.longlong(h.BodySize)
	w.short(flags)

	if flags&FlagContentType != 0 {
		w.shortstr(p.ContentType)
	}
	if flags&FlagContentEncoding != 0 {
		w.shortstr(p.ContentEncoding)
	}
	if flags&FlagHeaders != 0 {
		w.table(p.Headers)
	}
	if flags&FlagDeliveryMode != 0 {
		w.octet(p.DeliveryMode)
	}
	if flags&FlagPriority != 0 {
		w.octet(p.Priority)
	}
	if flags&FlagCorrelationID != 0 {
		w.shortstr(p.CorrelationID)
	}
	if flags&FlagReplyTo != 0 {
		w.shortstr(p.ReplyTo)
	}
	if flags&FlagExpiration != 0 {
		w.shortstr(p.Expiration)
	}
	if flags&FlagMessageID != 0 {
		w.shortstr(p.MessageID)
	}
	if flags&FlagTimestamp != 0 {
		w.longlong(uint64(p.Timestamp.Unix()))
	}
	if flags&FlagType != 0 {
		w.shortstr(p.Type)
	}
	if flags&FlagUserID != 0 {
		w.shortstr(p.UserID)
	}
	if flags&FlagAppID != 0 {
		w.shortstr(p.AppID)
	}
	if flags&FlagClusterID != 0 {
		w.shortstr(p.ClusterID)
	}

	data, err := w.bytes()
	if err != nil {
		return nil, fmt.Errorf("content header: %w", err)
	}
	return data, nil
}

// EncodeContentHeaderFrameForChannel encodes a content header into a header frame for a specific channel
func EncodeContentHeaderFrameForChannel(channelID uint16, header *ContentHeader) (*Frame, error) {
	payload, err := header.Serialize()
	if err != nil {
		return nil, err
	}
	return &Frame{
		Type:    FrameHeader,
		Channel: channelID,
		Size:    uint32(len(payload)),
		Payload: payload,
	}, nil
}

// AppendContent appends the method, header and body frames of one message
// to buf. The body is split to respect frameMax.
func AppendContent(buf *bytes.Buffer, channelID uint16, m Method, props Properties, body []byte, frameMax uint32) error {
	methodFrame, err := EncodeMethodFrameForChannel(channelID, m)
	if err != nil {
		return err
	}
	classID, _ := m.ID()
	headerFrame, err := EncodeContentHeaderFrameForChannel(channelID, &ContentHeader{
		ClassID:    classID,
		BodySize:   uint64(len(body)),
		Properties: props,
	})
	if err != nil {
		return err
	}

	AppendFrame(buf, methodFrame)
	AppendFrame(buf, headerFrame)
	for _, chunk := range SplitBody(body, frameMax) {
		AppendFrame(buf, EncodeBodyFrameForChannel(channelID, chunk))
	}
	return nil
}
