package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame types as defined in the AMQP specification
const (
	FrameMethod    = 1
	FrameHeader    = 2
	FrameBody      = 3
	FrameHeartbeat = 8
	FrameEnd       = 0xCE // Frame end marker byte
)

// ProtocolHeader is the preamble a client sends before the first frame.
const ProtocolHeader = "AMQP\x00\x00\x09\x01"

// Negotiation ceilings used when a peer proposes 0 ("no limit").
const (
	DefaultFrameMax   = 131072
	DefaultChannelMax = 65535

	// FrameMinSize is the smallest frame_max a peer may propose.
	FrameMinSize = 4096

	// frameOverhead is type + channel + size + end-byte.
	frameOverhead = 8
)

var (
	ErrFrameEnd      = errors.New("invalid frame end-byte")
	ErrFrameTooLarge = errors.New("frame exceeds negotiated frame_max")
)

// Frame represents an AMQP frame
type Frame struct {
	Type    byte
	Channel uint16
	Size    uint32
	Payload []byte
}

// MarshalBinary encodes a frame into binary format following AMQP 0.9.1 spec
// Format: (1-byte type) + (2-byte channel) + (4-byte size) + (size-byte payload) + (1-byte end: 0xCE)
func (f *Frame) MarshalBinary() ([]byte, error) {
	data := make([]byte, frameOverhead+len(f.Payload))

	data[0] = f.Type
	binary.BigEndian.PutUint16(data[1:3], f.Channel)
	binary.BigEndian.PutUint32(data[3:7], uint32(len(f.Payload)))
	copy(data[7:], f.Payload)
	data[7+len(f.Payload)] = FrameEnd

	return data, nil
}

// UnmarshalBinary decodes a frame from binary format
func (f *Frame) UnmarshalBinary(data []byte) error {
	if len(data) < frameOverhead {
		return fmt.Errorf("frame too short")
	}

	payloadSize := binary.BigEndian.Uint32(data[3:7])
	if len(data) != int(7+payloadSize+1) {
		return fmt.Errorf("frame size mismatch: expected %d bytes but got %d", 7+payloadSize+1, len(data))
	}

	f.Type = data[0]
	f.Channel = binary.BigEndian.Uint16(data[1:3])
	f.Size = payloadSize
	f.Payload = make([]byte, f.Size)
	copy(f.Payload, data[7:7+f.Size])

	if data[7+f.Size] != FrameEnd {
		return ErrFrameEnd
	}

	return nil
}

// ParseFrame decodes the first complete frame held in buf without blocking.
// It returns the number of bytes consumed; n == 0 with a nil error means buf
// does not yet hold a whole frame. A frameMax of 0 disables the size check.
func ParseFrame(buf []byte, frameMax uint32) (*Frame, int, error) {
	if len(buf) < 7 {
		return nil, 0, nil
	}

	size := binary.BigEndian.Uint32(buf[3:7])
	if frameMax > 0 && uint64(size)+frameOverhead > uint64(frameMax) {
		return nil, 0, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, uint64(size)+frameOverhead, frameMax)
	}

	total := int(size) + frameOverhead
	if len(buf) < total {
		return nil, 0, nil
	}
	if buf[total-1] != FrameEnd {
		return nil, 0, fmt.Errorf("%w: 0x%02X", ErrFrameEnd, buf[total-1])
	}

	payload := make([]byte, size)
	copy(payload, buf[7:7+size])

	return &Frame{
		Type:    buf[0],
		Channel: binary.BigEndian.Uint16(buf[1:3]),
		Size:    size,
		Payload: payload,
	}, total, nil
}

// ReadFrame reads a frame from an io.Reader
func ReadFrame(reader io.Reader) (*Frame, error) {
	header := make([]byte, 7)
	if _, err := io.ReadFull(reader, header); err != nil {
		return nil, err
	}

	frameType := header[0]
	channel := binary.BigEndian.Uint16(header[1:3])
	size := binary.BigEndian.Uint32(header[3:7])

	// payload + end-byte
	payload := make([]byte, size+1)
	if _, err := io.ReadFull(reader, payload); err != nil {
		return nil, err
	}

	if payload[size] != FrameEnd {
		return nil, ErrFrameEnd
	}

	return &Frame{
		Type:    frameType,
		Channel: channel,
		Size:    size,
		Payload: payload[:size],
	}, nil
}

// WriteFrame writes a frame to an io.Writer through a pooled buffer.
func WriteFrame(writer io.Writer, frame *Frame) error {
	buf := getBuffer()
	defer putBuffer(buf)

	AppendFrame(buf, frame)

	_, err := buf.WriteTo(writer)
	return err
}

// AppendFrame appends the wire form of frame to buf.
func AppendFrame(buf *bytes.Buffer, frame *Frame) {
	payloadLen := len(frame.Payload)
	buf.Grow(frameOverhead + payloadLen)

	buf.WriteByte(frame.Type)

	var header [6]byte
	binary.BigEndian.PutUint16(header[0:2], frame.Channel)
	binary.BigEndian.PutUint32(header[2:6], uint32(payloadLen))
	buf.Write(header[:])

	buf.Write(frame.Payload)
	buf.WriteByte(FrameEnd)
}

// HeartbeatFrame returns the heartbeat frame, always carried on channel 0.
func HeartbeatFrame() *Frame {
	return &Frame{Type: FrameHeartbeat, Channel: 0}
}

// FrameTypeName returns a readable label for a frame type, used in logs and metrics.
func FrameTypeName(t byte) string {
	switch t {
	case FrameMethod:
		return "method"
	case FrameHeader:
		return "header"
	case FrameBody:
		return "body"
	case FrameHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}
