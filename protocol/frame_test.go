package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrameMarshalUnmarshal(t *testing.T) {
	originalFrame := &Frame{
		Type:    FrameMethod,
		Channel: 1,
		Size:    4,
		Payload: []byte{0x00, 0x0A, 0x00, 0x0A}, // connection.start
	}

	data, err := originalFrame.MarshalBinary()
	if err != nil {
		t.Fatalf("Failed to marshal frame: %v", err)
	}

	newFrame := &Frame{}
	if err := newFrame.UnmarshalBinary(data); err != nil {
		t.Fatalf("Failed to unmarshal frame: %v", err)
	}

	if newFrame.Type != originalFrame.Type {
		t.Errorf("Expected type %d, got %d", originalFrame.Type, newFrame.Type)
	}
	if newFrame.Channel != originalFrame.Channel {
		t.Errorf("Expected channel %d, got %d", originalFrame.Channel, newFrame.Channel)
	}
	if !bytes.Equal(newFrame.Payload, originalFrame.Payload) {
		t.Errorf("Expected payload %v, got %v", originalFrame.Payload, newFrame.Payload)
	}
}

func TestReadFrame(t *testing.T) {
	frame := &Frame{
		Type:    FrameMethod,
		Channel: 1,
		Payload: []byte{0x00, 0x0A, 0x00, 0x0A},
	}
	frameData, err := frame.MarshalBinary()
	if err != nil {
		t.Fatalf("Failed to marshal frame: %v", err)
	}

	readFrame, err := ReadFrame(bytes.NewReader(frameData))
	if err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	if readFrame.Type != frame.Type || readFrame.Channel != frame.Channel {
		t.Errorf("Frame header mismatch: got type=%d channel=%d", readFrame.Type, readFrame.Channel)
	}
	if !bytes.Equal(readFrame.Payload, frame.Payload) {
		t.Errorf("Expected payload %v, got %v", frame.Payload, readFrame.Payload)
	}
}

func TestWriteFrameLayout(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, &Frame{Type: FrameBody, Channel: 0x0102, Payload: []byte("hi")})
	if err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	want := []byte{FrameBody, 0x01, 0x02, 0x00, 0x00, 0x00, 0x02, 'h', 'i', FrameEnd}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("Expected %v, got %v", want, buf.Bytes())
	}
}

func TestParseFrameIncomplete(t *testing.T) {
	data, _ := (&Frame{Type: FrameMethod, Channel: 3, Payload: []byte{1, 2, 3, 4, 5}}).MarshalBinary()

	for i := 0; i < len(data); i++ {
		frame, n, err := ParseFrame(data[:i], 0)
		if err != nil {
			t.Fatalf("prefix %d: unexpected error %v", i, err)
		}
		if n != 0 || frame != nil {
			t.Fatalf("prefix %d: expected no frame, got n=%d", i, n)
		}
	}

	frame, n, err := ParseFrame(data, 0)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if n != len(data) {
		t.Errorf("Expected %d bytes consumed, got %d", len(data), n)
	}
	if frame.Channel != 3 || !bytes.Equal(frame.Payload, []byte{1, 2, 3, 4, 5}) {
		t.Errorf("Unexpected frame %+v", frame)
	}
}

func TestParseFrameSequence(t *testing.T) {
	var buf bytes.Buffer
	AppendFrame(&buf, &Frame{Type: FrameMethod, Channel: 1, Payload: []byte{9}})
	AppendFrame(&buf, HeartbeatFrame())
	AppendFrame(&buf, &Frame{Type: FrameBody, Channel: 2, Payload: []byte("ab")})

	data := buf.Bytes()
	var types []byte
	for len(data) > 0 {
		frame, n, err := ParseFrame(data, DefaultFrameMax)
		if err != nil {
			t.Fatalf("ParseFrame: %v", err)
		}
		if n == 0 {
			t.Fatalf("stalled with %d bytes left", len(data))
		}
		types = append(types, frame.Type)
		data = data[n:]
	}

	if !bytes.Equal(types, []byte{FrameMethod, FrameHeartbeat, FrameBody}) {
		t.Errorf("Unexpected frame order %v", types)
	}
}

func TestParseFrameBadEndByte(t *testing.T) {
	data, _ := (&Frame{Type: FrameMethod, Channel: 1, Payload: []byte{1}}).MarshalBinary()
	data[len(data)-1] = 0x00

	_, _, err := ParseFrame(data, 0)
	if !errors.Is(err, ErrFrameEnd) {
		t.Fatalf("Expected ErrFrameEnd, got %v", err)
	}

	if _, err := ReadFrame(bytes.NewReader(data)); !errors.Is(err, ErrFrameEnd) {
		t.Fatalf("ReadFrame: expected ErrFrameEnd, got %v", err)
	}
}

func TestParseFrameTooLarge(t *testing.T) {
	// Only the 7-byte header is needed to reject an oversized frame.
	header := []byte{FrameBody, 0, 1, 0x00, 0x01, 0x00, 0x00}

	_, _, err := ParseFrame(header, FrameMinSize)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("Expected ErrFrameTooLarge, got %v", err)
	}

	huge := []byte{FrameBody, 0, 1, 0xFF, 0xFF, 0xFF, 0xFF}
	if _, _, err := ParseFrame(huge, DefaultFrameMax); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("Expected ErrFrameTooLarge for max size, got %v", err)
	}
}

func TestHeartbeatFrame(t *testing.T) {
	data, _ := HeartbeatFrame().MarshalBinary()
	want := []byte{FrameHeartbeat, 0, 0, 0, 0, 0, 0, FrameEnd}
	if !bytes.Equal(data, want) {
		t.Errorf("Expected %v, got %v", want, data)
	}
}

func TestSplitBody(t *testing.T) {
	body := bytes.Repeat([]byte{'x'}, 10000)

	chunks := SplitBody(body, FrameMinSize)
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}
	total := 0
	for _, c := range chunks {
		if len(c)+frameOverhead > FrameMinSize {
			t.Errorf("chunk of %d bytes exceeds frame max", len(c))
		}
		total += len(c)
	}
	if total != len(body) {
		t.Errorf("Expected %d body bytes, got %d", len(body), total)
	}

	if got := SplitBody(nil, FrameMinSize); len(got) != 0 {
		t.Errorf("Expected no chunks for an empty body, got %d", len(got))
	}
}
