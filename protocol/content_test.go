package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test ContentHeader with all 14 properties set
func TestContentHeader_AllProperties(t *testing.T) {
	header := &ContentHeader{
		ClassID:  ClassBasic,
		BodySize: 1024,
		Properties: Properties{
			ContentType:     "application/json",
			ContentEncoding: "utf-8",
			Headers:         Table{{Key: "x-custom", Value: String("value")}},
			DeliveryMode:    Persistent,
			Priority:        5,
			CorrelationID:   "correlation-123",
			ReplyTo:         "reply-queue",
			Expiration:      "60000",
			MessageID:       "msg-456",
			Timestamp:       time.Unix(1700000000, 0),
			Type:            "order",
			UserID:          "user-789",
			AppID:           "app-001",
			ClusterID:       "cluster-01",
		},
	}

	assert.Equal(t, uint16(0xFFFC), header.PropertyFlags())

	data, err := header.Serialize()
	require.NoError(t, err)

	decoded, err := ReadContentHeader(&Frame{Type: FrameHeader, Payload: data})
	require.NoError(t, err)
	assert.Equal(t, header.ClassID, decoded.ClassID)
	assert.Equal(t, header.BodySize, decoded.BodySize)
	assert.True(t, header.Properties.Timestamp.Equal(decoded.Properties.Timestamp))

	decoded.Properties.Timestamp = header.Properties.Timestamp
	assert.Equal(t, header.Properties, decoded.Properties)
}

func TestContentHeader_NoProperties(t *testing.T) {
	header := &ContentHeader{ClassID: ClassBasic, BodySize: 0}
	data, err := header.Serialize()
	require.NoError(t, err)
	require.Len(t, data, 14)
	assert.Equal(t, uint16(0), binary.BigEndian.Uint16(data[12:14]))

	var decoded ContentHeader
	require.NoError(t, decoded.Deserialize(data))
	assert.Equal(t, Properties{}, decoded.Properties)
}

func TestContentHeader_FlagsFollowPresence(t *testing.T) {
	header := &ContentHeader{
		ClassID: ClassBasic,
		Properties: Properties{
			ContentType:  "text/plain",
			DeliveryMode: Transient,
			AppID:        "app",
		},
	}
	assert.Equal(t, uint16(FlagContentType|FlagDeliveryMode|FlagAppID), header.PropertyFlags())

	data, err := header.Serialize()
	require.NoError(t, err)
	assert.Equal(t, header.PropertyFlags(), binary.BigEndian.Uint16(data[12:14]))
}

func TestContentHeader_ZeroValues(t *testing.T) {
	header := &ContentHeader{
		ClassID:    ClassBasic,
		Properties: Properties{Priority: 0, Timestamp: time.Unix(0, 0)},
	}
	assert.Equal(t, uint16(FlagTimestamp), header.PropertyFlags())

	data, err := header.Serialize()
	require.NoError(t, err)
	var decoded ContentHeader
	require.NoError(t, decoded.Deserialize(data))
	assert.False(t, decoded.Properties.Timestamp.IsZero())
	assert.Equal(t, int64(0), decoded.Properties.Timestamp.Unix())
	assert.Equal(t, uint8(0), decoded.Properties.Priority)
}

func TestContentHeader_RejectsContinuation(t *testing.T) {
	data := make([]byte, 14)
	binary.BigEndian.PutUint16(data[0:2], ClassBasic)
	binary.BigEndian.PutUint16(data[12:14], FlagContentType|flagContinuation)

	var h ContentHeader
	assert.ErrorIs(t, h.Deserialize(data), ErrPropertyContinuation)
}

func TestContentHeader_Truncated(t *testing.T) {
	header := &ContentHeader{ClassID: ClassBasic, Properties: Properties{MessageID: "abc"}}
	data, err := header.Serialize()
	require.NoError(t, err)

	var h ContentHeader
	assert.Error(t, h.Deserialize(data[:len(data)-1]))
	assert.Error(t, h.Deserialize(data[:10]))

	_, err = ReadContentHeader(&Frame{Type: FrameBody, Payload: data})
	assert.Error(t, err)
}

func TestAppendContent(t *testing.T) {
	body := bytes.Repeat([]byte("z"), 5000)
	var buf bytes.Buffer
	err := AppendContent(&buf, 7, &BasicPublishMethod{Exchange: "x", RoutingKey: "rk"},
		Properties{ContentType: "text/plain"}, body, FrameMinSize)
	require.NoError(t, err)

	data := buf.Bytes()
	var frames []*Frame
	for len(data) > 0 {
		frame, n, err := ParseFrame(data, FrameMinSize)
		require.NoError(t, err)
		require.NotZero(t, n)
		frames = append(frames, frame)
		data = data[n:]
	}

	require.Len(t, frames, 4)
	assert.Equal(t, byte(FrameMethod), frames[0].Type)
	assert.Equal(t, byte(FrameHeader), frames[1].Type)
	assert.Equal(t, byte(FrameBody), frames[2].Type)
	for _, f := range frames {
		assert.Equal(t, uint16(7), f.Channel)
	}

	header, err := ReadContentHeader(frames[1])
	require.NoError(t, err)
	assert.Equal(t, uint64(len(body)), header.BodySize)
	assert.Equal(t, "text/plain", header.Properties.ContentType)

	got := append(append([]byte{}, frames[2].Payload...), frames[3].Payload...)
	assert.Equal(t, body, got)
}

func TestAppendContent_EmptyBody(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, AppendContent(&buf, 1, &BasicPublishMethod{}, Properties{}, nil, DefaultFrameMax))

	n := 0
	data := buf.Bytes()
	for len(data) > 0 {
		_, used, err := ParseFrame(data, 0)
		require.NoError(t, err)
		data = data[used:]
		n++
	}
	assert.Equal(t, 2, n, "an empty body produces no body frames")
}
