package errors

import (
	"errors"
	"fmt"
)

// AMQPError represents a general AMQP error
type AMQPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Method  string `json:"method,omitempty"`
	Cause   error  `json:"cause,omitempty"`
}

func (e *AMQPError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("AMQP Error %d in %s: %s", e.Code, e.Method, e.Message)
	}
	return fmt.Sprintf("AMQP Error %d: %s", e.Code, e.Message)
}

func (e *AMQPError) Unwrap() error {
	return e.Cause
}

func (e *AMQPError) As(target interface{}) bool {
	if amqpErr, ok := target.(**AMQPError); ok {
		*amqpErr = e
		return true
	}
	return false
}

// AMQP reply codes (from AMQP 0.9.1 specification)
const (
	ReplySuccess = 200

	// Channel (soft) errors
	ContentTooLarge    = 311
	NoRoute            = 312
	NoConsumers        = 313
	AccessRefused      = 403
	NotFound           = 404
	ResourceLocked     = 405
	PreconditionFailed = 406

	// Connection (hard) errors
	ConnectionForced = 320
	InvalidPath      = 402
	FrameError       = 501
	SyntaxError      = 502
	CommandInvalid   = 503
	ChannelErrorCode = 504
	UnexpectedFrame  = 505
	ResourceError    = 506
	NotAllowed       = 530
	NotImplemented   = 540
	InternalError    = 541
)

// Conditions the client reports without a broker reply code.
var (
	ErrConnectionClosed  = errors.New("connection closed")
	ErrConsumerCancelled = errors.New("consumer cancelled by broker")
	ErrChannelsExhausted = errors.New("no free channel numbers")
	ErrUnknownPromise    = errors.New("unknown promise")
)

// IsSoftCode reports whether code is a channel-level reply code, after which
// the connection stays usable.
func IsSoftCode(code int) bool {
	switch code {
	case ContentTooLarge, NoRoute, NoConsumers, AccessRefused, NotFound, ResourceLocked, PreconditionFailed:
		return true
	}
	return false
}

// IsHardCode reports whether code closes the whole connection.
func IsHardCode(code int) bool {
	return code >= 300 && !IsSoftCode(code)
}

// Connection Errors

// ConnectionError represents connection-specific errors
type ConnectionError struct {
	AMQPError
	ClassID  uint16 `json:"class_id,omitempty"`
	MethodID uint16 `json:"method_id,omitempty"`
}

func NewConnectionError(code int, message string) *ConnectionError {
	return &ConnectionError{
		AMQPError: AMQPError{
			Code:    code,
			Message: message,
		},
	}
}

func NewConnectionForced(reason string) *ConnectionError {
	return NewConnectionError(ConnectionForced, fmt.Sprintf("Connection forced closed: %s", reason))
}

func NewAccessRefused(reason string) *ConnectionError {
	return NewConnectionError(AccessRefused, fmt.Sprintf("Access refused: %s", reason))
}

// NewConnectionLost wraps a transport failure.
func NewConnectionLost(cause error) *ConnectionError {
	err := NewConnectionError(ConnectionForced, "connection lost")
	err.Cause = cause
	return err
}

func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnectionClosed
}

// Channel Errors

// ChannelError represents channel-specific errors
type ChannelError struct {
	AMQPError
	ChannelID uint16 `json:"channel_id"`
	ClassID   uint16 `json:"class_id,omitempty"`
	MethodID  uint16 `json:"method_id,omitempty"`
}

func NewChannelError(code int, message string, channelID uint16) *ChannelError {
	return &ChannelError{
		AMQPError: AMQPError{
			Code:    code,
			Message: message,
		},
		ChannelID: channelID,
	}
}

func NewChannelNotFound(channelID uint16) *ChannelError {
	return NewChannelError(NotFound, fmt.Sprintf("Channel %d not found", channelID), channelID)
}

func NewChannelPreconditionFailed(channelID uint16, reason string) *ChannelError {
	return NewChannelError(PreconditionFailed, fmt.Sprintf("Precondition failed: %s", reason), channelID)
}

// NewCloseError turns the arguments of a channel.close or connection.close
// into an error. Channel 0 always yields a ConnectionError.
func NewCloseError(channelID uint16, code int, text string, classID, methodID uint16, method string) error {
	if channelID == 0 {
		err := NewConnectionError(code, text)
		err.ClassID, err.MethodID, err.Method = classID, methodID, method
		return err
	}
	err := NewChannelError(code, text, channelID)
	err.ClassID, err.MethodID, err.Method = classID, methodID, method
	return err
}

// Consumer Errors

// ConsumerError represents consumer-specific errors
type ConsumerError struct {
	AMQPError
	ConsumerTag string `json:"consumer_tag"`
	QueueName   string `json:"queue_name,omitempty"`
}

func NewConsumerError(code int, message, consumerTag, queueName string) *ConsumerError {
	return &ConsumerError{
		AMQPError: AMQPError{
			Code:    code,
			Message: message,
		},
		ConsumerTag: consumerTag,
		QueueName:   queueName,
	}
}

// NewConsumerCancelled reports a basic.cancel sent by the broker.
func NewConsumerCancelled(consumerTag string) *ConsumerError {
	err := NewConsumerError(NotFound, fmt.Sprintf("Consumer '%s' cancelled by broker", consumerTag), consumerTag, "")
	err.Cause = ErrConsumerCancelled
	return err
}

// Message Errors

// MessageError represents message-specific errors
type MessageError struct {
	AMQPError
	DeliveryTag uint64 `json:"delivery_tag,omitempty"`
	Exchange    string `json:"exchange,omitempty"`
	RoutingKey  string `json:"routing_key,omitempty"`
}

func NewMessageError(code int, message string, deliveryTag uint64) *MessageError {
	return &MessageError{
		AMQPError: AMQPError{
			Code:    code,
			Message: message,
		},
		DeliveryTag: deliveryTag,
	}
}

func NewMessageTooLarge(size, maxSize int) *MessageError {
	message := fmt.Sprintf("Message too large: %d bytes (max: %d)", size, maxSize)
	return NewMessageError(ContentTooLarge, message, 0)
}

// NewMessageReturned reports a basic.return for a published message.
func NewMessageReturned(code int, text, exchange, routingKey string, deliveryTag uint64) *MessageError {
	err := NewMessageError(code, text, deliveryTag)
	err.Method = "basic.return"
	err.Exchange = exchange
	err.RoutingKey = routingKey
	return err
}

// NewMessageNacked reports a basic.nack from a confirm-mode channel.
func NewMessageNacked(deliveryTag uint64) *MessageError {
	err := NewMessageError(InternalError, "Message nacked by broker", deliveryTag)
	err.Method = "basic.nack"
	return err
}

// Protocol Errors

// ProtocolError represents protocol-specific errors
type ProtocolError struct {
	AMQPError
	FrameType byte   `json:"frame_type,omitempty"`
	ClassID   uint16 `json:"class_id,omitempty"`
	MethodID  uint16 `json:"method_id,omitempty"`
}

func NewProtocolError(code int, message string, frameType byte, classID, methodID uint16) *ProtocolError {
	return &ProtocolError{
		AMQPError: AMQPError{
			Code:    code,
			Message: message,
		},
		FrameType: frameType,
		ClassID:   classID,
		MethodID:  methodID,
	}
}

func NewFrameError(message string, frameType byte) *ProtocolError {
	return NewProtocolError(FrameError, fmt.Sprintf("Frame error: %s", message), frameType, 0, 0)
}

func NewSyntaxError(message string) *ProtocolError {
	return NewProtocolError(SyntaxError, fmt.Sprintf("Syntax error: %s", message), 0, 0, 0)
}

func NewUnexpectedFrame(expected, actual byte) *ProtocolError {
	message := fmt.Sprintf("Unexpected frame: expected %d, got %d", expected, actual)
	return NewProtocolError(UnexpectedFrame, message, actual, 0, 0)
}

// NewUnexpectedMethod reports a method nobody was waiting for.
func NewUnexpectedMethod(channelID uint16, classID, methodID uint16, name string) *ProtocolError {
	message := fmt.Sprintf("Unexpected method %s on channel %d", name, channelID)
	return NewProtocolError(CommandInvalid, message, 1, classID, methodID)
}

// Configuration Errors

// ConfigError represents configuration-specific errors
type ConfigError struct {
	AMQPError
	Section string `json:"section"`
	Key     string `json:"key,omitempty"`
}

func NewConfigError(message, section, key string, cause error) *ConfigError {
	return &ConfigError{
		AMQPError: AMQPError{
			Code:    InternalError,
			Message: message,
			Cause:   cause,
		},
		Section: section,
		Key:     key,
	}
}

func NewConfigValidationError(section, key, reason string) *ConfigError {
	message := fmt.Sprintf("Configuration validation failed for %s.%s: %s", section, key, reason)
	return NewConfigError(message, section, key, nil)
}

// Helper functions for common error checking

// IsConnectionError checks if an error is a ConnectionError
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// IsChannelError checks if an error is a ChannelError
func IsChannelError(err error) bool {
	var chanErr *ChannelError
	return errors.As(err, &chanErr)
}

// IsProtocolError checks if an error is a ProtocolError
func IsProtocolError(err error) bool {
	var protoErr *ProtocolError
	return errors.As(err, &protoErr)
}

// IsMessageError checks if an error is a MessageError
func IsMessageError(err error) bool {
	var msgErr *MessageError
	return errors.As(err, &msgErr)
}

// IsNotFound checks if an error indicates a resource was not found
func IsNotFound(err error) bool {
	return GetErrorCode(err) == NotFound
}

// IsPreconditionFailed checks if an error indicates a precondition failed
func IsPreconditionFailed(err error) bool {
	return GetErrorCode(err) == PreconditionFailed
}

// IsAccessRefused checks if an error indicates access was refused
func IsAccessRefused(err error) bool {
	return GetErrorCode(err) == AccessRefused
}

// IsNoRoute checks if an error is a returned unroutable message
func IsNoRoute(err error) bool {
	return GetErrorCode(err) == NoRoute
}

// IsResourceLocked checks if an error reports an exclusive resource in use
func IsResourceLocked(err error) bool {
	return GetErrorCode(err) == ResourceLocked
}

// IsNoConsumers checks if an immediate publish found no consumer
func IsNoConsumers(err error) bool {
	return GetErrorCode(err) == NoConsumers
}

// IsConnectionForced checks if the broker closed the connection on purpose
func IsConnectionForced(err error) bool {
	return GetErrorCode(err) == ConnectionForced
}

// IsProtocolViolation checks if the client detected a malformed or unexpected frame
func IsProtocolViolation(err error) bool {
	return IsProtocolError(err)
}

// GetErrorCode returns the AMQP error code if the error is an AMQPError
func GetErrorCode(err error) int {
	var amqpErr *AMQPError
	if errors.As(err, &amqpErr) {
		return amqpErr.Code
	}
	return 0
}
