package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Class IDs
const (
	ClassConnection = 10
	ClassChannel    = 20
	ClassExchange   = 40
	ClassQueue      = 50
	ClassBasic      = 60
	ClassConfirm    = 85
	ClassTx         = 90
)

// Method IDs for connection class
const (
	ConnectionStart     = 10
	ConnectionStartOK   = 11
	ConnectionSecure    = 20
	ConnectionSecureOK  = 21
	ConnectionTune      = 30
	ConnectionTuneOK    = 31
	ConnectionOpen      = 40
	ConnectionOpenOK    = 41
	ConnectionClose     = 50
	ConnectionCloseOK   = 51
	ConnectionBlocked   = 60
	ConnectionUnblocked = 61
)

// Method IDs for channel class
const (
	ChannelOpen    = 10
	ChannelOpenOK  = 11
	ChannelFlow    = 20
	ChannelFlowOK  = 21
	ChannelClose   = 40
	ChannelCloseOK = 41
)

// Method IDs for exchange class
const (
	ExchangeDeclare   = 10
	ExchangeDeclareOK = 11
	ExchangeDelete    = 20
	ExchangeDeleteOK  = 21
	ExchangeBind      = 30
	ExchangeBindOK    = 31
	ExchangeUnbind    = 40
	ExchangeUnbindOK  = 51
)

// Method IDs for queue class
const (
	QueueDeclare   = 10
	QueueDeclareOK = 11
	QueueBind      = 20
	QueueBindOK    = 21
	QueuePurge     = 30
	QueuePurgeOK   = 31
	QueueDelete    = 40
	QueueDeleteOK  = 41
	QueueUnbind    = 50
	QueueUnbindOK  = 51
)

// Method IDs for basic class
const (
	BasicQos          = 10
	BasicQosOK        = 11
	BasicConsume      = 20
	BasicConsumeOK    = 21
	BasicCancel       = 30
	BasicCancelOK     = 31
	BasicPublish      = 40
	BasicReturn       = 50
	BasicDeliver      = 60
	BasicGet          = 70
	BasicGetOK        = 71
	BasicGetEmpty     = 72
	BasicAck          = 80
	BasicReject       = 90
	BasicRecoverAsync = 100
	BasicRecover      = 110
	BasicRecoverOK    = 111
	BasicNack         = 120
)

// Method IDs for confirm class
const (
	ConfirmSelect   = 10
	ConfirmSelectOK = 11
)

// Method IDs for tx class
const (
	TxSelect     = 10
	TxSelectOK   = 11
	TxCommit     = 20
	TxCommitOK   = 21
	TxRollback   = 30
	TxRollbackOK = 31
)

var ErrUnknownMethod = errors.New("unknown method")

// Method is a decoded or to-be-encoded AMQP method with its positional
// arguments.
type Method interface {
	ID() (classID, methodID uint16)
	Serialize() ([]byte, error)
	Deserialize(data []byte) error
}

// MethodKey combines class and method ids the way they appear on the wire.
func MethodKey(classID, methodID uint16) uint32 {
	return uint32(classID)<<16 | uint32(methodID)
}

// KeyOf returns the wire key of m.
func KeyOf(m Method) uint32 {
	return MethodKey(m.ID())
}

type methodSpec struct {
	name       string
	hasContent bool
	new        func() Method
}

var methodRegistry = map[uint32]methodSpec{
	MethodKey(ClassConnection, ConnectionStart):     {"connection.start", false, func() Method { return &ConnectionStartMethod{} }},
	MethodKey(ClassConnection, ConnectionStartOK):   {"connection.start-ok", false, func() Method { return &ConnectionStartOKMethod{} }},
	MethodKey(ClassConnection, ConnectionSecure):    {"connection.secure", false, func() Method { return &ConnectionSecureMethod{} }},
	MethodKey(ClassConnection, ConnectionSecureOK):  {"connection.secure-ok", false, func() Method { return &ConnectionSecureOKMethod{} }},
	MethodKey(ClassConnection, ConnectionTune):      {"connection.tune", false, func() Method { return &ConnectionTuneMethod{} }},
	MethodKey(ClassConnection, ConnectionTuneOK):    {"connection.tune-ok", false, func() Method { return &ConnectionTuneOKMethod{} }},
	MethodKey(ClassConnection, ConnectionOpen):      {"connection.open", false, func() Method { return &ConnectionOpenMethod{} }},
	MethodKey(ClassConnection, ConnectionOpenOK):    {"connection.open-ok", false, func() Method { return &ConnectionOpenOKMethod{} }},
	MethodKey(ClassConnection, ConnectionClose):     {"connection.close", false, func() Method { return &ConnectionCloseMethod{} }},
	MethodKey(ClassConnection, ConnectionCloseOK):   {"connection.close-ok", false, func() Method { return &ConnectionCloseOKMethod{} }},
	MethodKey(ClassConnection, ConnectionBlocked):   {"connection.blocked", false, func() Method { return &ConnectionBlockedMethod{} }},
	MethodKey(ClassConnection, ConnectionUnblocked): {"connection.unblocked", false, func() Method { return &ConnectionUnblockedMethod{} }},

	MethodKey(ClassChannel, ChannelOpen):    {"channel.open", false, func() Method { return &ChannelOpenMethod{} }},
	MethodKey(ClassChannel, ChannelOpenOK):  {"channel.open-ok", false, func() Method { return &ChannelOpenOKMethod{} }},
	MethodKey(ClassChannel, ChannelFlow):    {"channel.flow", false, func() Method { return &ChannelFlowMethod{} }},
	MethodKey(ClassChannel, ChannelFlowOK):  {"channel.flow-ok", false, func() Method { return &ChannelFlowOKMethod{} }},
	MethodKey(ClassChannel, ChannelClose):   {"channel.close", false, func() Method { return &ChannelCloseMethod{} }},
	MethodKey(ClassChannel, ChannelCloseOK): {"channel.close-ok", false, func() Method { return &ChannelCloseOKMethod{} }},

	MethodKey(ClassExchange, ExchangeDeclare):   {"exchange.declare", false, func() Method { return &ExchangeDeclareMethod{} }},
	MethodKey(ClassExchange, ExchangeDeclareOK): {"exchange.declare-ok", false, func() Method { return &ExchangeDeclareOKMethod{} }},
	MethodKey(ClassExchange, ExchangeDelete):    {"exchange.delete", false, func() Method { return &ExchangeDeleteMethod{} }},
	MethodKey(ClassExchange, ExchangeDeleteOK):  {"exchange.delete-ok", false, func() Method { return &ExchangeDeleteOKMethod{} }},
	MethodKey(ClassExchange, ExchangeBind):      {"exchange.bind", false, func() Method { return &ExchangeBindMethod{} }},
	MethodKey(ClassExchange, ExchangeBindOK):    {"exchange.bind-ok", false, func() Method { return &ExchangeBindOKMethod{} }},
	MethodKey(ClassExchange, ExchangeUnbind):    {"exchange.unbind", false, func() Method { return &ExchangeUnbindMethod{} }},
	MethodKey(ClassExchange, ExchangeUnbindOK):  {"exchange.unbind-ok", false, func() Method { return &ExchangeUnbindOKMethod{} }},

	MethodKey(ClassQueue, QueueDeclare):   {"queue.declare", false, func() Method { return &QueueDeclareMethod{} }},
	MethodKey(ClassQueue, QueueDeclareOK): {"queue.declare-ok", false, func() Method { return &QueueDeclareOKMethod{} }},
	MethodKey(ClassQueue, QueueBind):      {"queue.bind", false, func() Method { return &QueueBindMethod{} }},
	MethodKey(ClassQueue, QueueBindOK):    {"queue.bind-ok", false, func() Method { return &QueueBindOKMethod{} }},
	MethodKey(ClassQueue, QueuePurge):     {"queue.purge", false, func() Method { return &QueuePurgeMethod{} }},
	MethodKey(ClassQueue, QueuePurgeOK):   {"queue.purge-ok", false, func() Method { return &QueuePurgeOKMethod{} }},
	MethodKey(ClassQueue, QueueDelete):    {"queue.delete", false, func() Method { return &QueueDeleteMethod{} }},
	MethodKey(ClassQueue, QueueDeleteOK):  {"queue.delete-ok", false, func() Method { return &QueueDeleteOKMethod{} }},
	MethodKey(ClassQueue, QueueUnbind):    {"queue.unbind", false, func() Method { return &QueueUnbindMethod{} }},
	MethodKey(ClassQueue, QueueUnbindOK):  {"queue.unbind-ok", false, func() Method { return &QueueUnbindOKMethod{} }},

	MethodKey(ClassBasic, BasicQos):          {"basic.qos", false, func() Method { return &BasicQosMethod{} }},
	MethodKey(ClassBasic, BasicQosOK):        {"basic.qos-ok", false, func() Method { return &BasicQosOKMethod{} }},
	MethodKey(ClassBasic, BasicConsume):      {"basic.consume", false, func() Method { return &BasicConsumeMethod{} }},
	MethodKey(ClassBasic, BasicConsumeOK):    {"basic.consume-ok", false, func() Method { return &BasicConsumeOKMethod{} }},
	MethodKey(ClassBasic, BasicCancel):       {"basic.cancel", false, func() Method { return &BasicCancelMethod{} }},
	MethodKey(ClassBasic, BasicCancelOK):     {"basic.cancel-ok", false, func() Method { return &BasicCancelOKMethod{} }},
	MethodKey(ClassBasic, BasicPublish):      {"basic.publish", true, func() Method { return &BasicPublishMethod{} }},
	MethodKey(ClassBasic, BasicReturn):       {"basic.return", true, func() Method { return &BasicReturnMethod{} }},
	MethodKey(ClassBasic, BasicDeliver):      {"basic.deliver", true, func() Method { return &BasicDeliverMethod{} }},
	MethodKey(ClassBasic, BasicGet):          {"basic.get", false, func() Method { return &BasicGetMethod{} }},
	MethodKey(ClassBasic, BasicGetOK):        {"basic.get-ok", true, func() Method { return &BasicGetOKMethod{} }},
	MethodKey(ClassBasic, BasicGetEmpty):     {"basic.get-empty", false, func() Method { return &BasicGetEmptyMethod{} }},
	MethodKey(ClassBasic, BasicAck):          {"basic.ack", false, func() Method { return &BasicAckMethod{} }},
	MethodKey(ClassBasic, BasicReject):       {"basic.reject", false, func() Method { return &BasicRejectMethod{} }},
	MethodKey(ClassBasic, BasicRecoverAsync): {"basic.recover-async", false, func() Method { return &BasicRecoverAsyncMethod{} }},
	MethodKey(ClassBasic, BasicRecover):      {"basic.recover", false, func() Method { return &BasicRecoverMethod{} }},
	MethodKey(ClassBasic, BasicRecoverOK):    {"basic.recover-ok", false, func() Method { return &BasicRecoverOKMethod{} }},
	MethodKey(ClassBasic, BasicNack):         {"basic.nack", false, func() Method { return &BasicNackMethod{} }},

	MethodKey(ClassConfirm, ConfirmSelect):   {"confirm.select", false, func() Method { return &ConfirmSelectMethod{} }},
	MethodKey(ClassConfirm, ConfirmSelectOK): {"confirm.select-ok", false, func() Method { return &ConfirmSelectOKMethod{} }},

	MethodKey(ClassTx, TxSelect):     {"tx.select", false, func() Method { return &TxSelectMethod{} }},
	MethodKey(ClassTx, TxSelectOK):   {"tx.select-ok", false, func() Method { return &TxSelectOKMethod{} }},
	MethodKey(ClassTx, TxCommit):     {"tx.commit", false, func() Method { return &TxCommitMethod{} }},
	MethodKey(ClassTx, TxCommitOK):   {"tx.commit-ok", false, func() Method { return &TxCommitOKMethod{} }},
	MethodKey(ClassTx, TxRollback):   {"tx.rollback", false, func() Method { return &TxRollbackMethod{} }},
	MethodKey(ClassTx, TxRollbackOK): {"tx.rollback-ok", false, func() Method { return &TxRollbackOKMethod{} }},
}

// MethodName returns the dotted AMQP name of the method with the given key.
func MethodName(key uint32) string {
	if spec, ok := methodRegistry[key]; ok {
		return spec.name
	}
	return fmt.Sprintf("unknown(%d.%d)", key>>16, key&0xFFFF)
}

// HasContent reports whether the method is followed by a content header and body.
func HasContent(m Method) bool {
	return methodRegistry[KeyOf(m)].hasContent
}

// ParseMethod decodes a method frame payload.
func ParseMethod(payload []byte) (Method, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("method frame payload too short")
	}
	key := binary.BigEndian.Uint32(payload[0:4])
	spec, ok := methodRegistry[key]
	if !ok {
		return nil, fmt.Errorf("%w: %d.%d", ErrUnknownMethod, key>>16, key&0xFFFF)
	}
	m := spec.new()
	if err := m.Deserialize(payload[4:]); err != nil {
		return nil, err
	}
	return m, nil
}

// EncodeMethodPayload serializes m prefixed with its class and method ids.
func EncodeMethodPayload(m Method) ([]byte, error) {
	methodData, err := m.Serialize()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s: %w", MethodName(KeyOf(m)), err)
	}
	classID, methodID := m.ID()
	payload := make([]byte, 4+len(methodData))
	binary.BigEndian.PutUint16(payload[0:2], classID)
	binary.BigEndian.PutUint16(payload[2:4], methodID)
	copy(payload[4:], methodData)
	return payload, nil
}

// ConnectionStartMethod represents the connection.start method
type ConnectionStartMethod struct {
	VersionMajor     byte
	VersionMinor     byte
	ServerProperties Table
	Mechanisms       string
	Locales          string
}

func (m *ConnectionStartMethod) ID() (uint16, uint16) { return ClassConnection, ConnectionStart }

func (m *ConnectionStartMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.octet(m.VersionMajor)
	w.octet(m.VersionMinor)
	w.table(m.ServerProperties)
	w.longstr(m.Mechanisms)
	w.longstr(m.Locales)
	return w.bytes()
}

func (m *ConnectionStartMethod) Deserialize(data []byte) error {
	r := newMethodReader("connection.start", data)
	m.VersionMajor = r.octet("version-major")
	m.VersionMinor = r.octet("version-minor")
	m.ServerProperties = r.table("server-properties")
	m.Mechanisms = r.longstr("mechanisms")
	m.Locales = r.longstr("locales")
	return r.err
}

// ConnectionStartOKMethod represents the connection.start-ok method
type ConnectionStartOKMethod struct {
	ClientProperties Table
	Mechanism        string
	Response         []byte
	Locale           string
}

func (m *ConnectionStartOKMethod) ID() (uint16, uint16) { return ClassConnection, ConnectionStartOK }

func (m *ConnectionStartOKMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.table(m.ClientProperties)
	w.shortstr(m.Mechanism)
	w.longstr(string(m.Response))
	w.shortstr(m.Locale)
	return w.bytes()
}

func (m *ConnectionStartOKMethod) Deserialize(data []byte) error {
	r := newMethodReader("connection.start-ok", data)
	m.ClientProperties = r.table("client-properties")
	m.Mechanism = r.shortstr("mechanism")
	m.Response = []byte(r.longstr("response"))
	m.Locale = r.shortstr("locale")
	return r.err
}

// ConnectionSecureMethod represents the connection.secure method
type ConnectionSecureMethod struct {
	Challenge []byte
}

func (m *ConnectionSecureMethod) ID() (uint16, uint16) { return ClassConnection, ConnectionSecure }

func (m *ConnectionSecureMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.longstr(string(m.Challenge))
	return w.bytes()
}

func (m *ConnectionSecureMethod) Deserialize(data []byte) error {
	r := newMethodReader("connection.secure", data)
	m.Challenge = []byte(r.longstr("challenge"))
	return r.err
}

// ConnectionSecureOKMethod represents the connection.secure-ok method
type ConnectionSecureOKMethod struct {
	Response []byte
}

func (m *ConnectionSecureOKMethod) ID() (uint16, uint16) { return ClassConnection, ConnectionSecureOK }

func (m *ConnectionSecureOKMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.longstr(string(m.Response))
	return w.bytes()
}

func (m *ConnectionSecureOKMethod) Deserialize(data []byte) error {
	r := newMethodReader("connection.secure-ok", data)
	m.Response = []byte(r.longstr("response"))
	return r.err
}

// ConnectionTuneMethod represents the connection.tune method
type ConnectionTuneMethod struct {
	ChannelMax uint16
	FrameMax   uint32
	Heartbeat  uint16
}

func (m *ConnectionTuneMethod) ID() (uint16, uint16) { return ClassConnection, ConnectionTune }

func (m *ConnectionTuneMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.short(m.ChannelMax)
	w.long(m.FrameMax)
	w.short(m.Heartbeat)
	return w.bytes()
}

func (m *ConnectionTuneMethod) Deserialize(data []byte) error {
	r := newMethodReader("connection.tune", data)
	m.ChannelMax = r.short("channel-max")
	m.FrameMax = r.long("frame-max")
	m.Heartbeat = r.short("heartbeat")
	return r.err
}

// ConnectionTuneOKMethod represents the connection.tune-ok method
type ConnectionTuneOKMethod struct {
	ChannelMax uint16
	FrameMax   uint32
	Heartbeat  uint16
}

func (m *ConnectionTuneOKMethod) ID() (uint16, uint16) { return ClassConnection, ConnectionTuneOK }

func (m *ConnectionTuneOKMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.short(m.ChannelMax)
	w.long(m.FrameMax)
	w.short(m.Heartbeat)
	return w.bytes()
}

func (m *ConnectionTuneOKMethod) Deserialize(data []byte) error {
	r := newMethodReader("connection.tune-ok", data)
	m.ChannelMax = r.short("channel-max")
	m.FrameMax = r.long("frame-max")
	m.Heartbeat = r.short("heartbeat")
	return r.err
}

// ConnectionOpenMethod represents the connection.open method
type ConnectionOpenMethod struct {
	VirtualHost string
	Reserved1   string
	Reserved2   bool
}

func (m *ConnectionOpenMethod) ID() (uint16, uint16) { return ClassConnection, ConnectionOpen }

func (m *ConnectionOpenMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.shortstr(m.VirtualHost)
	w.shortstr(m.Reserved1)
	w.bit(m.Reserved2)
	return w.bytes()
}

func (m *ConnectionOpenMethod) Deserialize(data []byte) error {
	r := newMethodReader("connection.open", data)
	m.VirtualHost = r.shortstr("virtual-host")
	m.Reserved1 = r.shortstr("reserved-1")
	m.Reserved2 = r.bit("reserved-2")
	return r.err
}

// ConnectionOpenOKMethod represents the connection.open-ok method
type ConnectionOpenOKMethod struct {
	Reserved1 string
}

func (m *ConnectionOpenOKMethod) ID() (uint16, uint16) { return ClassConnection, ConnectionOpenOK }

func (m *ConnectionOpenOKMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.shortstr(m.Reserved1)
	return w.bytes()
}

func (m *ConnectionOpenOKMethod) Deserialize(data []byte) error {
	r := newMethodReader("connection.open-ok", data)
	m.Reserved1 = r.shortstr("reserved-1")
	return r.err
}

// ConnectionCloseMethod represents the connection.close method
type ConnectionCloseMethod struct {
	ReplyCode uint16
	ReplyText string
	ClassID   uint16
	MethodID  uint16
}

func (m *ConnectionCloseMethod) ID() (uint16, uint16) { return ClassConnection, ConnectionClose }

func (m *ConnectionCloseMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.short(m.ReplyCode)
	w.shortstr(m.ReplyText)
	w.short(m.ClassID)
	w.short(m.MethodID)
	return w.bytes()
}

func (m *ConnectionCloseMethod) Deserialize(data []byte) error {
	r := newMethodReader("connection.close", data)
	m.ReplyCode = r.short("reply-code")
	m.ReplyText = r.shortstr("reply-text")
	m.ClassID = r.short("class-id")
	m.MethodID = r.short("method-id")
	return r.err
}

// ConnectionCloseOKMethod represents the connection.close-ok method
type ConnectionCloseOKMethod struct{}

func (m *ConnectionCloseOKMethod) ID() (uint16, uint16)   { return ClassConnection, ConnectionCloseOK }
func (m *ConnectionCloseOKMethod) Serialize() ([]byte, error) { return []byte{}, nil }
func (m *ConnectionCloseOKMethod) Deserialize([]byte) error   { return nil }

// ConnectionBlockedMethod represents the connection.blocked method (RabbitMQ extension)
type ConnectionBlockedMethod struct {
	Reason string
}

func (m *ConnectionBlockedMethod) ID() (uint16, uint16) { return ClassConnection, ConnectionBlocked }

func (m *ConnectionBlockedMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.shortstr(m.Reason)
	return w.bytes()
}

func (m *ConnectionBlockedMethod) Deserialize(data []byte) error {
	r := newMethodReader("connection.blocked", data)
	m.Reason = r.shortstr("reason")
	return r.err
}

// ConnectionUnblockedMethod represents the connection.unblocked method
type ConnectionUnblockedMethod struct{}

func (m *ConnectionUnblockedMethod) ID() (uint16, uint16)   { return ClassConnection, ConnectionUnblocked }
func (m *ConnectionUnblockedMethod) Serialize() ([]byte, error) { return []byte{}, nil }
func (m *ConnectionUnblockedMethod) Deserialize([]byte) error   { return nil }

// ChannelOpenMethod represents the channel.open method
type ChannelOpenMethod struct {
	Reserved1 string
}

func (m *ChannelOpenMethod) ID() (uint16, uint16) { return ClassChannel, ChannelOpen }

func (m *ChannelOpenMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.shortstr(m.Reserved1)
	return w.bytes()
}

func (m *ChannelOpenMethod) Deserialize(data []byte) error {
	r := newMethodReader("channel.open", data)
	m.Reserved1 = r.shortstr("reserved-1")
	return r.err
}

// ChannelOpenOKMethod represents the channel.open-ok method
type ChannelOpenOKMethod struct {
	Reserved1 string
}

func (m *ChannelOpenOKMethod) ID() (uint16, uint16) { return ClassChannel, ChannelOpenOK }

func (m *ChannelOpenOKMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.longstr(m.Reserved1)
	return w.bytes()
}

func (m *ChannelOpenOKMethod) Deserialize(data []byte) error {
	r := newMethodReader("channel.open-ok", data)
	m.Reserved1 = r.longstr("reserved-1")
	return r.err
}

// ChannelFlowMethod represents the channel.flow method
type ChannelFlowMethod struct {
	Active bool
}

func (m *ChannelFlowMethod) ID() (uint16, uint16) { return ClassChannel, ChannelFlow }

func (m *ChannelFlowMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.bit(m.Active)
	return w.bytes()
}

func (m *ChannelFlowMethod) Deserialize(data []byte) error {
	r := newMethodReader("channel.flow", data)
	m.Active = r.bit("active")
	return r.err
}

// ChannelFlowOKMethod represents the channel.flow-ok method
type ChannelFlowOKMethod struct {
	Active bool
}

func (m *ChannelFlowOKMethod) ID() (uint16, uint16) { return ClassChannel, ChannelFlowOK }

func (m *ChannelFlowOKMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.bit(m.Active)
	return w.bytes()
}

func (m *ChannelFlowOKMethod) Deserialize(data []byte) error {
	r := newMethodReader("channel.flow-ok", data)
	m.Active = r.bit("active")
	return r.err
}

// ChannelCloseMethod represents the channel.close method
type ChannelCloseMethod struct {
	ReplyCode uint16
	ReplyText string
	ClassID   uint16
	MethodID  uint16
}

func (m *ChannelCloseMethod) ID() (uint16, uint16) { return ClassChannel, ChannelClose }

func (m *ChannelCloseMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.short(m.ReplyCode)
	w.shortstr(m.ReplyText)
	w.short(m.ClassID)
	w.short(m.MethodID)
	return w.bytes()
}

func (m *ChannelCloseMethod) Deserialize(data []byte) error {
	r := newMethodReader("channel.close", data)
	m.ReplyCode = r.short("reply-code")
	m.ReplyText = r.shortstr("reply-text")
	m.ClassID = r.short("class-id")
	m.MethodID = r.short("method-id")
	return r.err
}

// ChannelCloseOKMethod represents the channel.close-ok method
type ChannelCloseOKMethod struct{}

func (m *ChannelCloseOKMethod) ID() (uint16, uint16)   { return ClassChannel, ChannelCloseOK }
func (m *ChannelCloseOKMethod) Serialize() ([]byte, error) { return []byte{}, nil }
func (m *ChannelCloseOKMethod) Deserialize([]byte) error   { return nil }

// ExchangeDeclareMethod represents the exchange.declare method
type ExchangeDeclareMethod struct {
	Reserved1  uint16
	Exchange   string
	Type       string
	Passive    bool
	Durable    bool
	AutoDelete bool
	Internal   bool
	NoWait     bool
	Arguments  Table
}

func (m *ExchangeDeclareMethod) ID() (uint16, uint16) { return ClassExchange, ExchangeDeclare }

func (m *ExchangeDeclareMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.short(m.Reserved1)
	w.shortstr(m.Exchange)
	w.shortstr(m.Type)
	w.bit(m.Passive)
	w.bit(m.Durable)
	w.bit(m.AutoDelete)
	w.bit(m.Internal)
	w.bit(m.NoWait)
	w.table(m.Arguments)
	return w.bytes()
}

func (m *ExchangeDeclareMethod) Deserialize(data []byte) error {
	r := newMethodReader("exchange.declare", data)
	m.Reserved1 = r.short("reserved-1")
	m.Exchange = r.shortstr("exchange")
	m.Type = r.shortstr("type")
	m.Passive = r.bit("passive")
	m.Durable = r.bit("durable")
	m.AutoDelete = r.bit("auto-delete")
	m.Internal = r.bit("internal")
	m.NoWait = r.bit("no-wait")
	m.Arguments = r.table("arguments")
	return r.err
}

// ExchangeDeclareOKMethod represents the exchange.declare-ok method
type ExchangeDeclareOKMethod struct{}

func (m *ExchangeDeclareOKMethod) ID() (uint16, uint16)   { return ClassExchange, ExchangeDeclareOK }
func (m *ExchangeDeclareOKMethod) Serialize() ([]byte, error) { return []byte{}, nil }
func (m *ExchangeDeclareOKMethod) Deserialize([]byte) error   { return nil }

// ExchangeDeleteMethod represents the exchange.delete method
type ExchangeDeleteMethod struct {
	Reserved1 uint16
	Exchange  string
	IfUnused  bool
	NoWait    bool
}

func (m *ExchangeDeleteMethod) ID() (uint16, uint16) { return ClassExchange, ExchangeDelete }

func (m *ExchangeDeleteMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.short(m.Reserved1)
	w.shortstr(m.Exchange)
	w.bit(m.IfUnused)
	w.bit(m.NoWait)
	return w.bytes()
}

func (m *ExchangeDeleteMethod) Deserialize(data []byte) error {
	r := newMethodReader("exchange.delete", data)
	m.Reserved1 = r.short("reserved-1")
	m.Exchange = r.shortstr("exchange")
	m.IfUnused = r.bit("if-unused")
	m.NoWait = r.bit("no-wait")
	return r.err
}

// ExchangeDeleteOKMethod represents the exchange.delete-ok method
type ExchangeDeleteOKMethod struct{}

func (m *ExchangeDeleteOKMethod) ID() (uint16, uint16)   { return ClassExchange, ExchangeDeleteOK }
func (m *ExchangeDeleteOKMethod) Serialize() ([]byte, error) { return []byte{}, nil }
func (m *ExchangeDeleteOKMethod) Deserialize([]byte) error   { return nil }

// ExchangeBindMethod represents the exchange.bind method
type ExchangeBindMethod struct {
	Reserved1   uint16
	Destination string
	Source      string
	RoutingKey  string
	NoWait      bool
	Arguments   Table
}

func (m *ExchangeBindMethod) ID() (uint16, uint16) { return ClassExchange, ExchangeBind }

func (m *ExchangeBindMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.short(m.Reserved1)
	w.shortstr(m.Destination)
	w.shortstr(m.Source)
	w.shortstr(m.RoutingKey)
	w.bit(m.NoWait)
	w.table(m.Arguments)
	return w.bytes()
}

func (m *ExchangeBindMethod) Deserialize(data []byte) error {
	r := newMethodReader("exchange.bind", data)
	m.Reserved1 = r.short("reserved-1")
	m.Destination = r.shortstr("destination")
	m.Source = r.shortstr("source")
	m.RoutingKey = r.shortstr("routing-key")
	m.NoWait = r.bit("no-wait")
	m.Arguments = r.table("arguments")
	return r.err
}

// ExchangeBindOKMethod represents the exchange.bind-ok method
type ExchangeBindOKMethod struct{}

func (m *ExchangeBindOKMethod) ID() (uint16, uint16)   { return ClassExchange, ExchangeBindOK }
func (m *ExchangeBindOKMethod) Serialize() ([]byte, error) { return []byte{}, nil }
func (m *ExchangeBindOKMethod) Deserialize([]byte) error   { return nil }

// ExchangeUnbindMethod represents the exchange.unbind method
type ExchangeUnbindMethod struct {
	Reserved1   uint16
	Destination string
	Source      string
	RoutingKey  string
	NoWait      bool
	Arguments   Table
}

func (m *ExchangeUnbindMethod) ID() (uint16, uint16) { return ClassExchange, ExchangeUnbind }

func (m *ExchangeUnbindMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.short(m.Reserved1)
	w.shortstr(m.Destination)
	w.shortstr(m.Source)
	w.shortstr(m.RoutingKey)
	w.bit(m.NoWait)
	w.table(m.Arguments)
	return w.bytes()
}

func (m *ExchangeUnbindMethod) Deserialize(data []byte) error {
	r := newMethodReader("exchange.unbind", data)
	m.Reserved1 = r.short("reserved-1")
	m.Destination = r.shortstr("destination")
	m.Source = r.shortstr("source")
	m.RoutingKey = r.shortstr("routing-key")
	m.NoWait = r.bit("no-wait")
	m.Arguments = r.table("arguments")
	return r.err
}

// ExchangeUnbindOKMethod represents the exchange.unbind-ok method
type ExchangeUnbindOKMethod struct{}

func (m *ExchangeUnbindOKMethod) ID() (uint16, uint16)   { return ClassExchange, ExchangeUnbindOK }
func (m *ExchangeUnbindOKMethod) Serialize() ([]byte, error) { return []byte{}, nil }
func (m *ExchangeUnbindOKMethod) Deserialize([]byte) error   { return nil }

// QueueDeclareMethod represents the queue.declare method
type QueueDeclareMethod struct {
	Reserved1  uint16
	Queue      string
	Passive    bool
	Durable    bool
	Exclusive  bool
	AutoDelete bool
	NoWait     bool
	Arguments  Table
}

func (m *QueueDeclareMethod) ID() (uint16, uint16) { return ClassQueue, QueueDeclare }

func (m *QueueDeclareMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.short(m.Reserved1)
	w.shortstr(m.Queue)
	w.bit(m.Passive)
	w.bit(m.Durable)
	w.bit(m.Exclusive)
	w.bit(m.AutoDelete)
	w.bit(m.NoWait)
	w.table(m.Arguments)
	return w.bytes()
}

func (m *QueueDeclareMethod) Deserialize(data []byte) error {
	r := newMethodReader("queue.declare", data)
	m.Reserved1 = r.short("reserved-1")
	m.Queue = r.shortstr("queue")
	m.Passive = r.bit("passive")
	m.Durable = r.bit("durable")
	m.Exclusive = r.bit("exclusive")
	m.AutoDelete = r.bit("auto-delete")
	m.NoWait = r.bit("no-wait")
	m.Arguments = r.table("arguments")
	return r.err
}

// QueueDeclareOKMethod represents the queue.declare-ok method
type QueueDeclareOKMethod struct {
	Queue         string
	MessageCount  uint32
	ConsumerCount uint32
}

func (m *QueueDeclareOKMethod) ID() (uint16, uint16) { return ClassQueue, QueueDeclareOK }

func (m *QueueDeclareOKMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.shortstr(m.Queue)
	w.long(m.MessageCount)
	w.long(m.ConsumerCount)
	return w.bytes()
}

func (m *QueueDeclareOKMethod) Deserialize(data []byte) error {
	r := newMethodReader("queue.declare-ok", data)
	m.Queue = r.shortstr("queue")
	m.MessageCount = r.long("message-count")
	m.ConsumerCount = r.long("consumer-count")
	return r.err
}

// QueueBindMethod represents the queue.bind method
type QueueBindMethod struct {
	Reserved1  uint16
	Queue      string
	Exchange   string
	RoutingKey string
	NoWait     bool
	Arguments  Table
}

func (m *QueueBindMethod) ID() (uint16, uint16) { return ClassQueue, QueueBind }

func (m *QueueBindMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.short(m.Reserved1)
	w.shortstr(m.Queue)
	w.shortstr(m.Exchange)
	w.shortstr(m.RoutingKey)
	w.bit(m.NoWait)
	w.table(m.Arguments)
	return w.bytes()
}

func (m *QueueBindMethod) Deserialize(data []byte) error {
	r := newMethodReader("queue.bind", data)
	m.Reserved1 = r.short("reserved-1")
	m.Queue = r.shortstr("queue")
	m.Exchange = r.shortstr("exchange")
	m.RoutingKey = r.shortstr("routing-key")
	m.NoWait = r.bit("no-wait")
	m.Arguments = r.table("arguments")
	return r.err
}

// QueueBindOKMethod represents the queue.bind-ok method
type QueueBindOKMethod struct{}

func (m *QueueBindOKMethod) ID() (uint16, uint16)   { return ClassQueue, QueueBindOK }
func (m *QueueBindOKMethod) Serialize() ([]byte, error) { return []byte{}, nil }
func (m *QueueBindOKMethod) Deserialize([]byte) error   { return nil }

// QueueUnbindMethod represents the queue.unbind method
type QueueUnbindMethod struct {
	Reserved1  uint16
	Queue      string
	Exchange   string
	RoutingKey string
	Arguments  Table
}

func (m *QueueUnbindMethod) ID() (uint16, uint16) { return ClassQueue, QueueUnbind }

func (m *QueueUnbindMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.short(m.Reserved1)
	w.shortstr(m.Queue)
	w.shortstr(m.Exchange)
	w.shortstr(m.RoutingKey)
	w.table(m.Arguments)
	return w.bytes()
}

func (m *QueueUnbindMethod) Deserialize(data []byte) error {
	r := newMethodReader("queue.unbind", data)
	m.Reserved1 = r.short("reserved-1")
	m.Queue = r.shortstr("queue")
	m.Exchange = r.shortstr("exchange")
	m.RoutingKey = r.shortstr("routing-key")
	m.Arguments = r.table("arguments")
	return r.err
}

// QueueUnbindOKMethod represents the queue.unbind-ok method
type QueueUnbindOKMethod struct{}

func (m *QueueUnbindOKMethod) ID() (uint16, uint16)   { return ClassQueue, QueueUnbindOK }
func (m *QueueUnbindOKMethod) Serialize() ([]byte, error) { return []byte{}, nil }
func (m *QueueUnbindOKMethod) Deserialize([]byte) error   { return nil }

// QueuePurgeMethod represents the queue.purge method
type QueuePurgeMethod struct {
	Reserved1 uint16
	Queue     string
	NoWait    bool
}

func (m *QueuePurgeMethod) ID() (uint16, uint16) { return ClassQueue, QueuePurge }

func (m *QueuePurgeMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.short(m.Reserved1)
	w.shortstr(m.Queue)
	w.bit(m.NoWait)
	return w.bytes()
}

func (m *QueuePurgeMethod) Deserialize(data []byte) error {
	r := newMethodReader("queue.purge", data)
	m.Reserved1 = r.short("reserved-1")
	m.Queue = r.shortstr("queue")
	m.NoWait = r.bit("no-wait")
	return r.err
}

// QueuePurgeOKMethod represents the queue.purge-ok method
type QueuePurgeOKMethod struct {
	MessageCount uint32
}

func (m *QueuePurgeOKMethod) ID() (uint16, uint16) { return ClassQueue, QueuePurgeOK }

func (m *QueuePurgeOKMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.long(m.MessageCount)
	return w.bytes()
}

func (m *QueuePurgeOKMethod) Deserialize(data []byte) error {
	r := newMethodReader("queue.purge-ok", data)
	m.MessageCount = r.long("message-count")
	return r.err
}

// QueueDeleteMethod represents the queue.delete method
type QueueDeleteMethod struct {
	Reserved1 uint16
	Queue     string
	IfUnused  bool
	IfEmpty   bool
	NoWait    bool
}

func (m *QueueDeleteMethod) ID() (uint16, uint16) { return ClassQueue, QueueDelete }

func (m *QueueDeleteMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.short(m.Reserved1)
	w.shortstr(m.Queue)
	w.bit(m.IfUnused)
	w.bit(m.IfEmpty)
	w.bit(m.NoWait)
	return w.bytes()
}

func (m *QueueDeleteMethod) Deserialize(data []byte) error {
	r := newMethodReader("queue.delete", data)
	m.Reserved1 = r.short("reserved-1")
	m.Queue = r.shortstr("queue")
	m.IfUnused = r.bit("if-unused")
	m.IfEmpty = r.bit("if-empty")
	m.NoWait = r.bit("no-wait")
	return r.err
}

// QueueDeleteOKMethod represents the queue.delete-ok method
type QueueDeleteOKMethod struct {
	MessageCount uint32
}

func (m *QueueDeleteOKMethod) ID() (uint16, uint16) { return ClassQueue, QueueDeleteOK }

func (m *QueueDeleteOKMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.long(m.MessageCount)
	return w.bytes()
}

func (m *QueueDeleteOKMethod) Deserialize(data []byte) error {
	r := newMethodReader("queue.delete-ok", data)
	m.MessageCount = r.long("message-count")
	return r.err
}

// BasicQosMethod represents the basic.qos method
type BasicQosMethod struct {
	PrefetchSize  uint32
	PrefetchCount uint16
	Global        bool
}

func (m *BasicQosMethod) ID() (uint16, uint16) { return ClassBasic, BasicQos }

func (m *BasicQosMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.long(m.PrefetchSize)
	w.short(m.PrefetchCount)
	w.bit(m.Global)
	return w.bytes()
}

func (m *BasicQosMethod) Deserialize(data []byte) error {
	r := newMethodReader("basic.qos", data)
	m.PrefetchSize = r.long("prefetch-size")
	m.PrefetchCount = r.short("prefetch-count")
	m.Global = r.bit("global")
	return r.err
}

// BasicQosOKMethod represents the basic.qos-ok method
type BasicQosOKMethod struct{}

func (m *BasicQosOKMethod) ID() (uint16, uint16)   { return ClassBasic, BasicQosOK }
func (m *BasicQosOKMethod) Serialize() ([]byte, error) { return []byte{}, nil }
func (m *BasicQosOKMethod) Deserialize([]byte) error   { return nil }

// BasicConsumeMethod represents the basic.consume method
type BasicConsumeMethod struct {
	Reserved1   uint16
	Queue       string
	ConsumerTag string
	NoLocal     bool
	NoAck       bool
	Exclusive   bool
	NoWait      bool
	Arguments   Table
}

func (m *BasicConsumeMethod) ID() (uint16, uint16) { return ClassBasic, BasicConsume }

func (m *BasicConsumeMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.short(m.Reserved1)
	w.shortstr(m.Queue)
	w.shortstr(m.ConsumerTag)
	w.bit(m.NoLocal)
	w.bit(m.NoAck)
	w.bit(m.Exclusive)
	w.bit(m.NoWait)
	w.table(m.Arguments)
	return w.bytes()
}

func (m *BasicConsumeMethod) Deserialize(data []byte) error {
	r := newMethodReader("basic.consume", data)
	m.Reserved1 = r.short("reserved-1")
	m.Queue = r.shortstr("queue")
	m.ConsumerTag = r.shortstr("consumer-tag")
	m.NoLocal = r.bit("no-local")
	m.NoAck = r.bit("no-ack")
	m.Exclusive = r.bit("exclusive")
	m.NoWait = r.bit("no-wait")
	m.Arguments = r.table("arguments")
	return r.err
}

// BasicConsumeOKMethod represents the basic.consume-ok method
type BasicConsumeOKMethod struct {
	ConsumerTag string
}

func (m *BasicConsumeOKMethod) ID() (uint16, uint16) { return ClassBasic, BasicConsumeOK }

func (m *BasicConsumeOKMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.shortstr(m.ConsumerTag)
	return w.bytes()
}

func (m *BasicConsumeOKMethod) Deserialize(data []byte) error {
	r := newMethodReader("basic.consume-ok", data)
	m.ConsumerTag = r.shortstr("consumer-tag")
	return r.err
}

// BasicCancelMethod represents the basic.cancel method
type BasicCancelMethod struct {
	ConsumerTag string
	NoWait      bool
}

func (m *BasicCancelMethod) ID() (uint16, uint16) { return ClassBasic, BasicCancel }

func (m *BasicCancelMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.shortstr(m.ConsumerTag)
	w.bit(m.NoWait)
	return w.bytes()
}

func (m *BasicCancelMethod) Deserialize(data []byte) error {
	r := newMethodReader("basic.cancel", data)
	m.ConsumerTag = r.shortstr("consumer-tag")
	m.NoWait = r.bit("no-wait")
	return r.err
}

// BasicCancelOKMethod represents the basic.cancel-ok method
type BasicCancelOKMethod struct {
	ConsumerTag string
}

func (m *BasicCancelOKMethod) ID() (uint16, uint16) { return ClassBasic, BasicCancelOK }

func (m *BasicCancelOKMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.shortstr(m.ConsumerTag)
	return w.bytes()
}

func (m *BasicCancelOKMethod) Deserialize(data []byte) error {
	r := newMethodReader("basic.cancel-ok", data)
	m.ConsumerTag = r.shortstr("consumer-tag")
	return r.err
}

// BasicPublishMethod represents the basic.publish method
type BasicPublishMethod struct {
	Reserved1  uint16
	Exchange   string
	RoutingKey string
	Mandatory  bool
	Immediate  bool
}

func (m *BasicPublishMethod) ID() (uint16, uint16) { return ClassBasic, BasicPublish }

func (m *BasicPublishMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.short(m.Reserved1)
	w.shortstr(m.Exchange)
	w.shortstr(m.RoutingKey)
	w.bit(m.Mandatory)
	w.bit(m.Immediate)
	return w.bytes()
}

func (m *BasicPublishMethod) Deserialize(data []byte) error {
	r := newMethodReader("basic.publish", data)
	m.Reserved1 = r.short("reserved-1")
	m.Exchange = r.shortstr("exchange")
	m.RoutingKey = r.shortstr("routing-key")
	m.Mandatory = r.bit("mandatory")
	m.Immediate = r.bit("immediate")
	return r.err
}

// BasicReturnMethod represents the basic.return method
type BasicReturnMethod struct {
	ReplyCode  uint16
	ReplyText  string
	Exchange   string
	RoutingKey string
}

func (m *BasicReturnMethod) ID() (uint16, uint16) { return ClassBasic, BasicReturn }

func (m *BasicReturnMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.short(m.ReplyCode)
	w.shortstr(m.ReplyText)
	w.shortstr(m.Exchange)
	w.shortstr(m.RoutingKey)
	return w.bytes()
}

func (m *BasicReturnMethod) Deserialize(data []byte) error {
	r := newMethodReader("basic.return", data)
	m.ReplyCode = r.short("reply-code")
	m.ReplyText = r.shortstr("reply-text")
	m.Exchange = r.shortstr("exchange")
	m.RoutingKey = r.shortstr("routing-key")
	return r.err
}

// BasicDeliverMethod represents the basic.deliver method
type BasicDeliverMethod struct {
	ConsumerTag string
	DeliveryTag uint64
	Redelivered bool
	Exchange    string
	RoutingKey  string
}

func (m *BasicDeliverMethod) ID() (uint16, uint16) { return ClassBasic, BasicDeliver }

func (m *BasicDeliverMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.shortstr(m.ConsumerTag)
	w.longlong(m.DeliveryTag)
	w.bit(m.Redelivered)
	w.shortstr(m.Exchange)
	w.shortstr(m.RoutingKey)
	return w.bytes()
}

func (m *BasicDeliverMethod) Deserialize(data []byte) error {
	r := newMethodReader("basic.deliver", data)
	m.ConsumerTag = r.shortstr("consumer-tag")
	m.DeliveryTag = r.longlong("delivery-tag")
	m.Redelivered = r.bit("redelivered")
	m.Exchange = r.shortstr("exchange")
	m.RoutingKey = r.shortstr("routing-key")
	return r.err
}

// BasicGetMethod represents the basic.get method
type BasicGetMethod struct {
	Reserved1 uint16
	Queue     string
	NoAck     bool
}

func (m *BasicGetMethod) ID() (uint16, uint16) { return ClassBasic, BasicGet }

func (m *BasicGetMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.short(m.Reserved1)
	w.shortstr(m.Queue)
	w.bit(m.NoAck)
	return w.bytes()
}

func (m *BasicGetMethod) Deserialize(data []byte) error {
	r := newMethodReader("basic.get", data)
	m.Reserved1 = r.short("reserved-1")
	m.Queue = r.shortstr("queue")
	m.NoAck = r.bit("no-ack")
	return r.err
}

// BasicGetOKMethod represents the basic.get-ok method
type BasicGetOKMethod struct {
	DeliveryTag  uint64
	Redelivered  bool
	Exchange     string
	RoutingKey   string
	MessageCount uint32
}

func (m *BasicGetOKMethod) ID() (uint16, uint16) { return ClassBasic, BasicGetOK }

func (m *BasicGetOKMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.longlong(m.DeliveryTag)
	w.bit(m.Redelivered)
	w.shortstr(m.Exchange)
	w.shortstr(m.RoutingKey)
	w.long(m.MessageCount)
	return w.bytes()
}

func (m *BasicGetOKMethod) Deserialize(data []byte) error {
	r := newMethodReader("basic.get-ok", data)
	m.DeliveryTag = r.longlong("delivery-tag")
	m.Redelivered = r.bit("redelivered")
	m.Exchange = r.shortstr("exchange")
	m.RoutingKey = r.shortstr("routing-key")
	m.MessageCount = r.long("message-count")
	return r.err
}

// BasicGetEmptyMethod represents the basic.get-empty method
type BasicGetEmptyMethod struct {
	Reserved1 string
}

func (m *BasicGetEmptyMethod) ID() (uint16, uint16) { return ClassBasic, BasicGetEmpty }

func (m *BasicGetEmptyMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.shortstr(m.Reserved1)
	return w.bytes()
}

func (m *BasicGetEmptyMethod) Deserialize(data []byte) error {
	r := newMethodReader("basic.get-empty", data)
	m.Reserved1 = r.shortstr("reserved-1")
	return r.err
}

// BasicAckMethod represents the basic.ack method
type BasicAckMethod struct {
	DeliveryTag uint64
	Multiple    bool
}

func (m *BasicAckMethod) ID() (uint16, uint16) { return ClassBasic, BasicAck }

func (m *BasicAckMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.longlong(m.DeliveryTag)
	w.bit(m.Multiple)
	return w.bytes()
}

func (m *BasicAckMethod) Deserialize(data []byte) error {
	r := newMethodReader("basic.ack", data)
	m.DeliveryTag = r.longlong("delivery-tag")
	m.Multiple = r.bit("multiple")
	return r.err
}

// BasicRejectMethod represents the basic.reject method
type BasicRejectMethod struct {
	DeliveryTag uint64
	Requeue     bool
}

func (m *BasicRejectMethod) ID() (uint16, uint16) { return ClassBasic, BasicReject }

func (m *BasicRejectMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.longlong(m.DeliveryTag)
	w.bit(m.Requeue)
	return w.bytes()
}

func (m *BasicRejectMethod) Deserialize(data []byte) error {
	r := newMethodReader("basic.reject", data)
	m.DeliveryTag = r.longlong("delivery-tag")
	m.Requeue = r.bit("requeue")
	return r.err
}

// BasicRecoverAsyncMethod represents the deprecated basic.recover-async method
type BasicRecoverAsyncMethod struct {
	Requeue bool
}

func (m *BasicRecoverAsyncMethod) ID() (uint16, uint16) { return ClassBasic, BasicRecoverAsync }

func (m *BasicRecoverAsyncMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.bit(m.Requeue)
	return w.bytes()
}

func (m *BasicRecoverAsyncMethod) Deserialize(data []byte) error {
	r := newMethodReader("basic.recover-async", data)
	m.Requeue = r.bit("requeue")
	return r.err
}

// BasicRecoverMethod represents the basic.recover method
type BasicRecoverMethod struct {
	Requeue bool
}

func (m *BasicRecoverMethod) ID() (uint16, uint16) { return ClassBasic, BasicRecover }

func (m *BasicRecoverMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.bit(m.Requeue)
	return w.bytes()
}

func (m *BasicRecoverMethod) Deserialize(data []byte) error {
	r := newMethodReader("basic.recover", data)
	m.Requeue = r.bit("requeue")
	return r.err
}

// BasicRecoverOKMethod represents the basic.recover-ok method
type BasicRecoverOKMethod struct{}

func (m *BasicRecoverOKMethod) ID() (uint16, uint16)   { return ClassBasic, BasicRecoverOK }
func (m *BasicRecoverOKMethod) Serialize() ([]byte, error) { return []byte{}, nil }
func (m *BasicRecoverOKMethod) Deserialize([]byte) error   { return nil }

// BasicNackMethod represents the basic.nack method (RabbitMQ extension)
type BasicNackMethod struct {
	DeliveryTag uint64
	Multiple    bool
	Requeue     bool
}

func (m *BasicNackMethod) ID() (uint16, uint16) { return ClassBasic, BasicNack }

func (m *BasicNackMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.longlong(m.DeliveryTag)
	w.bit(m.Multiple)
	w.bit(m.Requeue)
	return w.bytes()
}

func (m *BasicNackMethod) Deserialize(data []byte) error {
	r := newMethodReader("basic.nack", data)
	m.DeliveryTag = r.longlong("delivery-tag")
	m.Multiple = r.bit("multiple")
	m.Requeue = r.bit("requeue")
	return r.err
}

// ConfirmSelectMethod represents the confirm.select method
type ConfirmSelectMethod struct {
	NoWait bool
}

func (m *ConfirmSelectMethod) ID() (uint16, uint16) { return ClassConfirm, ConfirmSelect }

func (m *ConfirmSelectMethod) Serialize() ([]byte, error) {
	w := &methodWriter{}
	w.bit(m.NoWait)
	return w.bytes()
}

func (m *ConfirmSelectMethod) Deserialize(data []byte) error {
	r := newMethodReader("confirm.select", data)
	m.NoWait = r.bit("no-wait")
	return r.err
}

// ConfirmSelectOKMethod represents the confirm.select-ok method
type ConfirmSelectOKMethod struct{}

func (m *ConfirmSelectOKMethod) ID() (uint16, uint16)   { return ClassConfirm, ConfirmSelectOK }
func (m *ConfirmSelectOKMethod) Serialize() ([]byte, error) { return []byte{}, nil }
func (m *ConfirmSelectOKMethod) Deserialize([]byte) error   { return nil }

// Tx class methods carry no arguments.
type (
	TxSelectMethod     struct{}
	TxSelectOKMethod   struct{}
	TxCommitMethod     struct{}
	TxCommitOKMethod   struct{}
	TxRollbackMethod   struct{}
	TxRollbackOKMethod struct{}
)

func (m *TxSelectMethod) ID() (uint16, uint16)     { return ClassTx, TxSelect }
func (m *TxSelectOKMethod) ID() (uint16, uint16)   { return ClassTx, TxSelectOK }
func (m *TxCommitMethod) ID() (uint16, uint16)     { return ClassTx, TxCommit }
func (m *TxCommitOKMethod) ID() (uint16, uint16)   { return ClassTx, TxCommitOK }
func (m *TxRollbackMethod) ID() (uint16, uint16)   { return ClassTx, TxRollback }
func (m *TxRollbackOKMethod) ID() (uint16, uint16) { return ClassTx, TxRollbackOK }

func (m *TxSelectMethod) Serialize() ([]byte, error)     { return []byte{}, nil }
func (m *TxSelectOKMethod) Serialize() ([]byte, error)   { return []byte{}, nil }
func (m *TxCommitMethod) Serialize() ([]byte, error)     { return []byte{}, nil }
func (m *TxCommitOKMethod) Serialize() ([]byte, error)   { return []byte{}, nil }
func (m *TxRollbackMethod) Serialize() ([]byte, error)   { return []byte{}, nil }
func (m *TxRollbackOKMethod) Serialize() ([]byte, error) { return []byte{}, nil }

func (m *TxSelectMethod) Deserialize([]byte) error     { return nil }
func (m *TxSelectOKMethod) Deserialize([]byte) error   { return nil }
func (m *TxCommitMethod) Deserialize([]byte) error     { return nil }
func (m *TxCommitOKMethod) Deserialize([]byte) error   { return nil }
func (m *TxRollbackMethod) Deserialize([]byte) error   { return nil }
func (m *TxRollbackOKMethod) Deserialize([]byte) error { return nil }

// EncodeMethodFrameForChannel encodes a method into a method frame for a specific channel
func EncodeMethodFrameForChannel(channelID uint16, m Method) (*Frame, error) {
	payload, err := EncodeMethodPayload(m)
	if err != nil {
		return nil, err
	}
	return &Frame{
		Type:    FrameMethod,
		Channel: channelID,
		Size:    uint32(len(payload)),
		Payload: payload,
	}, nil
}

// EncodeBodyFrameForChannel encodes a content body into a body frame for a specific channel
func EncodeBodyFrameForChannel(channelID uint16, bodyData []byte) *Frame {
	return &Frame{
		Type:    FrameBody,
		Channel: channelID,
		Size:    uint32(len(bodyData)),
		Payload: bodyData,
	}
}

// SplitBody cuts body into chunks that fit in body frames of at most frameMax
// bytes. An empty body yields no chunks.
func SplitBody(body []byte, frameMax uint32) [][]byte {
	if len(body) == 0 {
		return nil
	}
	chunk := int(frameMax) - frameOverhead
	if frameMax == 0 || chunk <= 0 {
		chunk = DefaultFrameMax - frameOverhead
	}
	chunks := make([][]byte, 0, (len(body)+chunk-1)/chunk)
	for len(body) > 0 {
		n := chunk
		if n > len(body) {
			n = len(body)
		}
		chunks = append(chunks, body[:n])
		body = body[n:]
	}
	return chunks
}
