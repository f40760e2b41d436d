package model

import "time"

const (
	MsgTableName       = "message"    // committed messages
	SenderSeqTableName = "sender_seq" // per-(conversation, sender) watermark
)

// message collection fields
const (
	MsgFieldServerMsgID    = "server_msg_id"
	MsgFieldConversationID = "conversation_id"
	MsgFieldSenderID       = "sender_id"
	MsgFieldSeq            = "seq"
	MsgFieldContent        = "content"
	MsgFieldCreateTime     = "create_time"
)

// sender_seq collection fields
const (
	SenderSeqFieldConversationID = "conversation_id"
	SenderSeqFieldSenderID       = "sender_id"
	SenderSeqFieldMaxSeq         = "max_seq"
	SenderSeqFieldUpdateTime     = "update_time"
)

// Message is one chat message as carried on the wire and committed to
// storage. Seq is the sender-scoped causal sequence number; a nil Seq
// means the sender did not request ordering for this message.
type Message struct {
	ID             string `bson:"server_msg_id" json:"id"`
	ConversationID string `bson:"conversation_id" json:"conversation_id"`
	SenderID       string `bson:"sender_id" json:"sender_id"`
	Content        string `bson:"content" json:"content"`
	Seq            *int64 `bson:"seq,omitempty" json:"sequence_number,omitempty"`
	CreateTime     int64  `bson:"create_time" json:"created_at"` // Unix ms
}

func (*Message) TableName() string { return MsgTableName }

// Ordered reports whether the sender asked for causal ordering.
func (m *Message) Ordered() bool { return m != nil && m.Seq != nil }

// SeqValue returns the sequence number, 0 when absent.
func (m *Message) SeqValue() int64 {
	if m == nil || m.Seq == nil {
		return 0
	}
	return *m.Seq
}

// WithSeq is a test/builder helper attaching a sequence number.
func (m Message) WithSeq(seq int64) *Message {
	m.Seq = &seq
	return &m
}

// SenderSeq is the durable watermark row the cold-start reconciler reads:
// the highest sequence ever committed for one sender in one conversation.
type SenderSeq struct {
	ConversationID string    `bson:"conversation_id"`
	SenderID       string    `bson:"sender_id"`
	MaxSeq         int64     `bson:"max_seq"`
	UpdateTime     time.Time `bson:"update_time"`
}

func (*SenderSeq) TableName() string { return SenderSeqTableName }
