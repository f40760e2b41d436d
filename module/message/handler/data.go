package handler

import (
	"time"

	"SeqChat/service/chat"
	errs "SeqChat/tools/errs"
	"SeqChat/tools/ids"
)

// DataHandler is the inbound message path: frame -> ordering engine ->
// delivery pipeline. An empty Submit result means the message was
// buffered behind a gap or dropped as stale; neither is an error.
type DataHandler struct{}

func NewDataHandler() chat.Handler { return &DataHandler{} }

func (h *DataHandler) Type() chat.FrameType { return chat.FrameData }

func (h *DataHandler) Handle(ctx *chat.Context, f *chat.Frame, conn *chat.WsConn) error {
	msg := f.Payload
	if msg == nil {
		return errs.New("data frame missing payload")
	}
	if msg.ConversationID == "" || msg.SenderID == "" {
		return errs.New("data frame missing conversation_id/sender_id")
	}
	if msg.ID == "" {
		msg.ID = ids.GenerateString()
	}
	if msg.CreateTime == 0 {
		msg.CreateTime = time.Now().UnixMilli()
	}

	batch := ctx.S.Engine().Submit(msg)
	if len(batch) == 0 {
		return nil
	}

	if d := ctx.S.Delivery(); d != nil {
		d.Flush(msg.ConversationID, msg.SenderID, batch)
	}

	// echo the release back so the sender sees its messages surfacing
	return conn.WriteFrame(chat.BuildDeliverFrame(msg.ConversationID, msg.SenderID, batch))
}
