package chat

import (
	"encoding/json"
	"time"

	"SeqChat/module/chat/model"
	errs "SeqChat/tools/errs"
)

type FrameType int32

const (
	FrameConn    FrameType = 1 // server -> client connection ack
	FramePing    FrameType = 2
	FramePong    FrameType = 3
	FrameAuth    FrameType = 4
	FrameData    FrameType = 5 // client -> server chat message
	FrameDeliver FrameType = 6 // server -> client ordered delivery
)

// Frame is the JSON envelope on the websocket. Payload is present on DATA
// and DELIVER frames; Meta carries small string fields (tokens, conn ids).
type Frame struct {
	Type    FrameType         `json:"type"`
	Ts      int64             `json:"ts,omitempty"`
	ConnID  string            `json:"conn_id,omitempty"`
	Payload *model.Message    `json:"payload,omitempty"`
	Batch   []*model.Message  `json:"batch,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

func ParseFrameJSON(raw []byte) (*Frame, error) {
	frame := &Frame{}
	if err := json.Unmarshal(raw, frame); err != nil {
		return nil, errs.Wrap(err, "unmarshal frame")
	}
	if frame.Type == 0 {
		return nil, errs.New("frame missing type")
	}
	return frame, nil
}

func (f *Frame) Marshal() ([]byte, error) {
	return json.Marshal(f)
}

// ---- server-built frames ----

func BuildConnectionAck(connID, gatewayID string) *Frame {
	return &Frame{
		Type:   FrameConn,
		Ts:     time.Now().UnixMilli(),
		ConnID: connID,
		Meta:   map[string]string{"gateway_id": gatewayID},
	}
}

func BuildPong() *Frame {
	return &Frame{Type: FramePong, Ts: time.Now().UnixMilli()}
}

func BuildDeliverFrame(conversationID, senderID string, batch []*model.Message) *Frame {
	return &Frame{
		Type:  FrameDeliver,
		Ts:    time.Now().UnixMilli(),
		Batch: batch,
		Meta: map[string]string{
			"conversation_id": conversationID,
			"sender_id":       senderID,
		},
	}
}
