package handler

import (
	"SeqChat/service/chat"
)

type PingHandler struct{}

func NewPingHandler() chat.Handler { return &PingHandler{} }

func (h *PingHandler) Type() chat.FrameType { return chat.FramePing }

func (h *PingHandler) Handle(_ *chat.Context, _ *chat.Frame, conn *chat.WsConn) error {
	return conn.WriteFrame(chat.BuildPong())
}
