package handler

import (
	"time"

	"SeqChat/service/chat"
	errs "SeqChat/tools/errs"
)

// AuthHandler binds a user id to the connection. Token verification lives
// in the external auth service; the gateway only records the identity it
// is handed and acks the session.
type AuthHandler struct{}

func NewAuthHandler() chat.Handler { return &AuthHandler{} }

func (h *AuthHandler) Type() chat.FrameType { return chat.FrameAuth }

func (h *AuthHandler) Handle(ctx *chat.Context, f *chat.Frame, conn *chat.WsConn) error {
	userID := f.Meta["user_id"]
	if userID == "" {
		return errs.New("auth frame missing user_id")
	}
	ctx.S.ConnMgr().Bind(conn.Conn, userID)

	return conn.WriteFrame(&chat.Frame{
		Type:   chat.FrameAuth,
		Ts:     time.Now().UnixMilli(),
		ConnID: conn.SnowID,
		Meta:   map[string]string{"ok": "true", "user_id": userID},
	})
}
