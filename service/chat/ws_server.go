package chat

import (
	"net"
	"net/http"

	"SeqChat/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleWS upgrades the connection and runs the read loop. Only the read
// loop touches ReadMessage; writes go through WsConn.WriteFrame.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[HandleWS] upgrade websocket error: %v", err)
		return
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			logger.Infof("[HandleWS] close websocket error: %v", cerr)
		}
	}()

	rec := s.connMgr.Add(ws)
	defer s.connMgr.Remove(ws)

	if err := rec.WriteFrame(BuildConnectionAck(rec.SnowID, s.gatewayID)); err != nil {
		logger.Infof("[HandleWS] conn ack write error snowID=%s err=%v", rec.SnowID, err)
		return
	}

	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[WS] peer closed snowID=%s err=%v", rec.SnowID, rerr)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[WS] read timeout snowID=%s err=%v", rec.SnowID, rerr)
			} else {
				logger.Infof("[WS] read err snowID=%s err=%v", rec.SnowID, rerr)
			}
			break
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		msg, perr := ParseFrameJSON(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[WS] ParseFrameJSON err snowID=%s err=%v sample=%q", rec.SnowID, perr, sample)
			continue
		}

		if derr := s.disp.Dispatch(&Context{S: s}, msg, rec); derr != nil {
			logger.Infof("[WS] dispatch err snowID=%s type=%d err=%v", rec.SnowID, msg.Type, derr)
		}
	}
}
