package chat

import (
	"SeqChat/module/chat/order"

	"github.com/gin-gonic/gin"
)

// Server ties the gateway together: websocket connections in, the
// ordering engine in the middle, the delivery pipeline out.
type Server struct {
	gatewayID string
	engine    *order.Engine
	disp      *Dispatcher
	connMgr   *ConnManager
	delivery  *Delivery
}

func NewServer(gatewayID string, engine *order.Engine, delivery *Delivery) *Server {
	return &Server{
		gatewayID: gatewayID,
		engine:    engine,
		disp:      NewDispatcher(),
		connMgr:   NewConnManager(gatewayID),
		delivery:  delivery,
	}
}

func (s *Server) GatewayID() string     { return s.gatewayID }
func (s *Server) Engine() *order.Engine { return s.engine }
func (s *Server) Disp() *Dispatcher     { return s.disp }
func (s *Server) ConnMgr() *ConnManager { return s.connMgr }
func (s *Server) Delivery() *Delivery   { return s.delivery }

// Routes mounts the websocket endpoint.
func (s *Server) Routes(r *gin.Engine) {
	r.GET("/ws", s.HandleWS)
}

// Shutdown closes connections and the ordering engine; idempotent.
func (s *Server) Shutdown() {
	s.connMgr.Close()
	if s.engine != nil {
		s.engine.Destroy()
	}
}
