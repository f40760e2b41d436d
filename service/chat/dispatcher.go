package chat

import (
	errs "SeqChat/tools/errs"
)

type Handler interface {
	Type() FrameType
	Handle(*Context, *Frame, *WsConn) error
}

// Context hands the owning server to handlers.
type Context struct {
	S *Server
}

type Dispatcher struct {
	handlers map[FrameType]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[FrameType]Handler)}
}

func (d *Dispatcher) Register(h Handler) { d.handlers[h.Type()] = h }

func (d *Dispatcher) Dispatch(ctx *Context, f *Frame, conn *WsConn) error {
	h, ok := d.handlers[f.Type]
	if !ok {
		return errs.New("no handler for type=%d", f.Type)
	}
	return h.Handle(ctx, f, conn)
}

func (d *Dispatcher) GetHandler(t FrameType) Handler {
	return d.handlers[t]
}
