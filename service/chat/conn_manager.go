package chat

import (
	"sync"
	"time"

	"SeqChat/tools/ids"

	"github.com/gorilla/websocket"
)

// WsConn wraps one websocket with its gateway-side identity. Writes to a
// gorilla conn must be serialized; writeMu does that per connection.
type WsConn struct {
	SnowID    string
	UserID    string
	Conn      *websocket.Conn
	CreatedAt time.Time

	writeMu sync.Mutex
}

// WriteFrame marshals and sends one frame, serialized per connection.
func (c *WsConn) WriteFrame(f *Frame) error {
	data, err := f.Marshal()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

// ConnManager indexes live connections by snow id and by raw socket.
type ConnManager struct {
	mu     sync.RWMutex
	bySnow map[string]*WsConn
	byConn map[*websocket.Conn]*WsConn
	gwID   string
}

func NewConnManager(gwID string) *ConnManager {
	return &ConnManager{
		bySnow: make(map[string]*WsConn),
		byConn: make(map[*websocket.Conn]*WsConn),
		gwID:   gwID,
	}
}

func (m *ConnManager) GwID() string { return m.gwID }

// Add registers a raw socket and assigns it a snow id.
func (m *ConnManager) Add(ws *websocket.Conn) *WsConn {
	rec := &WsConn{
		SnowID:    ids.GenerateString(),
		Conn:      ws,
		CreatedAt: time.Now(),
	}
	m.mu.Lock()
	m.bySnow[rec.SnowID] = rec
	m.byConn[ws] = rec
	m.mu.Unlock()
	return rec
}

func (m *ConnManager) GetClient(ws *websocket.Conn) *WsConn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byConn[ws]
}

func (m *ConnManager) GetBySnowID(snowID string) *WsConn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bySnow[snowID]
}

// Bind attaches a user id after auth.
func (m *ConnManager) Bind(ws *websocket.Conn, userID string) {
	m.mu.Lock()
	if rec := m.byConn[ws]; rec != nil {
		rec.UserID = userID
	}
	m.mu.Unlock()
}

func (m *ConnManager) Remove(ws *websocket.Conn) {
	m.mu.Lock()
	if rec := m.byConn[ws]; rec != nil {
		delete(m.bySnow, rec.SnowID)
		delete(m.byConn, ws)
	}
	m.mu.Unlock()
}

func (m *ConnManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byConn)
}

// Close drops every connection.
func (m *ConnManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ws := range m.byConn {
		_ = ws.Close()
	}
	m.bySnow = make(map[string]*WsConn)
	m.byConn = make(map[*websocket.Conn]*WsConn)
}
