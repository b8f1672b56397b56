package websocket

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// Conn wraps a websocket connection behind the entity.ClientConn interface.
// The mutex keeps writes single-threaded, which gorilla requires.
type Conn struct {
	id string

	mu sync.Mutex
	ws *websocket.Conn
}

func newConn(id string, ws *websocket.Conn) *Conn {
	return &Conn{
		id: id,
		ws: ws,
	}
}

func (that *Conn) ID() string {
	return that.id
}

func (that *Conn) Send(message any) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.ws.WriteJSON(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}
