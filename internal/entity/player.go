package entity

// ClientConn is the handle to a live client socket. Only connections accepted
// by this node carry a usable handle; mirrored players have none.
type ClientConn interface {
	ID() string
	Send(message any) error
}

type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol,omitempty"`
	NodeID string `json:"node_id,omitempty"`

	Conn ClientConn `json:"-"`
}
