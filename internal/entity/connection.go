package entity

import "time"

// Connection is the transient per-socket record, created on accept and
// dropped on close.
type Connection struct {
	Socket      ClientConn
	PlayerID    string
	GameID      string
	ConnectedAt time.Time
}
