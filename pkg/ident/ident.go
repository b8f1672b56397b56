// Package ident generates the identifiers used across the node.
package ident

import "github.com/google/uuid"

func NewGameID() string {
	return uuid.NewString()
}

func NewPlayerID() string {
	return uuid.NewString()
}

func NewConnectionID() string {
	return uuid.NewString()
}
