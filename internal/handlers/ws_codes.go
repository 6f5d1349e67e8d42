// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the game handler.
const (
	BadSubprotocolError     websocket.StatusCode = 3000 // Client negotiated a subprotocol the server cannot encode.
	ReplacedConnectionError websocket.StatusCode = 4001 // The same player opened a newer connection to the game.
)
