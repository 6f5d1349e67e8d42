// internal/handlers/game_server.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/manhunt/internal/auth"
	"github.com/jason-s-yu/manhunt/internal/channel"
	"github.com/jason-s-yu/manhunt/internal/game"
	"github.com/sirupsen/logrus"
)

// WSOptions tune each websocket connection.
type WSOptions struct {
	SendBuffer int
	RatePerSec float64
	RateBurst  int
}

// GameServer holds everything the HTTP and websocket handlers need.
type GameServer struct {
	GameStore *game.GameStore
	Layer     *channel.Layer
	Repo      game.Repository
	Auth      *auth.Authenticator
	Logger    *logrus.Logger

	// PublicURL is the externally visible base URL used in invite links.
	PublicURL string
	WS        WSOptions
}

func NewGameServer(store *game.GameStore, layer *channel.Layer, repo game.Repository, authn *auth.Authenticator, logger *logrus.Logger) *GameServer {
	return &GameServer{
		GameStore: store,
		Layer:     layer,
		Repo:      repo,
		Auth:      authn,
		Logger:    logger,
		PublicURL: "http://localhost:8080",
		WS: WSOptions{
			SendBuffer: channel.DefaultSendBuffer,
			RatePerSec: 5,
			RateBurst:  10,
		},
	}
}

// Routes registers every endpoint on a new mux.
func Routes(gs *GameServer) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /games", CreateGameHandler(gs))
	mux.HandleFunc("GET /games/{id}", GetGameHandler(gs))
	mux.HandleFunc("DELETE /games/{id}", DeleteGameHandler(gs))
	mux.HandleFunc("POST /games/{id}/join", JoinGameHandler(gs))
	mux.HandleFunc("POST /games/{id}/area", SetAreaHandler(gs))
	mux.HandleFunc("POST /games/{id}/kitty", SetKittyHandler(gs))
	mux.HandleFunc("POST /games/{id}/kitty/subtract", SubtractKittyHandler(gs))
	mux.HandleFunc("POST /games/{id}/start", StartGameHandler(gs))
	mux.HandleFunc("POST /games/{id}/end", EndGameHandler(gs))
	mux.HandleFunc("GET /games/{id}/chat", ListChatHandler(gs))
	mux.HandleFunc("GET /games/{id}/hints", ListHintsHandler(gs))
	mux.HandleFunc("GET /games/{id}/qr", InviteQRHandler(gs))
	mux.HandleFunc("GET /games/{id}/ws", GameWSHandler(gs))

	return mux
}
