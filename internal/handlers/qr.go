// internal/handlers/qr.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/skip2/go-qrcode"
)

// qrSize is the edge length of invite codes in pixels.
const qrSize = 256

// InviteURL is the link encoded in a session's invite code.
func (gs *GameServer) InviteURL(gameID string) string {
	return strings.TrimRight(gs.PublicURL, "/") + "/games/" + gameID
}

// InviteQRHandler renders a PNG QR code pointing at the session so players can join by
// scanning the host's screen.
func InviteQRHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := gs.authenticate(w, r); !ok {
			return
		}
		g, ok := gs.loadGame(w, r)
		if !ok {
			return
		}
		png, err := qrcode.Encode(gs.InviteURL(g.ID.String()), qrcode.Medium, qrSize)
		if err != nil {
			gs.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		w.Write(png)
	}
}
