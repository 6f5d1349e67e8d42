// internal/handlers/helpers_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/manhunt/internal/auth"
	"github.com/jason-s-yu/manhunt/internal/channel"
	"github.com/jason-s-yu/manhunt/internal/game"
	"github.com/jason-s-yu/manhunt/internal/models"
	"github.com/jason-s-yu/manhunt/internal/store"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	t   *testing.T
	gs  *GameServer
	srv *httptest.Server
}

func newTestEnv(t *testing.T, opts ...func(*GameServer)) *testEnv {
	t.Helper()
	logger, _ := test.NewNullLogger()

	authn, err := auth.GenerateAuthenticator(time.Hour)
	require.NoError(t, err)

	repo := store.NewMemory()
	layer := channel.NewLayer(logger)
	gameStore := game.NewGameStore(repo, layer, game.DefaultSettings(), logger)
	gameStore.NewRand = func() *rand.Rand { return rand.New(rand.NewSource(7)) }

	gs := NewGameServer(gameStore, layer, repo, authn, logger)
	gs.PublicURL = "https://manhunt.example/"
	for _, opt := range opts {
		opt(gs)
	}
	srv := httptest.NewServer(Routes(gs))
	t.Cleanup(srv.Close)

	return &testEnv{t: t, gs: gs, srv: srv}
}

func newUser(name string) models.User {
	return models.User{ID: uuid.New(), Username: name}
}

func (e *testEnv) token(u models.User) string {
	e.t.Helper()
	tok, err := e.gs.Auth.CreateJWT(u)
	require.NoError(e.t, err)
	return tok
}

// do sends a JSON request as u. A zero user sends no credentials.
func (e *testEnv) do(method, path string, u models.User, body any) *http.Response {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(e.t, err)
	if u.ID != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+e.token(u))
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeResp[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// snapshot checks the status code and returns the snapshot body of a successful call.
func (e *testEnv) snapshot(resp *http.Response, status int) game.Snapshot {
	e.t.Helper()
	require.Equal(e.t, status, resp.StatusCode)
	return decodeResp[game.Snapshot](e.t, resp)
}

func (e *testEnv) requireError(resp *http.Response, status int, code string) {
	e.t.Helper()
	require.Equal(e.t, status, resp.StatusCode)
	body := decodeResp[errorBody](e.t, resp)
	require.Equal(e.t, code, body.Code)
}

// startedGame creates a game hosted by host with the given players, sets an area and
// starts it.
func (e *testEnv) startedGame(host models.User, others ...models.User) game.Snapshot {
	e.t.Helper()
	snap := e.snapshot(e.do(http.MethodPost, "/games", host, map[string]any{"kittyPerPlayer": 10}), http.StatusCreated)
	path := "/games/" + snap.ID.String()
	for _, u := range others {
		e.snapshot(e.do(http.MethodPost, path+"/join", u, nil), http.StatusOK)
	}
	e.snapshot(e.do(http.MethodPost, path+"/area", host, map[string]any{"latitude": 52.5, "longitude": 13.4, "radius": 500}), http.StatusOK)
	return e.snapshot(e.do(http.MethodPost, path+"/start", host, nil), http.StatusOK)
}

func (e *testEnv) dial(ctx context.Context, gameID uuid.UUID, u models.User, subprotocol string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/games/" + gameID.String() + "/ws"
	opts := &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Bearer " + e.token(u)}},
	}
	if subprotocol != "" {
		opts.Subprotocols = []string{subprotocol}
	}
	return websocket.Dial(ctx, url, opts)
}

func huntedOf(snap game.Snapshot) uuid.UUID {
	for _, p := range snap.Players {
		if p.Team == models.TeamHunted {
			return p.ID
		}
	}
	return uuid.Nil
}

func hunterOf(snap game.Snapshot) game.SnapshotPlayer {
	for _, p := range snap.Players {
		if p.Team.IsHunter() {
			return p
		}
	}
	return game.SnapshotPlayer{}
}
