package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/pokerdice/internal/auth"
	"github.com/jason-s-yu/pokerdice/internal/dice"
	"github.com/jason-s-yu/pokerdice/internal/events"
	"github.com/jason-s-yu/pokerdice/internal/game"
	"github.com/jason-s-yu/pokerdice/internal/models"
	"github.com/jason-s-yu/pokerdice/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// acesSource always lands on the highest face.
type acesSource struct{}

func (acesSource) Intn(n int) int { return n - 1 }

type testServer struct {
	*httptest.Server
	mem      *store.Memory
	registry *events.Registry
	lobby    models.Lobby
	players  []uuid.UUID
	tokens   map[uuid.UUID]string
}

func newTestServer(t *testing.T, rounds int) *testServer {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	sessions, err := auth.New(time.Hour)
	require.NoError(t, err)

	ts := &testServer{
		mem:      store.NewMemory(),
		registry: events.NewRegistry(logger, time.Minute),
		tokens:   make(map[uuid.UUID]string),
	}
	for range 2 {
		id := uuid.New()
		ts.players = append(ts.players, id)
		tok, err := sessions.CreateJWT(id)
		require.NoError(t, err)
		ts.tokens[id] = tok
	}
	ts.lobby = models.Lobby{
		ID:         uuid.New(),
		HostID:     ts.players[0],
		Name:       "table",
		MinPlayers: 2,
		MaxPlayers: 4,
		RoundCount: rounds,
		Bet:        10,
	}
	ts.mem.AddLobby(ts.lobby)
	for i, id := range ts.players {
		ts.mem.AddPlayer(models.Player{
			ID:       id,
			Username: []string{"host", "guest"}[i],
			Credit:   100,
			LobbyID:  uuid.NullUUID{UUID: ts.lobby.ID, Valid: true},
		})
	}

	svc := game.NewService(ts.mem, dice.NewRoller(acesSource{}), ts.registry, logger)
	ts.Server = httptest.NewServer(NewRouter(&API{
		Games:          svc,
		Registry:       ts.registry,
		Sessions:       sessions,
		Logger:         logger,
		AllowedOrigins: []string{"http://*"},
	}))
	t.Cleanup(func() {
		ts.registry.Close()
		ts.Close()
	})
	return ts
}

// do sends a request as player and decodes the JSON response into out when non-nil.
func (ts *testServer) do(t *testing.T, player uuid.UUID, method, path, body string, out any) int {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	if player != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+ts.tokens[player])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthzNeedsNoAuth(t *testing.T) {
	ts := newTestServer(t, 1)
	assert.Equal(t, http.StatusOK, ts.do(t, uuid.Nil, http.MethodGet, "/healthz", "", nil))
}

func TestRoutesRequireSession(t *testing.T) {
	ts := newTestServer(t, 1)
	var body errorBody
	status := ts.do(t, uuid.Nil, http.MethodPost, "/lobbies/"+ts.lobby.ID.String()+"/game", "", &body)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", body.Error)
}

func TestGameFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t, 1)
	host, guest := ts.players[0], ts.players[1]
	lobbyPath := "/lobbies/" + ts.lobby.ID.String()

	var errResp errorBody
	status := ts.do(t, guest, http.MethodPost, lobbyPath+"/game", "", &errResp)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "not_the_host", errResp.Error)

	var created struct {
		GameID uuid.UUID `json:"gameId"`
	}
	require.Equal(t, http.StatusCreated, ts.do(t, host, http.MethodPost, lobbyPath+"/game", "", &created))
	require.NotEqual(t, uuid.Nil, created.GameID)
	gamePath := "/games/" + created.GameID.String()

	var turn struct {
		PlayerID uuid.UUID `json:"playerId"`
	}
	require.Equal(t, http.StatusOK, ts.do(t, guest, http.MethodGet, gamePath+"/turn", "", &turn))
	assert.Equal(t, host, turn.PlayerID)

	errResp = errorBody{}
	assert.Equal(t, http.StatusForbidden, ts.do(t, guest, http.MethodPost, lobbyPath+"/roll", "", &errResp))
	assert.Equal(t, "not_your_turn", errResp.Error)

	var rolled struct {
		Dice dice.Hand `json:"dice"`
	}
	require.Equal(t, http.StatusOK, ts.do(t, host, http.MethodPost, lobbyPath+"/roll", "", &rolled))
	assert.Equal(t, dice.Hand{dice.Ace, dice.Ace, dice.Ace, dice.Ace, dice.Ace}, rolled.Dice)

	errResp = errorBody{}
	assert.Equal(t, http.StatusBadRequest, ts.do(t, host, http.MethodPost, lobbyPath+"/reroll", "{", &errResp))
	assert.Equal(t, "bad_request", errResp.Error)

	errResp = errorBody{}
	assert.Equal(t, http.StatusBadRequest, ts.do(t, host, http.MethodPost, lobbyPath+"/reroll", `{"indices":[7]}`, &errResp))
	assert.Equal(t, "invalid_index", errResp.Error)

	var rr game.RollResult
	require.Equal(t, http.StatusOK, ts.do(t, host, http.MethodPost, lobbyPath+"/reroll", `{"indices":[0,1]}`, &rr))
	assert.Equal(t, 2, rr.RollCount)
	assert.False(t, rr.Done)

	var out game.TurnOutcome
	require.Equal(t, http.StatusOK, ts.do(t, host, http.MethodPost, gamePath+"/end-turn", "", &out))
	require.NotNil(t, out.NextPlayer)
	assert.Equal(t, guest, *out.NextPlayer)

	require.Equal(t, http.StatusOK, ts.do(t, guest, http.MethodPost, lobbyPath+"/roll", "", nil))
	out = game.TurnOutcome{}
	require.Equal(t, http.StatusOK, ts.do(t, guest, http.MethodPost, gamePath+"/end-turn", "", &out))
	assert.True(t, out.GameOver)
	assert.ElementsMatch(t, []uuid.UUID{host, guest}, out.RoundWinners)

	var st game.GameState
	require.Equal(t, http.StatusOK, ts.do(t, host, http.MethodGet, gamePath, "", &st))
	assert.Equal(t, models.GameClosed, st.Game.Status)
	assert.Len(t, st.History, 1)

	var hist struct {
		Rounds []*models.Round `json:"rounds"`
	}
	require.Equal(t, http.StatusOK, ts.do(t, host, http.MethodGet, gamePath+"/rounds", "", &hist))
	assert.Len(t, hist.Rounds, 1)

	errResp = errorBody{}
	assert.Equal(t, http.StatusConflict, ts.do(t, host, http.MethodPost, gamePath+"/end", "", &errResp))
	assert.Equal(t, "game_already_closed", errResp.Error)
}

func TestEndGameOverHTTP(t *testing.T) {
	ts := newTestServer(t, 3)
	host, guest := ts.players[0], ts.players[1]

	var created struct {
		GameID uuid.UUID `json:"gameId"`
	}
	require.Equal(t, http.StatusCreated, ts.do(t, host, http.MethodPost, "/lobbies/"+ts.lobby.ID.String()+"/game", "", &created))
	gamePath := "/games/" + created.GameID.String()

	var errResp errorBody
	assert.Equal(t, http.StatusForbidden, ts.do(t, guest, http.MethodPost, gamePath+"/end", "", &errResp))
	assert.Equal(t, "you_are_not_host", errResp.Error)

	assert.Equal(t, http.StatusNoContent, ts.do(t, host, http.MethodPost, gamePath+"/end", "", nil))
	p, ok := ts.mem.Player(guest)
	require.True(t, ok)
	assert.Equal(t, int64(100), p.Credit, "open round is refunded")
}

func TestBadIdentifiers(t *testing.T) {
	ts := newTestServer(t, 1)
	host := ts.players[0]

	var errResp errorBody
	assert.Equal(t, http.StatusBadRequest, ts.do(t, host, http.MethodGet, "/games/not-a-uuid/turn", "", &errResp))
	assert.Equal(t, "bad_request", errResp.Error)

	errResp = errorBody{}
	assert.Equal(t, http.StatusNotFound, ts.do(t, host, http.MethodGet, "/games/"+uuid.NewString(), "", &errResp))
	assert.Equal(t, "game_not_found", errResp.Error)

	errResp = errorBody{}
	assert.Equal(t, http.StatusNotFound, ts.do(t, host, http.MethodPost, "/lobbies/"+uuid.NewString()+"/game", "", &errResp))
	assert.Equal(t, "lobby_not_found", errResp.Error)
}

func (ts *testServer) dial(t *testing.T, player uuid.UUID, subprotocols ...string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/events/ws", &websocket.DialOptions{
		Subprotocols: subprotocols,
		HTTPHeader:   http.Header{"Authorization": []string{"Bearer " + ts.tokens[player]}},
	})
	require.NoError(t, err)
	return c
}

func readEvent(t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	var ev map[string]any
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestEventsWebsocketReceivesGameEvents(t *testing.T) {
	ts := newTestServer(t, 1)
	host, guest := ts.players[0], ts.players[1]

	c := ts.dial(t, guest, eventsSubprotocol)
	defer c.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return ts.registry.Registered(guest) }, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusCreated, ts.do(t, host, http.MethodPost, "/lobbies/"+ts.lobby.ID.String()+"/game", "", nil))

	ev := readEvent(t, c)
	assert.Equal(t, "message", ev["kind"])
	assert.Equal(t, string(game.EventGameStarted), ev["type"])
	assert.EqualValues(t, 1, ev["id"])

	ev = readEvent(t, c)
	assert.Equal(t, string(game.EventRoundStarted), ev["type"])
	assert.EqualValues(t, 2, ev["id"])
}

func TestEventsWebsocketUnregistersOnClose(t *testing.T) {
	ts := newTestServer(t, 1)
	guest := ts.players[1]

	c := ts.dial(t, guest, eventsSubprotocol)
	require.Eventually(t, func() bool { return ts.registry.Registered(guest) }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Close(websocket.StatusNormalClosure, "bye"))
	require.Eventually(t, func() bool { return !ts.registry.Registered(guest) }, 2*time.Second, 10*time.Millisecond)
}

func TestEventsWebsocketRejectsWrongSubprotocol(t *testing.T) {
	ts := newTestServer(t, 1)
	c := ts.dial(t, ts.players[0])
	defer c.CloseNow()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := c.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusCode(BadSubprotocolError), websocket.CloseStatus(err))
	assert.False(t, ts.registry.Registered(ts.players[0]))
}

func TestOriginHosts(t *testing.T) {
	assert.Equal(t, []string{"*", "dice.example", "localhost:3000"},
		originHosts([]string{"https://*", "dice.example", "http://localhost:3000"}))
}
