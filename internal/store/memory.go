// internal/store/memory.go
package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pokerdice/internal/models"
)

// Memory is an in-process Store. Each Atomic call works on a copy of the state that
// replaces the live state only if the callback succeeds. Transactions are serialized.
type Memory struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	players map[uuid.UUID]*models.Player
	lobbies map[uuid.UUID]*models.Lobby
	members map[uuid.UUID][]uuid.UUID // lobbyID -> player ids in join order
	games   map[uuid.UUID]*models.Game
	rounds  map[uuid.UUID]*models.Round
	turns   map[uuid.UUID]*models.Turn

	roundOrder map[uuid.UUID][]uuid.UUID // gameID -> round ids
	turnOrder  map[uuid.UUID][]uuid.UUID // roundID -> turn ids
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{state: newMemState()}
}

func newMemState() *memState {
	return &memState{
		players:    make(map[uuid.UUID]*models.Player),
		lobbies:    make(map[uuid.UUID]*models.Lobby),
		members:    make(map[uuid.UUID][]uuid.UUID),
		games:      make(map[uuid.UUID]*models.Game),
		rounds:     make(map[uuid.UUID]*models.Round),
		turns:      make(map[uuid.UUID]*models.Turn),
		roundOrder: make(map[uuid.UUID][]uuid.UUID),
		turnOrder:  make(map[uuid.UUID][]uuid.UUID),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.players {
		p := *v
		c.players[k] = &p
	}
	for k, v := range s.lobbies {
		l := *v
		c.lobbies[k] = &l
	}
	for k, v := range s.members {
		c.members[k] = slices.Clone(v)
	}
	for k, v := range s.games {
		c.games[k] = v.Clone()
	}
	for k, v := range s.rounds {
		c.rounds[k] = v.Clone()
	}
	for k, v := range s.turns {
		c.turns[k] = v.Clone()
	}
	for k, v := range s.roundOrder {
		c.roundOrder[k] = slices.Clone(v)
	}
	for k, v := range s.turnOrder {
		c.turnOrder[k] = slices.Clone(v)
	}
	return c
}

// Atomic implements Store.
func (m *Memory) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.state.clone()
	if err := fn(&memTx{s: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

// AddLobby seeds a lobby.
func (m *Memory) AddLobby(l models.Lobby) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.lobbies[l.ID] = &l
}

// AddPlayer seeds a player; a valid LobbyID also appends them to that lobby's roster.
func (m *Memory) AddPlayer(p models.Player) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.players[p.ID] = &p
	if p.LobbyID.Valid {
		m.state.members[p.LobbyID.UUID] = append(m.state.members[p.LobbyID.UUID], p.ID)
	}
}

// Player returns a copy of the player, for inspection.
func (m *Memory) Player(id uuid.UUID) (models.Player, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.players[id]
	if !ok {
		return models.Player{}, false
	}
	return *p, true
}

// Lobby returns a copy of the lobby, for inspection.
func (m *Memory) Lobby(id uuid.UUID) (models.Lobby, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.state.lobbies[id]
	if !ok {
		return models.Lobby{}, false
	}
	return *l, true
}

type memTx struct {
	s *memState
}

func (tx *memTx) player(id uuid.UUID) (*models.Player, error) {
	p, ok := tx.s.players[id]
	if !ok {
		return nil, fmt.Errorf("player %s: %w", id, ErrNotFound)
	}
	return p, nil
}

func (tx *memTx) GetPlayer(_ context.Context, id uuid.UUID) (*models.Player, error) {
	p, err := tx.player(id)
	if err != nil {
		return nil, err
	}
	c := *p
	return &c, nil
}

func (tx *memTx) GetCredit(_ context.Context, id uuid.UUID) (int64, error) {
	p, err := tx.player(id)
	if err != nil {
		return 0, err
	}
	return p.Credit, nil
}

func (tx *memTx) DebitCredit(_ context.Context, id uuid.UUID, amount int64) (bool, error) {
	p, err := tx.player(id)
	if err != nil {
		return false, err
	}
	if p.Credit < amount {
		return false, nil
	}
	p.Credit -= amount
	return true, nil
}

func (tx *memTx) CreditCredit(_ context.Context, id uuid.UUID, amount int64) error {
	p, err := tx.player(id)
	if err != nil {
		return err
	}
	p.Credit += amount
	return nil
}

func (tx *memTx) RosterForLobby(_ context.Context, lobbyID uuid.UUID) ([]uuid.UUID, error) {
	if _, ok := tx.s.lobbies[lobbyID]; !ok {
		return nil, fmt.Errorf("lobby %s: %w", lobbyID, ErrNotFound)
	}
	return slices.Clone(tx.s.members[lobbyID]), nil
}

func (tx *memTx) RemoveFromLobby(_ context.Context, id uuid.UUID) error {
	p, err := tx.player(id)
	if err != nil {
		return err
	}
	if !p.LobbyID.Valid {
		return nil
	}
	lobbyID := p.LobbyID.UUID
	tx.s.members[lobbyID] = slices.DeleteFunc(tx.s.members[lobbyID], func(m uuid.UUID) bool { return m == id })
	p.LobbyID = uuid.NullUUID{}
	return nil
}

func (tx *memTx) IncrementWins(_ context.Context, id uuid.UUID) error {
	p, err := tx.player(id)
	if err != nil {
		return err
	}
	p.WinCounter++
	return nil
}

func (tx *memTx) GetLobby(_ context.Context, id uuid.UUID) (*models.Lobby, error) {
	l, ok := tx.s.lobbies[id]
	if !ok {
		return nil, fmt.Errorf("lobby %s: %w", id, ErrNotFound)
	}
	c := *l
	return &c, nil
}

func (tx *memTx) SetLobbyRunning(_ context.Context, id uuid.UUID, running bool) error {
	l, ok := tx.s.lobbies[id]
	if !ok {
		return fmt.Errorf("lobby %s: %w", id, ErrNotFound)
	}
	l.IsRunning = running
	return nil
}

func (tx *memTx) DeleteLobby(_ context.Context, id uuid.UUID) error {
	if _, ok := tx.s.lobbies[id]; !ok {
		return fmt.Errorf("lobby %s: %w", id, ErrNotFound)
	}
	for _, pid := range tx.s.members[id] {
		if p, ok := tx.s.players[pid]; ok {
			p.LobbyID = uuid.NullUUID{}
		}
	}
	delete(tx.s.members, id)
	delete(tx.s.lobbies, id)
	return nil
}

func (tx *memTx) InsertGame(_ context.Context, g *models.Game) error {
	if _, exists := tx.s.games[g.ID]; exists {
		return fmt.Errorf("game %s already exists", g.ID)
	}
	if g.Status == models.GameRunning {
		for _, other := range tx.s.games {
			if other.LobbyID == g.LobbyID && other.Status == models.GameRunning {
				return fmt.Errorf("lobby %s already has running game %s", g.LobbyID, other.ID)
			}
		}
	}
	tx.s.games[g.ID] = g.Clone()
	return nil
}

func (tx *memTx) UpdateGame(_ context.Context, g *models.Game) error {
	if _, ok := tx.s.games[g.ID]; !ok {
		return fmt.Errorf("game %s: %w", g.ID, ErrNotFound)
	}
	tx.s.games[g.ID] = g.Clone()
	return nil
}

func (tx *memTx) GetGame(_ context.Context, id uuid.UUID) (*models.Game, error) {
	g, ok := tx.s.games[id]
	if !ok {
		return nil, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	return g.Clone(), nil
}

func (tx *memTx) RunningGameForLobby(_ context.Context, lobbyID uuid.UUID) (*models.Game, error) {
	for _, g := range tx.s.games {
		if g.LobbyID == lobbyID && g.Status == models.GameRunning {
			return g.Clone(), nil
		}
	}
	return nil, fmt.Errorf("running game for lobby %s: %w", lobbyID, ErrNotFound)
}

func (tx *memTx) InsertRound(_ context.Context, r *models.Round) error {
	if _, ok := tx.s.games[r.GameID]; !ok {
		return fmt.Errorf("game %s: %w", r.GameID, ErrNotFound)
	}
	tx.s.rounds[r.ID] = r.Clone()
	tx.s.roundOrder[r.GameID] = append(tx.s.roundOrder[r.GameID], r.ID)
	return nil
}

func (tx *memTx) UpdateRound(_ context.Context, r *models.Round) error {
	if _, ok := tx.s.rounds[r.ID]; !ok {
		return fmt.Errorf("round %s: %w", r.ID, ErrNotFound)
	}
	tx.s.rounds[r.ID] = r.Clone()
	return nil
}

func (tx *memTx) OpenRound(_ context.Context, gameID uuid.UUID) (*models.Round, error) {
	for _, id := range tx.s.roundOrder[gameID] {
		if r := tx.s.rounds[id]; !r.IsOver {
			return r.Clone(), nil
		}
	}
	return nil, fmt.Errorf("open round for game %s: %w", gameID, ErrNotFound)
}

func (tx *memTx) ListRounds(_ context.Context, gameID uuid.UUID) ([]*models.Round, error) {
	ids := tx.s.roundOrder[gameID]
	out := make([]*models.Round, 0, len(ids))
	for _, id := range ids {
		out = append(out, tx.s.rounds[id].Clone())
	}
	return out, nil
}

func (tx *memTx) InsertTurn(_ context.Context, t *models.Turn) error {
	if _, ok := tx.s.rounds[t.RoundID]; !ok {
		return fmt.Errorf("round %s: %w", t.RoundID, ErrNotFound)
	}
	tx.s.turns[t.ID] = t.Clone()
	tx.s.turnOrder[t.RoundID] = append(tx.s.turnOrder[t.RoundID], t.ID)
	return nil
}

func (tx *memTx) UpdateTurn(_ context.Context, t *models.Turn) error {
	if _, ok := tx.s.turns[t.ID]; !ok {
		return fmt.Errorf("turn %s: %w", t.ID, ErrNotFound)
	}
	tx.s.turns[t.ID] = t.Clone()
	return nil
}

func (tx *memTx) GetTurn(_ context.Context, id uuid.UUID) (*models.Turn, error) {
	t, ok := tx.s.turns[id]
	if !ok {
		return nil, fmt.Errorf("turn %s: %w", id, ErrNotFound)
	}
	return t.Clone(), nil
}

func (tx *memTx) ListTurns(_ context.Context, roundID uuid.UUID) ([]*models.Turn, error) {
	ids := tx.s.turnOrder[roundID]
	out := make([]*models.Turn, 0, len(ids))
	for _, id := range ids {
		out = append(out, tx.s.turns[id].Clone())
	}
	return out, nil
}
