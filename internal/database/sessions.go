// internal/database/sessions.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/manhunt/internal/game"
	"github.com/jason-s-yu/manhunt/internal/geo"
	"github.com/jason-s-yu/manhunt/internal/models"
	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"
)

// foreignKeyViolation is the Postgres error code raised when a row references a
// session that does not exist.
const foreignKeyViolation = "23503"

// SessionRepo is the Postgres game.Repository.
type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

var _ game.Repository = (*SessionRepo)(nil)

// SaveSession upserts the session row and its roster in one transaction.
func (r *SessionRepo) SaveSession(ctx context.Context, st *game.State) error {
	area, err := marshalArea(st.Area)
	if err != nil {
		return err
	}
	startArea, err := marshalArea(st.StartArea)
	if err != nil {
		return err
	}

	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO game_sessions (
				id, status, host_id, host_username, hunted_id, area, start_area, area_set,
				kitty_per_player, total_kitty, finish_reason, winner,
				created_at, started_at, finished_at, next_area_reduction, action_index
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10::numeric, $11, $12, $13, $14, $15, $16, $17)
			ON CONFLICT (id) DO UPDATE SET
				status = EXCLUDED.status,
				hunted_id = EXCLUDED.hunted_id,
				area = EXCLUDED.area,
				start_area = EXCLUDED.start_area,
				area_set = EXCLUDED.area_set,
				kitty_per_player = EXCLUDED.kitty_per_player,
				total_kitty = EXCLUDED.total_kitty,
				finish_reason = EXCLUDED.finish_reason,
				winner = EXCLUDED.winner,
				started_at = EXCLUDED.started_at,
				finished_at = EXCLUDED.finished_at,
				next_area_reduction = EXCLUDED.next_area_reduction,
				action_index = EXCLUDED.action_index
		`
		_, err := tx.Exec(ctx, q,
			st.ID, string(st.Status), st.Host.ID, st.Host.Username, nullUUID(st.HuntedID), area, startArea, st.AreaSet,
			st.KittyPerPlayer.String(), st.TotalKitty.String(), nullString(string(st.FinishReason)), nullString(string(st.Winner)),
			st.CreatedAt, nullTime(st.StartedAt), nullTime(st.FinishedAt), nullTime(st.NextAreaReduction), st.ActionIndex,
		)
		if err != nil {
			return fmt.Errorf("upsert game session %s: %w", st.ID, err)
		}

		playerQ := `
			INSERT INTO game_players (
				session_id, player_id, username, team, join_order,
				longitude, latitude, last_location_update, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (session_id, player_id) DO UPDATE SET
				username = EXCLUDED.username,
				team = EXCLUDED.team,
				join_order = EXCLUDED.join_order,
				longitude = EXCLUDED.longitude,
				latitude = EXCLUDED.latitude,
				last_location_update = EXCLUDED.last_location_update
		`
		for i, p := range st.Players {
			var lng, lat *float64
			if p.Location != nil {
				x, y := p.Location.X(), p.Location.Y()
				lng, lat = &x, &y
			}
			_, err := tx.Exec(ctx, playerQ,
				st.ID, p.ID, p.Username, teamCode(p.Team), i,
				lng, lat, p.LastLocationUpdate, p.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("upsert player %s of game %s: %w", p.ID, st.ID, err)
			}
		}
		return nil
	})
}

// LoadSession reads the session row and its roster.
func (r *SessionRepo) LoadSession(ctx context.Context, id uuid.UUID) (*game.State, error) {
	q := `
		SELECT status, host_id, host_username, hunted_id, area, start_area, area_set,
			kitty_per_player::text, total_kitty::text, finish_reason, winner,
			created_at, started_at, finished_at, next_area_reduction, action_index
		FROM game_sessions
		WHERE id = $1
	`
	var (
		st                          = game.State{ID: id}
		status                      string
		hunted                      pgtype.UUID
		area, startArea             []byte
		kittyPerPlayer, totalKitty  string
		finishReason, winner        *string
		startedAt, finishedAt, next *time.Time
	)
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&status, &st.Host.ID, &st.Host.Username, &hunted, &area, &startArea, &st.AreaSet,
		&kittyPerPlayer, &totalKitty, &finishReason, &winner,
		&st.CreatedAt, &startedAt, &finishedAt, &next, &st.ActionIndex,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("game %s: %w", id, game.ErrNotFound)
		}
		return nil, fmt.Errorf("load game %s: %w", id, err)
	}

	st.Status = game.Status(status)
	if hunted.Valid {
		st.HuntedID = uuid.UUID(hunted.Bytes)
	}
	if st.Area, err = unmarshalArea(area); err != nil {
		return nil, err
	}
	if st.StartArea, err = unmarshalArea(startArea); err != nil {
		return nil, err
	}
	if st.KittyPerPlayer, err = decimal.NewFromString(kittyPerPlayer); err != nil {
		return nil, fmt.Errorf("parse kitty_per_player: %w", err)
	}
	if st.TotalKitty, err = decimal.NewFromString(totalKitty); err != nil {
		return nil, fmt.Errorf("parse total_kitty: %w", err)
	}
	if finishReason != nil {
		st.FinishReason = game.FinishReason(*finishReason)
	}
	if winner != nil {
		st.Winner = game.Winner(*winner)
	}
	st.StartedAt = derefTime(startedAt)
	st.FinishedAt = derefTime(finishedAt)
	st.NextAreaReduction = derefTime(next)

	if st.Players, err = r.LoadRoster(ctx, id); err != nil {
		return nil, err
	}
	return &st, nil
}

// LoadRoster returns the players of a session in join order.
func (r *SessionRepo) LoadRoster(ctx context.Context, id uuid.UUID) ([]*models.Player, error) {
	q := `
		SELECT player_id, username, team, longitude, latitude, last_location_update, created_at
		FROM game_players
		WHERE session_id = $1
		ORDER BY join_order
	`
	rows, err := r.pool.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("query roster of game %s: %w", id, err)
	}
	defer rows.Close()

	var players []*models.Player
	for rows.Next() {
		var (
			p        models.Player
			team     *int16
			lng, lat *float64
		)
		if err := rows.Scan(&p.ID, &p.Username, &team, &lng, &lat, &p.LastLocationUpdate, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		if team != nil {
			if p.Team, err = models.TeamFromCode(int(*team)); err != nil {
				return nil, err
			}
		}
		if lng != nil && lat != nil {
			p.Location = &orb.Point{*lng, *lat}
		}
		players = append(players, &p)
	}
	return players, rows.Err()
}

func (r *SessionRepo) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM game_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete game %s: %w", id, err)
	}
	return nil
}

// ActiveSessionIDs returns unfinished sessions, oldest first.
func (r *SessionRepo) ActiveSessionIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM game_sessions WHERE status <> 'FINISHED' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query active games: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("collect active games: %w", err)
	}
	return ids, nil
}

func (r *SessionRepo) AppendHint(ctx context.Context, h game.Hint) error {
	q := `INSERT INTO game_hints (id, session_id, author_id, content, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.pool.Exec(ctx, q, h.ID, h.GameID, h.AuthorID, h.Content, h.CreatedAt); err != nil {
		return mapInsertError(h.GameID, err)
	}
	return nil
}

func (r *SessionRepo) ListHints(ctx context.Context, gameID uuid.UUID) ([]game.Hint, error) {
	q := `
		SELECT id, session_id, author_id, content, created_at
		FROM game_hints
		WHERE session_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.pool.Query(ctx, q, gameID)
	if err != nil {
		return nil, fmt.Errorf("query hints of game %s: %w", gameID, err)
	}
	defer rows.Close()

	var hints []game.Hint
	for rows.Next() {
		var h game.Hint
		if err := rows.Scan(&h.ID, &h.GameID, &h.AuthorID, &h.Content, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan hint: %w", err)
		}
		hints = append(hints, h)
	}
	return hints, rows.Err()
}

func (r *SessionRepo) AppendChat(ctx context.Context, m game.ChatMessage) error {
	q := `
		INSERT INTO game_chat_messages (id, session_id, author_id, username, content, team_only, team, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := r.pool.Exec(ctx, q, m.ID, m.GameID, m.AuthorID, m.Username, m.Content, m.TeamOnly, teamCode(m.Team), m.CreatedAt); err != nil {
		return mapInsertError(m.GameID, err)
	}
	return nil
}

func (r *SessionRepo) ListChat(ctx context.Context, gameID uuid.UUID) ([]game.ChatMessage, error) {
	q := `
		SELECT id, session_id, author_id, username, content, team_only, team, created_at
		FROM game_chat_messages
		WHERE session_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.pool.Query(ctx, q, gameID)
	if err != nil {
		return nil, fmt.Errorf("query chat of game %s: %w", gameID, err)
	}
	defer rows.Close()

	var msgs []game.ChatMessage
	for rows.Next() {
		var (
			m    game.ChatMessage
			team *int16
		)
		if err := rows.Scan(&m.ID, &m.GameID, &m.AuthorID, &m.Username, &m.Content, &m.TeamOnly, &team, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		if team != nil {
			if m.Team, err = models.TeamFromCode(int(*team)); err != nil {
				return nil, err
			}
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func mapInsertError(gameID uuid.UUID, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return fmt.Errorf("game %s: %w", gameID, game.ErrNotFound)
	}
	return fmt.Errorf("insert into game %s: %w", gameID, err)
}

func marshalArea(a *geo.Area) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal area: %w", err)
	}
	return data, nil
}

func unmarshalArea(data []byte) (*geo.Area, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var a geo.Area
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("unmarshal area: %w", err)
	}
	return &a, nil
}

func teamCode(t models.Team) *int16 {
	code, ok := t.Code()
	if !ok {
		return nil
	}
	c := int16(code)
	return &c
}

func nullUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: [16]byte(id), Valid: id != uuid.Nil}
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
