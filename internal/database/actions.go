// internal/database/actions.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/manhunt/internal/models"
)

// InsertActions writes a batch of action records in a single transaction.
func InsertActions(ctx context.Context, pool *pgxpool.Pool, records []models.ActionRecord) error {
	if len(records) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range records {
			if err := insertActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insert action %d of game %s: %w", rec.ActionIndex, rec.GameID, err)
			}
		}
		return nil
	})
}

func insertActionTx(ctx context.Context, tx pgx.Tx, rec models.ActionRecord) error {
	payload := rec.ActionPayload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	q := `
		INSERT INTO game_actions (game_id, action_index, actor_user_id, action_type, action_payload, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = tx.Exec(ctx, q,
		rec.GameID, rec.ActionIndex, nullUUID(rec.ActorUserID), rec.ActionType, jsonPayload, time.UnixMilli(rec.Timestamp),
	)
	return err
}

// ListActions returns the recorded actions of a game in the order they happened.
func ListActions(ctx context.Context, pool *pgxpool.Pool, gameID uuid.UUID) ([]models.ActionRecord, error) {
	q := `
		SELECT action_index, actor_user_id, action_type, action_payload, recorded_at
		FROM game_actions
		WHERE game_id = $1
		ORDER BY recorded_at, action_index
	`
	rows, err := pool.Query(ctx, q, gameID)
	if err != nil {
		return nil, fmt.Errorf("query actions of game %s: %w", gameID, err)
	}
	defer rows.Close()

	var out []models.ActionRecord
	for rows.Next() {
		var (
			rec      = models.ActionRecord{GameID: gameID}
			actor    pgtype.UUID
			payload  []byte
			recorded time.Time
		)
		if err := rows.Scan(&rec.ActionIndex, &actor, &rec.ActionType, &payload, &recorded); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		if actor.Valid {
			rec.ActorUserID = uuid.UUID(actor.Bytes)
		}
		if err := json.Unmarshal(payload, &rec.ActionPayload); err != nil {
			return nil, fmt.Errorf("decode action payload: %w", err)
		}
		rec.Timestamp = recorded.UnixMilli()
		out = append(out, rec)
	}
	return out, rows.Err()
}
