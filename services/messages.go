package services

import (
	"context"
	"encoding/json"
	"fmt"

	"hostel-market/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgJournal persists every delivered outbound notification to outbound_messages.
type PgJournal struct {
	pool *pgxpool.Pool
}

func NewPgJournal(pool *pgxpool.Pool) *PgJournal {
	return &PgJournal{pool: pool}
}

func (j *PgJournal) Record(ctx context.Context, chatID int64, msg models.Message, meta map[string]any) error {
	metaJSON := "{}"
	if len(meta) > 0 {
		b, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshal meta: %w", err)
		}
		metaJSON = string(b)
	}
	content := msg.Text
	if msg.Document != nil {
		content = "[document] " + msg.Document.Path + "\n" + msg.Document.Caption
	}
	_, err := j.pool.Exec(ctx, `
		INSERT INTO outbound_messages (chat_id, content, meta)
		VALUES ($1, $2, $3::jsonb)`,
		chatID, content, metaJSON,
	)
	return persistErr("record outbound message", err)
}

// Count returns how many messages were journaled for chatID.
func (j *PgJournal) Count(ctx context.Context, chatID int64) (int, error) {
	var n int
	err := j.pool.QueryRow(ctx, `SELECT COUNT(*)::int FROM outbound_messages WHERE chat_id = $1`, chatID).Scan(&n)
	return n, persistErr("count outbound messages", err)
}
