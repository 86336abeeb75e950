package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/campus-events/internal/apperr"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

const chatColumns = `id, event_id, user_id, kind, body, removed, created_at`

// ChatRepository stores the append-only chat log.
type ChatRepository struct {
	db *pgxpool.Pool
}

func NewChatRepository(db *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) Append(ctx context.Context, m *model.ChatMessage) error {
	_, err := conn(ctx, r.db).Exec(ctx,
		`INSERT INTO chat_messages (id, event_id, user_id, kind, body, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.EventID, m.UserID, string(m.Kind), m.Body, m.CreatedAt,
	)
	return mapError(err, "append chat message")
}

func (r *ChatRepository) GetByID(ctx context.Context, id string) (*model.ChatMessage, error) {
	m, err := scanChat(conn(ctx, r.db).QueryRow(ctx, `SELECT `+chatColumns+` FROM chat_messages WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, "get chat message")
	}
	return m, nil
}

// History returns the newest limit messages of eventID, newest first.
func (r *ChatRepository) History(ctx context.Context, eventID string, limit int) ([]model.ChatMessage, error) {
	rows, err := conn(ctx, r.db).Query(ctx,
		`SELECT `+chatColumns+` FROM chat_messages
		 WHERE event_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		eventID, limit,
	)
	if err != nil {
		return nil, mapError(err, "chat history")
	}
	defer rows.Close()

	msgs := []model.ChatMessage{}
	for rows.Next() {
		m, err := scanChat(rows)
		if err != nil {
			return nil, mapError(err, "scan chat message")
		}
		msgs = append(msgs, *m)
	}
	return msgs, mapError(rows.Err(), "chat history")
}

func (r *ChatRepository) MarkRemoved(ctx context.Context, id string) error {
	tag, err := conn(ctx, r.db).Exec(ctx, `UPDATE chat_messages SET removed = TRUE WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "remove chat message")
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.CodeNotFound, "chat message not found")
	}
	return nil
}

func scanChat(row pgx.Row) (*model.ChatMessage, error) {
	var (
		m    model.ChatMessage
		kind string
	)
	if err := row.Scan(&m.ID, &m.EventID, &m.UserID, &kind, &m.Body, &m.Removed, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Kind = model.ChatKind(kind)
	return &m, nil
}
