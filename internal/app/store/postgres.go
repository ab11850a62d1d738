package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vachat/internal/app/user"
)

// Postgres implements Store on top of a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an initialized pool in a Store implementation.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) UserByID(ctx context.Context, id string) (*user.User, error) {
	const query = `
		SELECT id, display_name, tier, role, is_active, last_active_at
		FROM users
		WHERE id = $1`

	var u user.User
	err := p.pool.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.DisplayName, &u.Tier, &u.Role, &u.IsActive, &u.LastActiveAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &u, nil
}

func (p *Postgres) TouchUserLastActive(ctx context.Context, id string) error {
	const query = `UPDATE users SET last_active_at = now() WHERE id = $1`

	if _, err := p.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("touch user last active: %w", err)
	}
	return nil
}

func (p *Postgres) ConversationByIDAndOwner(ctx context.Context, id, ownerID string) (*Conversation, error) {
	const query = `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE id = $1 AND user_id = $2`

	var c Conversation
	err := p.pool.QueryRow(ctx, query, id, ownerID).Scan(
		&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}

	return &c, nil
}

func (p *Postgres) CreateMessage(ctx context.Context, msg *Message) error {
	const query = `
		INSERT INTO messages (id, conversation_id, user_id, role, content, file_ids)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	fileIDs := msg.FileIDs
	if fileIDs == nil {
		fileIDs = []string{}
	}

	err := p.pool.QueryRow(ctx, query,
		msg.ID, msg.ConversationID, msg.UserID, msg.Role, msg.Content, fileIDs,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	return nil
}

func (p *Postgres) ListMessages(ctx context.Context, conversationID string, page, limit int) ([]Message, int64, error) {
	const countQuery = `SELECT count(*) FROM messages WHERE conversation_id = $1`

	var total int64
	if err := p.pool.QueryRow(ctx, countQuery, conversationID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	const query = `
		SELECT id, conversation_id, user_id, role, content, file_ids, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
		OFFSET $2 LIMIT $3`

	offset := (page - 1) * limit

	rows, err := p.pool.Query(ctx, query, conversationID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

func (p *Postgres) RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	// Newest first for the LIMIT, then reversed into chronological order.
	const query = `
		SELECT id, conversation_id, user_id, role, content, file_ids, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := p.pool.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (p *Postgres) MessageByID(ctx context.Context, id, conversationID string) (*Message, error) {
	const query = `
		SELECT id, conversation_id, user_id, role, content, file_ids, created_at
		FROM messages
		WHERE id = $1 AND conversation_id = $2`

	var m Message
	err := p.pool.QueryRow(ctx, query, id, conversationID).Scan(
		&m.ID, &m.ConversationID, &m.UserID, &m.Role, &m.Content, &m.FileIDs, &m.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query message: %w", err)
	}

	return &m, nil
}

func (p *Postgres) DeleteMessage(ctx context.Context, id string) error {
	const query = `DELETE FROM messages WHERE id = $1`

	if _, err := p.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (p *Postgres) CountMessagesToday(ctx context.Context, userID string) (int64, error) {
	const query = `
		SELECT count(*)
		FROM messages
		WHERE user_id = $1
		  AND role = 'user'
		  AND created_at >= date_trunc('day', now() AT TIME ZONE 'UTC')`

	var count int64
	if err := p.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count messages today: %w", err)
	}

	return count, nil
}

func (p *Postgres) FilesByIDsAndOwner(ctx context.Context, ids []string, ownerID string) ([]File, error) {
	if len(ids) == 0 {
		return []File{}, nil
	}

	const query = `
		SELECT id, user_id, s3_key, name, mime_type, size
		FROM files
		WHERE id = ANY($1) AND user_id = $2`

	rows, err := p.pool.Query(ctx, query, ids, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.UserID, &f.Key, &f.Name, &f.MimeType, &f.Size); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}

	return files, rows.Err()
}

func scanMessages(rows pgx.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.UserID, &m.Role, &m.Content, &m.FileIDs, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
