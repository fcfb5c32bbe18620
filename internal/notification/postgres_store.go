package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/taskflow/pkg/pg"
)

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists notifications in the notifications table.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a Store backed by db.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const notificationColumns = `id, user_id, type, channel, subject, message, read, created_at, updated_at`

func scanNotification(row pgx.Row) (Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Channel, &n.Subject, &n.Message, &n.Read, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

func (s *PostgresStore) Create(ctx context.Context, n *Notification) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, channel, subject, message, read, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.UserID, n.Type, n.Channel, n.Subject, n.Message, n.Read, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (Notification, error) {
	n, err := scanNotification(s.db.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	if err != nil {
		if pg.IsNotFound(err) {
			return Notification{}, ErrNotFound
		}
		return Notification{}, errors.Join(ErrStoreFailure, err)
	}
	return n, nil
}

func (s *PostgresStore) List(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND read = false`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	defer rows.Close()

	list := make([]Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, errors.Join(ErrStoreFailure, err)
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return list, nil
}

func (s *PostgresStore) SetRead(ctx context.Context, id uuid.UUID) (Notification, error) {
	n, err := scanNotification(s.db.QueryRow(ctx, `
		UPDATE notifications SET read = true, updated_at = $2
		WHERE id = $1
		RETURNING `+notificationColumns,
		id, time.Now().UTC(),
	))
	if err != nil {
		if pg.IsNotFound(err) {
			return Notification{}, ErrNotFound
		}
		return Notification{}, errors.Join(ErrStoreFailure, err)
	}
	return n, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
