package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/ticketwatch/internal/model"
	"github.com/nhle/ticketwatch/internal/notify"
)

// permissionKeyPrefix namespaces alert-permission rows in settings.
const permissionKeyPrefix = "alert_permission:"

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SaveNotifications replaces the stored record collection for a user
// with the given one, preserving order via created_at.
func (s *SQLiteStore) SaveNotifications(
	ctx context.Context,
	userID string,
	records []model.NotificationRecord,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"DELETE FROM notifications WHERE user_id = ?", userID,
	)
	if err != nil {
		return fmt.Errorf("clearing notifications for %s: %w", userID, err)
	}

	const query = `
		INSERT INTO notifications (user_id, id, kind, message, ticket_ref, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, n := range records {
		_, err = stmt.ExecContext(ctx,
			userID, n.ID, string(n.Kind), n.Message, n.TicketRef,
			boolToInt(n.Read), n.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("inserting notification %s: %w", n.ID, err)
		}
	}

	return tx.Commit()
}

// LoadNotifications retrieves a user's record collection, most recent
// first.
func (s *SQLiteStore) LoadNotifications(
	ctx context.Context,
	userID string,
) ([]model.NotificationRecord, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, kind, message, ticket_ref, read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var records []model.NotificationRecord
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, n)
	}

	return records, rows.Err()
}

// Permission returns the cached alert-permission decision for a user.
// No cached decision resolves to PermissionUnknown.
func (s *SQLiteStore) Permission(
	ctx context.Context,
	userID string,
) (notify.Permission, error) {
	var value string
	err := s.db.GetContext(ctx, &value,
		"SELECT value FROM settings WHERE key = ?",
		permissionKeyPrefix+userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return notify.PermissionUnknown, nil
	}
	if err != nil {
		return notify.PermissionUnknown, fmt.Errorf("reading permission: %w", err)
	}

	switch value {
	case "granted":
		return notify.PermissionGranted, nil
	case "denied":
		return notify.PermissionDenied, nil
	default:
		return notify.PermissionUnknown, nil
	}
}

// SetPermission caches an alert-permission decision for a user.
func (s *SQLiteStore) SetPermission(
	ctx context.Context,
	userID string,
	p notify.Permission,
) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)",
		permissionKeyPrefix+userID, p.String(),
	)
	if err != nil {
		return fmt.Errorf("caching permission for %s: %w", userID, err)
	}
	return nil
}

// UpsertTickets inserts or replaces a batch of cached tickets.
func (s *SQLiteStore) UpsertTickets(
	ctx context.Context,
	tickets []model.Ticket,
) error {
	if len(tickets) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT OR REPLACE INTO tickets (
			id, title, description, status,
			owner_id, owner_name, assignee_id, assignee_name,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, t := range tickets {
		_, err = stmt.ExecContext(ctx,
			t.ID, t.Title, t.Description, t.Status,
			t.OwnerID, t.OwnerName, t.AssigneeID, t.AssigneeName,
			t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("upserting ticket %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// GetTickets retrieves cached tickets matching the provided filter,
// most recently updated first.
func (s *SQLiteStore) GetTickets(
	ctx context.Context,
	filter TicketFilter,
) ([]model.Ticket, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.Query != nil && *filter.Query != "" {
		conditions = append(conditions, "(title LIKE ? OR description LIKE ?)")
		q := "%" + *filter.Query + "%"
		args = append(args, q, q)
	}

	query := "SELECT * FROM tickets"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY updated_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tickets: %w", err)
	}
	defer rows.Close()

	var tickets []model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}

	return tickets, rows.Err()
}

// scanNotification scans a notification row from a sqlx.Rows result set.
func scanNotification(rows *sqlx.Rows) (model.NotificationRecord, error) {
	var (
		n         model.NotificationRecord
		kind      string
		readInt   int
		createdAt time.Time
	)

	err := rows.Scan(
		&n.ID, &kind, &n.Message, &n.TicketRef,
		&readInt, &createdAt,
	)
	if err != nil {
		return model.NotificationRecord{}, fmt.Errorf("scanning notification row: %w", err)
	}

	n.Kind = model.Kind(kind)
	n.Read = readInt != 0
	n.CreatedAt = createdAt

	return n, nil
}

// scanTicket scans a ticket row from a sqlx.Rows result set.
func scanTicket(rows *sqlx.Rows) (model.Ticket, error) {
	var (
		t         model.Ticket
		createdAt time.Time
		updatedAt time.Time
	)

	err := rows.Scan(
		&t.ID, &t.Title, &t.Description, &t.Status,
		&t.OwnerID, &t.OwnerName, &t.AssigneeID, &t.AssigneeName,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return model.Ticket{}, fmt.Errorf("scanning ticket row: %w", err)
	}

	t.CreatedAt = createdAt
	t.UpdatedAt = updatedAt

	return t, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
