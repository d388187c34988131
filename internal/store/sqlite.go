package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/jobpulse/notifier/internal/model"
	"github.com/jobpulse/notifier/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite is the operational store backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// ---- Notified-offer ledger ----

// IsNotified reports whether the offer already produced notifications.
func (s *SQLite) IsNotified(ctx context.Context, offerID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notified_offers WHERE offer_id = ?`, offerID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check notified: %w", err)
	}
	return count > 0, nil
}

// FilterUnnotified returns the subset of ids that have no ledger entry yet,
// preserving input order. The lookup is a single bulk query.
func (s *SQLite) FilterUnnotified(ctx context.Context, offerIDs []int64) ([]int64, error) {
	if len(offerIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(offerIDs)), ",")
	args := make([]any, len(offerIDs))
	for i, id := range offerIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT offer_id FROM notified_offers WHERE offer_id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query notified offers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	notified := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan notified offer id: %w", err)
		}
		notified[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notified offers: %w", err)
	}

	var unnotified []int64
	for _, id := range offerIDs {
		if !notified[id] {
			unnotified = append(unnotified, id)
		}
	}
	return unnotified, nil
}

// MarkNotified records that an offer produced notifications. The offer id is
// unique; inserting a duplicate returns ErrConflict without overwriting the
// existing entry. Populates ID and NotifiedAt on success.
func (s *SQLite) MarkNotified(ctx context.Context, entry *model.NotifiedOffer) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notified_offers (offer_id, company_id, title, publication_date, notified_at, users_notified)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.OfferID, entry.CompanyID, entry.Title,
		entry.PublicationDate.UTC().Format(timeLayout), now.Format(timeLayout), entry.UsersNotified,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("offer %d: %w", entry.OfferID, ErrConflict)
		}
		return fmt.Errorf("insert notified offer: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	entry.ID = id
	entry.NotifiedAt = now
	return nil
}

// ListNotified returns all ledger entries, newest notification first.
func (s *SQLite) ListNotified(ctx context.Context) ([]model.NotifiedOffer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, offer_id, company_id, title, publication_date, notified_at, users_notified
		 FROM notified_offers ORDER BY notified_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query notified offers: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanNotifiedOffers(rows)
}

// LedgerStats summarizes the ledger: totals plus the ten offers that reached
// the most users.
func (s *SQLite) LedgerStats(ctx context.Context) (*model.LedgerStats, error) {
	var stats model.LedgerStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(users_notified), 0) FROM notified_offers`,
	).Scan(&stats.OffersNotified, &stats.UsersNotified)
	if err != nil {
		return nil, fmt.Errorf("ledger totals: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, offer_id, company_id, title, publication_date, notified_at, users_notified
		 FROM notified_offers ORDER BY users_notified DESC, id ASC LIMIT 10`,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger top offers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	top, err := scanNotifiedOffers(rows)
	if err != nil {
		return nil, err
	}
	stats.TopByUsersNotified = top
	return &stats, nil
}

// ---- Convocatoria snapshots ----

// AllSnapshots returns every stored snapshot.
func (s *SQLite) AllSnapshots(ctx context.Context) ([]model.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, convocatoria_id, title, total_applicants, updated_at
		 FROM convocatoria_snapshots ORDER BY convocatoria_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshots []model.Snapshot
	for rows.Next() {
		var snap model.Snapshot
		var updated string
		if err := rows.Scan(&snap.ID, &snap.CompanyID, &snap.ConvocatoriaID, &snap.Title, &snap.Total, &updated); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.UpdatedAt, _ = time.Parse(timeLayout, updated)
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// UpsertSnapshots writes the latest total for every given convocatoria,
// creating missing snapshots and updating existing ones, in one transaction.
func (s *SQLite) UpsertSnapshots(ctx context.Context, snapshots []model.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(timeLayout)
	for _, snap := range snapshots {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO convocatoria_snapshots (company_id, convocatoria_id, title, total_applicants, updated_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(convocatoria_id) DO UPDATE SET
			   company_id = excluded.company_id,
			   title = excluded.title,
			   total_applicants = excluded.total_applicants,
			   updated_at = excluded.updated_at`,
			snap.CompanyID, snap.ConvocatoriaID, snap.Title, snap.Total, now,
		)
		if err != nil {
			return fmt.Errorf("upsert snapshot %d: %w", snap.ConvocatoriaID, err)
		}
	}

	return tx.Commit()
}

// ---- Notifications ----

// CreateNotification inserts a notification and populates ID and CreatedAt.
func (s *SQLite) CreateNotification(ctx context.Context, n *model.Notification) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, company_id, type, subject, message, offer_id, priority, metadata, read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.UserID, n.CompanyID, n.Type, n.Subject, n.Message, n.OfferID, n.Priority, n.Metadata,
		boolToInt(n.Read), now.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	n.ID = id
	n.CreatedAt = now
	return nil
}

// GetNotification returns a single notification by id.
func (s *SQLite) GetNotification(ctx context.Context, id int64) (*model.Notification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, company_id, type, subject, message, offer_id, priority, metadata, read, read_at, created_at
		 FROM notifications WHERE id = ?`, id,
	)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notification %d: %w", id, ErrNotFound)
	}
	return n, err
}

// ListNotifications returns notifications newest first.
func (s *SQLite) ListNotifications(ctx context.Context, limit, offset int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, company_id, type, subject, message, offer_id, priority, metadata, read, read_at, created_at
		 FROM notifications ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanNotifications(rows)
}

// ListUnreadNotifications returns all notifications not yet marked read.
func (s *SQLite) ListUnreadNotifications(ctx context.Context) ([]model.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, company_id, type, subject, message, offer_id, priority, metadata, read, read_at, created_at
		 FROM notifications WHERE read = 0 ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query unread notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanNotifications(rows)
}

// MarkNotificationRead sets the read flag and the read timestamp.
func (s *SQLite) MarkNotificationRead(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1, read_at = ? WHERE id = ?`,
		time.Now().UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("notification %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteNotification removes a notification by id.
func (s *SQLite) DeleteNotification(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("notification %d: %w", id, ErrNotFound)
	}
	return nil
}

// ---- helpers ----

func isUniqueViolation(err error) bool {
	var serr *sqlite3.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanNotifiedOffers(rows *sql.Rows) ([]model.NotifiedOffer, error) {
	var entries []model.NotifiedOffer
	for rows.Next() {
		var entry model.NotifiedOffer
		var published, notified string
		if err := rows.Scan(&entry.ID, &entry.OfferID, &entry.CompanyID, &entry.Title,
			&published, &notified, &entry.UsersNotified); err != nil {
			return nil, fmt.Errorf("scan notified offer: %w", err)
		}
		entry.PublicationDate, _ = time.Parse(timeLayout, published)
		entry.NotifiedAt, _ = time.Parse(timeLayout, notified)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanNotification(row scannable) (*model.Notification, error) {
	var n model.Notification
	var read int
	var metadata, readAt sql.NullString
	var created string
	err := row.Scan(&n.ID, &n.UserID, &n.CompanyID, &n.Type, &n.Subject, &n.Message,
		&n.OfferID, &n.Priority, &metadata, &read, &readAt, &created)
	if err != nil {
		return nil, err
	}
	n.Metadata = metadata.String
	n.Read = read == 1
	if readAt.Valid {
		t, _ := time.Parse(timeLayout, readAt.String)
		n.ReadAt = &t
	}
	n.CreatedAt, _ = time.Parse(timeLayout, created)
	return &n, nil
}

func scanNotifications(rows *sql.Rows) ([]model.Notification, error) {
	var notifications []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}
