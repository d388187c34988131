package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jobpulse/notifier/internal/model"
)

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMarkNotifiedAndFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	published := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	entry := &model.NotifiedOffer{
		OfferID:         42,
		CompanyID:       "c7f2a1",
		Title:           "Desarrollador Backend",
		PublicationDate: published,
		UsersNotified:   3,
	}
	if err := s.MarkNotified(ctx, entry); err != nil {
		t.Fatalf("mark notified: %v", err)
	}
	if entry.ID == 0 {
		t.Fatal("expected non-zero ledger id")
	}
	if entry.NotifiedAt.IsZero() {
		t.Fatal("expected NotifiedAt to be set")
	}

	notified, err := s.IsNotified(ctx, 42)
	if err != nil {
		t.Fatalf("is notified: %v", err)
	}
	if !notified {
		t.Fatal("expected offer 42 to be notified")
	}

	unnotified, err := s.FilterUnnotified(ctx, []int64{41, 42, 43})
	if err != nil {
		t.Fatalf("filter unnotified: %v", err)
	}
	if diff := cmp.Diff([]int64{41, 43}, unnotified); diff != "" {
		t.Errorf("FilterUnnotified mismatch (-want +got):\n%s", diff)
	}
}

func TestMarkNotifiedConflict(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	published := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	first := &model.NotifiedOffer{OfferID: 7, CompanyID: "a", Title: "Oferta", PublicationDate: published, UsersNotified: 2}
	if err := s.MarkNotified(ctx, first); err != nil {
		t.Fatalf("first mark: %v", err)
	}

	dup := &model.NotifiedOffer{OfferID: 7, CompanyID: "a", Title: "Oferta", PublicationDate: published, UsersNotified: 5}
	err := s.MarkNotified(ctx, dup)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// The original entry must survive untouched.
	entries, err := s.ListNotified(ctx)
	if err != nil {
		t.Fatalf("list notified: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(entries))
	}
	if entries[0].UsersNotified != 2 {
		t.Fatalf("expected users notified 2, got %d", entries[0].UsersNotified)
	}
}

func TestFilterUnnotifiedEmptyInput(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	got, err := s.FilterUnnotified(ctx, nil)
	if err != nil {
		t.Fatalf("filter unnotified: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestLedgerStats(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	published := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	for i, users := range []int{1, 5, 3} {
		entry := &model.NotifiedOffer{
			OfferID:         int64(100 + i),
			CompanyID:       "c",
			Title:           "Oferta",
			PublicationDate: published,
			UsersNotified:   users,
		}
		if err := s.MarkNotified(ctx, entry); err != nil {
			t.Fatalf("mark notified: %v", err)
		}
	}

	stats, err := s.LedgerStats(ctx)
	if err != nil {
		t.Fatalf("ledger stats: %v", err)
	}
	if stats.OffersNotified != 3 {
		t.Errorf("expected 3 offers, got %d", stats.OffersNotified)
	}
	if stats.UsersNotified != 9 {
		t.Errorf("expected 9 users, got %d", stats.UsersNotified)
	}
	if len(stats.TopByUsersNotified) != 3 {
		t.Fatalf("expected 3 top entries, got %d", len(stats.TopByUsersNotified))
	}
	if stats.TopByUsersNotified[0].OfferID != 101 {
		t.Errorf("expected offer 101 first, got %d", stats.TopByUsersNotified[0].OfferID)
	}
}

func TestUpsertSnapshots(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	initial := []model.Snapshot{
		{CompanyID: "e1", ConvocatoriaID: 10, Title: "Convocatoria A", Total: 12},
		{CompanyID: "e2", ConvocatoriaID: 20, Title: "Convocatoria B", Total: 0},
	}
	if err := s.UpsertSnapshots(ctx, initial); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Second upsert updates totals in place instead of duplicating rows.
	update := []model.Snapshot{
		{CompanyID: "e1", ConvocatoriaID: 10, Title: "Convocatoria A", Total: 15},
	}
	if err := s.UpsertSnapshots(ctx, update); err != nil {
		t.Fatalf("upsert update: %v", err)
	}

	snapshots, err := s.AllSnapshots(ctx)
	if err != nil {
		t.Fatalf("all snapshots: %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snapshots))
	}
	if snapshots[0].ConvocatoriaID != 10 || snapshots[0].Total != 15 {
		t.Errorf("expected convocatoria 10 with total 15, got %+v", snapshots[0])
	}
	if snapshots[1].ConvocatoriaID != 20 || snapshots[1].Total != 0 {
		t.Errorf("expected convocatoria 20 with total 0, got %+v", snapshots[1])
	}
	if snapshots[0].UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt to be set")
	}
}

func TestUpsertSnapshotsEmpty(t *testing.T) {
	s := newTestDB(t)
	if err := s.UpsertSnapshots(context.Background(), nil); err != nil {
		t.Fatalf("expected nil error for empty upsert, got %v", err)
	}
}

func TestNotificationLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	n := &model.Notification{
		UserID:    "u-1",
		CompanyID: "e-1",
		Type:      model.TypeOfferMatch,
		Subject:   "Nueva oferta: Analista de Datos",
		Message:   "Hay una nueva oferta que coincide con tu perfil",
		OfferID:   55,
		Priority:  model.PriorityHigh,
		Metadata:  "modalidad:remoto,ubicacion:Bogotá",
	}
	if err := s.CreateNotification(ctx, n); err != nil {
		t.Fatalf("create: %v", err)
	}
	if n.ID == 0 {
		t.Fatal("expected non-zero notification id")
	}

	got, err := s.GetNotification(ctx, n.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Read {
		t.Error("new notification must be unread")
	}
	if diff := cmp.Diff(n.Subject, got.Subject); diff != "" {
		t.Errorf("subject mismatch (-want +got):\n%s", diff)
	}

	unread, err := s.ListUnreadNotifications(ctx)
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	if len(unread) != 1 {
		t.Fatalf("expected 1 unread, got %d", len(unread))
	}

	if err := s.MarkNotificationRead(ctx, n.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	got, err = s.GetNotification(ctx, n.ID)
	if err != nil {
		t.Fatalf("get after read: %v", err)
	}
	if !got.Read || got.ReadAt == nil {
		t.Fatalf("expected read with timestamp, got %+v", got)
	}

	if err := s.DeleteNotification(ctx, n.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetNotification(ctx, n.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkReadMissingNotification(t *testing.T) {
	s := newTestDB(t)
	if err := s.MarkNotificationRead(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListNotificationsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	for i := 0; i < 3; i++ {
		n := &model.Notification{
			UserID:    "u",
			CompanyID: "e",
			Type:      model.TypeNewApplications,
			Subject:   "s",
			Message:   "m",
			OfferID:   int64(i),
			Priority:  model.PriorityMedium,
		}
		if err := s.CreateNotification(ctx, n); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := s.ListNotifications(ctx, 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(got))
	}
	if got[0].OfferID != 2 {
		t.Errorf("expected newest first, got offer %d", got[0].OfferID)
	}
}
