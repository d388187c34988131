package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/zap"

	"github.com/jobpulse/notifier/internal/model"
)

type fakeTotalsSource struct {
	totals []model.PostingTotals
	err    error
}

func (f *fakeTotalsSource) ListApplicantTotalsByPosting(context.Context) ([]model.PostingTotals, error) {
	return f.totals, f.err
}

type fakeSnapshotStore struct {
	snaps     []model.Snapshot
	upserted  []model.Snapshot
	upsertErr error
}

func (f *fakeSnapshotStore) AllSnapshots(context.Context) ([]model.Snapshot, error) {
	return f.snaps, nil
}

func (f *fakeSnapshotStore) UpsertSnapshots(_ context.Context, snaps []model.Snapshot) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = snaps
	return nil
}

type fakeIncrementEmitter struct {
	emitted []model.Increment
	err     error
}

func (f *fakeIncrementEmitter) NewApplications(_ context.Context, inc model.Increment) (*model.Notification, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.emitted = append(f.emitted, inc)
	return &model.Notification{OfferID: inc.ConvocatoriaID}, nil
}

func totalsRow(id int64, total int) model.PostingTotals {
	return model.PostingTotals{
		CompanyID:      "e-1",
		ConvocatoriaID: id,
		Title:          "Convocatoria",
		Total:          total,
	}
}

func snapshotRow(id int64, total int) model.Snapshot {
	return model.Snapshot{
		CompanyID:      "e-1",
		ConvocatoriaID: id,
		Title:          "Convocatoria",
		Total:          total,
	}
}

func newPostulationsPipeline(cfg PostulationsConfig, source *fakeTotalsSource, snaps *fakeSnapshotStore, emitter *fakeIncrementEmitter) *Postulations {
	return NewPostulations(cfg, PostulationsDeps{
		Source:    source,
		Snapshots: snaps,
		Emitter:   emitter,
		Logger:    zap.NewNop(),
	})
}

var ignoreSnapshotTimes = cmpopts.IgnoreFields(model.Snapshot{}, "UpdatedAt")

func TestPostulationsRunDetectsGrowth(t *testing.T) {
	t.Parallel()

	source := &fakeTotalsSource{totals: []model.PostingTotals{
		totalsRow(10, 13),
		totalsRow(11, 5),
	}}
	snaps := &fakeSnapshotStore{snaps: []model.Snapshot{
		snapshotRow(10, 10),
		snapshotRow(11, 5),
	}}
	emitter := &fakeIncrementEmitter{}

	summary, err := newPostulationsPipeline(PostulationsConfig{}, source, snaps, emitter).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.ConvocatoriasScanned != 2 || summary.WithGrowth != 1 || summary.NotificationsCreated != 1 {
		t.Errorf("unexpected counters: %+v", summary)
	}

	wantInc := []model.Increment{{
		CompanyID:      "e-1",
		ConvocatoriaID: 10,
		Title:          "Convocatoria",
		PreviousTotal:  10,
		CurrentTotal:   13,
		New:            3,
	}}
	if diff := cmp.Diff(wantInc, emitter.emitted); diff != "" {
		t.Errorf("increments mismatch (-want +got):\n%s", diff)
	}

	wantSnaps := []model.Snapshot{snapshotRow(10, 13), snapshotRow(11, 5)}
	if diff := cmp.Diff(wantSnaps, snaps.upserted, ignoreSnapshotTimes); diff != "" {
		t.Errorf("snapshots mismatch (-want +got):\n%s", diff)
	}
}

func TestPostulationsRunFirstSightingIsSilent(t *testing.T) {
	t.Parallel()

	source := &fakeTotalsSource{totals: []model.PostingTotals{totalsRow(10, 42)}}
	snaps := &fakeSnapshotStore{}
	emitter := &fakeIncrementEmitter{}

	summary, err := newPostulationsPipeline(PostulationsConfig{}, source, snaps, emitter).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(emitter.emitted) != 0 {
		t.Errorf("first sighting must not notify, got %+v", emitter.emitted)
	}
	// The full total is still recorded so the next run only sees real growth.
	if diff := cmp.Diff([]model.Snapshot{snapshotRow(10, 42)}, snaps.upserted, ignoreSnapshotTimes); diff != "" {
		t.Errorf("snapshots mismatch (-want +got):\n%s", diff)
	}
	if summary.WithGrowth != 0 {
		t.Errorf("unexpected growth count: %+v", summary)
	}
}

func TestPostulationsRunFirstSightingOptIn(t *testing.T) {
	t.Parallel()

	source := &fakeTotalsSource{totals: []model.PostingTotals{totalsRow(10, 42)}}
	snaps := &fakeSnapshotStore{}
	emitter := &fakeIncrementEmitter{}

	cfg := PostulationsConfig{NotifyFirstSighting: true}
	_, err := newPostulationsPipeline(cfg, source, snaps, emitter).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(emitter.emitted) != 1 || emitter.emitted[0].New != 42 {
		t.Errorf("expected the full total as growth, got %+v", emitter.emitted)
	}
}

func TestPostulationsRunIgnoresShrinkingTotals(t *testing.T) {
	t.Parallel()

	source := &fakeTotalsSource{totals: []model.PostingTotals{totalsRow(10, 7)}}
	snaps := &fakeSnapshotStore{snaps: []model.Snapshot{snapshotRow(10, 9)}}
	emitter := &fakeIncrementEmitter{}

	_, err := newPostulationsPipeline(PostulationsConfig{}, source, snaps, emitter).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(emitter.emitted) != 0 {
		t.Errorf("a shrinking total must not notify, got %+v", emitter.emitted)
	}
	if diff := cmp.Diff([]model.Snapshot{snapshotRow(10, 7)}, snaps.upserted, ignoreSnapshotTimes); diff != "" {
		t.Errorf("the lower total must still be recorded (-want +got):\n%s", diff)
	}
}

func TestPostulationsRunUpsertsDespiteEmitterFailure(t *testing.T) {
	t.Parallel()

	source := &fakeTotalsSource{totals: []model.PostingTotals{totalsRow(10, 13)}}
	snaps := &fakeSnapshotStore{snaps: []model.Snapshot{snapshotRow(10, 10)}}
	emitter := &fakeIncrementEmitter{err: errors.New("disk full")}

	summary, err := newPostulationsPipeline(PostulationsConfig{}, source, snaps, emitter).Run(context.Background())
	if err != nil {
		t.Fatalf("an emitter failure must not abort the run: %v", err)
	}

	if len(summary.Errors) != 1 {
		t.Errorf("expected the failure in the summary, got %v", summary.Errors)
	}
	if summary.NotificationsCreated != 0 {
		t.Errorf("unexpected created count: %+v", summary)
	}
	// The growth itself happened regardless of the failed insert.
	if summary.WithGrowth != 1 {
		t.Errorf("expected the increment to count as growth, got %+v", summary)
	}
	if len(summary.Details) != 1 || summary.Details[0].New != 3 {
		t.Errorf("expected the increment in the details, got %+v", summary.Details)
	}
	if diff := cmp.Diff([]model.Snapshot{snapshotRow(10, 13)}, snaps.upserted, ignoreSnapshotTimes); diff != "" {
		t.Errorf("snapshots must advance regardless (-want +got):\n%s", diff)
	}
}

func TestPostulationsRunNoConvocatorias(t *testing.T) {
	t.Parallel()

	source := &fakeTotalsSource{}
	snaps := &fakeSnapshotStore{}

	summary, err := newPostulationsPipeline(PostulationsConfig{}, source, snaps, &fakeIncrementEmitter{}).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Message != "no active convocatorias" {
		t.Errorf("unexpected message %q", summary.Message)
	}
	if snaps.upserted != nil {
		t.Errorf("nothing to upsert, got %+v", snaps.upserted)
	}
}

func TestPostulationsRunUpsertFailureIsFatal(t *testing.T) {
	t.Parallel()

	source := &fakeTotalsSource{totals: []model.PostingTotals{totalsRow(10, 13)}}
	snaps := &fakeSnapshotStore{upsertErr: errors.New("database locked")}

	summary, err := newPostulationsPipeline(PostulationsConfig{}, source, snaps, &fakeIncrementEmitter{}).Run(context.Background())
	if err == nil {
		t.Fatal("expected a failed upsert to surface")
	}
	if summary == nil {
		t.Fatal("expected the partial summary alongside the error")
	}
}

func TestPostulationsCurrentOverview(t *testing.T) {
	t.Parallel()

	source := &fakeTotalsSource{totals: []model.PostingTotals{
		totalsRow(10, 13),
		totalsRow(12, 4),
	}}
	snaps := &fakeSnapshotStore{snaps: []model.Snapshot{snapshotRow(10, 10)}}
	emitter := &fakeIncrementEmitter{}

	overview, err := newPostulationsPipeline(PostulationsConfig{}, source, snaps, emitter).CurrentOverview(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if overview.ConvocatoriasActive != 2 || overview.SnapshotsStored != 1 {
		t.Errorf("unexpected counts: %+v", overview)
	}
	if len(emitter.emitted) != 0 {
		t.Error("an overview must not notify")
	}
	if overview.Items[0].SnapshotTotal == nil || *overview.Items[0].SnapshotTotal != 10 {
		t.Errorf("expected snapshot total 10, got %+v", overview.Items[0])
	}
	if overview.Items[1].SnapshotTotal != nil {
		t.Errorf("expected no snapshot for convocatoria 12, got %+v", overview.Items[1])
	}
}
