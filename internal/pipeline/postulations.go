package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jobpulse/notifier/internal/model"
)

// TotalsSource lists the current applicant totals per convocatoria.
type TotalsSource interface {
	ListApplicantTotalsByPosting(ctx context.Context) ([]model.PostingTotals, error)
}

// SnapshotStore persists the last observed total per convocatoria.
type SnapshotStore interface {
	AllSnapshots(ctx context.Context) ([]model.Snapshot, error)
	UpsertSnapshots(ctx context.Context, snaps []model.Snapshot) error
}

// IncrementEmitter persists one notification per detected increment.
type IncrementEmitter interface {
	NewApplications(ctx context.Context, inc model.Increment) (*model.Notification, error)
}

// PostulationsDeps aggregates the collaborators of the applications pipeline.
type PostulationsDeps struct {
	Source    TotalsSource
	Snapshots SnapshotStore
	Emitter   IncrementEmitter
	Logger    *zap.Logger
}

// PostulationsConfig tunes one applications reconciliation run.
type PostulationsConfig struct {
	// NotifyFirstSighting notifies the full current total the first time a
	// convocatoria is seen. Off by default: a backlog of old applications
	// would otherwise arrive as one large burst.
	NotifyFirstSighting bool
}

// Postulations reconciles applicant totals against stored snapshots and
// notifies companies about growth.
type Postulations struct {
	cfg  PostulationsConfig
	deps PostulationsDeps
}

// NewPostulations builds the applications pipeline.
func NewPostulations(cfg PostulationsConfig, deps PostulationsDeps) *Postulations {
	return &Postulations{cfg: cfg, deps: deps}
}

// IncrementDetail describes one notified convocatoria within a run.
type IncrementDetail struct {
	ConvocatoriaID int64  `json:"convocatoria_id"`
	Title          string `json:"title"`
	PreviousTotal  int    `json:"previous_total"`
	CurrentTotal   int    `json:"current_total"`
	New            int    `json:"new"`
}

// PostulationsSummary aggregates one applications reconciliation run.
type PostulationsSummary struct {
	RunID                string            `json:"run_id"`
	Message              string            `json:"message"`
	ConvocatoriasScanned int               `json:"convocatorias_scanned"`
	WithGrowth           int               `json:"with_growth"`
	NotificationsCreated int               `json:"notifications_created"`
	Details              []IncrementDetail `json:"details,omitempty"`
	Errors               []string          `json:"errors,omitempty"`
}

// Run executes one reconciliation pass. Totals never decrease a snapshot's
// meaning: a drop is treated as no growth. Snapshots are written last and
// unconditionally, so a convocatoria whose notification failed is still
// brought up to date and is not re-notified on the next run.
func (p *Postulations) Run(ctx context.Context) (*PostulationsSummary, error) {
	summary := &PostulationsSummary{RunID: uuid.NewString()}
	log := p.deps.Logger.With(zap.String("run_id", summary.RunID))

	totals, err := p.deps.Source.ListApplicantTotalsByPosting(ctx)
	if err != nil {
		return nil, fmt.Errorf("list applicant totals: %w", err)
	}
	summary.ConvocatoriasScanned = len(totals)
	if len(totals) == 0 {
		summary.Message = "no active convocatorias"
		return summary, nil
	}

	previous, err := p.previousTotals(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	latest := make([]model.Snapshot, 0, len(totals))
	for _, row := range totals {
		inc := p.detectIncrement(row, previous)
		if inc.New > 0 {
			// Growth is a fact about the data; it counts even when the
			// notification insert fails.
			summary.WithGrowth++
			summary.Details = append(summary.Details, IncrementDetail{
				ConvocatoriaID: inc.ConvocatoriaID,
				Title:          inc.Title,
				PreviousTotal:  inc.PreviousTotal,
				CurrentTotal:   inc.CurrentTotal,
				New:            inc.New,
			})

			if _, err := p.deps.Emitter.NewApplications(ctx, inc); err != nil {
				log.Warn("applications notification failed",
					zap.Int64("convocatoria_id", inc.ConvocatoriaID),
					zap.Error(err),
				)
				summary.Errors = append(summary.Errors, fmt.Sprintf("convocatoria %d: %v", inc.ConvocatoriaID, err))
			} else {
				summary.NotificationsCreated++
			}
		}

		latest = append(latest, model.Snapshot{
			CompanyID:      row.CompanyID,
			ConvocatoriaID: row.ConvocatoriaID,
			Title:          row.Title,
			Total:          row.Total,
			UpdatedAt:      now,
		})
	}

	if err := p.deps.Snapshots.UpsertSnapshots(ctx, latest); err != nil {
		return summary, fmt.Errorf("upsert snapshots: %w", err)
	}

	summary.Message = fmt.Sprintf("reconciled %d convocatorias", len(totals))
	log.Info("applications reconciliation finished",
		zap.Int("scanned", summary.ConvocatoriasScanned),
		zap.Int("with_growth", summary.WithGrowth),
		zap.Int("notifications", summary.NotificationsCreated),
		zap.Int("errors", len(summary.Errors)),
	)
	return summary, nil
}

// detectIncrement computes the growth for one convocatoria. A convocatoria
// seen for the first time reports zero growth unless NotifyFirstSighting is
// set.
func (p *Postulations) detectIncrement(row model.PostingTotals, previous map[int64]int) model.Increment {
	inc := model.Increment{
		CompanyID:      row.CompanyID,
		ConvocatoriaID: row.ConvocatoriaID,
		Title:          row.Title,
		CurrentTotal:   row.Total,
	}

	prev, seen := previous[row.ConvocatoriaID]
	if !seen {
		if p.cfg.NotifyFirstSighting {
			inc.New = row.Total
		}
		return inc
	}

	inc.PreviousTotal = prev
	if row.Total > prev {
		inc.New = row.Total - prev
	}
	return inc
}

func (p *Postulations) previousTotals(ctx context.Context) (map[int64]int, error) {
	snaps, err := p.deps.Snapshots.AllSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	previous := make(map[int64]int, len(snaps))
	for _, s := range snaps {
		previous[s.ConvocatoriaID] = s.Total
	}
	return previous, nil
}

// OverviewItem pairs the current total of one convocatoria with its stored
// snapshot, if any.
type OverviewItem struct {
	ConvocatoriaID int64  `json:"convocatoria_id"`
	CompanyID      string `json:"company_id"`
	Title          string `json:"title"`
	CurrentTotal   int    `json:"current_total"`
	SnapshotTotal  *int   `json:"snapshot_total,omitempty"`
}

// Overview is the diagnostic comparison of live totals and snapshots.
type Overview struct {
	ConvocatoriasActive int            `json:"convocatorias_active"`
	SnapshotsStored     int            `json:"snapshots_stored"`
	Items               []OverviewItem `json:"items,omitempty"`
}

// CurrentOverview reports live totals next to stored snapshots without
// notifying or writing anything.
func (p *Postulations) CurrentOverview(ctx context.Context) (*Overview, error) {
	totals, err := p.deps.Source.ListApplicantTotalsByPosting(ctx)
	if err != nil {
		return nil, fmt.Errorf("list applicant totals: %w", err)
	}
	snaps, err := p.deps.Snapshots.AllSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}

	previous := make(map[int64]int, len(snaps))
	for _, s := range snaps {
		previous[s.ConvocatoriaID] = s.Total
	}

	overview := &Overview{
		ConvocatoriasActive: len(totals),
		SnapshotsStored:     len(snaps),
	}
	for _, row := range totals {
		item := OverviewItem{
			ConvocatoriaID: row.ConvocatoriaID,
			CompanyID:      row.CompanyID,
			Title:          row.Title,
			CurrentTotal:   row.Total,
		}
		if prev, ok := previous[row.ConvocatoriaID]; ok {
			item.SnapshotTotal = &prev
		}
		overview.Items = append(overview.Items, item)
	}
	return overview, nil
}
