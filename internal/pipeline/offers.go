// Package pipeline implements the two reconciliation batch jobs: notifying
// users about compatible offers and notifying companies about new
// applications. Both are synchronous, independently triggerable runs; no
// scheduling lives here.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jobpulse/notifier/internal/logger"
	"github.com/jobpulse/notifier/internal/model"
	"github.com/jobpulse/notifier/internal/profiles"
	"github.com/jobpulse/notifier/internal/store"
)

// Bounds for the offer lookback window.
const (
	MinDaysBack = 1
	MaxDaysBack = 30
)

// DefaultMaxSkills caps the skills sent per profile query, keeping request
// URLs bounded.
const DefaultMaxSkills = 10

const previewLimit = 200

// OfferSource lists recently published active offers, newest first.
type OfferSource interface {
	ListRecentActiveOffers(ctx context.Context, since time.Time) ([]model.Offer, error)
}

// Ledger is the notified-offer bookkeeping collaborator.
type Ledger interface {
	FilterUnnotified(ctx context.Context, offerIDs []int64) ([]int64, error)
	MarkNotified(ctx context.Context, entry *model.NotifiedOffer) error
}

// SkillExtractor extracts controlled-vocabulary skills from free text.
type SkillExtractor interface {
	Extract(text string) []string
}

// Matcher finds users compatible with a skill set.
type Matcher interface {
	FindCompatibleUsers(ctx context.Context, skillNames []string) ([]string, error)
}

// OfferEmitter persists one notification per matched user.
type OfferEmitter interface {
	OfferMatch(ctx context.Context, offer model.Offer, userID string) (*model.Notification, error)
}

// OffersDeps aggregates the collaborators of the offer pipeline.
type OffersDeps struct {
	Source    OfferSource
	Ledger    Ledger
	Extractor SkillExtractor
	Matcher   Matcher
	Emitter   OfferEmitter
	Logger    *zap.Logger
}

// OffersConfig tunes one offer reconciliation run.
type OffersConfig struct {
	// DaysBack is the lookback window for recently published offers.
	DaysBack int
	// MaxSkills caps the skills passed to the matcher per offer. Zero means
	// unbounded.
	MaxSkills int
}

// Offers is the offer reconciliation pipeline.
type Offers struct {
	cfg  OffersConfig
	deps OffersDeps
}

// NewOffers validates the configuration and builds the pipeline.
func NewOffers(cfg OffersConfig, deps OffersDeps) (*Offers, error) {
	if cfg.DaysBack < MinDaysBack || cfg.DaysBack > MaxDaysBack {
		return nil, fmt.Errorf("days back must be between %d and %d, got %d", MinDaysBack, MaxDaysBack, cfg.DaysBack)
	}
	if cfg.MaxSkills < 0 {
		return nil, fmt.Errorf("max skills must not be negative, got %d", cfg.MaxSkills)
	}
	return &Offers{cfg: cfg, deps: deps}, nil
}

// OfferDetail describes the outcome for a single offer within a run.
type OfferDetail struct {
	OfferID       int64  `json:"offer_id"`
	Title         string `json:"title"`
	SkillsFound   int    `json:"skills_found"`
	SkillsUsed    int    `json:"skills_used"`
	UsersNotified int    `json:"users_notified"`
	Skipped       string `json:"skipped,omitempty"`
}

// OffersSummary aggregates one offer reconciliation run.
type OffersSummary struct {
	RunID                string        `json:"run_id"`
	Message              string        `json:"message"`
	OffersScanned        int           `json:"offers_scanned"`
	AlreadyNotified      int           `json:"already_notified"`
	OffersProcessed      int           `json:"offers_processed"`
	OffersWithUsers      int           `json:"offers_with_users"`
	NotificationsCreated int           `json:"notifications_created"`
	Details              []OfferDetail `json:"details,omitempty"`
	Errors               []string      `json:"errors,omitempty"`
}

// Run executes one reconciliation pass. Per-offer failures are collected into
// the summary and never abort the run; only an unreachable analytics source,
// a failed ledger filter or a failed profile-service login is fatal.
func (p *Offers) Run(ctx context.Context) (*OffersSummary, error) {
	summary := &OffersSummary{RunID: uuid.NewString()}
	log := p.deps.Logger.With(zap.String("run_id", summary.RunID))

	fresh, offers, err := p.freshOffers(ctx, summary)
	if err != nil {
		return nil, err
	}
	if len(fresh) == 0 {
		return summary, nil
	}

	for _, offer := range offers {
		if !fresh[offer.ID] {
			continue
		}
		if err := p.processOffer(ctx, log, offer, summary); err != nil {
			return summary, err
		}
	}

	summary.Message = fmt.Sprintf("processed %d new offers", summary.OffersProcessed)
	log.Info("offer reconciliation finished",
		zap.Int("scanned", summary.OffersScanned),
		zap.Int("processed", summary.OffersProcessed),
		zap.Int("notifications", summary.NotificationsCreated),
		zap.Int("errors", len(summary.Errors)),
	)
	return summary, nil
}

// freshOffers fetches the window of recent offers and bulk-filters out the
// ones already in the ledger. The returned set holds the offer ids still to
// be processed.
func (p *Offers) freshOffers(ctx context.Context, summary *OffersSummary) (map[int64]bool, []model.Offer, error) {
	since := time.Now().UTC().AddDate(0, 0, -p.cfg.DaysBack)
	offers, err := p.deps.Source.ListRecentActiveOffers(ctx, since)
	if err != nil {
		return nil, nil, fmt.Errorf("list recent offers: %w", err)
	}

	summary.OffersScanned = len(offers)
	if len(offers) == 0 {
		summary.Message = "no new offers to process"
		return nil, nil, nil
	}

	ids := make([]int64, 0, len(offers))
	for _, offer := range offers {
		ids = append(ids, offer.ID)
	}

	unnotified, err := p.deps.Ledger.FilterUnnotified(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("filter notified offers: %w", err)
	}

	summary.AlreadyNotified = len(offers) - len(unnotified)
	summary.OffersProcessed = len(unnotified)
	if len(unnotified) == 0 {
		summary.Message = "all recent offers were already notified"
		return nil, nil, nil
	}

	fresh := make(map[int64]bool, len(unnotified))
	for _, id := range unnotified {
		fresh[id] = true
	}
	return fresh, offers, nil
}

// processOffer handles a single offer. A returned error aborts the whole run
// and is reserved for fatal conditions; everything else lands in the summary.
func (p *Offers) processOffer(ctx context.Context, log *zap.Logger, offer model.Offer, summary *OffersSummary) error {
	if err := offer.Validate(); err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("offer %d: %v", offer.ID, err))
		return nil
	}

	found := p.deps.Extractor.Extract(offer.Requirements)
	if len(found) == 0 {
		// No ledger entry: the offer stays eligible for a future run in case
		// its requirements text gets enriched.
		log.Info("offer has no recognizable skills, skipping", zap.Int64("offer_id", offer.ID))
		summary.Details = append(summary.Details, OfferDetail{
			OfferID: offer.ID,
			Title:   offer.Title,
			Skipped: "no recognizable skills",
		})
		return nil
	}

	used := found
	if p.cfg.MaxSkills > 0 && len(found) > p.cfg.MaxSkills {
		used = found[:p.cfg.MaxSkills]
		log.Debug("capping extracted skills",
			zap.Int64("offer_id", offer.ID),
			zap.Int("found", len(found)),
			zap.Int("used", len(used)),
		)
	}

	users, err := p.deps.Matcher.FindCompatibleUsers(ctx, used)
	if err != nil {
		if errors.Is(err, profiles.ErrLogin) {
			return fmt.Errorf("offer %d: %w", offer.ID, err)
		}
		summary.Errors = append(summary.Errors, fmt.Sprintf("offer %d: %v", offer.ID, err))
		return nil
	}

	if len(users) == 0 {
		log.Info("no compatible users for offer", zap.Int64("offer_id", offer.ID))
		summary.Details = append(summary.Details, OfferDetail{
			OfferID:     offer.ID,
			Title:       offer.Title,
			SkillsFound: len(found),
			SkillsUsed:  len(used),
			Skipped:     "no compatible users",
		})
		return nil
	}

	created := 0
	for _, userID := range users {
		if _, err := p.deps.Emitter.OfferMatch(ctx, offer, userID); err != nil {
			log.Warn("notification creation failed",
				zap.Int64("offer_id", offer.ID),
				zap.String("user_id", userID),
				zap.Error(err),
			)
			summary.Errors = append(summary.Errors, fmt.Sprintf("offer %d: %v", offer.ID, err))
			continue
		}
		created++
	}

	entry := &model.NotifiedOffer{
		OfferID:         offer.ID,
		CompanyID:       offer.CompanyID,
		Title:           offer.Title,
		PublicationDate: offer.PublicationDate,
		UsersNotified:   created,
	}
	if err := p.deps.Ledger.MarkNotified(ctx, entry); err != nil {
		if errors.Is(err, store.ErrConflict) {
			log.Warn("offer was recorded by a concurrent run", zap.Int64("offer_id", offer.ID))
			summary.Errors = append(summary.Errors, fmt.Sprintf("offer %d: recorded by a concurrent run", offer.ID))
		} else {
			summary.Errors = append(summary.Errors, fmt.Sprintf("offer %d: %v", offer.ID, err))
		}
	}

	summary.NotificationsCreated += created
	summary.OffersWithUsers++
	summary.Details = append(summary.Details, OfferDetail{
		OfferID:       offer.ID,
		Title:         offer.Title,
		SkillsFound:   len(found),
		SkillsUsed:    len(used),
		UsersNotified: created,
	})
	return nil
}

// OfferAnalysis describes skill extraction for one offer during a dry run.
type OfferAnalysis struct {
	OfferID             int64    `json:"offer_id"`
	Title               string   `json:"title"`
	CompanyID           string   `json:"company_id"`
	RequirementsPreview string   `json:"requirements_preview"`
	Skills              []string `json:"skills,omitempty"`
	SkillsUsed          int      `json:"skills_used"`
	TotalSkills         int      `json:"total_skills"`
}

// AnalysisSummary aggregates a dry run.
type AnalysisSummary struct {
	RunID             string          `json:"run_id"`
	Message           string          `json:"message"`
	OffersAnalyzed    int             `json:"offers_analyzed"`
	TotalSkillsFound  int             `json:"total_skills_found"`
	AvgSkillsPerOffer float64         `json:"avg_skills_per_offer"`
	Offers            []OfferAnalysis `json:"offers,omitempty"`
}

// Analyze performs the fetch, dedup and skill-extraction steps without
// querying the profile service or creating notifications. Intended for
// operability and debugging.
func (p *Offers) Analyze(ctx context.Context) (*AnalysisSummary, error) {
	summary := &AnalysisSummary{RunID: uuid.NewString()}

	offersSummary := &OffersSummary{}
	fresh, offers, err := p.freshOffers(ctx, offersSummary)
	if err != nil {
		return nil, err
	}
	if len(fresh) == 0 {
		summary.Message = offersSummary.Message
		return summary, nil
	}

	for _, offer := range offers {
		if !fresh[offer.ID] {
			continue
		}

		found := p.deps.Extractor.Extract(offer.Requirements)
		used := len(found)
		shown := found
		if p.cfg.MaxSkills > 0 && len(found) > p.cfg.MaxSkills {
			used = p.cfg.MaxSkills
			shown = found[:p.cfg.MaxSkills]
		}

		summary.TotalSkillsFound += len(found)
		summary.Offers = append(summary.Offers, OfferAnalysis{
			OfferID:             offer.ID,
			Title:               offer.Title,
			CompanyID:           offer.CompanyID,
			RequirementsPreview: logger.TruncateForLog(offer.Requirements, previewLimit),
			Skills:              shown,
			SkillsUsed:          used,
			TotalSkills:         len(found),
		})
	}

	summary.OffersAnalyzed = len(summary.Offers)
	if summary.OffersAnalyzed > 0 {
		avg := float64(summary.TotalSkillsFound) / float64(summary.OffersAnalyzed)
		summary.AvgSkillsPerOffer = math.Round(avg*100) / 100
	}
	summary.Message = "analysis completed without notifying"
	return summary, nil
}
