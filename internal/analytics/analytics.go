// Package analytics reads job offers and postulation aggregates from the
// analytical warehouse. All queries are read-only; this service never writes
// to the warehouse.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/jobpulse/notifier/internal/model"
)

const (
	connectTimeout = 30 * time.Second
	queryTimeout   = 60 * time.Second
)

// Source is the analytics warehouse client.
type Source struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New connects to the warehouse and verifies the connection. The initial ping
// is retried with backoff since the warehouse may still be warming up when a
// scheduled run starts.
func New(ctx context.Context, dsn string, logger *zap.Logger) (*Source, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create analytics pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	backoff := retry.WithMaxRetries(5, retry.NewFibonacci(500*time.Millisecond))
	err = retry.Do(pingCtx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			logger.Warn("analytics ping failed, retrying", zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping analytics: %w", err)
	}

	return &Source{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Source) Close() {
	s.pool.Close()
}

// withQueryTimeout bounds a single warehouse query. Callers pass run-scoped
// contexts without deadlines; a wedged connection must not hang a scheduled
// run forever.
func withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, queryTimeout)
}

// ListRecentActiveOffers returns active offers published at or after since,
// newest first.
func (s *Source) ListRecentActiveOffers(ctx context.Context, since time.Time) ([]model.Offer, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id, title, subtitle, description, modality, salary, requirements,
		        benefits, years_experience, location, journey, schedule,
		        available_places, status, contract_type, payment_type,
		        publication_date, closing_date, company_id, category_id
		 FROM offers
		 WHERE publication_date >= $1
		   AND closing_date IS NULL
		 ORDER BY publication_date DESC`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent offers: %w", err)
	}
	defer rows.Close()

	var offers []model.Offer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, offer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offers: %w", err)
	}

	s.logger.Debug("fetched recent offers",
		zap.Time("since", since),
		zap.Int("count", len(offers)),
	)
	return offers, nil
}

// ListApplicantTotalsByPosting returns the current applicant total per
// convocatoria from the aggregated view.
func (s *Source) ListApplicantTotalsByPosting(ctx context.Context) ([]model.PostingTotals, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT company_id, convocatoria_id, title, total_applicants
		 FROM applicants_by_convocatoria`,
	)
	if err != nil {
		return nil, fmt.Errorf("query applicant totals: %w", err)
	}
	defer rows.Close()

	var totals []model.PostingTotals
	for rows.Next() {
		var pt model.PostingTotals
		if err := rows.Scan(&pt.CompanyID, &pt.ConvocatoriaID, &pt.Title, &pt.Total); err != nil {
			return nil, fmt.Errorf("scan applicant totals: %w", err)
		}
		totals = append(totals, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applicant totals: %w", err)
	}

	s.logger.Debug("fetched applicant totals", zap.Int("count", len(totals)))
	return totals, nil
}

func scanOffer(row pgx.Row) (model.Offer, error) {
	var o model.Offer
	var subtitle, description, modality, requirements, benefits *string
	var location, journey, schedule, status, contractType, paymentType *string
	var salary, categoryID *int64
	var yearsExperience, availablePlaces *int
	var closing *time.Time

	err := row.Scan(
		&o.ID, &o.Title, &subtitle, &description, &modality, &salary, &requirements,
		&benefits, &yearsExperience, &location, &journey, &schedule,
		&availablePlaces, &status, &contractType, &paymentType,
		&o.PublicationDate, &closing, &o.CompanyID, &categoryID,
	)
	if err != nil {
		return o, fmt.Errorf("scan offer: %w", err)
	}

	o.Subtitle = deref(subtitle)
	o.Description = deref(description)
	o.Modality = deref(modality)
	o.Requirements = deref(requirements)
	o.Benefits = deref(benefits)
	o.Location = deref(location)
	o.Journey = deref(journey)
	o.Schedule = deref(schedule)
	o.Status = model.OfferStatus(deref(status))
	o.ContractType = deref(contractType)
	o.PaymentType = deref(paymentType)
	o.ClosingDate = closing
	if salary != nil {
		o.Salary = *salary
	}
	if yearsExperience != nil {
		o.YearsExperience = *yearsExperience
	}
	if availablePlaces != nil {
		o.AvailablePlaces = *availablePlaces
	}
	if categoryID != nil {
		o.CategoryID = *categoryID
	}
	return o, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
