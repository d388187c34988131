// Package model defines the typed entities shared across the pipeline.
// Records coming from the analytics source are validated at the boundary
// instead of being passed around as loose maps.
package model

import (
	"errors"
	"strings"
	"time"
)

// Notification types created by this service.
const (
	TypeOfferMatch      = "NUEVA_OFERTA_COMPATIBLE"
	TypeNewApplications = "NUEVA_POSTULACION"
)

// OfferStatus is the closed set of statuses an offer can carry. Values coming
// from the analytics source are matched case-insensitively.
type OfferStatus string

const (
	StatusLow    OfferStatus = "LOW"
	StatusMedium OfferStatus = "MEDIUM"
	StatusHigh   OfferStatus = "HIGH"
	StatusUrgent OfferStatus = "URGENT"
)

// Numeric notification priorities.
const (
	PriorityLow    = 1
	PriorityMedium = 2
	PriorityHigh   = 3
)

// Priority maps an offer status to a notification priority. Unknown or empty
// statuses map to PriorityMedium.
func (s OfferStatus) Priority() int {
	switch OfferStatus(strings.ToUpper(string(s))) {
	case StatusLow:
		return PriorityLow
	case StatusMedium:
		return PriorityMedium
	case StatusHigh, StatusUrgent:
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// Offer is a job offer as published in the analytics store. Read-only for
// this service.
type Offer struct {
	ID              int64
	Title           string
	Subtitle        string
	Description     string
	Modality        string
	Salary          int64
	Requirements    string
	Benefits        string
	YearsExperience int
	Location        string
	Journey         string
	Schedule        string
	AvailablePlaces int
	Status          OfferStatus
	ContractType    string
	PaymentType     string
	PublicationDate time.Time
	ClosingDate     *time.Time
	CompanyID       string
	CategoryID      int64
}

// Validate reports whether the offer carries the fields the pipeline depends
// on. Offers failing validation are skipped and reported, never processed.
func (o *Offer) Validate() error {
	if o.ID == 0 {
		return errors.New("offer id is missing")
	}
	if strings.TrimSpace(o.Title) == "" {
		return errors.New("offer title is missing")
	}
	if strings.TrimSpace(o.CompanyID) == "" {
		return errors.New("offer company id is missing")
	}
	if o.PublicationDate.IsZero() {
		return errors.New("offer publication date is missing")
	}
	return nil
}

// NotifiedOffer is a ledger entry recording that an offer already produced
// notifications. Created exactly once per offer id and never mutated.
type NotifiedOffer struct {
	ID              int64
	OfferID         int64
	CompanyID       string
	Title           string
	PublicationDate time.Time
	NotifiedAt      time.Time
	UsersNotified   int
}

// Snapshot stores the last known applicant total for a convocatoria. It is
// upserted on every reconciliation run.
type Snapshot struct {
	ID             int64
	CompanyID      string
	ConvocatoriaID int64
	Title          string
	Total          int
	UpdatedAt      time.Time
}

// PostingTotals is one row of the aggregated analytics view with the current
// applicant total per convocatoria.
type PostingTotals struct {
	CompanyID      string
	ConvocatoriaID int64
	Title          string
	Total          int
}

// Increment is the detected growth in applications for one convocatoria
// between the previous snapshot and the current totals.
type Increment struct {
	CompanyID      string
	ConvocatoriaID int64
	Title          string
	PreviousTotal  int
	CurrentTotal   int
	New            int
}

// Notification is a persisted notification record. UserID is empty for
// company-addressed notifications.
type Notification struct {
	ID        int64
	UserID    string
	CompanyID string
	Type      string
	Subject   string
	Message   string
	OfferID   int64
	Priority  int
	Metadata  string
	Read      bool
	ReadAt    *time.Time
	CreatedAt time.Time
}

// LedgerStats summarizes the notified-offer ledger for diagnostics.
type LedgerStats struct {
	OffersNotified     int
	UsersNotified      int
	TopByUsersNotified []NotifiedOffer
}
