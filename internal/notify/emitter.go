// Package notify turns pipeline decisions into persisted notification
// records.
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jobpulse/notifier/internal/model"
)

// Store is the notification store collaborator. It assigns the id and
// creation timestamp.
type Store interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
}

// Emitter composes and persists notifications.
type Emitter struct {
	store  Store
	logger *zap.Logger
}

// New builds an Emitter on top of the given store.
func New(store Store, logger *zap.Logger) *Emitter {
	return &Emitter{store: store, logger: logger}
}

// OfferMatch creates one notification telling a user about a compatible
// offer. Priority derives from the offer status; the record starts unread.
func (e *Emitter) OfferMatch(ctx context.Context, offer model.Offer, userID string) (*model.Notification, error) {
	n := &model.Notification{
		UserID:    userID,
		CompanyID: offer.CompanyID,
		Type:      model.TypeOfferMatch,
		Subject:   fmt.Sprintf("Nueva oferta: %s", offer.Title),
		Message: fmt.Sprintf("Hay una nueva oferta que coincide con tu perfil: '%s' en %s. Salario: $%d",
			offer.Title, offer.Location, offer.Salary),
		OfferID:  offer.ID,
		Priority: offer.Status.Priority(),
		Metadata: fmt.Sprintf("modalidad:%s,ubicacion:%s", offer.Modality, offer.Location),
	}

	if err := e.store.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("create offer notification for user %s: %w", userID, err)
	}

	e.logger.Debug("created offer notification",
		zap.Int64("offer_id", offer.ID),
		zap.String("user_id", userID),
		zap.Int("priority", n.Priority),
	)
	return n, nil
}

// NewApplications creates one notification telling a company about new
// applications on a convocatoria. Phrasing differs for a single application.
func (e *Emitter) NewApplications(ctx context.Context, inc model.Increment) (*model.Notification, error) {
	var message string
	if inc.New == 1 {
		message = fmt.Sprintf("Tienes 1 nueva postulación en '%s'. Total: %d", inc.Title, inc.CurrentTotal)
	} else {
		message = fmt.Sprintf("Tienes %d nuevas postulaciones en '%s'. Total: %d", inc.New, inc.Title, inc.CurrentTotal)
	}

	n := &model.Notification{
		CompanyID: inc.CompanyID,
		Type:      model.TypeNewApplications,
		Subject:   fmt.Sprintf("Nuevas postulaciones en %s", inc.Title),
		Message:   message,
		OfferID:   inc.ConvocatoriaID,
		Priority:  model.PriorityMedium,
		Metadata:  fmt.Sprintf("nuevas:%d,total:%d", inc.New, inc.CurrentTotal),
	}

	if err := e.store.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("create applications notification for convocatoria %d: %w", inc.ConvocatoriaID, err)
	}

	e.logger.Debug("created applications notification",
		zap.Int64("convocatoria_id", inc.ConvocatoriaID),
		zap.Int("new", inc.New),
		zap.Int("total", inc.CurrentTotal),
	)
	return n, nil
}
