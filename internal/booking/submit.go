package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"tablebook/internal/metrics"
	"tablebook/internal/model"
	"tablebook/internal/restapi"
)

// Creator creates reservations upstream.
type Creator interface {
	CreateReservation(ctx context.Context, rc model.ReservationCreate) (*model.Reservation, error)
}

// Submitter validates drafts and sends them upstream once.
type Submitter struct {
	api       Creator
	validator Validator
	logger    zerolog.Logger
}

// NewSubmitter creates a submitter. contactThreshold <= 0 means the default.
func NewSubmitter(api Creator, contactThreshold int, logger zerolog.Logger) *Submitter {
	return &Submitter{
		api:       api,
		validator: Validator{ContactThreshold: contactThreshold},
		logger:    logger,
	}
}

// Validate runs the submission preconditions without sending anything.
func (s *Submitter) Validate(d Draft) error {
	err := s.validator.Validate(d)
	var verr *ValidationError
	if errors.As(err, &verr) {
		metrics.IncValidationFailure(verr.Reason)
	}
	return err
}

// Submit validates the draft and issues a single create call. The backend
// decides conflicts; its rejection is returned as *restapi.APIError and is
// not retried.
func (s *Submitter) Submit(ctx context.Context, d Draft) (*model.Reservation, error) {
	if err := s.Validate(d); err != nil {
		return nil, err
	}

	res, err := s.api.CreateReservation(ctx, d.Create())
	if err != nil {
		var apiErr *restapi.APIError
		if errors.As(err, &apiErr) {
			metrics.IncReservationSubmitted("rejected")
			s.logger.Info().Int("status", apiErr.Status).Str("detail", apiErr.Detail).
				Str("slot", d.ConfirmedSlot).Msg("reservation rejected upstream")
			return nil, err
		}
		metrics.IncReservationSubmitted("error")
		return nil, fmt.Errorf("create reservation: %w", err)
	}

	metrics.IncReservationSubmitted("created")
	s.logger.Info().Str("reservation_id", res.ID).Str("date", d.ReservationDate).
		Str("start", d.StartTime).Int("party", d.PartySize).Msg("reservation created")
	return res, nil
}
