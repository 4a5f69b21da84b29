package lifecycle

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/ride-marketplace/internal/models"
	"github.com/example/ride-marketplace/internal/observability"
	"github.com/example/ride-marketplace/internal/storage"
)

// Event kinds published on lifecycle transitions.
const (
	EventPosted    = "ride_posted"
	EventApplied   = "driver_applied"
	EventConfirmed = "ride_confirmed"
	EventCancelled = "ride_cancelled"
	EventCompleted = "ride_completed"
)

// Publisher receives lifecycle events. Publishing is best-effort; a failed
// publish never fails the operation.
type Publisher interface {
	Publish(ctx context.Context, kind string, r *models.RideRequest) error
}

// Notifier pushes a confirmation to the selected driver's live session.
type Notifier interface {
	RideConfirmed(driverID string, r *models.RideRequest) error
}

// Controller enforces the ride request state machine:
//
//	posted -> confirmed -> completed
//	posted|confirmed -> cancelled
//
// completed and cancelled are terminal. The single-winner guarantee for
// SelectDriver rests on the store's compare-and-swap primitives: the
// precondition read orders the error taxonomy, the swap decides the race.
type Controller struct {
	Requests storage.RequestStore
	Apps     storage.ApplicationStore
	Events   Publisher // optional
	Notify   Notifier  // optional
	Now      func() time.Time
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// CreateRequest posts a new ride request owned by the passenger.
func (c *Controller) CreateRequest(ctx context.Context, passengerID, pickup, dropoff string, targetTime time.Time, fare float64) (*models.RideRequest, error) {
	pickup = strings.TrimSpace(pickup)
	dropoff = strings.TrimSpace(dropoff)
	if pickup == "" {
		return nil, fmt.Errorf("%w: pickup location required", ErrValidation)
	}
	if dropoff == "" {
		return nil, fmt.Errorf("%w: dropoff location required", ErrValidation)
	}
	if targetTime.IsZero() {
		return nil, fmt.Errorf("%w: target time required", ErrValidation)
	}
	if fare < 0 {
		return nil, fmt.Errorf("%w: desired fare must be non-negative", ErrValidation)
	}
	r := &models.RideRequest{
		ID:          newID(),
		PassengerID: passengerID,
		Pickup:      pickup,
		Dropoff:     dropoff,
		TargetTime:  targetTime,
		DesiredFare: fare,
		Status:      models.StatusPosted,
		CreatedAt:   c.now(),
	}
	if err := c.Requests.Insert(ctx, r); err != nil {
		return nil, err
	}
	observability.RequestsPosted.Inc()
	c.publish(ctx, EventPosted, r)
	return r, nil
}

// Apply records a driver's application to a posted request. The uniqueness
// of (request, driver) is enforced by the application store.
func (c *Controller) Apply(ctx context.Context, requestID, driverID string) (*models.Application, error) {
	r, err := c.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if r.Status != models.StatusPosted {
		return nil, ErrInvalidTransition
	}
	app := &models.Application{
		ID:            newID(),
		RideRequestID: requestID,
		DriverID:      driverID,
		AppliedAt:     c.now(),
	}
	if err := c.Apps.Insert(ctx, app); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrDuplicateApplication
		}
		return nil, err
	}
	c.publish(ctx, EventApplied, r)
	return app, nil
}

// SelectDriver confirms the request with the chosen driver. At most one
// call ever succeeds per request; concurrent callers lose the swap and
// observe ErrInvalidTransition.
func (c *Controller) SelectDriver(ctx context.Context, requestID, driverID, callerID string) (*models.RideRequest, error) {
	r, err := c.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if r.PassengerID != callerID {
		return nil, ErrForbidden
	}
	if r.Status != models.StatusPosted {
		return nil, ErrInvalidTransition
	}
	if _, err := c.Apps.Find(ctx, requestID, driverID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnmatchedDriver
		}
		return nil, err
	}
	ok, err := c.Requests.Confirm(ctx, requestID, driverID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// lost the race to another select or a cancel
		return nil, ErrInvalidTransition
	}
	r.Status = models.StatusConfirmed
	r.DriverID = driverID
	observability.RequestsConfirmed.Inc()
	c.publish(ctx, EventConfirmed, r)
	if c.Notify != nil {
		_ = c.Notify.RideConfirmed(driverID, r)
	}
	return r, nil
}

// Cancel moves a posted or confirmed request to cancelled. Either the owning
// passenger or the assigned driver may cancel. The driver assignment is
// cleared so that DriverID remains set only on confirmed/completed records.
func (c *Controller) Cancel(ctx context.Context, requestID, callerID string) (*models.RideRequest, error) {
	r, err := c.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if r.PassengerID != callerID && (r.DriverID == "" || r.DriverID != callerID) {
		return nil, ErrForbidden
	}
	switch r.Status {
	case models.StatusCompleted:
		return nil, ErrAlreadyCompleted
	case models.StatusCancelled:
		return nil, ErrInvalidTransition
	}
	ok, err := c.Requests.Cancel(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	r.Status = models.StatusCancelled
	r.DriverID = ""
	observability.RequestsCancelled.Inc()
	c.publish(ctx, EventCancelled, r)
	return r, nil
}

// Complete moves a confirmed request to completed. Only the assigned driver
// may complete.
func (c *Controller) Complete(ctx context.Context, requestID, callerID string) (*models.RideRequest, error) {
	r, err := c.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if r.DriverID == "" || r.DriverID != callerID {
		return nil, ErrForbidden
	}
	if r.Status != models.StatusConfirmed {
		return nil, ErrInvalidTransition
	}
	ok, err := c.Requests.Complete(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	r.Status = models.StatusCompleted
	observability.RequestsCompleted.Inc()
	c.publish(ctx, EventCompleted, r)
	return r, nil
}

// ListByStatus returns requests in the given status, newest first.
func (c *Controller) ListByStatus(ctx context.Context, status models.Status) ([]models.RideRequest, error) {
	return c.Requests.ListByStatus(ctx, status)
}

// ListAll returns every request, optionally filtered by status, newest
// first. Intended for admin aggregation.
func (c *Controller) ListAll(ctx context.Context, status *models.Status) ([]models.RideRequest, error) {
	return c.Requests.ListAll(ctx, status)
}

// ListByPassenger returns the caller's own requests, newest first.
func (c *Controller) ListByPassenger(ctx context.Context, passengerID string) ([]models.RideRequest, error) {
	return c.Requests.ListByPassenger(ctx, passengerID)
}

// ListApplications returns the applications for a request. Only the owning
// passenger may read them.
func (c *Controller) ListApplications(ctx context.Context, requestID, callerID string) ([]models.Application, error) {
	r, err := c.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if r.PassengerID != callerID {
		return nil, ErrForbidden
	}
	return c.Apps.ListByRequest(ctx, requestID)
}

func (c *Controller) getRequest(ctx context.Context, id string) (*models.RideRequest, error) {
	r, err := c.Requests.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func (c *Controller) publish(ctx context.Context, kind string, r *models.RideRequest) {
	if c.Events == nil {
		return
	}
	_ = c.Events.Publish(ctx, kind, r) // best-effort
}

func newID() string { b := make([]byte, 12); _, _ = rand.Read(b); return hex.EncodeToString(b) }
