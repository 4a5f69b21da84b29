package storage

import (
	"context"
	"errors"

	"github.com/example/ride-marketplace/internal/models"
)

var (
	// ErrNotFound means the keyed record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate means a uniqueness constraint rejected the insert.
	ErrDuplicate = errors.New("duplicate record")
)

// RequestStore persists ride requests. Confirm, Cancel and Complete are
// compare-and-swap transitions: they apply only when the current status
// still permits the move and report whether the swap took effect, so that
// exactly one concurrent caller can win a given transition.
type RequestStore interface {
	Insert(ctx context.Context, r *models.RideRequest) error
	Get(ctx context.Context, id string) (*models.RideRequest, error)

	// Confirm sets driverID and status=confirmed iff status is posted.
	Confirm(ctx context.Context, id, driverID string) (bool, error)
	// Cancel sets status=cancelled and clears the driver iff status is
	// posted or confirmed.
	Cancel(ctx context.Context, id string) (bool, error)
	// Complete sets status=completed iff status is confirmed.
	Complete(ctx context.Context, id string) (bool, error)

	// ListByStatus returns requests in a status, newest first.
	ListByStatus(ctx context.Context, status models.Status) ([]models.RideRequest, error)
	// ListAll returns every request, optionally filtered, newest first.
	ListAll(ctx context.Context, status *models.Status) ([]models.RideRequest, error)
	// ListByPassenger returns a passenger's requests, newest first.
	ListByPassenger(ctx context.Context, passengerID string) ([]models.RideRequest, error)
}

// ApplicationStore persists driver applications and enforces the uniqueness
// of (rideRequestId, driverId). Applications are insert-only.
type ApplicationStore interface {
	Insert(ctx context.Context, a *models.Application) error
	Find(ctx context.Context, requestID, driverID string) (*models.Application, error)
	ListByRequest(ctx context.Context, requestID string) ([]models.Application, error)
}

// UserStore persists accounts. Email is unique.
type UserStore interface {
	Insert(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	// SetActive flips the active flag; false return means no such user.
	SetActive(ctx context.Context, id string, active bool) (bool, error)
}

// PaymentStore persists payment records.
type PaymentStore interface {
	Insert(ctx context.Context, p *models.Payment) error
	Get(ctx context.Context, id string) (*models.Payment, error)
	MarkReceiptSent(ctx context.Context, id string) (*models.Payment, error)
}
