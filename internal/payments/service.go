package payments

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/example/ride-marketplace/internal/models"
	"github.com/example/ride-marketplace/internal/observability"
	"github.com/example/ride-marketplace/internal/storage"
)

var (
	// ErrValidation marks malformed payment input.
	ErrValidation = errors.New("invalid payment input")
	// ErrNotFound is returned when the payment record is absent.
	ErrNotFound = errors.New("payment not found")
)

// CardProcessor is the hold/capture/release surface of the card path.
type CardProcessor interface {
	Hold(ctx context.Context, amount int64, currency, customerID string) (string, error)
	Capture(ctx context.Context, paymentIntentID string) error
	Release(ctx context.Context, paymentIntentID string) error
}

// Service records settlements. Cash is recorded directly as completed; for
// card rides it tracks the fare hold across the ride lifecycle.
type Service struct {
	Store    storage.PaymentStore
	Cards    CardProcessor // optional
	Currency string
	Logger   *slog.Logger

	mu    sync.Mutex
	holds map[string]string // ride request id -> payment intent id
}

// RecordCash stores a completed cash payment for a ride.
func (s *Service) RecordCash(ctx context.Context, rideRequestID string, amount float64) (*models.Payment, error) {
	if rideRequestID == "" {
		return nil, fmt.Errorf("%w: ride request id required", ErrValidation)
	}
	if amount < 0 {
		return nil, fmt.Errorf("%w: amount must be non-negative", ErrValidation)
	}
	p := &models.Payment{
		ID:            newID(),
		RideRequestID: rideRequestID,
		Amount:        amount,
		Method:        "cash",
		Status:        models.PaymentCompleted,
		CreatedAt:     time.Now(),
	}
	if err := s.Store.Insert(ctx, p); err != nil {
		return nil, err
	}
	observability.PaymentsRecorded.Inc()
	return p, nil
}

// SendReceipt stamps the receipt time on a payment.
func (s *Service) SendReceipt(ctx context.Context, paymentID string) (*models.Payment, error) {
	p, err := s.Store.MarkReceiptSent(ctx, paymentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// HoldFare places a manual-capture hold for a confirmed ride. Best-effort:
// a processor failure is logged, never propagated to the ride transition.
func (s *Service) HoldFare(ctx context.Context, r *models.RideRequest) {
	if s.Cards == nil {
		return
	}
	amount := int64(math.Round(r.DesiredFare * 100))
	id, err := s.Cards.Hold(ctx, amount, s.currency(), "")
	if err != nil {
		s.warn("fare hold failed", r.ID, err)
		return
	}
	s.mu.Lock()
	if s.holds == nil {
		s.holds = make(map[string]string)
	}
	s.holds[r.ID] = id
	s.mu.Unlock()
}

// CaptureFare captures the hold when the ride completes.
func (s *Service) CaptureFare(ctx context.Context, rideRequestID string) {
	if id, ok := s.takeHold(rideRequestID); ok {
		if err := s.Cards.Capture(ctx, id); err != nil {
			s.warn("fare capture failed", rideRequestID, err)
		}
	}
}

// ReleaseFare releases the hold when the ride is cancelled.
func (s *Service) ReleaseFare(ctx context.Context, rideRequestID string) {
	if id, ok := s.takeHold(rideRequestID); ok {
		if err := s.Cards.Release(ctx, id); err != nil {
			s.warn("fare release failed", rideRequestID, err)
		}
	}
}

func (s *Service) takeHold(rideRequestID string) (string, bool) {
	if s.Cards == nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.holds[rideRequestID]
	if ok {
		delete(s.holds, rideRequestID)
	}
	return id, ok
}

func (s *Service) currency() string {
	if s.Currency == "" {
		return "usd"
	}
	return s.Currency
}

func (s *Service) warn(msg, rideRequestID string, err error) {
	if s.Logger != nil {
		s.Logger.Warn(msg, "ride_request_id", rideRequestID, "error", err)
	}
}

func newID() string { b := make([]byte, 12); _, _ = rand.Read(b); return hex.EncodeToString(b) }
