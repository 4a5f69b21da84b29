package models

import "time"

// Role is the closed set of account roles. Authorization checks switch on
// Role rather than comparing raw strings.
type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
	RoleAdmin     Role = "admin"
)

// ParseRole maps a wire string onto the closed role set.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RolePassenger, RoleDriver, RoleAdmin:
		return Role(s), true
	default:
		return "", false
	}
}

// Status is a ride request's lifecycle state.
type Status string

const (
	StatusPosted    Status = "posted"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus maps a wire string onto the closed status set.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPosted, StatusConfirmed, StatusCompleted, StatusCancelled:
		return Status(s), true
	default:
		return "", false
	}
}

// Terminal reports whether no further transition may leave this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// RideRequest is a passenger's solicitation for a ride. DriverID is empty
// unless the status is confirmed or completed.
type RideRequest struct {
	ID          string    `json:"rideRequestId"`
	PassengerID string    `json:"passengerId"`
	Pickup      string    `json:"pickupLocation"`
	Dropoff     string    `json:"dropoffLocation"`
	TargetTime  time.Time `json:"targetTime"`
	DesiredFare float64   `json:"desiredFare"`
	Status      Status    `json:"status"`
	DriverID    string    `json:"driverId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Application records a driver's intent to fulfill a request. At most one
// exists per (request, driver) pair; applications are never mutated.
type Application struct {
	ID            string    `json:"applicationId"`
	RideRequestID string    `json:"rideRequestId"`
	DriverID      string    `json:"driverId"`
	AppliedAt     time.Time `json:"appliedAt"`
}

// User is an account in the marketplace.
type User struct {
	ID           string    `json:"userId"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	Phone        string    `json:"phone,omitempty"`
	Active       bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PaymentStatus is the settlement state of a payment record.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
)

// Payment records settlement for a ride. Cash is the only method that
// settles in-band; card payments go through the hold/capture flow.
type Payment struct {
	ID            string        `json:"paymentId"`
	RideRequestID string        `json:"rideRequestId"`
	Amount        float64       `json:"amount"`
	Method        string        `json:"paymentMethod"`
	Status        PaymentStatus `json:"status"`
	ReceiptSentAt *time.Time    `json:"receiptSentAt,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}
