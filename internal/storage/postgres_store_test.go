package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/example/ride-marketplace/internal/models"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresStoreFromDB(db), mock
}

func TestConfirmIsConditionalUpdate(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectExec("UPDATE ride_requests SET status=").
		WithArgs("confirmed", "d1", "r1", "posted").
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := p.Confirm(context.Background(), "r1", "d1")
	if err != nil || !ok {
		t.Fatalf("confirm: ok=%v err=%v", ok, err)
	}

	// zero rows touched means the swap was lost
	mock.ExpectExec("UPDATE ride_requests SET status=").
		WithArgs("confirmed", "d2", "r1", "posted").
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = p.Confirm(context.Background(), "r1", "d2")
	if err != nil || ok {
		t.Fatalf("lost confirm reported success: ok=%v err=%v", ok, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCompleteRequiresConfirmed(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectExec("UPDATE ride_requests SET status=").
		WithArgs("completed", "r1", "confirmed").
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err := p.Complete(context.Background(), "r1")
	if err != nil || ok {
		t.Fatalf("complete from non-confirmed: ok=%v err=%v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetMapsNoRows(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM ride_requests WHERE id=").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "passenger_id", "pickup_location", "dropoff_location", "target_time", "desired_fare", "status", "driver_id", "created_at"}))
	if _, err := p.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetScansRequest(t *testing.T) {
	p, mock := newMockStore(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "passenger_id", "pickup_location", "dropoff_location", "target_time", "desired_fare", "status", "driver_id", "created_at"}).
		AddRow("r1", "p1", "A", "B", now.Add(time.Hour), 10.0, "confirmed", "d1", now)
	mock.ExpectQuery("SELECT (.+) FROM ride_requests WHERE id=").
		WithArgs("r1").
		WillReturnRows(rows)

	r, err := p.Get(context.Background(), "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r.Status != models.StatusConfirmed || r.DriverID != "d1" || r.PassengerID != "p1" {
		t.Fatalf("bad scan: %+v", r)
	}
}

func TestListAllAppliesStatusFilter(t *testing.T) {
	p, mock := newMockStore(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "passenger_id", "pickup_location", "dropoff_location", "target_time", "desired_fare", "status", "driver_id", "created_at"}).
		AddRow("r2", "p1", "A", "B", now, 10.0, "posted", "", now).
		AddRow("r1", "p2", "C", "D", now, 12.5, "posted", "", now.Add(-time.Minute))
	mock.ExpectQuery("SELECT (.+) FROM ride_requests WHERE status=(.+) ORDER BY created_at DESC").
		WithArgs("posted").
		WillReturnRows(rows)

	status := models.StatusPosted
	out, err := p.ListAll(context.Background(), &status)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 2 || out[0].ID != "r2" {
		t.Fatalf("bad list result: %+v", out)
	}
}
