package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/example/ride-marketplace/internal/models"
)

// PostgresStore implements every store interface over database/sql with
// lib/pq. Status transitions are conditional UPDATEs so that the row's
// status column is the single arbiter under concurrency.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an existing handle; used by tests.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (p *PostgresStore) Close() error { return p.db.Close() }

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

// --- ride requests ---

func (p *PostgresStore) Insert(ctx context.Context, r *models.RideRequest) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO ride_requests(id, passenger_id, pickup_location, dropoff_location, target_time, desired_fare, status, driver_id, created_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''),$9)`,
		r.ID, r.PassengerID, r.Pickup, r.Dropoff, r.TargetTime, r.DesiredFare, string(r.Status), r.DriverID, r.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*models.RideRequest, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, passenger_id, pickup_location, dropoff_location, target_time, desired_fare, status, COALESCE(driver_id,''), created_at
		 FROM ride_requests WHERE id=$1`, id)
	return scanRequest(row)
}

func (p *PostgresStore) Confirm(ctx context.Context, id, driverID string) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE ride_requests SET status=$1, driver_id=$2 WHERE id=$3 AND status=$4`,
		string(models.StatusConfirmed), driverID, id, string(models.StatusPosted))
	return oneRow(res, err)
}

func (p *PostgresStore) Cancel(ctx context.Context, id string) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE ride_requests SET status=$1, driver_id=NULL WHERE id=$2 AND status = ANY($3)`,
		string(models.StatusCancelled), id,
		pq.Array([]string{string(models.StatusPosted), string(models.StatusConfirmed)}))
	return oneRow(res, err)
}

func (p *PostgresStore) Complete(ctx context.Context, id string) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE ride_requests SET status=$1 WHERE id=$2 AND status=$3`,
		string(models.StatusCompleted), id, string(models.StatusConfirmed))
	return oneRow(res, err)
}

func (p *PostgresStore) ListByStatus(ctx context.Context, status models.Status) ([]models.RideRequest, error) {
	return p.ListAll(ctx, &status)
}

func (p *PostgresStore) ListAll(ctx context.Context, status *models.Status) ([]models.RideRequest, error) {
	q := `SELECT id, passenger_id, pickup_location, dropoff_location, target_time, desired_fare, status, COALESCE(driver_id,''), created_at
	      FROM ride_requests`
	var args []any
	if status != nil {
		q += ` WHERE status=$1`
		args = append(args, string(*status))
	}
	q += ` ORDER BY created_at DESC`
	return p.queryRequests(ctx, q, args...)
}

func (p *PostgresStore) ListByPassenger(ctx context.Context, passengerID string) ([]models.RideRequest, error) {
	return p.queryRequests(ctx,
		`SELECT id, passenger_id, pickup_location, dropoff_location, target_time, desired_fare, status, COALESCE(driver_id,''), created_at
		 FROM ride_requests WHERE passenger_id=$1 ORDER BY created_at DESC`, passengerID)
}

func (p *PostgresStore) queryRequests(ctx context.Context, q string, args ...any) ([]models.RideRequest, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.RideRequest
	for rows.Next() {
		var r models.RideRequest
		var status string
		if err := rows.Scan(&r.ID, &r.PassengerID, &r.Pickup, &r.Dropoff, &r.TargetTime, &r.DesiredFare, &status, &r.DriverID, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Status = models.Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanRequest(row rowScanner) (*models.RideRequest, error) {
	var r models.RideRequest
	var status string
	err := row.Scan(&r.ID, &r.PassengerID, &r.Pickup, &r.Dropoff, &r.TargetTime, &r.DesiredFare, &status, &r.DriverID, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Status = models.Status(status)
	return &r, nil
}

func oneRow(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// --- applications ---

// Applications adapts PostgresStore to the ApplicationStore interface.
func (p *PostgresStore) Applications() ApplicationStore { return pgApps{p} }

type pgApps struct{ p *PostgresStore }

func (a pgApps) Insert(ctx context.Context, app *models.Application) error {
	_, err := a.p.db.ExecContext(ctx,
		`INSERT INTO ride_applications(id, ride_request_id, driver_id, applied_at) VALUES($1,$2,$3,$4)`,
		app.ID, app.RideRequestID, app.DriverID, app.AppliedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (a pgApps) Find(ctx context.Context, requestID, driverID string) (*models.Application, error) {
	var app models.Application
	err := a.p.db.QueryRowContext(ctx,
		`SELECT id, ride_request_id, driver_id, applied_at FROM ride_applications WHERE ride_request_id=$1 AND driver_id=$2`,
		requestID, driverID).Scan(&app.ID, &app.RideRequestID, &app.DriverID, &app.AppliedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (a pgApps) ListByRequest(ctx context.Context, requestID string) ([]models.Application, error) {
	rows, err := a.p.db.QueryContext(ctx,
		`SELECT id, ride_request_id, driver_id, applied_at FROM ride_applications WHERE ride_request_id=$1 ORDER BY applied_at ASC`,
		requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Application
	for rows.Next() {
		var app models.Application
		if err := rows.Scan(&app.ID, &app.RideRequestID, &app.DriverID, &app.AppliedAt); err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	return out, rows.Err()
}

// --- users ---

// Users adapts PostgresStore to the UserStore interface.
func (p *PostgresStore) Users() UserStore { return pgUsers{p} }

type pgUsers struct{ p *PostgresStore }

func (u pgUsers) Insert(ctx context.Context, usr *models.User) error {
	_, err := u.p.db.ExecContext(ctx,
		`INSERT INTO users(id, email, password_hash, name, role, phone, is_active, created_at) VALUES($1,lower($2),$3,$4,$5,$6,$7,$8)`,
		usr.ID, usr.Email, usr.PasswordHash, usr.Name, string(usr.Role), usr.Phone, usr.Active, usr.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (u pgUsers) Get(ctx context.Context, id string) (*models.User, error) {
	return u.scanOne(u.p.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, name, role, COALESCE(phone,''), is_active, created_at FROM users WHERE id=$1`, id))
}

func (u pgUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return u.scanOne(u.p.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, name, role, COALESCE(phone,''), is_active, created_at FROM users WHERE email=lower($1)`, email))
}

func (u pgUsers) scanOne(row rowScanner) (*models.User, error) {
	var usr models.User
	var role string
	err := row.Scan(&usr.ID, &usr.Email, &usr.PasswordHash, &usr.Name, &role, &usr.Phone, &usr.Active, &usr.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	usr.Role = models.Role(role)
	return &usr, nil
}

func (u pgUsers) List(ctx context.Context) ([]models.User, error) {
	rows, err := u.p.db.QueryContext(ctx,
		`SELECT id, email, password_hash, name, role, COALESCE(phone,''), is_active, created_at FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.User
	for rows.Next() {
		var usr models.User
		var role string
		if err := rows.Scan(&usr.ID, &usr.Email, &usr.PasswordHash, &usr.Name, &role, &usr.Phone, &usr.Active, &usr.CreatedAt); err != nil {
			return nil, err
		}
		usr.Role = models.Role(role)
		out = append(out, usr)
	}
	return out, rows.Err()
}

func (u pgUsers) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	res, err := u.p.db.ExecContext(ctx, `UPDATE users SET is_active=$1 WHERE id=$2`, active, id)
	return oneRow(res, err)
}

// --- payments ---

// Payments adapts PostgresStore to the PaymentStore interface.
func (p *PostgresStore) Payments() PaymentStore { return pgPayments{p} }

type pgPayments struct{ p *PostgresStore }

func (pp pgPayments) Insert(ctx context.Context, pay *models.Payment) error {
	_, err := pp.p.db.ExecContext(ctx,
		`INSERT INTO payments(id, ride_request_id, amount, method, status, receipt_sent_at, created_at) VALUES($1,$2,$3,$4,$5,$6,$7)`,
		pay.ID, pay.RideRequestID, pay.Amount, pay.Method, string(pay.Status), pay.ReceiptSentAt, pay.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (pp pgPayments) Get(ctx context.Context, id string) (*models.Payment, error) {
	var pay models.Payment
	var status string
	err := pp.p.db.QueryRowContext(ctx,
		`SELECT id, ride_request_id, amount, method, status, receipt_sent_at, created_at FROM payments WHERE id=$1`,
		id).Scan(&pay.ID, &pay.RideRequestID, &pay.Amount, &pay.Method, &status, &pay.ReceiptSentAt, &pay.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	pay.Status = models.PaymentStatus(status)
	return &pay, nil
}

func (pp pgPayments) MarkReceiptSent(ctx context.Context, id string) (*models.Payment, error) {
	res, err := pp.p.db.ExecContext(ctx, `UPDATE payments SET receipt_sent_at=$1 WHERE id=$2`, time.Now(), id)
	ok, err := oneRow(res, err)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return pp.Get(ctx, id)
}
