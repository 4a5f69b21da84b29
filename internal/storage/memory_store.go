package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/ride-marketplace/internal/models"
)

// MemoryStore backs every store interface with in-process maps. It is the
// fallback when PG_DSN is unset and the fixture for unit tests. All swaps
// happen under the mutex, which gives the same single-winner guarantee the
// Postgres conditional UPDATE provides.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[string]models.RideRequest
	apps     map[string]models.Application
	appKeys  map[string]struct{} // requestID + "\x00" + driverID
	users    map[string]models.User
	emails   map[string]string // lowercased email -> user id
	payments map[string]models.Payment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: make(map[string]models.RideRequest),
		apps:     make(map[string]models.Application),
		appKeys:  make(map[string]struct{}),
		users:    make(map[string]models.User),
		emails:   make(map[string]string),
		payments: make(map[string]models.Payment),
	}
}

func appKey(requestID, driverID string) string { return requestID + "\x00" + driverID }

func (m *MemoryStore) Insert(ctx context.Context, r *models.RideRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[r.ID]; ok {
		return ErrDuplicate
	}
	m.requests[r.ID] = *r
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*models.RideRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *MemoryStore) Confirm(ctx context.Context, id, driverID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.Status != models.StatusPosted {
		return false, nil
	}
	r.Status = models.StatusConfirmed
	r.DriverID = driverID
	m.requests[id] = r
	return true, nil
}

func (m *MemoryStore) Cancel(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || (r.Status != models.StatusPosted && r.Status != models.StatusConfirmed) {
		return false, nil
	}
	r.Status = models.StatusCancelled
	r.DriverID = ""
	m.requests[id] = r
	return true, nil
}

func (m *MemoryStore) Complete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.Status != models.StatusConfirmed {
		return false, nil
	}
	r.Status = models.StatusCompleted
	m.requests[id] = r
	return true, nil
}

func (m *MemoryStore) ListByStatus(ctx context.Context, status models.Status) ([]models.RideRequest, error) {
	return m.ListAll(ctx, &status)
}

func (m *MemoryStore) ListAll(ctx context.Context, status *models.Status) ([]models.RideRequest, error) {
	m.mu.RLock()
	out := make([]models.RideRequest, 0, len(m.requests))
	for _, r := range m.requests {
		if status != nil && r.Status != *status {
			continue
		}
		out = append(out, r)
	}
	m.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) ListByPassenger(ctx context.Context, passengerID string) ([]models.RideRequest, error) {
	m.mu.RLock()
	var out []models.RideRequest
	for _, r := range m.requests {
		if r.PassengerID == passengerID {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(rs []models.RideRequest) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].CreatedAt.After(rs[j].CreatedAt) })
}

// --- applications ---

// InsertApplication-style methods live on the same store; the appKeys set
// mirrors the Postgres unique index on (ride_request_id, driver_id).

func (m *MemoryStore) InsertApplication(ctx context.Context, a *models.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := appKey(a.RideRequestID, a.DriverID)
	if _, ok := m.appKeys[k]; ok {
		return ErrDuplicate
	}
	m.appKeys[k] = struct{}{}
	m.apps[a.ID] = *a
	return nil
}

func (m *MemoryStore) Find(ctx context.Context, requestID, driverID string) (*models.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.apps {
		if a.RideRequestID == requestID && a.DriverID == driverID {
			out := a
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListByRequest(ctx context.Context, requestID string) ([]models.Application, error) {
	m.mu.RLock()
	var out []models.Application
	for _, a := range m.apps {
		if a.RideRequestID == requestID {
			out = append(out, a)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].AppliedAt.Before(out[j].AppliedAt) })
	return out, nil
}

// Applications adapts MemoryStore to the ApplicationStore interface, since
// Insert is already taken by the request methods.
func (m *MemoryStore) Applications() ApplicationStore { return memoryApps{m} }

type memoryApps struct{ m *MemoryStore }

func (a memoryApps) Insert(ctx context.Context, app *models.Application) error {
	return a.m.InsertApplication(ctx, app)
}
func (a memoryApps) Find(ctx context.Context, requestID, driverID string) (*models.Application, error) {
	return a.m.Find(ctx, requestID, driverID)
}
func (a memoryApps) ListByRequest(ctx context.Context, requestID string) ([]models.Application, error) {
	return a.m.ListByRequest(ctx, requestID)
}

// --- users ---

// Users adapts MemoryStore to the UserStore interface.
func (m *MemoryStore) Users() UserStore { return memoryUsers{m} }

type memoryUsers struct{ m *MemoryStore }

func (u memoryUsers) Insert(ctx context.Context, usr *models.User) error {
	m := u.m
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(usr.Email)
	if _, ok := m.emails[email]; ok {
		return ErrDuplicate
	}
	m.emails[email] = usr.ID
	m.users[usr.ID] = *usr
	return nil
}

func (u memoryUsers) Get(ctx context.Context, id string) (*models.User, error) {
	m := u.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	usr, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &usr, nil
}

func (u memoryUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m := u.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.emails[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	usr := m.users[id]
	return &usr, nil
}

func (u memoryUsers) List(ctx context.Context) ([]models.User, error) {
	m := u.m
	m.mu.RLock()
	out := make([]models.User, 0, len(m.users))
	for _, usr := range m.users {
		out = append(out, usr)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (u memoryUsers) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	m := u.m
	m.mu.Lock()
	defer m.mu.Unlock()
	usr, ok := m.users[id]
	if !ok {
		return false, nil
	}
	usr.Active = active
	m.users[id] = usr
	return true, nil
}

// --- payments ---

// Payments adapts MemoryStore to the PaymentStore interface.
func (m *MemoryStore) Payments() PaymentStore { return memoryPayments{m} }

type memoryPayments struct{ m *MemoryStore }

func (p memoryPayments) Insert(ctx context.Context, pay *models.Payment) error {
	m := p.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[pay.ID]; ok {
		return ErrDuplicate
	}
	m.payments[pay.ID] = *pay
	return nil
}

func (p memoryPayments) Get(ctx context.Context, id string) (*models.Payment, error) {
	m := p.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	pay, ok := m.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &pay, nil
}

func (p memoryPayments) MarkReceiptSent(ctx context.Context, id string) (*models.Payment, error) {
	m := p.m
	m.mu.Lock()
	defer m.mu.Unlock()
	pay, ok := m.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := time.Now()
	pay.ReceiptSentAt = &now
	m.payments[id] = pay
	return &pay, nil
}
