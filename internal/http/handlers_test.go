package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/ride-marketplace/internal/config"
	"github.com/example/ride-marketplace/internal/logging"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.ServerConfig{
		JWTSecret:  "test-secret",
		SessionTTL: time.Hour,
		LogLevel:   "error",
	}
	s, err := NewServer(cfg, logging.NewLogger("error"))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return s
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// registerAndLogin returns (userID, token).
func registerAndLogin(t *testing.T, s *Server, email, role, phone string) (string, string) {
	t.Helper()
	rec := doJSON(t, s, "POST", "/api/auth/register", "", map[string]string{
		"email": email, "password": "secret1", "name": "User " + email, "role": role, "phone": phone,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	var reg struct {
		UserID string `json:"userId"`
	}
	decode(t, rec, &reg)

	rec = doJSON(t, s, "POST", "/api/auth/login", "", map[string]string{
		"email": email, "password": "secret1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d", email, rec.Code)
	}
	var login struct {
		Token string `json:"token"`
	}
	decode(t, rec, &login)
	return reg.UserID, login.Token
}

func TestRideFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)

	_, passToken := registerAndLogin(t, s, "p@example.com", "passenger", "")
	driverID, drvToken := registerAndLogin(t, s, "d@example.com", "driver", "555-0101")

	// passenger posts a ride
	rec := doJSON(t, s, "POST", "/api/rides", passToken, map[string]any{
		"pickupLocation":  "Airport",
		"dropoffLocation": "Downtown",
		"targetTime":      time.Now().Add(2 * time.Hour).Format(time.RFC3339),
		"desiredFare":     25.5,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create ride: status %d body %s", rec.Code, rec.Body.String())
	}
	var ride struct {
		ID     string `json:"rideRequestId"`
		Status string `json:"status"`
	}
	decode(t, rec, &ride)
	if ride.Status != "posted" {
		t.Fatalf("expected posted, got %s", ride.Status)
	}

	// driver browses and sees it with the passenger name
	rec = doJSON(t, s, "GET", "/api/rides", drvToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("browse: status %d", rec.Code)
	}
	var listing []struct {
		ID            string `json:"rideRequestId"`
		PassengerName string `json:"passengerName"`
	}
	decode(t, rec, &listing)
	if len(listing) != 1 || listing[0].ID != ride.ID {
		t.Fatalf("bad listing: %+v", listing)
	}
	if listing[0].PassengerName != "User p@example.com" {
		t.Fatalf("passenger name not enriched: %q", listing[0].PassengerName)
	}

	// driver applies
	rec = doJSON(t, s, "POST", "/api/rides/"+ride.ID+"/apply", drvToken, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("apply: status %d body %s", rec.Code, rec.Body.String())
	}
	// duplicate application conflicts
	rec = doJSON(t, s, "POST", "/api/rides/"+ride.ID+"/apply", drvToken, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate apply: status %d", rec.Code)
	}

	// passenger reviews applications with driver contact details
	rec = doJSON(t, s, "GET", "/api/rides/"+ride.ID+"/applications", passToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("applications: status %d", rec.Code)
	}
	var apps []struct {
		DriverID    string `json:"driverId"`
		DriverPhone string `json:"driverPhone"`
	}
	decode(t, rec, &apps)
	if len(apps) != 1 || apps[0].DriverID != driverID || apps[0].DriverPhone != "555-0101" {
		t.Fatalf("bad applications: %+v", apps)
	}

	// passenger selects the driver
	rec = doJSON(t, s, "POST", "/api/rides/"+ride.ID+"/select", passToken, map[string]string{"driverId": driverID})
	if rec.Code != http.StatusOK {
		t.Fatalf("select: status %d body %s", rec.Code, rec.Body.String())
	}
	var confirmed struct {
		Status   string `json:"status"`
		DriverID string `json:"driverId"`
	}
	decode(t, rec, &confirmed)
	if confirmed.Status != "confirmed" || confirmed.DriverID != driverID {
		t.Fatalf("bad confirm: %+v", confirmed)
	}

	// second select conflicts
	rec = doJSON(t, s, "POST", "/api/rides/"+ride.ID+"/select", passToken, map[string]string{"driverId": driverID})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second select: status %d", rec.Code)
	}

	// driver completes
	rec = doJSON(t, s, "POST", "/api/rides/"+ride.ID+"/complete", drvToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete: status %d body %s", rec.Code, rec.Body.String())
	}

	// cancelling a completed ride conflicts
	rec = doJSON(t, s, "POST", "/api/rides/"+ride.ID+"/cancel", passToken, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("cancel completed: status %d", rec.Code)
	}

	// record the cash payment and send a receipt
	rec = doJSON(t, s, "POST", "/api/payments/"+ride.ID, drvToken, map[string]float64{"amount": 25.5})
	if rec.Code != http.StatusCreated {
		t.Fatalf("payment: status %d body %s", rec.Code, rec.Body.String())
	}
	var pay struct {
		ID string `json:"paymentId"`
	}
	decode(t, rec, &pay)
	rec = doJSON(t, s, "POST", "/api/payments/"+pay.ID+"/receipt", drvToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("receipt: status %d", rec.Code)
	}
}

func TestRoleGating(t *testing.T) {
	s := newTestServer(t)
	_, passToken := registerAndLogin(t, s, "p@example.com", "passenger", "")
	_, drvToken := registerAndLogin(t, s, "d@example.com", "driver", "555-0101")

	// drivers may not post rides
	rec := doJSON(t, s, "POST", "/api/rides", drvToken, map[string]any{
		"pickupLocation": "A", "dropoffLocation": "B",
		"targetTime": time.Now().Add(time.Hour).Format(time.RFC3339), "desiredFare": 5,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("driver posting ride: status %d", rec.Code)
	}

	// passengers may not browse the driver feed
	rec = doJSON(t, s, "GET", "/api/rides", passToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("passenger browsing: status %d", rec.Code)
	}

	// no token at all
	rec = doJSON(t, s, "GET", "/api/rides", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous browse: status %d", rec.Code)
	}

	// admin endpoints are closed to non-admins
	rec = doJSON(t, s, "GET", "/api/rides/admin/all", passToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("passenger admin list: status %d", rec.Code)
	}
}

func TestAdminAggregation(t *testing.T) {
	s := newTestServer(t)
	_, passToken := registerAndLogin(t, s, "p@example.com", "passenger", "")
	userID, _ := registerAndLogin(t, s, "x@example.com", "passenger", "")
	_, adminToken := registerAndLogin(t, s, "admin@example.com", "admin", "")

	doJSON(t, s, "POST", "/api/rides", passToken, map[string]any{
		"pickupLocation": "A", "dropoffLocation": "B",
		"targetTime": time.Now().Add(time.Hour).Format(time.RFC3339), "desiredFare": 5,
	})

	rec := doJSON(t, s, "GET", "/api/rides/admin/all?status=posted", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin rides: status %d", rec.Code)
	}
	var rides []struct {
		Status        string `json:"status"`
		PassengerName string `json:"passengerName"`
	}
	decode(t, rec, &rides)
	if len(rides) != 1 || rides[0].PassengerName == "" {
		t.Fatalf("bad admin listing: %+v", rides)
	}

	rec = doJSON(t, s, "GET", "/api/users/admin/all", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin users: status %d", rec.Code)
	}

	// deactivate locks the account out
	rec = doJSON(t, s, "PATCH", "/api/users/admin/"+userID+"/deactivate", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate: status %d", rec.Code)
	}
	rec = doJSON(t, s, "POST", "/api/auth/login", "", map[string]string{
		"email": "x@example.com", "password": "secret1",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("deactivated login: status %d", rec.Code)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	_, token := registerAndLogin(t, s, "p@example.com", "passenger", "")

	rec := doJSON(t, s, "GET", "/api/users/verify", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: status %d", rec.Code)
	}
	rec = doJSON(t, s, "POST", "/api/auth/logout", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: status %d", rec.Code)
	}
	rec = doJSON(t, s, "GET", "/api/users/verify", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("verify after logout: status %d", rec.Code)
	}
}
