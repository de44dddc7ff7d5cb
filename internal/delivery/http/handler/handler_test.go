package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"smart-helmet-backend/internal/auth"
	domainAlert "smart-helmet-backend/internal/domain/alert"
	domainDevice "smart-helmet-backend/internal/domain/device"
	domainTelemetry "smart-helmet-backend/internal/domain/telemetry"
	domainTrip "smart-helmet-backend/internal/domain/trip"
	domainUser "smart-helmet-backend/internal/domain/user"
	"smart-helmet-backend/internal/middleware"
	alertUsecase "smart-helmet-backend/internal/usecase/alert"
	deviceUsecase "smart-helmet-backend/internal/usecase/device"
	tripUsecase "smart-helmet-backend/internal/usecase/trip"
	userUsecase "smart-helmet-backend/internal/usecase/user"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]*domainUser.User
}

func (m *memUsers) GetByID(_ context.Context, id string) (*domainUser.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domainUser.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) Upsert(_ context.Context, u *domainUser.User) (*domainUser.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[u.ID]
	if !ok {
		cp := *u
		m.users[u.ID] = &cp
		return &cp, nil
	}
	if u.DisplayName != nil {
		cur.DisplayName = u.DisplayName
	}
	if u.Email != nil {
		cur.Email = u.Email
	}
	if u.PhoneNumber != nil {
		cur.PhoneNumber = u.PhoneNumber
	}
	cp := *cur
	return &cp, nil
}

type memDevices struct {
	mu      sync.Mutex
	devices map[string]*domainDevice.Device
}

func (m *memDevices) Create(_ context.Context, d *domainDevice.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.devices[d.ID] = &cp
	return nil
}

func (m *memDevices) GetByID(_ context.Context, id string) (*domainDevice.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return nil, domainDevice.ErrDeviceNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDevices) ListByUser(_ context.Context, userID string) ([]*domainDevice.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domainDevice.Device
	for _, d := range m.devices {
		if d.UserID != nil && *d.UserID == userID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memDevices) AssignOwner(_ context.Context, deviceID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[deviceID]
	if !ok {
		return domainDevice.ErrDeviceNotFound
	}
	if d.HasOwner() && *d.UserID != userID {
		return domainDevice.ErrDeviceAlreadyOwned
	}
	d.UserID = &userID
	return nil
}

func (m *memDevices) LookupOwner(ctx context.Context, deviceID string) (string, bool, error) {
	d, err := m.GetByID(ctx, deviceID)
	if err != nil || !d.HasOwner() {
		return "", false, nil
	}
	return *d.UserID, true, nil
}

type memTrips struct {
	mu    sync.Mutex
	trips map[uuid.UUID]*domainTrip.Trip
}

func (m *memTrips) Create(_ context.Context, t *domainTrip.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[t.ID] = t
	return nil
}

func (m *memTrips) GetByID(_ context.Context, id uuid.UUID) (*domainTrip.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok {
		return nil, domainTrip.ErrTripNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTrips) ListByUser(_ context.Context, userID string, limit, offset int) ([]*domainTrip.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domainTrip.Trip
	for _, t := range m.trips {
		if t.UserID != nil && *t.UserID == userID {
			out = append(out, t)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memTrips) ListRecording(context.Context) ([]*domainTrip.Trip, error) { return nil, nil }

func (m *memTrips) Close(context.Context, uuid.UUID, domainTrip.CloseParams) error { return nil }

func (m *memTrips) Cancel(context.Context, uuid.UUID, time.Time) error { return nil }

func (m *memTrips) UpdateSummary(context.Context, uuid.UUID, *domainTrip.Summary) error { return nil }

type memTelemetry struct {
	route []domainTrip.RoutePoint
}

func (m *memTelemetry) Append(context.Context, *domainTelemetry.Sample) error { return nil }

func (m *memTelemetry) ListByTrip(_ context.Context, tripID uuid.UUID, _, _ int) ([]*domainTelemetry.Sample, error) {
	hr := 72
	return []*domainTelemetry.Sample{{TripID: &tripID, HeartRate: &hr}}, nil
}

func (m *memTelemetry) Route(context.Context, uuid.UUID) ([]domainTrip.RoutePoint, error) {
	return m.route, nil
}

func (m *memTelemetry) HeartRates(context.Context, uuid.UUID) ([]int, error) { return nil, nil }

func (m *memTelemetry) LastKnownPosition(context.Context, uuid.UUID) (*domainTrip.Position, error) {
	return nil, nil
}

type fakeCanceller struct {
	mu        sync.Mutex
	cancelled []uuid.UUID
	err       error
}

func (f *fakeCanceller) CancelTrip(tripID uuid.UUID, _ string, _ *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.cancelled = append(f.cancelled, tripID)
	return nil
}

type fakeOwnerCache struct {
	mu          sync.Mutex
	set         map[string]string
	invalidated []string
}

func (f *fakeOwnerCache) Set(deviceID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set[deviceID] = userID
}

func (f *fakeOwnerCache) Invalidate(deviceID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, deviceID)
}

type memAlerts struct {
	mu     sync.Mutex
	alerts map[uuid.UUID]*domainAlert.Alert
}

func (m *memAlerts) Create(_ context.Context, a *domainAlert.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.alerts[a.ID] = &cp
	return nil
}

func (m *memAlerts) GetByID(_ context.Context, id uuid.UUID) (*domainAlert.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return nil, domainAlert.ErrAlertNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAlerts) ListByUser(_ context.Context, userID string, limit int) ([]*domainAlert.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domainAlert.Alert
	for _, a := range m.alerts {
		if a.OwnedBy(userID) && len(out) < limit {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memAlerts) Resolve(_ context.Context, id uuid.UUID, by string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return domainAlert.ErrAlertNotFound
	}
	if !a.Resolved {
		a.Resolved = true
		a.ResolvedAt = &at
		a.ResolvedBy = &by
	}
	return nil
}

type testAPI struct {
	router    *gin.Engine
	alerts    *memAlerts
	users     *memUsers
	devices   *memDevices
	trips     *memTrips
	canceller *fakeCanceller
	owners    *fakeOwnerCache
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	api := &testAPI{
		users:     &memUsers{users: map[string]*domainUser.User{}},
		devices:   &memDevices{devices: map[string]*domainDevice.Device{}},
		trips:     &memTrips{trips: map[uuid.UUID]*domainTrip.Trip{}},
		canceller: &fakeCanceller{},
		owners:    &fakeOwnerCache{set: map[string]string{}},
		alerts:    &memAlerts{alerts: map[uuid.UUID]*domainAlert.Alert{}},
	}
	telemetry := &memTelemetry{}

	userService := userUsecase.NewService(api.users)
	deviceService := deviceUsecase.NewService(api.devices, userService, api.owners)
	tripService := tripUsecase.NewService(api.trips, telemetry, api.canceller)

	r := gin.New()
	r.Use(middleware.RequestIDMiddleware())
	v1 := r.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(auth.NewVerifier("", "", true)))
	NewUserHandler(userService).RegisterProfileRoutes(v1)
	NewDeviceHandler(deviceService).RegisterRoutes(v1)
	NewTripHandler(tripService).RegisterRoutes(v1)
	NewAlertHandler(alertUsecase.NewService(api.alerts)).RegisterRoutes(v1)

	api.router = r
	return api
}

func (a *testAPI) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) addTrip(userID string, status domainTrip.Status) uuid.UUID {
	id := uuid.New()
	a.trips.trips[id] = &domainTrip.Trip{
		ID:        id,
		DeviceID:  "helmet-1",
		UserID:    &userID,
		Status:    status,
		StartTime: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	return id
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v (%s)", err, w.Body.String())
	}
	if !envelope.Success {
		t.Fatalf("response not successful: %s", w.Body.String())
	}
	if into != nil {
		if err := json.Unmarshal(envelope.Data, into); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
}

func TestProfile_CreatedOnFirstLogin(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/api/v1/users/me", "mock_alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var profile userUsecase.UserResponse
	decodeData(t, w, &profile)
	if profile.ID != "user_mock_alice" {
		t.Errorf("user id = %q", profile.ID)
	}
	if _, ok := api.users.users["user_mock_alice"]; !ok {
		t.Error("user row not created")
	}

	w = api.do(http.MethodPatch, "/api/v1/users/me", "mock_alice", `{"display_name":"  Alice  "}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", w.Code, w.Body.String())
	}
	decodeData(t, w, &profile)
	if profile.DisplayName == nil || *profile.DisplayName != "Alice" {
		t.Errorf("display name = %v", profile.DisplayName)
	}
}

func TestRegisterDevice_UpdatesOwnerCache(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/api/v1/devices", "mock_alice", `{"device_id":"helmet-1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if got := api.owners.set["helmet-1"]; got != "user_mock_alice" {
		t.Errorf("owner cache = %q, want user_mock_alice", got)
	}

	// same caller again is idempotent
	w = api.do(http.MethodPost, "/api/v1/devices", "mock_alice", `{"device_id":"helmet-1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("re-register status = %d", w.Code)
	}

	w = api.do(http.MethodPost, "/api/v1/devices", "mock_bob", `{"device_id":"helmet-1"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("foreign claim status = %d, want 409", w.Code)
	}

	w = api.do(http.MethodGet, "/api/v1/devices", "mock_alice", "")
	var list deviceUsecase.DeviceListResponse
	decodeData(t, w, &list)
	if list.Total != 1 || list.Devices[0].DeviceID != "helmet-1" {
		t.Errorf("devices = %+v", list)
	}
}

func TestRegisterDevice_Validation(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/api/v1/devices", "mock_alice", `{"device_id":""}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	w = api.do(http.MethodPost, "/api/v1/devices", "mock_alice", `not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetTrip_OwnerOnly(t *testing.T) {
	api := newTestAPI(t)
	id := api.addTrip("user_mock_alice", domainTrip.StatusRecording)

	w := api.do(http.MethodGet, "/api/v1/trips/"+id.String(), "mock_alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("owner status = %d", w.Code)
	}
	var resp tripUsecase.TripResponse
	decodeData(t, w, &resp)
	if resp.TripID != id || resp.Status != domainTrip.StatusRecording {
		t.Errorf("trip = %+v", resp)
	}

	w = api.do(http.MethodGet, "/api/v1/trips/"+id.String(), "mock_bob", "")
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign status = %d, want 403", w.Code)
	}

	w = api.do(http.MethodGet, "/api/v1/trips/"+uuid.NewString(), "mock_alice", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown trip status = %d, want 404", w.Code)
	}

	w = api.do(http.MethodGet, "/api/v1/trips/"+id.String()+"/route", "mock_bob", "")
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign route status = %d, want 403", w.Code)
	}

	w = api.do(http.MethodGet, "/api/v1/trips/not-a-uuid", "mock_alice", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", w.Code)
	}

	w = api.do(http.MethodGet, "/api/v1/trips/"+id.String(), "", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", w.Code)
	}
}

func TestListTrips_Pagination(t *testing.T) {
	api := newTestAPI(t)
	for i := 0; i < 3; i++ {
		api.addTrip("user_mock_alice", domainTrip.StatusCompleted)
	}
	api.addTrip("user_mock_bob", domainTrip.StatusCompleted)

	w := api.do(http.MethodGet, "/api/v1/trips?limit=2", "mock_alice", "")
	var list tripUsecase.TripListResponse
	decodeData(t, w, &list)
	if len(list.Trips) != 2 || list.Limit != 2 {
		t.Errorf("page = %d trips limit %d", len(list.Trips), list.Limit)
	}

	w = api.do(http.MethodGet, "/api/v1/trips?limit=9999", "mock_alice", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("oversized limit status = %d, want 400", w.Code)
	}
}

func TestGetMetrics(t *testing.T) {
	api := newTestAPI(t)
	id := api.addTrip("user_mock_alice", domainTrip.StatusCompleted)

	w := api.do(http.MethodGet, "/api/v1/trips/"+id.String()+"/metrics", "mock_alice", "")
	var resp tripUsecase.MetricsResponse
	decodeData(t, w, &resp)
	if len(resp.Samples) != 1 || resp.Samples[0].HeartRate == nil || *resp.Samples[0].HeartRate != 72 {
		t.Errorf("samples = %+v", resp.Samples)
	}
}

func TestCancelTrip(t *testing.T) {
	api := newTestAPI(t)
	recording := api.addTrip("user_mock_alice", domainTrip.StatusRecording)
	completed := api.addTrip("user_mock_alice", domainTrip.StatusCompleted)

	w := api.do(http.MethodPost, "/api/v1/trips/"+recording.String()+"/cancel", "mock_alice", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if len(api.canceller.cancelled) != 1 || api.canceller.cancelled[0] != recording {
		t.Errorf("cancelled = %v", api.canceller.cancelled)
	}

	w = api.do(http.MethodPost, "/api/v1/trips/"+completed.String()+"/cancel", "mock_alice", "")
	if w.Code != http.StatusConflict {
		t.Errorf("terminal trip status = %d, want 409", w.Code)
	}

	w = api.do(http.MethodPost, "/api/v1/trips/"+recording.String()+"/cancel", "mock_bob", "")
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign cancel status = %d, want 403", w.Code)
	}
}

func TestCancelTrip_QueueUnavailable(t *testing.T) {
	api := newTestAPI(t)
	id := api.addTrip("user_mock_alice", domainTrip.StatusRecording)
	api.canceller.err = errors.New("persistence queue full")

	w := api.do(http.MethodPost, "/api/v1/trips/"+id.String()+"/cancel", "mock_alice", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func (a *testAPI) addAlert(userID string) uuid.UUID {
	id := uuid.New()
	a.alerts.alerts[id] = &domainAlert.Alert{
		ID:       id,
		DeviceID: "helmet-1",
		UserID:   &userID,
		Time:     time.Date(2025, 3, 1, 8, 5, 0, 0, time.UTC),
		Type:     domainAlert.TypeCrash,
		Severity: domainAlert.SeverityCritical,
		Message:  "Crash detected by helmet",
	}
	return id
}

func TestAlerts_ListOnlyOwn(t *testing.T) {
	api := newTestAPI(t)
	api.addAlert("user_mock_alice")
	api.addAlert("user_mock_bob")

	w := api.do(http.MethodGet, "/api/v1/alerts", "mock_alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var list alertUsecase.AlertListResponse
	decodeData(t, w, &list)
	if list.Total != 1 || list.Alerts[0].Type != "crash" {
		t.Fatalf("alerts = %+v", list)
	}
}

func TestAlerts_ListRejectsBadLimit(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/api/v1/alerts?limit=1000", "mock_alice", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAlerts_Acknowledge(t *testing.T) {
	api := newTestAPI(t)
	id := api.addAlert("user_mock_alice")

	tests := []struct {
		name  string
		token string
		path  string
		want  int
	}{
		{"other user", "mock_bob", "/api/v1/alerts/" + id.String() + "/ack", http.StatusForbidden},
		{"unknown alert", "mock_alice", "/api/v1/alerts/" + uuid.NewString() + "/ack", http.StatusNotFound},
		{"bad id", "mock_alice", "/api/v1/alerts/nope/ack", http.StatusBadRequest},
		{"owner", "mock_alice", "/api/v1/alerts/" + id.String() + "/ack", http.StatusOK},
		{"owner again", "mock_alice", "/api/v1/alerts/" + id.String() + "/ack", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(http.MethodPost, tt.path, tt.token, "")
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}

	stored := api.alerts.alerts[id]
	if !stored.Resolved || stored.ResolvedBy == nil || *stored.ResolvedBy != "user_mock_alice" {
		t.Fatalf("alert not resolved by owner: %+v", stored)
	}
}
