package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-salon/internal/auth"
	"github.com/ovaphlow/pitchfork/service-salon/internal/booking"
	bookingrepo "github.com/ovaphlow/pitchfork/service-salon/internal/booking/repo"
	"github.com/ovaphlow/pitchfork/service-salon/internal/maintenance"
	"github.com/ovaphlow/pitchfork/service-salon/internal/notify"
	"github.com/ovaphlow/pitchfork/service-salon/internal/worker"
	workerrepo "github.com/ovaphlow/pitchfork/service-salon/internal/worker/repo"
	"github.com/ovaphlow/pitchfork/service-salon/pkg/database"
)

type testServer struct {
	handler http.Handler
	db      *sqlx.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.OpenMemory(context.Background())
	require.NoError(t, err)

	logger := zap.NewNop().Sugar()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))
	dispatcher := notify.NewDispatcher(&notify.MemoryMailer{}, logger, notify.DispatcherConfig{Workers: 1})
	t.Cleanup(func() {
		dispatcher.Close()
		db.Close()
	})

	tokens := auth.NewService([]byte("secret"), clock)
	bookingRepo := bookingrepo.NewBookingRepo(db)
	bookings := booking.NewService(bookingRepo, dispatcher, clock, logger, "http://salon.test")
	workers := worker.NewService(workerrepo.NewWorkerRepo(db), worker.BcryptHasher{Cost: bcrypt.MinCost}, tokens, dispatcher, clock, logger,
		worker.Config{BaseURL: "http://salon.test", AdminEmail: "admin@salon.test"})
	sweeper := maintenance.NewSweeper(bookingRepo, clock, logger)

	h := RegisterRoutes(Deps{
		Auth:        tokens,
		Bookings:    booking.NewHandler(bookings, logger),
		Workers:     worker.NewHandler(workers, logger),
		Maintenance: maintenance.NewHandler(sweeper, "cron", logger),
		Logger:      logger,
	})
	return &testServer{handler: h, db: db}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// loginStaff signs up, validates and logs in a worker and returns its token.
func (s *testServer) loginStaff(t *testing.T) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/workers/signup", "", map[string]string{"username": "bo", "email": "bo@example.com", "password": "pw"})
	require.Equal(t, http.StatusCreated, rec.Code)
	w, err := workerrepo.NewWorkerRepo(s.db).FindByIdentifier(context.Background(), "bo")
	require.NoError(t, err)
	rec = s.do(t, http.MethodGet, "/api/workers/validate/"+*w.ValidationToken, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/workers/login", "", map[string]string{"identifier": "bo", "password": "pw"})
	require.Equal(t, http.StatusOK, rec.Code)
	return decode[map[string]any](t, rec)["token"].(string)
}

func TestHealthAndHeaders(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))

	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "salon_http_requests_total")
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	payload := map[string]string{"name": "Ana", "email": "ana@example.com", "phone": "555", "service": "Cut", "date": "2026-11-02", "time": "10:00"}

	rec := s.do(t, http.MethodPost, "/api/bookings", "", payload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	id := int64(created["id"].(float64))
	token := created["cancel_token"].(string)
	assert.Len(t, token, 64)

	payload["time"] = "11:30"
	rec = s.do(t, http.MethodPost, "/api/bookings", "", payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"This time slot is not available. Please choose another."}`, rec.Body.String())

	delete(payload, "phone")
	rec = s.do(t, http.MethodPost, "/api/bookings", "", payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/bookings/"+itoa(id), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created, decode[map[string]any](t, rec))

	rec = s.do(t, http.MethodGet, "/api/bookings", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]map[string]any](t, rec)
	require.Len(t, list, 1)
	assert.NotContains(t, list[0], "cancel_token")

	rec = s.do(t, http.MethodPost, "/api/bookings/cancel/"+token, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/bookings/cancel/"+token, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid or expired cancellation link."}`, rec.Body.String())
}

func TestStaffBookingRoutes(t *testing.T) {
	s := newTestServer(t)
	staff := s.loginStaff(t)

	rec := s.do(t, http.MethodPost, "/api/bookings", "", map[string]string{"name": "Ana", "email": "ana@example.com", "phone": "555", "service": "Cut", "date": "2026-11-02", "time": "15:00"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := int64(decode[map[string]any](t, rec)["id"].(float64))

	rec = s.do(t, http.MethodGet, "/api/bookings/worker", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Missing or invalid token"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/bookings/worker", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]map[string]any](t, rec)["bookings"], 1)

	rec = s.do(t, http.MethodDelete, "/api/bookings/"+itoa(id), "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/bookings/9999", staff, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/bookings?id=9999", staff, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/bookings", staff, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/bookings?id="+itoa(id), staff, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/bookings/"+itoa(id), staff, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Booking deleted and booker notified."}`, rec.Body.String())
}

func TestUnvalidatedWorkerCannotLogIn(t *testing.T) {
	s := newTestServer(t)
	creds := map[string]string{"identifier": "bo@example.com", "password": "pw"}

	rec := s.do(t, http.MethodPost, "/api/workers/signup", "", map[string]string{"username": "bo", "email": "bo@example.com", "password": "pw"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "validation_token")
	assert.NotContains(t, rec.Body.String(), "password")

	rec = s.do(t, http.MethodPost, "/api/workers/signup", "", map[string]string{"username": "bo", "email": "x@example.com", "password": "pw"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/workers/login", "", creds)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/workers/validate/not-a-token", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	w, err := workerrepo.NewWorkerRepo(s.db).FindByIdentifier(context.Background(), "bo")
	require.NoError(t, err)
	rec = s.do(t, http.MethodGet, "/api/workers/validate/"+*w.ValidationToken, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	assert.Equal(t, "Worker account validated successfully!", rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/workers/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "Login successful.", body["message"])
	assert.NotEmpty(t, body["token"])

	rec = s.do(t, http.MethodPost, "/api/workers/login", "", map[string]string{"identifier": "bo", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/workers/login", "", map[string]string{"identifier": "bo"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPasswordResetRequestIsUniform(t *testing.T) {
	s := newTestServer(t)
	s.loginStaff(t)

	known := s.do(t, http.MethodPost, "/api/workers/password-reset-request", "", map[string]string{"email": "bo@example.com"})
	unknown := s.do(t, http.MethodPost, "/api/workers/password-reset-request", "", map[string]string{"email": "ghost@example.com"})
	require.Equal(t, http.StatusOK, known.Code)
	require.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, known.Body.Bytes(), unknown.Body.Bytes())

	rec := s.do(t, http.MethodPost, "/api/workers/password-reset-request", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	w, err := workerrepo.NewWorkerRepo(s.db).FindByIdentifier(context.Background(), "bo")
	require.NoError(t, err)
	require.NotNil(t, w.ResetToken)

	rec = s.do(t, http.MethodPost, "/api/workers/password-reset", "", map[string]string{"token": *w.ResetToken, "newPassword": "pw2"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/workers/password-reset", "", map[string]string{"token": *w.ResetToken, "newPassword": "pw3"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid or expired token."}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/workers/login", "", map[string]string{"identifier": "bo", "password": "pw2"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProfileRoutes(t *testing.T) {
	s := newTestServer(t)
	staff := s.loginStaff(t)

	rec := s.do(t, http.MethodGet, "/api/workers/me", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bo", decode[map[string]any](t, rec)["username"])

	rec = s.do(t, http.MethodPut, "/api/workers/me", staff, map[string]string{"username": "bo2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPut, "/api/workers/me", staff, map[string]string{"username": "bo2", "email": "bo2@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Worker info updated.", decode[map[string]any](t, rec)["message"])

	rec = s.do(t, http.MethodDelete, "/api/workers/me", staff, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/workers/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCronTrigger(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/cron/cleanup-bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/cron/cleanup-bookings", "cron", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Cleanup complete","expired":0,"purged":0}`, rec.Body.String())
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
