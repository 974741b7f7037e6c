// Package booking decides whether an appointment slot may be taken and moves
// bookings through their valid -> deleted lifecycle.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-salon/internal/auth"
	"github.com/ovaphlow/pitchfork/service-salon/internal/booking/entity"
	bookingrepo "github.com/ovaphlow/pitchfork/service-salon/internal/booking/repo"
	"github.com/ovaphlow/pitchfork/service-salon/internal/notify"
	"github.com/ovaphlow/pitchfork/service-salon/pkg/apperr"
	"github.com/ovaphlow/pitchfork/service-salon/pkg/database"
	"github.com/ovaphlow/pitchfork/service-salon/pkg/metrics"
	"github.com/ovaphlow/pitchfork/service-salon/pkg/utilities"
)

// MinGap is the minimum distance between two valid bookings on the same date.
const MinGap = 2 * time.Hour

var (
	ErrMissingFields = apperr.New(apperr.KindValidation, "Missing required booking fields.")
	ErrSlotTaken     = apperr.New(apperr.KindSlotConflict, "This time slot is not available. Please choose another.")
	ErrBadCancelLink = apperr.New(apperr.KindInvalidToken, "Invalid or expired cancellation link.")
	ErrNotFound      = apperr.New(apperr.KindNotFound, "Booking not found.")
	ErrNotAuthorized = apperr.New(apperr.KindForbidden, "Not authorized to delete this booking.")
	ErrUnauthorized  = apperr.New(apperr.KindUnauthorized, "Missing or invalid token")
)

// Notifier is the fire-and-forget mail channel.
type Notifier interface {
	Dispatch(msg notify.Message)
}

// CreateRequest carries the six booking fields.
type CreateRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Service string `json:"service"`
	Date    string `json:"date"`
	Time    string `json:"time"`
}

type Service struct {
	repo     *bookingrepo.BookingRepo
	notifier Notifier
	clock    clockwork.Clock
	logger   *zap.SugaredLogger
	baseURL  string
}

func NewService(r *bookingrepo.BookingRepo, notifier Notifier, clock clockwork.Clock, logger *zap.SugaredLogger, baseURL string) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		repo:     r,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// NormalizeTime turns "HH:MM" into "HH:MM:00" and checks "HH:MM:SS" bounds.
func NormalizeTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) == 5 {
		s += ":00"
	}
	if _, err := secondsOfDay(s); err != nil {
		return "", err
	}
	return s, nil
}

func secondsOfDay(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	limits := [3]int{24, 60, 60}
	total := 0
	for i, p := range parts {
		if len(p) != 2 {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n >= limits[i] {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		total = total*60 + n
	}
	return total, nil
}

// Conflicts reports whether a valid booking in existing starts less than
// MinGap from date+clock. Exactly MinGap apart is allowed.
func Conflicts(existing []entity.Booking, date database.Date, clock string) bool {
	candidate, err := secondsOfDay(clock)
	if err != nil {
		return false
	}
	gap := int(MinGap / time.Second)
	for _, b := range existing {
		if b.State != entity.StateValid || b.Date != date {
			continue
		}
		other, err := secondsOfDay(b.Time)
		if err != nil {
			continue
		}
		d := other - candidate
		if d < 0 {
			d = -d
		}
		if d < gap {
			return true
		}
	}
	return false
}

// Create validates the request and inserts it unless it collides with another
// valid booking on the same date. The confirmation mail goes out after commit.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*entity.Booking, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Phone) == "" ||
		strings.TrimSpace(req.Service) == "" || strings.TrimSpace(req.Date) == "" || strings.TrimSpace(req.Time) == "" {
		return nil, ErrMissingFields
	}
	date, err := database.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "Invalid booking date.")
	}
	clock, err := NormalizeTime(req.Time)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "Invalid booking time.")
	}
	token, err := utilities.NewToken()
	if err != nil {
		return nil, apperr.Internal(err)
	}

	candidate := &entity.Booking{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Service:     req.Service,
		Date:        date,
		Time:        clock,
		CancelToken: token,
		CreatedAt:   s.clock.Now().UTC().Truncate(time.Second),
	}
	created, err := s.repo.CreateExclusive(ctx, candidate, func(existing []entity.Booking) error {
		if Conflicts(existing, date, clock) {
			return ErrSlotTaken
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSlotTaken) {
			metrics.BookingConflicts.Inc()
			s.logger.Debugw("slot conflict", "date", date, "time", clock)
			return nil, err
		}
		return nil, apperr.Internal(err)
	}
	metrics.BookingsCreated.Inc()

	s.notify(notify.BookingConfirmation(details(created), s.cancelLink(created.CancelToken)))
	return created, nil
}

// CancelByToken cancels the valid booking holding token. A used or unknown
// token gives the same error.
func (s *Service) CancelByToken(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrBadCancelLink
	}
	b, err := s.repo.FindValidByCancelToken(ctx, token)
	if err != nil {
		if errors.Is(err, bookingrepo.ErrNotFound) {
			return ErrBadCancelLink
		}
		return apperr.Internal(err)
	}
	ok, err := s.repo.SoftDeleteIfValid(ctx, b.ID)
	if err != nil {
		return apperr.Internal(err)
	}
	if !ok {
		return ErrBadCancelLink
	}
	metrics.RecordCancellation("token")
	s.notify(notify.BookingCanceled(details(b)))
	return nil
}

// DeleteByWorker soft-deletes a booking on behalf of staff. missing is the
// error returned for an unknown id; the two delete routes disagree on it.
// A booking that is already deleted is left alone and nobody is mailed.
func (s *Service) DeleteByWorker(ctx context.Context, caller *auth.Identity, id int64, missing error) error {
	if caller == nil {
		return ErrUnauthorized
	}
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingrepo.ErrNotFound) {
			return missing
		}
		return apperr.Internal(err)
	}
	changed, err := s.repo.SoftDeleteIfValid(ctx, id)
	if err != nil {
		return apperr.Internal(err)
	}
	if !changed {
		return nil
	}
	metrics.RecordCancellation("worker")
	s.logger.Infow("booking deleted by worker", "booking_id", id, "worker_id", caller.ID)
	s.notify(notify.BookingCanceledByStaff(details(b)))
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*entity.Booking, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingrepo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, apperr.Internal(err)
	}
	return b, nil
}

// ListPublic returns every booking newest first, without cancel tokens.
func (s *Service) ListPublic(ctx context.Context) ([]entity.PublicView, error) {
	rows, err := s.repo.ListByCreatedDesc(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make([]entity.PublicView, 0, len(rows))
	for _, b := range rows {
		out = append(out, b.Public())
	}
	return out, nil
}

// ListForWorker returns every booking ordered by time of day.
func (s *Service) ListForWorker(ctx context.Context, caller *auth.Identity) ([]entity.Booking, error) {
	if caller == nil {
		return nil, ErrUnauthorized
	}
	rows, err := s.repo.ListByTime(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return rows, nil
}

func (s *Service) cancelLink(token string) string {
	return s.baseURL + "/api/bookings/cancel/" + token
}

func (s *Service) notify(msg notify.Message) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(msg)
}

func details(b *entity.Booking) notify.BookingDetails {
	return notify.BookingDetails{
		Name:    b.Name,
		Email:   b.Email,
		Service: b.Service,
		Date:    b.Date.String(),
		Time:    b.Time,
	}
}
