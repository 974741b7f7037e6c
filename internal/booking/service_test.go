package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-salon/internal/auth"
	"github.com/ovaphlow/pitchfork/service-salon/internal/booking/entity"
	bookingrepo "github.com/ovaphlow/pitchfork/service-salon/internal/booking/repo"
	"github.com/ovaphlow/pitchfork/service-salon/internal/notify"
	"github.com/ovaphlow/pitchfork/service-salon/pkg/apperr"
	"github.com/ovaphlow/pitchfork/service-salon/pkg/database"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (n *recordingNotifier) Dispatch(msg notify.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.msgs))
	for _, m := range n.msgs {
		out = append(out, m.Kind)
	}
	return out
}

func newTestService(t *testing.T) (*Service, *recordingNotifier) {
	t.Helper()
	db, err := database.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	n := &recordingNotifier{}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC))
	return NewService(bookingrepo.NewBookingRepo(db), n, clock, zap.NewNop().Sugar(), "http://salon.test/"), n
}

func req(date, clock string) CreateRequest {
	return CreateRequest{Name: "Ana", Email: "ana@example.com", Phone: "555-0100", Service: "Cut", Date: date, Time: clock}
}

func TestNormalizeTime(t *testing.T) {
	for in, want := range map[string]string{"09:30": "09:30:00", "23:59:59": "23:59:59", " 10:00 ": "10:00:00"} {
		got, err := NormalizeTime(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	for _, bad := range []string{"", "9:30", "24:00", "10:60", "10:00:00:00", "ab:cd"} {
		_, err := NormalizeTime(bad)
		assert.Error(t, err, bad)
	}
}

func TestConflicts(t *testing.T) {
	existing := []entity.Booking{
		{Date: "2026-11-02", Time: "10:00:00", State: entity.StateValid},
		{Date: "2026-11-02", Time: "15:00:00", State: entity.StateDeleted},
	}
	assert.True(t, Conflicts(existing, "2026-11-02", "11:30:00"))
	assert.True(t, Conflicts(existing, "2026-11-02", "08:00:01"))
	assert.False(t, Conflicts(existing, "2026-11-02", "12:00:00"))
	assert.False(t, Conflicts(existing, "2026-11-02", "08:00:00"))
	assert.False(t, Conflicts(existing, "2026-11-02", "15:30:00"), "deleted bookings never block")
	assert.False(t, Conflicts(existing, "2026-11-03", "10:00:00"))
}

func TestCreateRejectsMissingFields(t *testing.T) {
	svc, n := newTestService(t)
	r := req("2026-11-02", "10:00")
	r.Phone = "  "
	_, err := svc.Create(context.Background(), r)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "Missing required booking fields.", apperr.PublicMessage(err))

	_, err = svc.Create(context.Background(), req("02/11/2026", "10:00"))
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, n.kinds())
}

func TestCreateNinetyVersusOneTwentyMinutes(t *testing.T) {
	svc, n := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, req("2026-11-02", "10:00"))
	require.NoError(t, err)
	assert.Equal(t, "10:00:00", first.Time)
	assert.Equal(t, entity.StateValid, first.State)
	assert.Len(t, first.CancelToken, 64)

	_, err = svc.Create(ctx, req("2026-11-02", "11:30"))
	assert.ErrorIs(t, err, apperr.ErrSlotConflict)

	second, err := svc.Create(ctx, req("2026-11-02", "12:00"))
	require.NoError(t, err)
	assert.NotEqual(t, first.CancelToken, second.CancelToken)

	assert.Equal(t, []string{notify.KindBookingConfirmation, notify.KindBookingConfirmation}, n.kinds())
	n.mu.Lock()
	assert.Contains(t, n.msgs[0].HTML, "http://salon.test/api/bookings/cancel/"+first.CancelToken)
	n.mu.Unlock()
}

func TestCreateGetRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, req("2026-11-02", "10:00"))
	require.NoError(t, err)
	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Equal(t, time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC), got.CreatedAt)

	_, err = svc.Get(ctx, created.ID+100)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCancelByTokenTwice(t *testing.T) {
	svc, n := newTestService(t)
	ctx := context.Background()

	b, err := svc.Create(ctx, req("2026-11-02", "10:00"))
	require.NoError(t, err)

	require.NoError(t, svc.CancelByToken(ctx, b.CancelToken))
	err = svc.CancelByToken(ctx, b.CancelToken)
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)
	assert.Equal(t, 400, apperr.HTTPStatus(apperr.KindOf(err)))

	assert.ErrorIs(t, svc.CancelByToken(ctx, "nope"), apperr.ErrInvalidToken)
	assert.Equal(t, []string{notify.KindBookingConfirmation, notify.KindBookingCanceled}, n.kinds())

	// the freed slot can be taken again
	_, err = svc.Create(ctx, req("2026-11-02", "10:30"))
	assert.NoError(t, err)
}

func TestDeleteByWorker(t *testing.T) {
	svc, n := newTestService(t)
	ctx := context.Background()
	staff := &auth.Identity{ID: 1, Username: "bo", Email: "bo@example.com"}

	b, err := svc.Create(ctx, req("2026-11-02", "10:00"))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteByWorker(ctx, nil, b.ID, ErrNotFound), apperr.ErrUnauthorized)
	require.NoError(t, svc.DeleteByWorker(ctx, staff, b.ID, ErrNotFound))
	require.NoError(t, svc.DeleteByWorker(ctx, staff, b.ID, ErrNotFound), "deleting twice is a silent no-op")

	got, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StateDeleted, got.State)

	assert.ErrorIs(t, svc.DeleteByWorker(ctx, staff, 999, ErrNotFound), apperr.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteByWorker(ctx, staff, 999, ErrNotAuthorized), apperr.ErrForbidden)
	assert.Equal(t, []string{notify.KindBookingConfirmation, notify.KindBookingStaffCancel}, n.kinds())
}

func TestDeleteByWorkerAfterCustomerCancelSendsNothing(t *testing.T) {
	svc, n := newTestService(t)
	ctx := context.Background()
	staff := &auth.Identity{ID: 1}

	b, err := svc.Create(ctx, req("2026-11-02", "10:00"))
	require.NoError(t, err)
	require.NoError(t, svc.CancelByToken(ctx, b.CancelToken))
	require.NoError(t, svc.DeleteByWorker(ctx, staff, b.ID, ErrNotAuthorized))

	assert.Equal(t, []string{notify.KindBookingConfirmation, notify.KindBookingCanceled}, n.kinds())
}

func TestListings(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	clock := svc.clock.(*clockwork.FakeClock)

	_, err := svc.Create(ctx, req("2026-11-02", "16:00"))
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = svc.Create(ctx, req("2026-11-03", "09:00"))
	require.NoError(t, err)

	public, err := svc.ListPublic(ctx)
	require.NoError(t, err)
	require.Len(t, public, 2)
	assert.Equal(t, "09:00:00", public[0].Time, "newest first")

	_, err = svc.ListForWorker(ctx, nil)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	staff, err := svc.ListForWorker(ctx, &auth.Identity{ID: 1})
	require.NoError(t, err)
	require.Len(t, staff, 2)
	assert.Equal(t, "09:00:00", staff[0].Time)
	assert.Equal(t, "16:00:00", staff[1].Time)
}

func TestConcurrentCreateAdmitsOne(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	times := []string{"10:00", "10:45", "11:15", "11:59"}
	var wg sync.WaitGroup
	errs := make([]error, len(times))
	start := make(chan struct{})
	for i, tm := range times {
		wg.Add(1)
		go func(i int, tm string) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.Create(ctx, req("2026-11-02", tm))
		}(i, tm)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrSlotConflict)
	}
	assert.Equal(t, 1, succeeded)

	rows, err := svc.ListForWorker(ctx, &auth.Identity{ID: 1})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestValidBookingsKeepTheirDistance(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var tokens []string
	for _, tm := range []string{"08:00", "09:00", "10:00", "10:30", "12:00", "13:59", "14:00", "16:00", "17:30"} {
		b, err := svc.Create(ctx, req("2026-11-02", tm))
		if err == nil {
			tokens = append(tokens, b.CancelToken)
		}
	}
	require.NotEmpty(t, tokens)
	require.NoError(t, svc.CancelByToken(ctx, tokens[0]))
	for _, tm := range []string{"07:30", "08:30", "09:45"} {
		_, _ = svc.Create(ctx, req("2026-11-02", tm))
	}

	rows, err := svc.ListForWorker(ctx, &auth.Identity{ID: 1})
	require.NoError(t, err)
	var valid []entity.Booking
	for _, b := range rows {
		if b.State == entity.StateValid {
			valid = append(valid, b)
		}
	}
	for i := range valid {
		assert.False(t, Conflicts(append(append([]entity.Booking{}, valid[:i]...), valid[i+1:]...), valid[i].Date, valid[i].Time),
			"booking at %s collides with another valid booking", valid[i].Time)
	}
}
