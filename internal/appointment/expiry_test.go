package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/salon-scheduling/internal/config"
	"github.com/hackgods/salon-scheduling/internal/realtime"
)

func TestExpireStaleDisabledByDefault(t *testing.T) {
	f := newFixture(t)
	f.book(t, f.customer, f.stylist, at(10, 0), f.cut)
	f.clock.advance(24 * time.Hour)

	report, err := f.svc.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExpiryReport{}, report)
}

func TestExpireStaleCancelsOldPendingItems(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.PendingAppointmentTTL = time.Hour
		cfg.RescheduleRequestTTL = 30 * time.Minute
	})
	ctx := context.Background()

	pending := f.book(t, f.customer, f.stylist, at(10, 0), f.cut)
	walkIn := f.book(t, f.owner, f.stylist, at(11, 0), f.cut)
	req, err := f.svc.CreateRescheduleRequest(ctx, f.owner, walkIn.ID, CreateRescheduleInput{NewStartAt: at(15, 0)})
	require.NoError(t, err)

	f.clock.advance(45 * time.Minute)
	report, err := f.svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpiryReport{RescheduleRequests: 1}, report)

	expired, err := f.repo.GetRescheduleRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, RescheduleCancelled, expired.Status)

	f.clock.advance(30 * time.Minute)
	report, err = f.svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpiryReport{Appointments: 1}, report)

	cancelled, err := f.repo.GetAppointmentByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	confirmed, err := f.repo.GetAppointmentByID(ctx, walkIn.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status, "confirmed appointments never expire")

	types := f.events.types()
	assert.Contains(t, types, realtime.RescheduleCancelled)
	assert.Contains(t, types, realtime.AppointmentCancelled)
}
