package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/salon-scheduling/internal/availability"
	"github.com/hackgods/salon-scheduling/internal/realtime"
)

func TestBusySlotBlocksBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stylist := f.stylist

	_, err := f.svc.CreateBusySlot(ctx, f.customer, f.businessID, BusySlotInput{EmployeeID: &stylist, StartAt: at(12, 0), EndAt: at(13, 0)})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.CreateBusySlot(ctx, f.owner, f.businessID, BusySlotInput{EmployeeID: &stylist, StartAt: at(13, 0), EndAt: at(12, 0)})
	assert.ErrorIs(t, err, ErrValidation)

	slot, err := f.svc.CreateBusySlot(ctx, f.owner, f.businessID, BusySlotInput{
		EmployeeID: &stylist, StartAt: at(12, 0), EndAt: at(13, 0), Reason: " lunch ",
	})
	require.NoError(t, err)
	assert.Equal(t, "lunch", slot.Reason)

	_, err = f.svc.CreateAppointment(ctx, f.customer, CreateAppointmentInput{
		BusinessID: f.businessID, EmployeeID: f.stylist, ServiceIDs: []uuid.UUID{f.cut}, StartAt: at(11, 45),
	})
	assert.ErrorIs(t, err, ErrConflict)

	days := f.slots(t, f.stylist, false)
	blocked, ok := slotAt(days, at(12, 30))
	require.True(t, ok)
	assert.Equal(t, availability.StatusBlocked, blocked.Status)
	require.NotNil(t, blocked.BusySlotID)
	assert.Equal(t, slot.ID, *blocked.BusySlotID)

	other := f.slots(t, f.colorist, false)
	free, ok := slotAt(other, at(12, 30))
	require.True(t, ok)
	assert.Equal(t, availability.StatusAvailable, free.Status)

	listed, err := f.svc.ListBusySlots(ctx, f.owner, f.businessID, &stylist, "2026-10-12", "2026-10-12")
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	require.NoError(t, f.svc.DeleteBusySlot(ctx, f.owner, f.businessID, slot.ID))
	assert.ErrorIs(t, f.svc.DeleteBusySlot(ctx, f.owner, f.businessID, slot.ID), ErrNotFound)

	f.book(t, f.customer, f.stylist, at(11, 45), f.cut)

	assert.Equal(t, []realtime.EventType{
		realtime.BusySlotCreated,
		realtime.BusySlotDeleted,
		realtime.AppointmentCreated,
	}, f.events.types())
}

func TestAllDayBusySlotCoversBusinessDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slot, err := f.svc.CreateBusySlot(ctx, f.owner, f.businessID, BusySlotInput{StartAt: at(15, 20), IsAllDay: true, Reason: "holiday"})
	require.NoError(t, err)
	assert.Nil(t, slot.EmployeeID)
	assert.Equal(t, monday, slot.StartAt)
	assert.Equal(t, monday.AddDate(0, 0, 1), slot.EndAt)

	for _, employee := range []uuid.UUID{f.stylist, f.colorist} {
		_, err := f.svc.CreateAppointment(ctx, f.customer, CreateAppointmentInput{
			BusinessID: f.businessID, EmployeeID: employee, ServiceIDs: []uuid.UUID{f.cut}, StartAt: at(9, 0),
		})
		assert.ErrorIs(t, err, ErrConflict)
	}
}

func TestListBusySlotsValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ListBusySlots(ctx, f.customer, f.businessID, nil, "2026-10-12", "2026-10-12")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.ListBusySlots(ctx, f.owner, f.businessID, nil, "2026-10-13", "2026-10-12")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReplaceWorkingHours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ReplaceWorkingHours(ctx, f.owner, f.businessID, f.stylist, []WorkingHoursInput{
		{DayOfWeek: int(time.Monday), StartTime: "18:00", EndTime: "09:00"},
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.ReplaceWorkingHours(ctx, f.customer, f.businessID, f.stylist, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.ReplaceWorkingHours(ctx, f.owner, uuid.New(), f.stylist, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)

	hours, err := f.svc.ReplaceWorkingHours(ctx, f.owner, f.businessID, f.stylist, []WorkingHoursInput{
		{DayOfWeek: int(time.Monday), StartTime: "9:00", EndTime: "11:00"},
		{DayOfWeek: int(time.Monday), StartTime: "14:00", EndTime: "15:00"},
	})
	require.NoError(t, err)
	require.Len(t, hours, 2)
	assert.Equal(t, "09:00", hours[0].StartTime)

	days := f.slots(t, f.stylist, false)
	assert.Len(t, days[0].Slots, 12)
	_, ok := slotAt(days, at(12, 0))
	assert.False(t, ok)

	listed, err := f.svc.ListWorkingHours(ctx, f.businessID, f.stylist)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	assert.Equal(t, []realtime.EventType{realtime.WorkingHoursUpdated}, f.events.types())
}
