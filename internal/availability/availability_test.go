package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidinsight-tech/queryon/internal/model"
)

type fakeResourceRepo struct {
	byID     map[string]*model.CalendarResource
	byName   map[string][]*model.CalendarResource
}

func (f *fakeResourceRepo) GetByID(ctx context.Context, id string) (*model.CalendarResource, error) {
	return f.byID[id], nil
}

func (f *fakeResourceRepo) ListByResourceName(ctx context.Context, name string) ([]*model.CalendarResource, error) {
	return f.byName[name], nil
}

type fakeBlockRepo struct {
	blocks map[string][]*model.CalendarBlock // keyed by resourceID+"|"+date
}

func (f *fakeBlockRepo) ListForDate(ctx context.Context, resourceID string, date string) ([]*model.CalendarBlock, error) {
	return f.blocks[resourceID+"|"+date], nil
}

type fakeFreeBusy struct {
	ranges []TimeRange
	err    error
}

func (f *fakeFreeBusy) FreeBusy(ctx context.Context, resource *model.CalendarResource, date time.Time) ([]TimeRange, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ranges, nil
}

func tuesdayResource(calType model.CalendarType) *model.CalendarResource {
	return &model.CalendarResource{
		ID:           "res-1",
		Name:         "Ayşe",
		ResourceName: "ayse",
		CalendarType: calType,
		WorkingHours: map[string]model.DayHours{
			"tuesday": {
				Open:  true,
				Slots: []model.TimeSlot{{Start: "10:00", End: "12:00"}},
			},
		},
		ServiceDurations: map[string]int{"default": 60},
	}
}

// 2026-08-04 is a Tuesday.
var testTuesday = time.Date(2026, time.August, 4, 0, 0, 0, 0, time.UTC)

func TestGetSlots_WithinWorkingHoursNoBlocks(t *testing.T) {
	resources := &fakeResourceRepo{byID: map[string]*model.CalendarResource{"res-1": tuesdayResource(model.CalendarInternal)}}
	blocks := &fakeBlockRepo{blocks: map[string][]*model.CalendarBlock{}}
	svc := NewService(resources, blocks, nil)

	slots, err := svc.GetSlots(context.Background(), "res-1", testTuesday, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "11:00"}, slots)
}

func TestGetSlots_SubtractsInternalBlock(t *testing.T) {
	resources := &fakeResourceRepo{byID: map[string]*model.CalendarResource{"res-1": tuesdayResource(model.CalendarInternal)}}
	blocks := &fakeBlockRepo{blocks: map[string][]*model.CalendarBlock{
		"res-1|2026-08-04": {{StartTime: "10:00", EndTime: "11:00"}},
	}}
	svc := NewService(resources, blocks, nil)

	slots, err := svc.GetSlots(context.Background(), "res-1", testTuesday, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"11:00"}, slots)
}

func TestGetSlots_SubtractsExternalFreeBusy(t *testing.T) {
	resources := &fakeResourceRepo{byID: map[string]*model.CalendarResource{"res-1": tuesdayResource(model.CalendarExternal)}}
	blocks := &fakeBlockRepo{blocks: map[string][]*model.CalendarBlock{}}
	fb := &fakeFreeBusy{ranges: []TimeRange{{StartMinutes: 11 * 60, EndMinutes: 12 * 60}}}
	svc := NewService(resources, blocks, fb)

	slots, err := svc.GetSlots(context.Background(), "res-1", testTuesday, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00"}, slots)
}

func TestGetSlots_ExternalProviderErrorDegradesGracefully(t *testing.T) {
	resources := &fakeResourceRepo{byID: map[string]*model.CalendarResource{"res-1": tuesdayResource(model.CalendarExternal)}}
	blocks := &fakeBlockRepo{blocks: map[string][]*model.CalendarBlock{}}
	fb := &fakeFreeBusy{err: errors.New("google api unavailable")}
	svc := NewService(resources, blocks, fb)

	slots, err := svc.GetSlots(context.Background(), "res-1", testTuesday, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "11:00"}, slots)
}

func TestGetSlots_DayClosed(t *testing.T) {
	resource := tuesdayResource(model.CalendarInternal)
	resource.WorkingHours["tuesday"] = model.DayHours{Open: false}
	resources := &fakeResourceRepo{byID: map[string]*model.CalendarResource{"res-1": resource}}
	blocks := &fakeBlockRepo{blocks: map[string][]*model.CalendarBlock{}}
	svc := NewService(resources, blocks, nil)

	slots, err := svc.GetSlots(context.Background(), "res-1", testTuesday, "", 0)
	require.NoError(t, err)
	assert.Nil(t, slots)
}

func TestGetSlotsByResourceName_ResolvesFirstMatch(t *testing.T) {
	resource := tuesdayResource(model.CalendarInternal)
	resources := &fakeResourceRepo{
		byID:   map[string]*model.CalendarResource{"res-1": resource},
		byName: map[string][]*model.CalendarResource{"ayse": {resource}},
	}
	blocks := &fakeBlockRepo{blocks: map[string][]*model.CalendarBlock{}}
	svc := NewService(resources, blocks, nil)

	slots, err := svc.GetSlotsByResourceName(context.Background(), "ayse", testTuesday, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "11:00"}, slots)
}

func TestGetSlotsByResourceName_NoMatch(t *testing.T) {
	resources := &fakeResourceRepo{byName: map[string][]*model.CalendarResource{}}
	blocks := &fakeBlockRepo{}
	svc := NewService(resources, blocks, nil)

	slots, err := svc.GetSlotsByResourceName(context.Background(), "nobody", testTuesday, "", 0)
	require.NoError(t, err)
	assert.Nil(t, slots)
}

func TestCheckConflict_TrueWhenOverlapping(t *testing.T) {
	resource := tuesdayResource(model.CalendarInternal)
	resources := &fakeResourceRepo{byName: map[string][]*model.CalendarResource{"ayse": {resource}}}
	blocks := &fakeBlockRepo{blocks: map[string][]*model.CalendarBlock{
		"res-1|2026-08-04": {{StartTime: "10:00", EndTime: "11:00"}},
	}}
	svc := NewService(resources, blocks, nil)

	conflict, err := svc.CheckConflict(context.Background(), "ayse", "2026-08-04", "10:30", "", nil)
	require.NoError(t, err)
	assert.True(t, conflict)
}

func TestCheckConflict_FalseWhenNoOverlap(t *testing.T) {
	resource := tuesdayResource(model.CalendarInternal)
	resources := &fakeResourceRepo{byName: map[string][]*model.CalendarResource{"ayse": {resource}}}
	blocks := &fakeBlockRepo{blocks: map[string][]*model.CalendarBlock{
		"res-1|2026-08-04": {{StartTime: "10:00", EndTime: "11:00"}},
	}}
	svc := NewService(resources, blocks, nil)

	conflict, err := svc.CheckConflict(context.Background(), "ayse", "2026-08-04", "11:00", "", nil)
	require.NoError(t, err)
	assert.False(t, conflict)
}

func TestCheckConflict_ExcludesOwnAppointmentBlock(t *testing.T) {
	resource := tuesdayResource(model.CalendarInternal)
	resources := &fakeResourceRepo{byName: map[string][]*model.CalendarResource{"ayse": {resource}}}
	apptID := "appt-42"
	blocks := &fakeBlockRepo{blocks: map[string][]*model.CalendarBlock{
		"res-1|2026-08-04": {{StartTime: "10:00", EndTime: "11:00", AppointmentID: &apptID}},
	}}
	svc := NewService(resources, blocks, nil)

	conflict, err := svc.CheckConflict(context.Background(), "ayse", "2026-08-04", "10:30", "", &apptID)
	require.NoError(t, err)
	assert.False(t, conflict)
}

func TestCheckConflict_UnparsableTimeReturnsFalse(t *testing.T) {
	resource := tuesdayResource(model.CalendarInternal)
	resources := &fakeResourceRepo{byName: map[string][]*model.CalendarResource{"ayse": {resource}}}
	blocks := &fakeBlockRepo{}
	svc := NewService(resources, blocks, nil)

	conflict, err := svc.CheckConflict(context.Background(), "ayse", "2026-08-04", "not-a-time", "", nil)
	require.NoError(t, err)
	assert.False(t, conflict)
}

func TestParseTimeMinutes_BothLayouts(t *testing.T) {
	m, ok := parseTimeMinutes("09:05")
	assert.True(t, ok)
	assert.Equal(t, 9*60+5, m)

	m, ok = parseTimeMinutes("09:05:30")
	assert.True(t, ok)
	assert.Equal(t, 9*60+5, m)

	_, ok = parseTimeMinutes("garbage")
	assert.False(t, ok)
}
