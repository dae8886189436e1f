// Package availability computes bookable time slots from a calendar
// resource's working hours minus internal CalendarBlocks and, for
// Google-backed resources, external freebusy data. Grounded on
// original_source/backend/services/availability_service.py.
package availability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vidinsight-tech/queryon/internal/model"
)

var dayNames = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

const defaultSlotMinutes = 60

// ResourceRepo is the narrow calendar-resource read capability this
// package needs — satisfied by internal/store.
type ResourceRepo interface {
	GetByID(ctx context.Context, id string) (*model.CalendarResource, error)
	ListByResourceName(ctx context.Context, name string) ([]*model.CalendarResource, error)
}

// BlockRepo is the narrow calendar-block read capability this package
// needs — satisfied by internal/store.
type BlockRepo interface {
	ListForDate(ctx context.Context, resourceID string, date string) ([]*model.CalendarBlock, error)
}

// TimeRange is a busy interval expressed in minutes-since-midnight, local
// to the resource's timezone.
type TimeRange struct {
	StartMinutes int
	EndMinutes   int
}

// FreeBusyProvider fetches external busy intervals for one resource on one
// date. A provider error must degrade to "no additional busy time" — it
// must never fail the slot computation.
type FreeBusyProvider interface {
	FreeBusy(ctx context.Context, resource *model.CalendarResource, date time.Time) ([]TimeRange, error)
}

// Service computes availability and reschedule conflicts.
type Service struct {
	resources ResourceRepo
	blocks    BlockRepo
	freebusy  FreeBusyProvider
}

// NewService builds an availability Service. freebusy may be nil when no
// external calendar provider is configured — CalendarExternal resources
// then contribute no additional busy ranges.
func NewService(resources ResourceRepo, blocks BlockRepo, freebusy FreeBusyProvider) *Service {
	return &Service{resources: resources, blocks: blocks, freebusy: freebusy}
}

// GetSlots returns available slot start times (HH:MM) for one calendar
// resource on one date, honoring working hours, service duration, buffer
// minutes, internal blocks, and (for CalendarExternal resources) external
// freebusy.
func (s *Service) GetSlots(ctx context.Context, calendarResourceID string, date time.Time, serviceName string, bufferMinutes int) ([]string, error) {
	resource, err := s.resources.GetByID(ctx, calendarResourceID)
	if err != nil {
		return nil, err
	}
	if resource == nil {
		return nil, nil
	}

	dayName := dayNames[int(date.Weekday())]
	working, ok := resource.WorkingHours[dayName]
	if !ok || !working.Open {
		return nil, nil
	}

	slotDuration := defaultSlotMinutes
	if d, ok := resource.ServiceDurations[serviceName]; ok && serviceName != "" {
		slotDuration = d
	} else if d, ok := resource.ServiceDurations["default"]; ok {
		slotDuration = d
	}
	totalDuration := slotDuration + bufferMinutes

	var candidates []int // minutes-since-midnight slot starts
	for _, interval := range working.Slots {
		startMin, ok1 := parseTimeMinutes(interval.Start)
		endMin, ok2 := parseTimeMinutes(interval.End)
		if !ok1 || !ok2 {
			continue
		}
		for cursor := startMin; cursor+totalDuration <= endMin; cursor += slotDuration {
			candidates = append(candidates, cursor)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	dateStr := date.Format("2006-01-02")
	blocks, err := s.blocks.ListForDate(ctx, calendarResourceID, dateStr)
	if err != nil {
		return nil, err
	}

	var busy []TimeRange
	for _, b := range blocks {
		startMin, ok1 := parseTimeMinutes(b.StartTime)
		endMin, ok2 := parseTimeMinutes(b.EndTime)
		if ok1 && ok2 {
			busy = append(busy, TimeRange{StartMinutes: startMin, EndMinutes: endMin})
		}
	}

	if resource.CalendarType == model.CalendarExternal && s.freebusy != nil {
		external, err := s.freebusy.FreeBusy(ctx, resource, date)
		if err != nil {
			// External provider errors degrade to "no additional busy" —
			// they never fail slot computation.
			slog.Warn("availability: external freebusy failed, degrading to internal blocks only", "resource", resource.Name, "error", err)
		} else {
			busy = append(busy, external...)
		}
	}

	var available []string
	for _, slotStart := range candidates {
		slotEnd := slotStart + totalDuration
		if !overlapsAny(slotStart, slotEnd, busy) {
			available = append(available, formatMinutes(slotStart))
		}
	}
	return available, nil
}

// GetSlotsByResourceName finds the first calendar resource with the given
// resource_name and returns its slots, or nil if none exists.
func (s *Service) GetSlotsByResourceName(ctx context.Context, resourceName string, date time.Time, serviceName string, bufferMinutes int) ([]string, error) {
	resources, err := s.resources.ListByResourceName(ctx, resourceName)
	if err != nil {
		return nil, err
	}
	if len(resources) == 0 {
		return nil, nil
	}
	return s.GetSlots(ctx, resources[0].ID, date, serviceName, bufferMinutes)
}

// CheckConflict reports whether artistName already has a conflicting
// internal block at eventDateStr/eventTimeStr, excluding the given
// appointment's own blocks (for reschedule validation). Returns false,
// never an error, when the resource or time inputs can't be resolved.
func (s *Service) CheckConflict(ctx context.Context, artistName, eventDateStr, eventTimeStr, serviceName string, excludeAppointmentID *string) (bool, error) {
	resources, err := s.resources.ListByResourceName(ctx, artistName)
	if err != nil {
		return false, err
	}
	if len(resources) == 0 {
		return false, nil
	}
	resource := resources[0]

	startMin, ok := parseTimeMinutes(eventTimeStr)
	if !ok {
		return false, nil
	}

	duration := defaultSlotMinutes
	if d, ok := resource.ServiceDurations[serviceName]; ok && serviceName != "" {
		duration = d
	} else if d, ok := resource.ServiceDurations["default"]; ok {
		duration = d
	}
	endMin := startMin + duration

	blocks, err := s.blocks.ListForDate(ctx, resource.ID, eventDateStr)
	if err != nil {
		return false, err
	}

	var busy []TimeRange
	for _, b := range blocks {
		if excludeAppointmentID != nil && b.AppointmentID != nil && *b.AppointmentID == *excludeAppointmentID {
			continue
		}
		if bs, ok1 := parseTimeMinutes(b.StartTime); ok1 {
			if be, ok2 := parseTimeMinutes(b.EndTime); ok2 {
				busy = append(busy, TimeRange{StartMinutes: bs, EndMinutes: be})
			}
		}
	}

	return overlapsAny(startMin, endMin, busy), nil
}

// BlockEnd computes the HH:MM end time for a new booking on artistName
// starting at eventTimeStr, using the resource's configured service
// duration. ok is false when the resource or start time can't be resolved.
func (s *Service) BlockEnd(ctx context.Context, artistName, eventTimeStr, serviceName string) (string, bool, error) {
	resources, err := s.resources.ListByResourceName(ctx, artistName)
	if err != nil {
		return "", false, err
	}
	if len(resources) == 0 {
		return "", false, nil
	}
	resource := resources[0]

	startMin, ok := parseTimeMinutes(eventTimeStr)
	if !ok {
		return "", false, nil
	}

	duration := defaultSlotMinutes
	if d, ok := resource.ServiceDurations[serviceName]; ok && serviceName != "" {
		duration = d
	} else if d, ok := resource.ServiceDurations["default"]; ok {
		duration = d
	}

	return formatMinutes(startMin + duration), true, nil
}

// parseTimeMinutes parses "HH:MM" or "HH:MM:SS" into minutes-since-midnight.
func parseTimeMinutes(s string) (int, bool) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour()*60 + t.Minute(), true
		}
	}
	return 0, false
}

func formatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// overlapsAny mirrors the Python original's overlap test exactly:
// start < busy_end AND end > busy_start.
func overlapsAny(start, end int, ranges []TimeRange) bool {
	for _, r := range ranges {
		if start < r.EndMinutes && end > r.StartMinutes {
			return true
		}
	}
	return false
}
