package availability

import (
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/hackgods/therapy-booking/internal/calendar"
)

var ErrInvalidRange = errors.New("invalid date range")

// DefaultSlotDuration is used for extra openings when neither the exception
// nor the weekday's weekly windows say otherwise.
const DefaultSlotDuration = 60

// Resolver turns weekly windows, exceptions and live reservations into free
// slots. It holds no state besides the fallback slot duration.
type Resolver struct {
	DefaultSlotDuration int
}

func NewResolver(defaultSlotDuration int) Resolver {
	if defaultSlotDuration <= 0 {
		defaultSlotDuration = DefaultSlotDuration
	}
	return Resolver{DefaultSlotDuration: defaultSlotDuration}
}

// ComputeAvailableSlots returns the free slots between start and end
// inclusive, ordered by date then start time.
func ComputeAvailableSlots(start, end calendar.Date, availabilities []WeeklyAvailability, exceptions []ScheduleException, reservations []Reservation) ([]Slot, error) {
	return NewResolver(DefaultSlotDuration).Compute(start, end, availabilities, exceptions, reservations)
}

func (r Resolver) Compute(start, end calendar.Date, availabilities []WeeklyAvailability, exceptions []ScheduleException, reservations []Reservation) ([]Slot, error) {
	seq, err := r.Slots(start, end, availabilities, exceptions, reservations)
	if err != nil {
		return nil, err
	}

	out := []Slot{}
	for s := range seq {
		out = append(out, s)
	}
	return out, nil
}

// Slots is the lazy form of Compute. The returned sequence can be ranged over
// repeatedly and yields identical results each time.
func (r Resolver) Slots(start, end calendar.Date, availabilities []WeeklyAvailability, exceptions []ScheduleException, reservations []Reservation) (iter.Seq[Slot], error) {
	if start.After(end) {
		return nil, fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, start, end)
	}

	byWeekday := make(map[int][]WeeklyAvailability, 7)
	for _, a := range availabilities {
		if !a.IsActive {
			continue
		}
		byWeekday[int(a.DayOfWeek)] = append(byWeekday[int(a.DayOfWeek)], a)
	}

	byDate := make(map[calendar.Date][]ScheduleException)
	for _, e := range exceptions {
		byDate[e.Date] = append(byDate[e.Date], e)
	}

	booked := make(map[Reservation]struct{}, len(reservations))
	for _, res := range reservations {
		booked[res] = struct{}{}
	}

	return func(yield func(Slot) bool) {
		for d := range calendar.Days(start, end) {
			for _, s := range r.slotsForDate(d, byWeekday[int(d.Weekday())], byDate[d], booked) {
				if !yield(s) {
					return
				}
			}
		}
	}, nil
}

type window struct {
	interval calendar.Interval
	duration int
}

func (r Resolver) slotsForDate(d calendar.Date, weekly []WeeklyAvailability, exceptions []ScheduleException, booked map[Reservation]struct{}) []Slot {
	var (
		openings []window
		blocked  []calendar.Interval
	)

	for _, e := range exceptions {
		w, hasWindow := e.Window()
		switch {
		case !e.IsAvailable && !hasWindow:
			return nil
		case !e.IsAvailable:
			blocked = append(blocked, w)
		case hasWindow:
			openings = append(openings, window{interval: w, duration: r.openingDuration(e, weekly)})
		}
	}

	windows := openings
	if len(windows) == 0 {
		for _, a := range weekly {
			windows = append(windows, window{interval: a.Window(), duration: a.SlotDuration})
		}
	}

	var slots []Slot
	seen := make(map[calendar.Clock]struct{})
	for _, w := range windows {
		for _, piece := range w.interval.Split(w.duration) {
			if _, dup := seen[piece.Start]; dup {
				continue
			}
			if _, taken := booked[Reservation{Date: d, StartTime: piece.Start}]; taken {
				continue
			}
			if overlapsAny(piece, blocked) {
				continue
			}
			seen[piece.Start] = struct{}{}
			slots = append(slots, Slot{Date: d, StartTime: piece.Start, EndTime: piece.End})
		}
	}

	slices.SortFunc(slots, func(a, b Slot) int {
		return int(a.StartTime - b.StartTime)
	})
	return slots
}

func (r Resolver) openingDuration(e ScheduleException, weekly []WeeklyAvailability) int {
	if e.SlotDuration != nil && *e.SlotDuration > 0 {
		return *e.SlotDuration
	}
	if len(weekly) > 0 && weekly[0].SlotDuration > 0 {
		return weekly[0].SlotDuration
	}
	return r.DefaultSlotDuration
}

func overlapsAny(i calendar.Interval, others []calendar.Interval) bool {
	for _, o := range others {
		if i.Overlaps(o) {
			return true
		}
	}
	return false
}

// Offers reports whether the exact slot is among the free slots for its date.
func (r Resolver) Offers(slot Slot, availabilities []WeeklyAvailability, exceptions []ScheduleException, reservations []Reservation) bool {
	seq, err := r.Slots(slot.Date, slot.Date, availabilities, exceptions, reservations)
	if err != nil {
		return false
	}
	for s := range seq {
		if s == slot {
			return true
		}
	}
	return false
}
