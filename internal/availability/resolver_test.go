package availability

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/therapy-booking/internal/calendar"
)

func weekly(day time.Weekday, start, end string, duration int) WeeklyAvailability {
	return WeeklyAvailability{
		ID:           uuid.New(),
		DayOfWeek:    day,
		StartTime:    calendar.MustParseClock(start),
		EndTime:      calendar.MustParseClock(end),
		SlotDuration: duration,
		IsActive:     true,
	}
}

func clockPtr(s string) *calendar.Clock {
	c := calendar.MustParseClock(s)
	return &c
}

func date(s string) calendar.Date {
	d, err := calendar.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func starts(slots []Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Date.String()+" "+s.StartTime.String())
	}
	return out
}

// 2025-03-10 is a Monday.
var monday = date("2025-03-10")

func TestComputeNoPartialSlots(t *testing.T) {
	avail := []WeeklyAvailability{weekly(time.Monday, "09:00", "12:00", 45)}

	slots, err := ComputeAvailableSlots(monday, monday, avail, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"2025-03-10 09:00", "2025-03-10 09:45", "2025-03-10 10:30", "2025-03-10 11:15"}
	if got := starts(slots); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	last := slots[len(slots)-1]
	if last.EndTime.String() != "12:00" {
		t.Errorf("last slot ends at %s, want 12:00", last.EndTime)
	}
}

func TestComputeExceptionBlocksDay(t *testing.T) {
	avail := []WeeklyAvailability{
		weekly(time.Monday, "09:00", "12:00", 60),
		weekly(time.Tuesday, "09:00", "10:00", 60),
	}
	exceptions := []ScheduleException{{ID: uuid.New(), Date: monday, IsAvailable: false}}

	slots, err := ComputeAvailableSlots(monday, monday.AddDays(1), avail, exceptions, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, s := range slots {
		if s.Date.Equal(monday) {
			t.Errorf("closed day produced slot %s", s.StartTime)
		}
	}
	if len(slots) != 1 || slots[0].Date.String() != "2025-03-11" {
		t.Errorf("expected only the Tuesday slot, got %v", starts(slots))
	}
}

func TestComputeBookedSlotExcluded(t *testing.T) {
	avail := []WeeklyAvailability{weekly(time.Monday, "09:00", "10:30", 45)}
	reservations := []Reservation{{Date: monday, StartTime: calendar.MustParseClock("09:00")}}

	slots, err := ComputeAvailableSlots(monday, monday, avail, nil, reservations)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"2025-03-10 09:45"}
	if got := starts(slots); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestComputeBookingMatchIsExactStart(t *testing.T) {
	avail := []WeeklyAvailability{weekly(time.Monday, "09:00", "11:00", 60)}
	// A booking that starts mid-slot does not hide the generated slot.
	reservations := []Reservation{{Date: monday, StartTime: calendar.MustParseClock("09:30")}}

	slots, err := ComputeAvailableSlots(monday, monday, avail, nil, reservations)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 2 {
		t.Errorf("expected 2 slots, got %v", starts(slots))
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	avail := []WeeklyAvailability{
		weekly(time.Monday, "14:00", "16:00", 30),
		weekly(time.Monday, "09:00", "11:00", 30),
		weekly(time.Wednesday, "10:00", "12:00", 60),
	}
	reservations := []Reservation{{Date: monday, StartTime: calendar.MustParseClock("09:30")}}

	first, err := ComputeAvailableSlots(monday, monday.AddDays(6), avail, nil, reservations)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := ComputeAvailableSlots(monday, monday.AddDays(6), avail, nil, reservations)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs:\n%v\n%v", i, starts(first), starts(again))
		}
	}

	// Windows were given out of order; output is still sorted.
	got := starts(first)
	if got[0] != "2025-03-10 09:00" || got[len(got)-1] != "2025-03-12 11:00" {
		t.Errorf("unexpected ordering: %v", got)
	}
}

func TestComputeInvalidRange(t *testing.T) {
	_, err := ComputeAvailableSlots(monday.AddDays(1), monday, nil, nil, nil)
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestComputeEmptyIsNotNil(t *testing.T) {
	slots, err := ComputeAvailableSlots(monday, monday, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slots == nil || len(slots) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", slots)
	}
}

func TestComputeSkipsInactiveWindows(t *testing.T) {
	inactive := weekly(time.Monday, "09:00", "10:00", 30)
	inactive.IsActive = false

	slots, err := ComputeAvailableSlots(monday, monday, []WeeklyAvailability{inactive}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("inactive window produced %v", starts(slots))
	}
}

func TestComputePartialClosure(t *testing.T) {
	avail := []WeeklyAvailability{weekly(time.Monday, "09:00", "12:00", 60)}
	exceptions := []ScheduleException{{
		Date:        monday,
		StartTime:   clockPtr("10:30"),
		EndTime:     clockPtr("11:00"),
		IsAvailable: false,
	}}

	slots, err := ComputeAvailableSlots(monday, monday, avail, exceptions, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"2025-03-10 09:00", "2025-03-10 11:00"}
	if got := starts(slots); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestComputeExtraOpeningReplacesWeekly(t *testing.T) {
	sunday := monday.AddDays(-1)
	avail := []WeeklyAvailability{
		weekly(time.Monday, "09:00", "12:00", 45),
	}
	exceptions := []ScheduleException{
		// Opens an otherwise closed Sunday with the default duration.
		{Date: sunday, StartTime: clockPtr("10:00"), EndTime: clockPtr("12:00"), IsAvailable: true},
		// Replaces Monday's hours; inherits the weekday's 45 minute duration.
		{Date: monday, StartTime: clockPtr("14:00"), EndTime: clockPtr("15:30"), IsAvailable: true},
	}

	slots, err := NewResolver(60).Compute(sunday, monday, avail, exceptions, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"2025-03-09 10:00", "2025-03-09 11:00",
		"2025-03-10 14:00", "2025-03-10 14:45",
	}
	if got := starts(slots); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestComputeOpeningWithOwnDuration(t *testing.T) {
	d := 20
	exceptions := []ScheduleException{{
		Date:         monday,
		StartTime:    clockPtr("08:00"),
		EndTime:      clockPtr("09:00"),
		IsAvailable:  true,
		SlotDuration: &d,
	}}

	slots, err := ComputeAvailableSlots(monday, monday, nil, exceptions, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 3 {
		t.Errorf("expected 3 slots of 20 minutes, got %v", starts(slots))
	}
}

func TestComputeOpenExceptionWithoutHoursKeepsWeekly(t *testing.T) {
	avail := []WeeklyAvailability{weekly(time.Monday, "09:00", "10:00", 30)}
	exceptions := []ScheduleException{{Date: monday, IsAvailable: true}}

	slots, err := ComputeAvailableSlots(monday, monday, avail, exceptions, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 2 {
		t.Errorf("expected weekly slots to survive, got %v", starts(slots))
	}
}

func TestComputeOverlappingWindowsEmitOnce(t *testing.T) {
	avail := []WeeklyAvailability{
		weekly(time.Monday, "09:00", "11:00", 60),
		weekly(time.Monday, "10:00", "12:00", 60),
	}

	slots, err := ComputeAvailableSlots(monday, monday, avail, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"2025-03-10 09:00", "2025-03-10 10:00", "2025-03-10 11:00"}
	if got := starts(slots); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSlotsSequenceStopsEarly(t *testing.T) {
	avail := []WeeklyAvailability{weekly(time.Monday, "09:00", "17:00", 60)}

	seq, err := NewResolver(60).Slots(monday, monday.AddDays(14), avail, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n := 0
	for range seq {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Errorf("expected to stop after 3, got %d", n)
	}
}

func TestResolverOffers(t *testing.T) {
	avail := []WeeklyAvailability{weekly(time.Monday, "09:00", "11:00", 60)}
	r := NewResolver(60)

	free := Slot{Date: monday, StartTime: calendar.MustParseClock("10:00"), EndTime: calendar.MustParseClock("11:00")}
	if !r.Offers(free, avail, nil, nil) {
		t.Error("expected 10:00 to be offered")
	}

	misaligned := Slot{Date: monday, StartTime: calendar.MustParseClock("09:30"), EndTime: calendar.MustParseClock("10:30")}
	if r.Offers(misaligned, avail, nil, nil) {
		t.Error("09:30 is not a generated slot")
	}

	taken := []Reservation{{Date: monday, StartTime: calendar.MustParseClock("10:00")}}
	if r.Offers(free, avail, nil, taken) {
		t.Error("booked slot must not be offered")
	}
}
