package booking

import (
	"context"
	"fmt"

	"github.com/hackgods/therapy-booking/internal/calendar"
)

// DashboardWindowDays is how far ahead upcoming bookings are counted and how
// far back cancellations are.
const DashboardWindowDays = 7

// PatientBooking is a booking with the patient's contact details, as shown on
// the admin dashboard.
type PatientBooking struct {
	Booking
	PatientEmail     string  `json:"patient_email"`
	PatientFirstName string  `json:"patient_first_name"`
	PatientLastName  string  `json:"patient_last_name"`
	PatientPhone     *string `json:"patient_phone,omitempty"`
}

type DashboardStats struct {
	TotalPatients       int              `json:"total_patients"`
	UpcomingBookings    int              `json:"upcoming_bookings"`
	TodayBookings       []PatientBooking `json:"today_bookings"`
	RecentCancellations int              `json:"recent_cancellations"`
}

// DashboardStats summarizes the practice for the admin panel. Cancelled
// bookings are left out of the upcoming count and of today's list.
func (s *Service) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	now := s.opts.Now().In(s.opts.Location)
	today := calendar.DateOf(now)

	stats, err := s.repo.Stats(ctx, today, today.AddDays(DashboardWindowDays), now.AddDate(0, 0, -DashboardWindowDays))
	if err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	return stats, nil
}
