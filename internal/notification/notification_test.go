package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/therapy-booking/internal/booking"
	"github.com/hackgods/therapy-booking/internal/calendar"
	"github.com/hackgods/therapy-booking/internal/patient"
)

type stubPatients map[uuid.UUID]patient.Patient

func (s stubPatients) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := s[id]
	if !ok {
		return nil, patient.ErrPatientNotFound
	}
	return &p, nil
}

func testBooking(patientID uuid.UUID) booking.Booking {
	reason := "<script>alert(1)</script>"
	return booking.Booking{
		ID:        uuid.New(),
		PatientID: patientID,
		Date:      calendar.NewDate(2026, 3, 9),
		StartTime: calendar.MustParseClock("09:00"),
		EndTime:   calendar.MustParseClock("10:00"),
		Status:    booking.StatusConfirmed,
		Reason:    &reason,
	}
}

func TestMailerSendsConfirmation(t *testing.T) {
	var got mailPayload
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("api-key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	pid := uuid.New()
	patients := stubPatients{pid: {ID: pid, Email: "camille@example.com", FirstName: "Camille"}}
	m, err := NewMailer(MailConfig{
		APIURL:      srv.URL,
		APIKey:      "secret",
		SenderEmail: "noreply@example.com",
		ClinicName:  "Sensorimotor Therapy",
	}, patients, zerolog.Nop())
	if err != nil {
		t.Fatalf("new mailer: %v", err)
	}

	b := testBooking(pid)
	if err := m.NotifyBookingConfirmed(context.Background(), b); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if apiKey != "secret" {
		t.Errorf("api key header not set")
	}
	if len(got.To) != 1 || got.To[0].Email != "camille@example.com" || got.To[0].Name != "Camille" {
		t.Errorf("unexpected recipient %+v", got.To)
	}
	if got.Sender.Name != "Sensorimotor Therapy" {
		t.Errorf("sender name should default to clinic, got %q", got.Sender.Name)
	}
	if !strings.Contains(got.Subject, "confirmed") {
		t.Errorf("subject %q", got.Subject)
	}
	for _, want := range []string{"Hello Camille", "Monday 2026-03-09", "09:00 - 10:00", b.ID.String(), "24 hours"} {
		if !strings.Contains(got.HTMLContent, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if strings.Contains(got.HTMLContent, "<script>") {
		t.Errorf("reason not escaped")
	}
}

func TestMailerCancellationWording(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p mailPayload
		_ = json.NewDecoder(r.Body).Decode(&p)
		body = p.HTMLContent
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	pid := uuid.New()
	m, _ := NewMailer(MailConfig{APIURL: srv.URL, APIKey: "k", SenderEmail: "s@example.com"},
		stubPatients{pid: {ID: pid, Email: "p@example.com"}}, zerolog.Nop())

	if err := m.NotifyBookingCancelled(context.Background(), testBooking(pid), booking.RoleAdmin); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if !strings.Contains(body, "cancelled by the therapist") {
		t.Errorf("admin cancellation wording missing")
	}

	if err := m.NotifyBookingCancelled(context.Background(), testBooking(pid), booking.RolePatient); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if strings.Contains(body, "by the therapist") {
		t.Errorf("patient cancellation should not mention the therapist")
	}
}

func TestMailerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"code":"invalid_parameter"}`)
	}))
	defer srv.Close()

	pid := uuid.New()
	m, _ := NewMailer(MailConfig{APIURL: srv.URL, APIKey: "k", SenderEmail: "s@example.com"},
		stubPatients{pid: {ID: pid, Email: "p@example.com"}}, zerolog.Nop())

	err := m.NotifyBookingReminder(context.Background(), testBooking(pid))
	if err == nil || !strings.Contains(err.Error(), "invalid_parameter") {
		t.Errorf("expected api error, got %v", err)
	}

	err = m.NotifyBookingReminder(context.Background(), testBooking(uuid.New()))
	if !errors.Is(err, patient.ErrPatientNotFound) {
		t.Errorf("expected ErrPatientNotFound, got %v", err)
	}

	if _, err := NewMailer(MailConfig{}, nil, zerolog.Nop()); !errors.Is(err, ErrMailNotConfigured) {
		t.Errorf("expected ErrMailNotConfigured, got %v", err)
	}
}

func TestTelegramBroadcast(t *testing.T) {
	var (
		mu    sync.Mutex
		chats []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Errorf("unexpected method %s", r.URL.Path)
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		chats = append(chats, req["chat_id"].(string))
		mu.Unlock()
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`)
	}))
	defer srv.Close()

	n, err := NewTelegramNotifier(TelegramConfig{Token: "123:abc", ChatIDs: []int64{11, 22}, APIURL: srv.URL}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	if err := n.NotifyBookingConfirmed(context.Background(), testBooking(uuid.New())); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(chats) != 2 || chats[0] != "11" || chats[1] != "22" {
		t.Errorf("expected both chats, got %v", chats)
	}
}

type countingNotifier struct {
	calls int
	err   error
}

func (c *countingNotifier) NotifyBookingConfirmed(context.Context, booking.Booking) error {
	c.calls++
	return c.err
}

func (c *countingNotifier) NotifyBookingCancelled(context.Context, booking.Booking, booking.Role) error {
	c.calls++
	return c.err
}

func (c *countingNotifier) NotifyBookingReminder(context.Context, booking.Booking) error {
	c.calls++
	return c.err
}

func TestFanoutContinuesAfterError(t *testing.T) {
	failing := &countingNotifier{err: errors.New("down")}
	ok := &countingNotifier{}

	err := Fanout{failing, ok}.NotifyBookingConfirmed(context.Background(), booking.Booking{})
	if err == nil {
		t.Errorf("expected joined error")
	}
	if failing.calls != 1 || ok.calls != 1 {
		t.Errorf("every notifier should be called, got %d %d", failing.calls, ok.calls)
	}
}
