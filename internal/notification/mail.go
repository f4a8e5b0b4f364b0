package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/therapy-booking/internal/booking"
	"github.com/hackgods/therapy-booking/internal/patient"
)

// DefaultMailAPIURL is the Brevo transactional email endpoint.
const DefaultMailAPIURL = "https://api.brevo.com/v3/smtp/email"

var ErrMailNotConfigured = errors.New("mail api key and sender are required")

// PatientLookup resolves the recipient of a booking message.
type PatientLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type MailConfig struct {
	APIURL      string
	APIKey      string
	SenderEmail string
	SenderName  string
	ClinicName  string
	Cutoff      time.Duration
	Timeout     time.Duration
}

// Mailer sends patient emails through a transactional mail HTTP API.
type Mailer struct {
	cfg      MailConfig
	client   *http.Client
	patients PatientLookup
	log      zerolog.Logger
}

func NewMailer(cfg MailConfig, patients PatientLookup, log zerolog.Logger) (*Mailer, error) {
	if cfg.APIKey == "" || cfg.SenderEmail == "" {
		return nil, ErrMailNotConfigured
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultMailAPIURL
	}
	if cfg.SenderName == "" {
		cfg.SenderName = cfg.ClinicName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Cutoff <= 0 {
		cfg.Cutoff = booking.DefaultCutoff
	}

	return &Mailer{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		patients: patients,
		log:      log.With().Str("component", "mailer").Logger(),
	}, nil
}

type mailContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailPayload struct {
	Sender      mailContact   `json:"sender"`
	To          []mailContact `json:"to"`
	Subject     string        `json:"subject"`
	HTMLContent string        `json:"htmlContent"`
}

type mailData struct {
	Clinic      string
	Name        string
	Date        string
	Start       string
	End         string
	Reason      string
	Reference   string
	Cutoff      string
	ByTherapist bool
	Year        int
}

func (m *Mailer) NotifyBookingConfirmed(ctx context.Context, b booking.Booking) error {
	return m.send(ctx, b, confirmationTmpl, "Appointment confirmed", func(*mailData) {})
}

func (m *Mailer) NotifyBookingCancelled(ctx context.Context, b booking.Booking, cancelledBy booking.Role) error {
	return m.send(ctx, b, cancellationTmpl, "Appointment cancelled", func(d *mailData) {
		d.ByTherapist = cancelledBy == booking.RoleAdmin
		d.Reason = deref(b.CancellationReason)
	})
}

func (m *Mailer) NotifyBookingReminder(ctx context.Context, b booking.Booking) error {
	return m.send(ctx, b, reminderTmpl, "Appointment reminder", func(*mailData) {})
}

func (m *Mailer) send(ctx context.Context, b booking.Booking, tmpl *template.Template, subject string, fill func(*mailData)) error {
	p, err := m.patients.GetByID(ctx, b.PatientID)
	if err != nil {
		return fmt.Errorf("load recipient: %w", err)
	}
	if !strings.Contains(p.Email, "@") {
		return fmt.Errorf("invalid recipient email %q", p.Email)
	}

	data := mailData{
		Clinic:    m.cfg.ClinicName,
		Name:      p.DisplayName(),
		Date:      b.Date.Weekday().String() + " " + b.Date.String(),
		Start:     b.StartTime.String(),
		End:       b.EndTime.String(),
		Reason:    deref(b.Reason),
		Reference: b.ID.String(),
		Cutoff:    formatHours(m.cfg.Cutoff),
		Year:      time.Now().Year(),
	}
	fill(&data)

	var html bytes.Buffer
	if err := tmpl.Execute(&html, data); err != nil {
		return fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}

	payload := mailPayload{
		Sender:      mailContact{Email: m.cfg.SenderEmail, Name: m.cfg.SenderName},
		To:          []mailContact{{Email: p.Email, Name: data.Name}},
		Subject:     subject + " - " + m.cfg.ClinicName,
		HTMLContent: html.String(),
	}
	if err := m.post(ctx, payload); err != nil {
		return err
	}

	m.log.Info().
		Str("booking_id", b.ID.String()).
		Str("template", tmpl.Name()).
		Msg("email sent")
	return nil
}

func (m *Mailer) post(ctx context.Context, payload mailPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", m.cfg.APIKey)
	req.Header.Set("content-type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send mail request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("mail api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatHours(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	}
	return d.String()
}
