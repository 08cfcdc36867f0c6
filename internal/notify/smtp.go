package notify

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/hackgods/clinic-booking/internal/appointment"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	AdminEmail string
	// PublicBaseURL prefixes the confirm and cancel links in admin mail.
	PublicBaseURL string
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPDispatcher sends plain text mail through gomail. Calls block until the
// server accepts the message.
type SMTPDispatcher struct {
	cfg    SMTPConfig
	sender sender
	log    zerolog.Logger
}

var _ appointment.Notifier = (*SMTPDispatcher)(nil)

func NewSMTPDispatcher(cfg SMTPConfig, log zerolog.Logger) *SMTPDispatcher {
	return &SMTPDispatcher{
		cfg:    cfg,
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		log:    log.With().Str("component", "smtp").Logger(),
	}
}

func (d *SMTPDispatcher) NotifyAdminOfNewBooking(ctx context.Context, appt appointment.Appointment) (bool, error) {
	if d.cfg.AdminEmail == "" {
		return false, nil
	}

	body, err := render(adminBookingTmpl, mailData{
		Appointment: appt,
		ConfirmURL:  d.actionURL(appt, "confirm"),
		CancelURL:   d.actionURL(appt, "cancel"),
	})
	if err != nil {
		return false, err
	}

	subject := fmt.Sprintf("New appointment request: %s on %s at %s", appt.PatientName, appt.Date, appt.Time)
	return d.send(ctx, d.cfg.AdminEmail, subject, body)
}

func (d *SMTPDispatcher) NotifyStatusChange(ctx context.Context, appt appointment.Appointment, previous appointment.Status) (bool, error) {
	if appt.PatientEmail == "" {
		return false, nil
	}

	body, err := render(statusChangeTmpl, mailData{Appointment: appt, Previous: previous})
	if err != nil {
		return false, err
	}

	subject := fmt.Sprintf("Your appointment on %s is %s", appt.Date, statusLabel(appt.Status))
	return d.send(ctx, appt.PatientEmail, subject, body)
}

func (d *SMTPDispatcher) send(ctx context.Context, to, subject, body string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", d.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := d.sender.DialAndSend(m); err != nil {
		return false, fmt.Errorf("send mail to %s: %w", to, err)
	}

	d.log.Debug().Str("to", to).Str("subject", subject).Msg("mail sent")
	return true, nil
}

func (d *SMTPDispatcher) actionURL(appt appointment.Appointment, action string) string {
	return fmt.Sprintf("%s/appointments/%s/%s", strings.TrimRight(d.cfg.PublicBaseURL, "/"), appt.ID, action)
}

type mailData struct {
	Appointment appointment.Appointment
	Previous    appointment.Status
	ConfirmURL  string
	CancelURL   string
}

var funcs = template.FuncMap{"label": statusLabel}

var adminBookingTmpl = template.Must(template.New("admin_booking").Funcs(funcs).Parse(`A new appointment has been requested.

Patient: {{.Appointment.PatientName}}
Email:   {{.Appointment.PatientEmail}}
Phone:   {{.Appointment.PatientPhone}}
Date:    {{.Appointment.Date}}
Time:    {{.Appointment.Time}}
Reason:  {{.Appointment.Reason}}
{{- if .Appointment.Notes}}
Notes:   {{.Appointment.Notes}}
{{- end}}

Confirm: {{.ConfirmURL}}
Cancel:  {{.CancelURL}}
`))

var statusChangeTmpl = template.Must(template.New("status_change").Funcs(funcs).Parse(`Dear {{.Appointment.PatientName}},

Your appointment on {{.Appointment.Date}} at {{.Appointment.Time}} is now {{label .Appointment.Status}}
(previously {{label .Previous}}).
{{- if eq .Appointment.Status "cancelled"}}

You are welcome to book another time that suits you.
{{- end}}
`))

func render(t *template.Template, data mailData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func statusLabel(s appointment.Status) string {
	return strings.ReplaceAll(string(s), "_", " ")
}
