package notification

import "html/template"

const layoutHTML = `{{define "layout"}}<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
    <h1>{{template "title" .}}</h1>
    <p>Hello {{.Name}},</p>
    {{template "body" .}}
    <table style="margin: 20px 0;">
      <tr><td><b>Date</b></td><td>{{.Date}}</td></tr>
      <tr><td><b>Time</b></td><td>{{.Start}} - {{.End}}</td></tr>
      {{if .Reason}}<tr><td><b>Reason</b></td><td>{{.Reason}}</td></tr>{{end}}
      <tr><td><b>Reference</b></td><td>{{.Reference}}</td></tr>
    </table>
    <p>{{.Clinic}}</p>
    <p style="color: #6b7280; font-size: 12px;">This message was sent automatically, please do not reply. &copy; {{.Year}} {{.Clinic}}</p>
  </div>
</body>
</html>{{end}}`

func mustTemplate(name, title, body string) *template.Template {
	t := template.Must(template.New(name).Parse(`{{template "layout" .}}` + layoutHTML))
	template.Must(t.Parse(`{{define "title"}}` + title + `{{end}}`))
	template.Must(t.Parse(`{{define "body"}}` + body + `{{end}}`))
	return t
}

var (
	confirmationTmpl = mustTemplate("confirmation",
		"Appointment confirmed",
		`<p>Your appointment is confirmed.</p>
    <p><b>Important:</b> to cancel or change it, please do so at least {{.Cutoff}} in advance.</p>`)

	cancellationTmpl = mustTemplate("cancellation",
		"Appointment cancelled",
		`<p>{{if .ByTherapist}}Your appointment was cancelled by the therapist.{{else}}Your appointment has been cancelled.{{end}}</p>
    <p>You can book a new appointment at any time.</p>`)

	reminderTmpl = mustTemplate("reminder",
		"Appointment reminder",
		`<p>This is a reminder of your upcoming appointment.</p>
    <p>If you cannot attend, please let us know as soon as possible.</p>`)
)
