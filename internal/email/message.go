package email

import (
	"bufio"
	"bytes"
	"fmt"
	"net/mail"
	"strings"
	"text/template"
	"time"
)

// EventHeader carries the notification event so mock senders can index mail by it.
const EventHeader = "X-Notification-Event"

// Compose builds a plain-text message with the headers every sender expects.
func Compose(from string, to []string, subject, event, body string, at time.Time) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "Subject: %s\r\n", subject)
	fmt.Fprintf(&sb, "Date: %s\r\n", at.Format(time.RFC1123Z))
	if event != "" {
		fmt.Fprintf(&sb, "%s: %s\r\n", EventHeader, event)
	}
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(strings.ReplaceAll(strings.TrimRight(body, "\n"), "\n", "\r\n"))
	sb.WriteString("\r\n")
	return []byte(sb.String())
}

// EventOf reads the event header of a composed message. It returns "unknown"
// when the header is missing or the message cannot be parsed.
func EventOf(rawMessage []byte) string {
	msg, err := mail.ReadMessage(bufio.NewReader(bytes.NewReader(rawMessage)))
	if err != nil {
		return "unknown"
	}
	if event := msg.Header.Get(EventHeader); event != "" {
		return event
	}
	return "unknown"
}

// ConsultationEmail is the data rendered into a consultation notification.
type ConsultationEmail struct {
	AppName         string
	Event           string
	RecipientName   string
	PropertyAddress string
	ScheduledAt     time.Time
	MeetingLink     string
	Details         string
}

type consultationTemplate struct {
	subject *template.Template
	body    *template.Template
}

func mustTemplate(subject, body string) consultationTemplate {
	return consultationTemplate{
		subject: template.Must(template.New("subject").Parse(subject)),
		body:    template.Must(template.New("body").Parse(body)),
	}
}

const bodyFooter = `
View the offer in your {{.AppName}} dashboard.
`

var consultationTemplates = map[string]consultationTemplate{
	"consultation_scheduled": mustTemplate(
		"Consultation scheduled for {{.PropertyAddress}}",
		`Hi {{.RecipientName}},

A consultation about {{.PropertyAddress}} is booked for {{.ScheduledAt.Format "Mon 2 Jan 2006 15:04 MST"}}.
{{if .MeetingLink}}Join here: {{.MeetingLink}}
{{end}}`+bodyFooter),
	"consultation_rescheduled": mustTemplate(
		"Consultation moved for {{.PropertyAddress}}",
		`Hi {{.RecipientName}},

The consultation about {{.PropertyAddress}} now takes place on {{.ScheduledAt.Format "Mon 2 Jan 2006 15:04 MST"}}.
{{if .MeetingLink}}Join here: {{.MeetingLink}}
{{end}}`+bodyFooter),
	"consultation_completed": mustTemplate(
		"Consultation completed for {{.PropertyAddress}}",
		`Hi {{.RecipientName}},

The consultation about {{.PropertyAddress}} is complete. The next step is the buyer questionnaire.
`+bodyFooter),
	"consultation_cancelled": mustTemplate(
		"Consultation cancelled for {{.PropertyAddress}}",
		`Hi {{.RecipientName}},

The consultation about {{.PropertyAddress}} on {{.ScheduledAt.Format "Mon 2 Jan 2006 15:04 MST"}} was cancelled.
`+bodyFooter),
	"consultation_issue_reported": mustTemplate(
		"Issue reported for the consultation on {{.PropertyAddress}}",
		`Hi {{.RecipientName}},

An issue was reported for the consultation about {{.PropertyAddress}}:

{{.Details}}
`+bodyFooter),
}

// RenderConsultation renders the subject and body for data.Event.
func RenderConsultation(data ConsultationEmail) (subject, body string, err error) {
	tmpl, ok := consultationTemplates[data.Event]
	if !ok {
		return "", "", fmt.Errorf("no email template for event %q", data.Event)
	}
	if data.RecipientName == "" {
		data.RecipientName = "there"
	}
	var sb, bb bytes.Buffer
	if err := tmpl.subject.Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("failed to render subject for %s: %w", data.Event, err)
	}
	if err := tmpl.body.Execute(&bb, data); err != nil {
		return "", "", fmt.Errorf("failed to render body for %s: %w", data.Event, err)
	}
	return sb.String(), bb.String(), nil
}
