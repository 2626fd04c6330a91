package services

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/riadtaziri/booking-backend/internal/models"
)

type messageTemplate struct {
	subject string
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

const htmlLayoutStart = `<div style="font-family:Georgia,serif;max-width:560px;margin:0 auto;color:#3b2f2a">`
const htmlLayoutEnd = `<p style="color:#8a7b70;font-size:12px">{{.SiteURL}}</p></div>`

const stayDetailsHTML = `<table style="border-collapse:collapse;width:100%">
<tr><td>Reference</td><td><strong>{{.Reference}}</strong></td></tr>
<tr><td>Room</td><td>{{.RoomName}}</td></tr>
<tr><td>Check-in</td><td>{{.CheckIn}}</td></tr>
<tr><td>Check-out</td><td>{{.CheckOut}}</td></tr>
<tr><td>Nights</td><td>{{.Nights}}</td></tr>
<tr><td>Guests</td><td>{{.Adults}} adult(s){{if .Children}}, {{.Children}} child(ren){{end}}</td></tr>
<tr><td>Total</td><td>{{.Total}}</td></tr>
</table>`

const stayDetailsText = `Reference: {{.Reference}}
Room: {{.RoomName}}
Check-in: {{.CheckIn}}
Check-out: {{.CheckOut}}
Nights: {{.Nights}}
Guests: {{.Adults}} adult(s){{if .Children}}, {{.Children}} child(ren){{end}}
Total: {{.Total}}`

var notificationTemplates = map[models.NotificationKind]messageTemplate{
	models.NotificationGuestConfirmation: newMessageTemplate(
		"Your reservation request %s",
		`<p>Dear {{.GuestName}},</p>
<p>Thank you for your reservation request. We will confirm it shortly.</p>
`+stayDetailsHTML+`
{{if .SpecialRequests}}<p>Your requests: {{.SpecialRequests}}</p>{{end}}
<p>You can view your reservation at <a href="{{.LookupURL}}">{{.LookupURL}}</a>.</p>`,
		`Dear {{.GuestName}},

Thank you for your reservation request. We will confirm it shortly.

`+stayDetailsText+`
{{if .SpecialRequests}}
Your requests: {{.SpecialRequests}}
{{end}}
View your reservation: {{.LookupURL}}`,
	),
	models.NotificationOperatorNewReservation: newMessageTemplate(
		"New reservation %s",
		`<p>A new reservation was received from {{.GuestName}} ({{.GuestEmail}}{{if .GuestPhone}}, {{.GuestPhone}}{{end}}).</p>
`+stayDetailsHTML+`
<p>Status: {{.Status}}. Source: {{.Source}}.</p>
{{if .SpecialRequests}}<p>Special requests: {{.SpecialRequests}}</p>{{end}}`,
		`New reservation from {{.GuestName}} ({{.GuestEmail}}{{if .GuestPhone}}, {{.GuestPhone}}{{end}})

`+stayDetailsText+`
Status: {{.Status}}
Source: {{.Source}}
{{if .SpecialRequests}}Special requests: {{.SpecialRequests}}{{end}}`,
	),
	models.NotificationGuestUpdate: newMessageTemplate(
		"Your reservation %s was updated",
		`<p>Dear {{.GuestName}},</p>
<p>Your reservation is now <strong>{{.Status}}</strong>. The current details are:</p>
`+stayDetailsHTML+`
<p><a href="{{.LookupURL}}">View your reservation</a></p>`,
		`Dear {{.GuestName}},

Your reservation is now {{.Status}}. The current details are:

`+stayDetailsText+`

View your reservation: {{.LookupURL}}`,
	),
	models.NotificationGuestCancellation: newMessageTemplate(
		"Your reservation %s was cancelled",
		`<p>Dear {{.GuestName}},</p>
<p>Your reservation <strong>{{.Reference}}</strong> for {{.CheckIn}} to {{.CheckOut}} has been cancelled.</p>
<p>If this is unexpected, please reply to this email.</p>`,
		`Dear {{.GuestName}},

Your reservation {{.Reference}} for {{.CheckIn}} to {{.CheckOut}} has been cancelled.

If this is unexpected, please reply to this email.`,
	),
}

func newMessageTemplate(subject, html, text string) messageTemplate {
	return messageTemplate{
		subject: subject,
		html:    htmltemplate.Must(htmltemplate.New("html").Parse(htmlLayoutStart + html + htmlLayoutEnd)),
		text:    texttemplate.Must(texttemplate.New("text").Parse(text)),
	}
}

type messageData struct {
	GuestName       string
	GuestEmail      string
	GuestPhone      string
	Reference       string
	RoomName        string
	CheckIn         string
	CheckOut        string
	Nights          int
	Adults          int
	Children        int
	Total           string
	Status          string
	Source          string
	SpecialRequests string
	LookupURL       string
	SiteURL         string
}

// NotificationRenderer turns reservation changes into outbox jobs
type NotificationRenderer struct {
	operatorEmail string
	siteURL       string
	currency      string
}

// NewNotificationRenderer creates a renderer. An empty operatorEmail disables
// operator notices.
func NewNotificationRenderer(operatorEmail, siteURL, currency string) *NotificationRenderer {
	return &NotificationRenderer{
		operatorEmail: operatorEmail,
		siteURL:       strings.TrimRight(siteURL, "/"),
		currency:      currency,
	}
}

// ForCreate renders the guest confirmation and the operator notice
func (r *NotificationRenderer) ForCreate(res *models.Reservation, room *models.Room) ([]models.NotificationJob, error) {
	jobs := make([]models.NotificationJob, 0, 2)

	guest, err := r.Render(models.NotificationGuestConfirmation, res.GuestEmail, res, room)
	if err != nil {
		return nil, err
	}
	jobs = append(jobs, guest)

	if r.operatorEmail != "" {
		operator, err := r.Render(models.NotificationOperatorNewReservation, r.operatorEmail, res, room)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, operator)
	}

	return jobs, nil
}

// ForUpdate renders the cancellation notice for cancelled reservations and the
// generic update notice otherwise
func (r *NotificationRenderer) ForUpdate(res *models.Reservation, room *models.Room) ([]models.NotificationJob, error) {
	kind := models.NotificationGuestUpdate
	if res.Status == models.ReservationStatusCancelled {
		kind = models.NotificationGuestCancellation
	}
	job, err := r.Render(kind, res.GuestEmail, res, room)
	if err != nil {
		return nil, err
	}
	return []models.NotificationJob{job}, nil
}

// Render builds one pending job of the given kind
func (r *NotificationRenderer) Render(kind models.NotificationKind, recipient string, res *models.Reservation, room *models.Room) (models.NotificationJob, error) {
	tmpl, ok := notificationTemplates[kind]
	if !ok {
		return models.NotificationJob{}, fmt.Errorf("unknown notification kind %q", kind)
	}

	data := r.messageData(res, room)

	var html bytes.Buffer
	if err := tmpl.html.Execute(&html, data); err != nil {
		return models.NotificationJob{}, fmt.Errorf("failed to render %s html: %w", kind, err)
	}
	var text bytes.Buffer
	if err := tmpl.text.Execute(&text, data); err != nil {
		return models.NotificationJob{}, fmt.Errorf("failed to render %s text: %w", kind, err)
	}
	plain := strings.TrimSpace(text.String())

	return models.NotificationJob{
		Kind:          kind,
		Recipient:     recipient,
		Subject:       fmt.Sprintf(tmpl.subject, res.Reference),
		HTML:          html.String(),
		Text:          &plain,
		Status:        models.NotificationJobPending,
		NextAttemptAt: time.Now(),
	}, nil
}

func (r *NotificationRenderer) messageData(res *models.Reservation, room *models.Room) messageData {
	data := messageData{
		GuestName:  res.GuestName,
		GuestEmail: res.GuestEmail,
		Reference:  res.Reference,
		CheckIn:    res.CheckIn.String(),
		CheckOut:   res.CheckOut.String(),
		Nights:     res.Nights(),
		Adults:     res.AdultsCount,
		Children:   res.ChildrenCount,
		Total:      fmt.Sprintf("%.2f %s", res.TotalAmount, r.currency),
		Status:     string(res.Status),
		Source:     string(res.Source),
		LookupURL:  r.siteURL + "/reservations/" + res.Reference,
		SiteURL:    r.siteURL,
	}
	if room != nil {
		data.RoomName = room.Name
	}
	if res.GuestPhone != nil {
		data.GuestPhone = *res.GuestPhone
	}
	if res.SpecialRequests != nil {
		data.SpecialRequests = *res.SpecialRequests
	}
	return data
}
