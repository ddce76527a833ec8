package utils

import (
	"fmt"
	"strings"
)

// Email is a rendered multipart/alternative message.
type Email struct {
	To        string
	Subject   string
	PlainBody string
	HTMLBody  string
}

// BookingEmailData is what the booking mails render.
type BookingEmailData struct {
	GuestName    string
	BookingID    uint
	RoomName     string
	Location     string
	CheckInDate  string
	CheckOutDate string
	Nights       int64
	TotalPrice   string
	Reason       string
}

func safe(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

// minimal html escaper for the small strings we use
func htmlEscape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(s)
}

const emailStyle = `body { background:#f5f7fb; font-family:Arial, Helvetica, sans-serif; color:#222; }
.container { max-width:640px; margin:20px auto; }
.card { background:#fff; border:1px solid #e6eef6; padding:24px; border-radius:8px; }
.label { font-weight:700; width:140px; display:inline-block; vertical-align:top; }`

func bookingRows(d BookingEmailData) (plain, html string) {
	rows := [][2]string{
		{"Booking Reference", fmt.Sprintf("#%d", d.BookingID)},
		{"Room", safe(d.RoomName)},
		{"Location", safe(d.Location)},
		{"Check-In", safe(d.CheckInDate)},
		{"Check-Out", safe(d.CheckOutDate)},
		{"Nights", fmt.Sprintf("%d", d.Nights)},
		{"Total", safe(d.TotalPrice)},
	}
	var pb, hb strings.Builder
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		pb.WriteString(fmt.Sprintf("%s: %s\n", r[0], r[1]))
		hb.WriteString(fmt.Sprintf("<p><span class=\"label\">%s:</span> %s</p>\n", r[0], htmlEscape(r[1])))
	}
	return pb.String(), hb.String()
}

func renderHTML(title, heading, greeting, intro, rows, outro, fromName string) string {
	return fmt.Sprintf(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
%s
</style>
</head>
<body>
<div class="container">
  <div class="card">
    <h2>%s</h2>
    <p>%s</p>
    <p>%s</p>
    %s
    <p>%s</p>
    <p>Best regards,<br>%s</p>
  </div>
</div>
</body>
</html>`, title, emailStyle, heading, greeting, intro, rows, outro, htmlEscape(fromName))
}

// BookingConfirmationEmail renders the mail sent after a booking is created.
func BookingConfirmationEmail(to, fromName string, d BookingEmailData) Email {
	name := safe(d.GuestName)
	plainRows, htmlRows := bookingRows(d)

	plain := fmt.Sprintf(
		"Dear %s,\n\n"+
			"Thank you for your reservation. Here are your booking details:\n\n"+
			"%s\n"+
			"Your booking is pending confirmation.\n\n"+
			"Best regards,\n%s",
		name, plainRows, fromName,
	)
	html := renderHTML(
		"Booking Confirmation", "Booking Confirmation",
		"Dear "+htmlEscape(name)+",",
		"Thank you for your reservation. Below are your booking details:",
		htmlRows,
		"Your booking is pending confirmation.",
		fromName,
	)

	return Email{
		To:        to,
		Subject:   fmt.Sprintf("Booking Confirmation #%d", d.BookingID),
		PlainBody: plain,
		HTMLBody:  html,
	}
}

// BookingCancellationEmail renders the mail sent after a booking is cancelled.
func BookingCancellationEmail(to, fromName string, d BookingEmailData) Email {
	name := safe(d.GuestName)
	plainRows, htmlRows := bookingRows(d)
	reason := safe(d.Reason)

	outro := "If you did not request this cancellation, please contact us."
	plainReason := ""
	htmlReason := ""
	if reason != "" {
		plainReason = "Reason: " + reason + "\n"
		htmlReason = fmt.Sprintf("<p><span class=\"label\">Reason:</span> %s</p>\n", htmlEscape(reason))
	}

	plain := fmt.Sprintf(
		"Dear %s,\n\n"+
			"Your booking has been cancelled.\n\n"+
			"%s%s\n"+
			"%s\n\n"+
			"Best regards,\n%s",
		name, plainRows, plainReason, outro, fromName,
	)
	html := renderHTML(
		"Booking Cancelled", "Booking Cancelled",
		"Dear "+htmlEscape(name)+",",
		"Your booking has been cancelled.",
		htmlRows+htmlReason,
		outro,
		fromName,
	)

	return Email{
		To:        to,
		Subject:   fmt.Sprintf("Booking Cancelled #%d", d.BookingID),
		PlainBody: plain,
		HTMLBody:  html,
	}
}

// MIME builds the wire message for net/smtp.
func (e Email) MIME(from string) []byte {
	boundary := "----=_ROOM_BOOKING_BOUNDARY"

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("From: %s\r\n", from))
	sb.WriteString(fmt.Sprintf("To: %s\r\n", safe(e.To)))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", safe(e.Subject)))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary))

	sb.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	sb.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	sb.WriteString(e.PlainBody + "\r\n")

	sb.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	sb.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	sb.WriteString(e.HTMLBody + "\r\n")

	sb.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	return []byte(sb.String())
}
