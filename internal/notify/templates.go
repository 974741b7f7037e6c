package notify

import (
	"fmt"
	"html"
)

const (
	KindBookingConfirmation = "booking_confirmation"
	KindBookingCanceled     = "booking_canceled"
	KindBookingStaffCancel  = "booking_staff_canceled"
	KindWorkerSignup        = "worker_signup"
	KindPasswordReset       = "password_reset"
)

// BookingDetails is the booking data templates render.
type BookingDetails struct {
	Name    string
	Email   string
	Service string
	Date    string
	Time    string
}

func BookingConfirmation(b BookingDetails, cancelLink string) Message {
	return Message{
		Kind:    KindBookingConfirmation,
		To:      b.Email,
		Subject: "Booking Confirmation",
		Text: fmt.Sprintf("Thank you for booking!\nService: %s\nDate: %s\nTime: %s\n\nIf you need to cancel, open: %s\n",
			b.Service, b.Date, b.Time, cancelLink),
		HTML: fmt.Sprintf(`<p>Thank you for booking!<br>
Service: %s<br>
Date: %s<br>
Time: %s<br>
<br>
If you need to cancel, click <a href="%s">here</a>.</p>`,
			html.EscapeString(b.Service), html.EscapeString(b.Date), html.EscapeString(b.Time), html.EscapeString(cancelLink)),
	}
}

func BookingCanceled(b BookingDetails) Message {
	return Message{
		Kind:    KindBookingCanceled,
		To:      b.Email,
		Subject: "Booking Canceled",
		HTML: fmt.Sprintf(`<p>Your booking for %s on %s at %s has been canceled.</p>`,
			html.EscapeString(b.Service), html.EscapeString(b.Date), html.EscapeString(b.Time)),
	}
}

func BookingCanceledByStaff(b BookingDetails) Message {
	return Message{
		Kind:    KindBookingStaffCancel,
		To:      b.Email,
		Subject: "Your booking has been canceled",
		HTML: fmt.Sprintf(`<p>Dear %s,<br>Your booking on %s at %s has been canceled by the salon. Please contact the salon if you have questions.</p>`,
			html.EscapeString(b.Name), html.EscapeString(b.Date), html.EscapeString(b.Time)),
	}
}

func WorkerSignupRequest(adminEmail, username, email, approveLink string) Message {
	return Message{
		Kind:    KindWorkerSignup,
		To:      adminEmail,
		Subject: "New Worker Signup Request",
		HTML: fmt.Sprintf(`<p>A new worker has requested to join:</p>
<ul>
  <li>Username: %s</li>
  <li>Email: %s</li>
</ul>
<p>To approve this worker, click <a href="%s">here</a>.</p>`,
			html.EscapeString(username), html.EscapeString(email), html.EscapeString(approveLink)),
	}
}

func PasswordReset(email, resetLink string) Message {
	return Message{
		Kind:    KindPasswordReset,
		To:      email,
		Subject: "Password Reset Request",
		Text:    "Reset your password: " + resetLink,
		HTML:    fmt.Sprintf(`<p>Reset your password: <a href="%[1]s">%[1]s</a></p>`, html.EscapeString(resetLink)),
	}
}
