package email

import (
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Service handles email sending
type Service struct {
	fromEmail   string
	fromName    string
	baseURL     string
	sendGridKey string
	useSendGrid bool
}

// NewService creates a new email service.
// With a SendGrid API key emails go out via SendGrid, otherwise they are
// logged to the console (development mode).
func NewService(fromEmail, fromName, baseURL, sendGridAPIKey string) *Service {
	useSendGrid := sendGridAPIKey != ""
	if useSendGrid {
		log.Printf("✅ Email service initialized with SendGrid")
	} else {
		log.Printf("⚠️  Email service in console-only mode (set SENDGRID_API_KEY for production)")
	}

	return &Service{
		fromEmail:   fromEmail,
		fromName:    fromName,
		baseURL:     baseURL,
		sendGridKey: sendGridAPIKey,
		useSendGrid: useSendGrid,
	}
}

// SendWelcomeEmail greets a freshly registered user
func (s *Service) SendWelcomeEmail(toEmail, toName string) error {
	subject := "Welcome to PipeDesk"
	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>Welcome to PipeDesk!</h2>
			<p>Hi %s,</p>
			<p>Your account is ready. Head over to your dashboard to add your first contacts and start tracking your pipeline:</p>
			<p><a href="%s/dashboard" style="background-color: #2563EB; color: white; padding: 14px 20px; text-decoration: none; border-radius: 4px; display: inline-block;">Open Dashboard</a></p>
			<p>Thanks,<br>The PipeDesk Team</p>
		</body>
		</html>
	`, toName, s.baseURL)

	if s.useSendGrid {
		return s.sendViaSendGrid(toEmail, toName, subject, body, "Welcome to PipeDesk! Your account is ready.")
	}
	return s.logEmailToConsole(toEmail, toName, subject, s.baseURL+"/dashboard")
}

// SendPasswordResetEmail sends a password reset link
func (s *Service) SendPasswordResetEmail(toEmail, toName, token string) error {
	resetURL := fmt.Sprintf("%s/reset-password/%s", s.baseURL, token)

	subject := "Reset your PipeDesk password"
	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>Password Reset Request</h2>
			<p>Hi %s,</p>
			<p>We received a request to reset your PipeDesk password. Click the button below to choose a new one:</p>
			<p><a href="%s" style="background-color: #2563EB; color: white; padding: 14px 20px; text-decoration: none; border-radius: 4px; display: inline-block;">Reset Password</a></p>
			<p>Or copy and paste this link into your browser:</p>
			<p><a href="%s">%s</a></p>
			<p><strong>This link will expire in 1 hour.</strong></p>
			<p>If you didn't request a password reset, you can safely ignore this email.</p>
			<p>Thanks,<br>The PipeDesk Team</p>
		</body>
		</html>
	`, toName, resetURL, resetURL, resetURL)

	plainText := fmt.Sprintf("Reset your PipeDesk password: %s (expires in 1 hour)", resetURL)

	if s.useSendGrid {
		return s.sendViaSendGrid(toEmail, toName, subject, body, plainText)
	}
	return s.logEmailToConsole(toEmail, toName, subject, resetURL)
}

// SendActivityReminderEmail notifies about an upcoming activity
func (s *Service) SendActivityReminderEmail(toEmail, toName, activityTitle, when string) error {
	subject := fmt.Sprintf("Reminder: %s", activityTitle)
	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>Activity Reminder</h2>
			<p>Hi %s,</p>
			<p>Your activity <strong>%s</strong> is scheduled for %s.</p>
			<p><a href="%s/activities" style="background-color: #2563EB; color: white; padding: 14px 20px; text-decoration: none; border-radius: 4px; display: inline-block;">View Activities</a></p>
			<p>Thanks,<br>The PipeDesk Team</p>
		</body>
		</html>
	`, toName, activityTitle, when, s.baseURL)

	plainText := fmt.Sprintf("Your activity %q is scheduled for %s.", activityTitle, when)

	if s.useSendGrid {
		return s.sendViaSendGrid(toEmail, toName, subject, body, plainText)
	}
	return s.logEmailToConsole(toEmail, toName, subject, s.baseURL+"/activities")
}

// sendViaSendGrid sends email using SendGrid API
func (s *Service) sendViaSendGrid(toEmail, toName, subject, htmlBody, plainTextBody string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(toName, toEmail)

	message := mail.NewSingleEmail(from, subject, to, plainTextBody, htmlBody)

	client := sendgrid.NewSendClient(s.sendGridKey)
	response, err := client.Send(message)

	if err != nil {
		log.Printf("❌ SendGrid error: %v", err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	if response.StatusCode >= 400 {
		log.Printf("❌ SendGrid returned error status %d: %s", response.StatusCode, response.Body)
		return fmt.Errorf("sendgrid returned error status: %d", response.StatusCode)
	}

	log.Printf("✅ Email sent successfully to %s (SendGrid status: %d)", toEmail, response.StatusCode)
	return nil
}

// logEmailToConsole logs email details to console (development mode)
func (s *Service) logEmailToConsole(toEmail, toName, subject, actionURL string) error {
	log.Printf("📧 [EMAIL] %s", subject)
	log.Printf("   To: %s <%s>", toName, toEmail)
	log.Printf("   From: %s <%s>", s.fromName, s.fromEmail)
	log.Printf("   Action URL: %s", actionURL)
	log.Printf("   ---")
	log.Printf("   ⚠️  Email NOT sent (development mode)")
	log.Printf("   Set SENDGRID_API_KEY environment variable to enable email sending")
	log.Printf("   ---")
	return nil
}
