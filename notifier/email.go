package notifier

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"os"
	"time"

	gomail "gopkg.in/mail.v2"

	"media-manager/manager"
)

// EmailNotifier handles sending email notifications
type EmailNotifier struct {
	smtpHost       string
	smtpPort       int
	senderEmail    string
	senderPass     string
	recipientEmail string
	htmlTemplate   *template.Template
}

// EmailConfig contains configuration for email notifications
type EmailConfig struct {
	SMTPHost       string
	SMTPPort       int
	SenderEmail    string
	SenderPassword string
	RecipientEmail string
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(config EmailConfig) (*EmailNotifier, error) {
	// Initialize HTML template for run reports
	tmpl, err := template.New("email").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Media Manager - Sync Report</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; }
        h1 { color: #e50914; }
        h2 { color: #0071c5; margin-top: 30px; }
        ul { margin-bottom: 20px; }
        li { padding: 2px 0; }
        .error { color: #b00020; }
        .footer { font-size: 12px; color: #666; margin-top: 50px; text-align: center; }
        .count { font-weight: bold; color: #e50914; }
    </style>
</head>
<body>
    <h1>Media Manager - Sync Report</h1>
    <p>Run started {{.Date}} and took {{.Duration}}.</p>

    {{if not .HasFindings}}
    <p>Everything went fine :)</p>
    {{end}}

    {{if .Added}}
    <h2>Added (<span class="count">{{len .Added}}</span>)</h2>
    <ul>{{range .Added}}<li>{{.}}</li>{{end}}</ul>
    {{end}}

    {{if .Patched}}
    <h2>Updated (<span class="count">{{len .Patched}}</span>)</h2>
    <ul>{{range .Patched}}<li>{{.}}</li>{{end}}</ul>
    {{end}}

    {{if .BackedUp}}
    <h2>Backed up (<span class="count">{{len .BackedUp}}</span>)</h2>
    <ul>{{range .BackedUp}}<li>{{.}}</li>{{end}}</ul>
    {{end}}

    {{if .PrunedRemoteIDs}}
    <h2>Pruned (<span class="count">{{len .PrunedRemoteIDs}}</span>)</h2>
    <p>Locations of {{len .PrunedRemoteIDs}} record(s) were cleared in the remote catalog.</p>
    {{end}}

    {{if .Wishlist}}
    <h2>Wishlist (<span class="count">{{len .Wishlist}}</span>)</h2>
    <p>These movies exist in the remote catalog but not on any disk:</p>
    <ul>{{range .Wishlist}}<li>{{.}}</li>{{end}}</ul>
    {{end}}

    {{if .Errors}}
    <h2 class="error">Errors (<span class="count">{{len .Errors}}</span>)</h2>
    <ul>{{range .Errors}}<li class="error">{{.}}</li>{{end}}</ul>
    {{end}}

    <div class="footer">
        <p>This is an automated email from Media Manager. Please do not reply.</p>
    </div>
</body>
</html>
`)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email template: %v", err)
	}

	return &EmailNotifier{
		smtpHost:       config.SMTPHost,
		smtpPort:       config.SMTPPort,
		senderEmail:    config.SenderEmail,
		senderPass:     config.SenderPassword,
		recipientEmail: config.RecipientEmail,
		htmlTemplate:   tmpl,
	}, nil
}

// GetEmailConfigFromEnv loads email configuration from environment variables
func GetEmailConfigFromEnv() EmailConfig {
	// Parse SMTP port with default value of 587 if not specified or invalid
	smtpPort := 587
	if portStr := os.Getenv("EMAIL_SMTP_PORT"); portStr != "" {
		if p, err := fmt.Sscanf(portStr, "%d", &smtpPort); err != nil || p != 1 {
			log.Printf("Invalid SMTP port '%s', using default 587", portStr)
			smtpPort = 587
		}
	}

	return EmailConfig{
		SMTPHost:       os.Getenv("EMAIL_SMTP_HOST"),
		SMTPPort:       smtpPort,
		SenderEmail:    os.Getenv("EMAIL_SENDER"),
		SenderPassword: os.Getenv("EMAIL_PASSWORD"),
		RecipientEmail: os.Getenv("EMAIL_RECIPIENT"),
	}
}

// NotifyRunReport sends an email summarizing a reconciliation run
func (n *EmailNotifier) NotifyRunReport(report *manager.RunReport) error {
	if n.recipientEmail == "" {
		log.Println("No recipient email configured, skipping notification")
		return nil
	}

	data := struct {
		Date            string
		Duration        string
		HasFindings     bool
		Added           []string
		Patched         []string
		BackedUp        []string
		PrunedRemoteIDs []string
		Wishlist        []string
		Errors          []string
	}{
		Date:            report.StartedAt.Format("January 2, 2006 at 3:04 PM"),
		Duration:        report.Duration.Round(time.Second).String(),
		HasFindings:     report.HasFindings(),
		Added:           report.Added,
		Patched:         report.Patched,
		BackedUp:        report.BackedUp,
		PrunedRemoteIDs: report.PrunedRemoteIDs,
		Wishlist:        report.Wishlist,
		Errors:          report.Errors,
	}

	var emailBody bytes.Buffer
	if err := n.htmlTemplate.Execute(&emailBody, data); err != nil {
		return fmt.Errorf("failed to render email template: %v", err)
	}

	subject := "Media Manager: everything went fine"
	if report.HasFindings() {
		subject = fmt.Sprintf("Media Manager: %d added, %d updated, %d backed up, %d errors",
			len(report.Added), len(report.Patched), len(report.BackedUp), len(report.Errors))
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.senderEmail)
	m.SetHeader("To", n.recipientEmail)
	m.SetHeader("Subject", subject)

	// Set both plain text and HTML versions
	m.SetBody("text/plain", report.String())
	m.AddAlternative("text/html", emailBody.String())

	d := gomail.NewDialer(n.smtpHost, n.smtpPort, n.senderEmail, n.senderPass)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}

	log.Printf("Run report sent to %s", n.recipientEmail)
	return nil
}
