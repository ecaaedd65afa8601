package email

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/identito-api/internal/config"
	"github.com/jwalitptl/identito-api/internal/model"
)

// Service sends notifications to the facility identitovigilance mailbox.
type Service interface {
	SendAlertNotification(alert *model.CollisionAlert) error
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
	to     string
}

func NewSMTPService(cfg config.SMTPConfig) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
		to:     cfg.VigilanceBox,
	}
}

func (s *smtpService) SendAlertNotification(alert *model.CollisionAlert) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.to)
	m.SetHeader("Subject", fmt.Sprintf("[%s] identity alert: %s", alert.Severity, alert.Type))
	m.SetBody("text/plain", fmt.Sprintf(
		"Alert %s\nIdentity: %s\nType: %s\nSeverity: %s\nLocation: %s\nEncounter: %s\n\n%s\n",
		alert.ID, alert.IdentityID, alert.Type, alert.Severity, alert.Location, alert.EncounterID, alert.Details))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send alert notification: %w", err)
	}
	return nil
}
