package email

import (
	"fmt"
	"net/smtp"
)

const activationSubject = "Activate your Surprise Bag account"

// Service handles email sending via SMTP
type Service struct {
	host string
	port string
	from string
	send sendFunc
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// NewService creates a new email service
func NewService(host, port, from string) *Service {
	return &Service{
		host: host,
		port: port,
		from: from,
		send: smtp.SendMail,
	}
}

// SendActivation mails the account activation link to a new user.
func (s *Service) SendActivation(to, nickname, link string) error {
	if to == "" {
		return fmt.Errorf("activation email: empty recipient")
	}
	return s.deliver(to, activationSubject, BuildActivationBody(nickname, link))
}

func (s *Service) deliver(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	if err := s.send(addr, nil, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", addr, err)
	}
	return nil
}
