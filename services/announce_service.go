package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/Sayat07/hacklive-system/models"
)

// Announcer — коллаборатор доставки уведомлений. Движок только дёргает его
// fire-and-forget, сама доставка вне зоны ответственности.
type Announcer interface {
	AnnounceTransition(ctx context.Context, event *models.Event, state *models.BroadcastState) error
}

// LogAnnouncer пишет анонсы в лог. Используется, когда SMTP не настроен.
type LogAnnouncer struct {
	Logger *slog.Logger
}

func (a *LogAnnouncer) AnnounceTransition(_ context.Context, event *models.Event, state *models.BroadcastState) error {
	a.Logger.Info("broadcast announcement",
		slog.String("event_slug", event.Slug),
		slog.String("state", string(state.CurrentState)),
		slog.Any("team", state.CurrentTeamName),
	)
	return nil
}

// SMTPAnnouncerConfig — настройки почтовой рассылки анонсов.
type SMTPAnnouncerConfig struct {
	Host       string
	Port       int
	User       string
	Pass       string
	From       string
	Recipients []string
}

// SMTPAnnouncer рассылает анонсы переходов по почте (список организаторов).
type SMTPAnnouncer struct {
	cfg SMTPAnnouncerConfig
}

func NewSMTPAnnouncer(cfg SMTPAnnouncerConfig) *SMTPAnnouncer {
	return &SMTPAnnouncer{cfg: cfg}
}

func (a *SMTPAnnouncer) AnnounceTransition(_ context.Context, event *models.Event, state *models.BroadcastState) error {
	if len(a.cfg.Recipients) == 0 {
		return nil
	}

	subject := fmt.Sprintf("[%s] broadcast: %s", event.Slug, state.CurrentState)
	team := ""
	if state.CurrentTeamName != nil {
		team = *state.CurrentTeamName
	}
	body := fmt.Sprintf("Event %q switched to %s.", event.Name, state.CurrentState)
	if team != "" {
		body += fmt.Sprintf(" Current team: %s.", team)
	}
	if state.VotingClosesAt != nil {
		body += fmt.Sprintf(" Voting closes at %s.", state.VotingClosesAt.Format("15:04:05 MST"))
	}

	return a.send(subject, body)
}

func (a *SMTPAnnouncer) send(subject, body string) error {
	auth := smtp.PlainAuth("", a.cfg.User, a.cfg.Pass, a.cfg.Host)
	addr := fmt.Sprintf("%s:%d", a.cfg.Host, a.cfg.Port)

	msg := []byte("To: " + a.cfg.Recipients[0] + "\r\n" +
		"From: " + a.cfg.From + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" +
		body + "\r\n")

	tlsconfig := &tls.Config{
		ServerName: a.cfg.Host,
	}

	var client *smtp.Client
	if a.cfg.Port == 465 {
		// Прямое TLS-соединение (обычно порт 465)
		conn, err := tls.Dial("tcp", addr, tlsconfig)
		if err != nil {
			return fmt.Errorf("smtp tls dial failed: %w", err)
		}
		defer conn.Close()
		client, err = smtp.NewClient(conn, a.cfg.Host)
		if err != nil {
			return fmt.Errorf("smtp client creation failed: %w", err)
		}
	} else {
		// STARTTLS (обычно порт 587)
		c, err := smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("smtp dial failed: %w", err)
		}
		client = c
		if err = client.StartTLS(tlsconfig); err != nil {
			client.Close()
			return fmt.Errorf("smtp starttls failed: %w", err)
		}
	}
	defer client.Close()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth failed: %w", err)
	}
	if err := client.Mail(a.cfg.From); err != nil {
		return fmt.Errorf("smtp mail command failed: %w", err)
	}
	for _, rcpt := range a.cfg.Recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt command failed: %w", err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data command failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp message write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp message close failed: %w", err)
	}
	return client.Quit()
}
