package main

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/hibiken/asynq"
	"github.com/lunareading/backend/internal/models"
	"github.com/lunareading/backend/internal/tasks"
	"go.uber.org/zap"
	"gopkg.in/mail.v2"
)

// SessionSummaryRepository defines the interface for reading completed session summaries
type SessionSummaryRepository interface {
	// GetSummary retrieves the notification data of a session
	//
	// "sessionID" parameter is used to retrieve the summary of the session.
	//
	// If the session does not exist, an error wrapping models.ErrNotFound is returned.
	GetSummary(ctx context.Context, sessionID int) (*models.SessionSummary, error)
}

// ReadingLevelRecomputer defines the interface for reading level recomputation
type ReadingLevelRecomputer interface {
	// Recompute rebuilds the reading level of the user from stored terminal answers
	Recompute(ctx context.Context, userID int) (float64, error)
}

// Mailer sends e-mails
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer sends e-mails through an SMTP server
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewSMTPMailer creates a new SMTP mailer
func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// Send sends an HTML e-mail
func (m *SMTPMailer) Send(to, subject, body string) error {
	msg := mail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	d := mail.NewDialer(m.host, m.port, m.username, m.password)
	if err := d.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

// Worker handles task processing
type Worker struct {
	logger       *zap.Logger
	sessionRepo  SessionSummaryRepository
	readingLevel ReadingLevelRecomputer
	mailer       Mailer
}

// NewWorker creates a new worker instance
func NewWorker(logger *zap.Logger, sessionRepo SessionSummaryRepository, readingLevel ReadingLevelRecomputer, mailer Mailer) *Worker {
	return &Worker{
		logger:       logger,
		sessionRepo:  sessionRepo,
		readingLevel: readingLevel,
		mailer:       mailer,
	}
}

// HandleSessionCompleted sends the summary e-mail of a completed session
func (w *Worker) HandleSessionCompleted(ctx context.Context, t *asynq.Task) error {
	payload, err := tasks.ParseSessionCompleted(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	summary, err := w.sessionRepo.GetSummary(ctx, payload.SessionID)
	if err != nil {
		// Session was deleted before processing
		if errors.Is(err, models.ErrNotFound) {
			w.logger.Warn("Completed session not found", zap.Int("session_id", payload.SessionID))
			return nil
		}
		return err
	}

	if summary.Email == "" {
		return nil
	}

	subject := fmt.Sprintf("You finished %s, %s", summary.BookTitle, summary.Chapter)
	if err := w.mailer.Send(summary.Email, subject, sessionSummaryBody(summary)); err != nil {
		return err
	}

	w.logger.Info("Session summary sent",
		zap.Int("user_id", payload.UserID),
		zap.Int("session_id", payload.SessionID),
	)
	return nil
}

// HandleReadingLevelRebuild recomputes the reading level of one user
func (w *Worker) HandleReadingLevelRebuild(ctx context.Context, t *asynq.Task) error {
	payload, err := tasks.ParseReadingLevelRebuild(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	level, err := w.readingLevel.Recompute(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			w.logger.Warn("User of reading level rebuild not found", zap.Int("user_id", payload.UserID))
			return nil
		}
		return err
	}

	w.logger.Debug("Reading level rebuilt", zap.Int("user_id", payload.UserID), zap.Float64("reading_level", level))
	return nil
}

func sessionSummaryBody(s *models.SessionSummary) string {
	return fmt.Sprintf(
		`<p>Hi %s,</p>
<p>You answered all %d questions on <b>%s</b> (%s).</p>
<p>Average score: %.0f%%<br>Reading level: %.2f</p>
<p>Keep reading!</p>`,
		html.EscapeString(s.Username),
		s.TotalQuestions,
		html.EscapeString(s.BookTitle),
		html.EscapeString(s.Chapter),
		s.AverageScore*100,
		s.ReadingLevel,
	)
}
