package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/Imziyasser00/calis-blog-sub001/internal/logging"
)

// LogMailer renders the welcome email and logs it instead of sending.
// It is the development backend.
type LogMailer struct {
	cfg    WelcomeConfig
	logger *zap.Logger
}

// NewLogMailer constructs a LogMailer.
func NewLogMailer(cfg WelcomeConfig, logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{cfg: cfg, logger: logger.Named("mail")}
}

// SendWelcome logs the rendered message.
func (m *LogMailer) SendWelcome(_ context.Context, email string) error {
	msg, err := RenderWelcome(m.cfg, email)
	if err != nil {
		return err
	}
	m.logger.Info("welcome email (not sent)",
		zap.String("to", logging.RedactEmail(msg.To)),
		zap.String("subject", msg.Subject),
		zap.Int("html_bytes", len(msg.HTML)),
	)
	return nil
}
