// Package ses delivers the welcome email through Amazon SES v2.
package ses

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"github.com/Imziyasser00/calis-blog-sub001/internal/logging"
	"github.com/Imziyasser00/calis-blog-sub001/internal/mail"
)

// API is the subset of the SES v2 client the mailer needs.
type API interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Config identifies the sender.
type Config struct {
	FromEmail        string
	FromName         string
	ReplyTo          string
	ConfigurationSet string
	Welcome          mail.WelcomeConfig
}

// Mailer sends welcome emails via SES.
type Mailer struct {
	client API
	cfg    Config
	logger *zap.Logger
}

// New constructs a Mailer.
func New(client API, cfg Config, logger *zap.Logger) (*Mailer, error) {
	if client == nil {
		return nil, fmt.Errorf("ses client is required")
	}
	if cfg.FromEmail == "" {
		return nil, fmt.Errorf("mail.from_email is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{client: client, cfg: cfg, logger: logger.Named("ses")}, nil
}

// SendWelcome renders and sends the welcome message to email.
func (m *Mailer) SendWelcome(ctx context.Context, email string) error {
	msg, err := mail.RenderWelcome(m.cfg.Welcome, email)
	if err != nil {
		return err
	}
	from := m.cfg.FromEmail
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.FromEmail)
	}
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
					Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("category"), Value: aws.String("welcome")},
		},
	}
	if m.cfg.ReplyTo != "" {
		input.ReplyToAddresses = []string{m.cfg.ReplyTo}
	}
	if m.cfg.ConfigurationSet != "" {
		input.ConfigurationSetName = aws.String(m.cfg.ConfigurationSet)
	}

	result, err := m.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}
	m.logger.Info("welcome email sent",
		zap.String("to", logging.RedactEmail(msg.To)),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)
	return nil
}
