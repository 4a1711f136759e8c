// Package mail builds the newsletter welcome message and provides mailer
// decorators shared by every delivery backend.
package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// WelcomeConfig controls the welcome email content.
type WelcomeConfig struct {
	Subject string
	SiteURL string
	// SiteName appears in the greeting and signature.
	SiteName string
}

const welcomeHTML = `<p>Welcome to {{.SiteName}}!</p>
<p>You'll get new training guides and exercise breakdowns as soon as they are published.</p>
<p><a href="{{.SiteURL}}">Start reading</a></p>`

const welcomeText = `Welcome to {{.SiteName}}!

You'll get new training guides and exercise breakdowns as soon as they are published.

Start reading: {{.SiteURL}}
`

var (
	welcomeHTMLTmpl = htmltemplate.Must(htmltemplate.New("welcome.html").Parse(welcomeHTML))
	welcomeTextTmpl = texttemplate.Must(texttemplate.New("welcome.txt").Parse(welcomeText))
)

// RenderWelcome builds the welcome message for to.
func RenderWelcome(cfg WelcomeConfig, to string) (Message, error) {
	var html, text bytes.Buffer
	if err := welcomeHTMLTmpl.Execute(&html, cfg); err != nil {
		return Message{}, fmt.Errorf("render welcome html: %w", err)
	}
	if err := welcomeTextTmpl.Execute(&text, cfg); err != nil {
		return Message{}, fmt.Errorf("render welcome text: %w", err)
	}
	return Message{
		To:      to,
		Subject: cfg.Subject,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
