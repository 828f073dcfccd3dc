package notification

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/crechebooks/backend/internal/domain/finance"
	"github.com/crechebooks/backend/internal/domain/shared/valueobject"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// levelTemplates maps each escalation level to its template file
var levelTemplates = map[finance.EscalationLevel]string{
	finance.EscalationFriendly: "templates/friendly.tmpl",
	finance.EscalationFirm:     "templates/firm.tmpl",
	finance.EscalationFinal:    "templates/final.tmpl",
}

// TemplateRenderer words reminders per escalation level using text templates.
// Each level template defines a "subject" and a "body".
type TemplateRenderer struct {
	templates map[finance.EscalationLevel]*template.Template
	locale    language.Tag
}

// RendererOption configures a TemplateRenderer
type RendererOption func(*TemplateRenderer)

// WithLocale sets the locale used to group money amounts
func WithLocale(tag language.Tag) RendererOption {
	return func(r *TemplateRenderer) {
		r.locale = tag
	}
}

// NewTemplateRenderer parses the embedded level templates
func NewTemplateRenderer(opts ...RendererOption) (*TemplateRenderer, error) {
	r := &TemplateRenderer{
		templates: make(map[finance.EscalationLevel]*template.Template, len(levelTemplates)),
		locale:    language.MustParse("en-ZA"),
	}
	for _, opt := range opts {
		opt(r)
	}

	for level, file := range levelTemplates {
		tmpl, err := template.New(string(level)).
			Funcs(r.funcMap()).
			Option("missingkey=error").
			ParseFS(templateFS, file, "templates/banking.tmpl")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", level, err)
		}
		for _, name := range []string{"subject", "body"} {
			if tmpl.Lookup(name) == nil {
				return nil, fmt.Errorf("%s template does not define %q", level, name)
			}
		}
		r.templates[level] = tmpl
	}
	return r, nil
}

func (r *TemplateRenderer) funcMap() template.FuncMap {
	return template.FuncMap{
		"money": func(m valueobject.Money) string { return m.Format(r.locale) },
		"date":  func(t time.Time) string { return t.Format("2 January 2006") },
	}
}

// Render produces the subject and body for content at its escalation level
func (r *TemplateRenderer) Render(content finance.ReminderContent) (string, string, error) {
	tmpl, ok := r.templates[content.Level]
	if !ok {
		return "", "", fmt.Errorf("no reminder template for level %q", content.Level)
	}

	var subject, body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&subject, "subject", content); err != nil {
		return "", "", fmt.Errorf("failed to render subject: %w", err)
	}
	if err := tmpl.ExecuteTemplate(&body, "body", content); err != nil {
		return "", "", fmt.Errorf("failed to render body: %w", err)
	}
	return strings.TrimSpace(subject.String()), strings.TrimSpace(body.String()) + "\n", nil
}
