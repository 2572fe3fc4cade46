package events

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"spacegun/internal/domain"
)

// TemplateName selects one part of a rendered notification.
type TemplateName string

const (
	TemplateTitle TemplateName = "title"
	TemplateBody  TemplateName = "body"
)

var defaultTemplates = map[TemplateName]string{
	TemplateTitle: `{{ .Event.Message }}`,
	TemplateBody: `{{ .Event.Description }}
{{- range .Event.Fields }}
• {{ .Title }}: {{ .Value }}
{{- end }}`,
}

// MessageTemplateEngine renders notifications.
type MessageTemplateEngine struct {
	mu        sync.RWMutex
	templates map[TemplateName]*template.Template
}

// NewMessageTemplateEngine creates an engine with the default templates.
func NewMessageTemplateEngine() *MessageTemplateEngine {
	e := &MessageTemplateEngine{templates: make(map[TemplateName]*template.Template)}
	for name, text := range defaultTemplates {
		if err := e.SetTemplate(name, text); err != nil {
			panic(fmt.Sprintf("invalid default template %s: %v", name, err))
		}
	}
	return e
}

// SetTemplate replaces the template for name.
func (e *MessageTemplateEngine) SetTemplate(name TemplateName, text string) error {
	tmpl, err := template.New(string(name)).Funcs(sprig.TxtFuncMap()).Option("missingkey=zero").Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[name] = tmpl
	return nil
}

// Render renders the template name for event. A failing template falls
// back to the raw message so a notification is never lost.
func (e *MessageTemplateEngine) Render(name TemplateName, event domain.Event) string {
	e.mu.RLock()
	tmpl, ok := e.templates[name]
	e.mu.RUnlock()
	if !ok {
		return event.Message
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, EventData{Event: event, Severity: getEventType(event)}); err != nil {
		return event.Message
	}
	return buf.String()
}
