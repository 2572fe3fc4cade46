package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"spacegun/internal/domain"
	"spacegun/pkg/logging"
)

const subsystem = "Events"

// LogSink writes every event to the log.
type LogSink struct{}

var _ domain.EventRepository = LogSink{}

func (LogSink) Log(ctx context.Context, event domain.Event) error {
	fields := make([]string, 0, len(event.Fields))
	for _, f := range event.Fields {
		fields = append(fields, fmt.Sprintf("%s=%s", f.Title, f.Value))
	}
	if getEventType(event) == EventTypeWarning {
		logging.Warn(subsystem, "%s: %s [%s]", event.Message, event.Description, strings.Join(fields, ", "))
	} else {
		logging.Info(subsystem, "%s: %s [%s]", event.Message, event.Description, strings.Join(fields, ", "))
	}
	return nil
}

// SlackSink posts events to a Slack incoming webhook.
type SlackSink struct {
	webhookURL string
	templates  *MessageTemplateEngine
	http       *retryablehttp.Client
}

var _ domain.EventRepository = (*SlackSink)(nil)

// NewSlackSink creates a sink for webhookURL. A nil engine uses the default
// templates.
func NewSlackSink(webhookURL string, templates *MessageTemplateEngine) *SlackSink {
	if templates == nil {
		templates = NewMessageTemplateEngine()
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 3 * time.Second
	client.Logger = nil
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return &SlackSink{webhookURL: webhookURL, templates: templates, http: client}
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
	Ts     int64        `json:"ts"`
}

type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

func (s *SlackSink) message(event domain.Event) slackMessage {
	color := "good"
	if getEventType(event) == EventTypeWarning {
		color = "danger"
	}
	title := s.templates.Render(TemplateTitle, event)
	attachment := slackAttachment{
		Color:  color,
		Title:  title,
		Text:   s.templates.Render(TemplateBody, event),
		Footer: strings.Join(event.Topics, ", "),
		Ts:     event.Timestamp.Unix(),
	}
	for _, f := range event.Fields {
		attachment.Fields = append(attachment.Fields, slackField{Title: f.Title, Value: f.Value, Short: len(f.Value) < 40})
	}
	return slackMessage{Text: title, Attachments: []slackAttachment{attachment}}
}

func (s *SlackSink) Log(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(s.message(event))
	if err != nil {
		return fmt.Errorf("failed to encode slack message: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to slack: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("slack returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	logging.Debug(subsystem, "Sent slack notification %q", event.Message)
	return nil
}

// Multi fans an event out to every sink. All sinks are tried.
type Multi []domain.EventRepository

var _ domain.EventRepository = Multi(nil)

func (m Multi) Log(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Log(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
