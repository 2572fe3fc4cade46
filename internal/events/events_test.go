package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spacegun/internal/domain"
	"spacegun/internal/testing/mock"
)

var sample = domain.Event{
	Message:     "Pipeline dev applied 1 of 2 changes",
	Description: "run 1234",
	Timestamp:   time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	Topics:      []string{"dev"},
	Fields: []domain.EventField{
		{Title: "deployment svc (dev/service1)", Value: "v1 -> v2"},
		{Title: "batch cleanup (dev/service1)", Value: "failed: boom"},
	},
}

func TestGetEventType(t *testing.T) {
	tests := []struct {
		name  string
		event domain.Event
		want  EventType
	}{
		{name: "plain", event: domain.Event{Message: "Pipeline dev applied 2 of 2 changes"}, want: EventTypeNormal},
		{name: "failed message", event: domain.Event{Message: "Pipeline dev failed"}, want: EventTypeWarning},
		{name: "failed field", event: sample, want: EventTypeWarning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getEventType(tt.event))
		})
	}
}

func TestMessageTemplateEngine(t *testing.T) {
	e := NewMessageTemplateEngine()

	assert.Equal(t, sample.Message, e.Render(TemplateTitle, sample))
	assert.Equal(t, "run 1234\n• deployment svc (dev/service1): v1 -> v2\n• batch cleanup (dev/service1): failed: boom", e.Render(TemplateBody, sample))

	require.NoError(t, e.SetTemplate(TemplateTitle, `[{{ .Severity | upper }}] {{ .Event.Message | trunc 8 }}`))
	assert.Equal(t, "[WARNING] Pipeline", e.Render(TemplateTitle, sample))

	assert.Error(t, e.SetTemplate(TemplateTitle, `{{ .Event.Message `))

	require.NoError(t, e.SetTemplate(TemplateBody, `{{ .Event.Nope }}`))
	assert.Equal(t, sample.Message, e.Render(TemplateBody, sample), "render errors fall back to the message")
}

func TestSlackSink(t *testing.T) {
	var received slackMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	sink := NewSlackSink(srv.URL, nil)
	require.NoError(t, sink.Log(context.Background(), sample))

	assert.Equal(t, sample.Message, received.Text)
	require.Len(t, received.Attachments, 1)
	attachment := received.Attachments[0]
	assert.Equal(t, "danger", attachment.Color)
	assert.Equal(t, "dev", attachment.Footer)
	assert.Equal(t, sample.Timestamp.Unix(), attachment.Ts)
	require.Len(t, attachment.Fields, 2)
	assert.Equal(t, "v1 -> v2", attachment.Fields[0].Value)
}

func TestSlackSink_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewSlackSink(srv.URL, nil).Log(context.Background(), sample)
	assert.ErrorContains(t, err, "status 400: invalid_payload")
}

func TestMulti(t *testing.T) {
	ok := &mock.EventRepository{}
	broken := &mock.EventRepository{Err: errors.New("down")}
	other := &mock.EventRepository{}

	err := Multi{ok, broken, LogSink{}, other}.Log(context.Background(), sample)
	assert.EqualError(t, err, "down")
	assert.Len(t, ok.Events(), 1)
	assert.Len(t, other.Events(), 1, "a failing sink does not stop the others")

	assert.NoError(t, Multi{}.Log(context.Background(), sample))
}
