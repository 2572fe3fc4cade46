// Package events delivers notifications to Slack and to the log.
//
// Every sink implements domain.EventRepository. Messages are rendered with
// text/template and the sprig function library, so operators can replace
// the default Slack layout:
//
//	renderer := events.NewMessageTemplateEngine()
//	renderer.SetTemplate(events.TemplateTitle, "[{{ .Severity | upper }}] {{ .Event.Message }}")
//	sink := events.NewSlackSink(webhookURL, renderer)
//
// Delivery is best effort. Callers log failures and carry on.
package events
