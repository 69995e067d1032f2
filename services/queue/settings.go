// Package queue owns the warning email lifecycle: queueing flagged members, the approval gate,
// dispatch through the email provider and open tracking.
package queue

import (
	"github.com/clubpulse/activity-monitor/services/realtime"
	"github.com/clubpulse/activity-monitor/services/templates"
)

// Realtime channel and event names
const (
	ChannelQueue = "queue"

	EventCreated    = "created"
	EventUpdated    = "updated"
	EventDispatched = "dispatched"
	EventOpened     = "opened"
)

// Settings carries the per-call message settings
type Settings struct {
	Aliases       templates.Aliases
	SubjectPrefix string
	From          string
	ReplyTo       string
}

func publish(p realtime.Publisher, event string, payload interface{}) {
	if p == nil {
		return
	}
	p.Publish(realtime.Event{Channel: ChannelQueue, Event: event, Payload: payload})
}
