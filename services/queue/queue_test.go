package queue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/clubpulse/activity-monitor/clients/email"
	"github.com/clubpulse/activity-monitor/models"
	"github.com/clubpulse/activity-monitor/services/realtime"
	"github.com/clubpulse/activity-monitor/services/templates"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var adminActor = models.Actor{ID: "u-1", Email: "admin@club.org", Roles: []string{"admin"}}

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(event realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Channel+":"+e.Event)
	}
	return out
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []email.Message
	send  func(msg email.Message) (*email.Result, error)
	calls int
}

func (s *fakeSender) Send(_ context.Context, msg email.Message) (*email.Result, error) {
	s.mu.Lock()
	s.calls++
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	return s.send(msg)
}

func (s *fakeSender) Name() string { return "fake" }

func newCatalog(t *testing.T) *templates.Catalog {
	t.Helper()
	catalog, err := templates.NewCatalog()
	require.NoError(t, err)
	return catalog
}

func testSettings() Settings {
	return Settings{
		Aliases: templates.DefaultAliases(),
		From:    "club@x.org",
		ReplyTo: "board@x.org",
	}
}

// assignIDs mimics the repository filling the BIGSERIAL id on insert
func assignIDs(start int64) func(args mock.Arguments) {
	next := start
	return func(args mock.Arguments) {
		entry := args.Get(1).(*models.QueueEntry)
		entry.ID = next
		next++
	}
}

var errBoom = errors.New("boom")
