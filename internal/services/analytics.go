package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	analyticsListKey    = "analytics:events"
	analyticsListMaxLen = 100000
)

// Analytics event types.
const (
	EventPageView    = "page_view"
	EventScrollDepth = "scroll_depth"
	EventSectionTime = "section_time"
	EventClick       = "click"
)

// scrollDepthMarks are the depths reported at most once per session.
var scrollDepthMarks = []int{25, 50, 75, 100}

// AnalyticsEvent is one interaction recorded for a page session.
type AnalyticsEvent struct {
	SessionID  string    `json:"session_id"`
	ProfileID  string    `json:"profile_id,omitempty"`
	Page       string    `json:"page"`
	Type       string    `json:"type"`
	Section    string    `json:"section,omitempty"`
	Value      float64   `json:"value,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// AnalyticsSink stores analytics events. Implementations must be safe for concurrent use.
type AnalyticsSink interface {
	Write(ctx context.Context, events []AnalyticsEvent) error
}

type redisAnalyticsSink struct {
	rdb redis.Cmdable
}

// NewRedisAnalyticsSink appends events to a capped redis list.
func NewRedisAnalyticsSink(rdb redis.Cmdable) AnalyticsSink {
	return &redisAnalyticsSink{rdb: rdb}
}

func (s *redisAnalyticsSink) Write(ctx context.Context, events []AnalyticsEvent) error {
	if len(events) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(events))
	for _, e := range events {
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode analytics event: %w", err)
		}
		values = append(values, raw)
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, analyticsListKey, values...)
		pipe.LTrim(ctx, analyticsListKey, -analyticsListMaxLen, -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write analytics events: %w", err)
	}
	return nil
}

type logAnalyticsSink struct {
	log *logrus.Logger
}

// NewLogAnalyticsSink writes each event as a debug log entry.
func NewLogAnalyticsSink(log *logrus.Logger) AnalyticsSink {
	return &logAnalyticsSink{log: log}
}

func (s *logAnalyticsSink) Write(_ context.Context, events []AnalyticsEvent) error {
	for _, e := range events {
		s.log.WithFields(logrus.Fields{
			"session_id": e.SessionID,
			"page":       e.Page,
			"section":    e.Section,
			"value":      e.Value,
		}).Debug("analytics " + e.Type)
	}
	return nil
}

type compositeAnalyticsSink struct {
	sinks []AnalyticsSink
}

// NewCompositeAnalyticsSink writes to every sink and joins their errors.
func NewCompositeAnalyticsSink(sinks ...AnalyticsSink) AnalyticsSink {
	return &compositeAnalyticsSink{sinks: sinks}
}

func (s *compositeAnalyticsSink) Write(ctx context.Context, events []AnalyticsEvent) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Write(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AnalyticsSession collects the events of one page session. It remembers which
// scroll depths were already reported and times open sections. Nothing reaches
// the sink until Close.
type AnalyticsSession struct {
	sink      AnalyticsSink
	sessionID string
	profileID string
	page      string

	mu           sync.Mutex
	scrollSeen   map[int]bool
	sectionStart map[string]time.Time
	buffer       []AnalyticsEvent
	closed       bool
}

func NewAnalyticsSession(sink AnalyticsSink, sessionID, profileID, page string) *AnalyticsSession {
	return &AnalyticsSession{
		sink:         sink,
		sessionID:    sessionID,
		profileID:    profileID,
		page:         page,
		scrollSeen:   make(map[int]bool),
		sectionStart: make(map[string]time.Time),
	}
}

func (s *AnalyticsSession) add(eventType, section string, value float64, at time.Time) {
	s.buffer = append(s.buffer, AnalyticsEvent{
		SessionID:  s.sessionID,
		ProfileID:  s.profileID,
		Page:       s.page,
		Type:       eventType,
		Section:    section,
		Value:      value,
		OccurredAt: at,
	})
}

// Track records a free-form event such as a page view or click.
func (s *AnalyticsSession) Track(eventType, section string, value float64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.add(eventType, section, value, at)
}

// ScrollDepth reports every depth mark reached by percent that was not reported before.
func (s *AnalyticsSession) ScrollDepth(percent int, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, mark := range scrollDepthMarks {
		if percent >= mark && !s.scrollSeen[mark] {
			s.scrollSeen[mark] = true
			s.add(EventScrollDepth, "", float64(mark), at)
		}
	}
}

// EnterSection starts timing a section. Re-entering an open section keeps the first start.
func (s *AnalyticsSession) EnterSection(section string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, open := s.sectionStart[section]; !open && !s.closed {
		s.sectionStart[section] = at
	}
}

// LeaveSection records the seconds spent in a section.
func (s *AnalyticsSession) LeaveSection(section string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leave(section, at)
}

func (s *AnalyticsSession) leave(section string, at time.Time) {
	start, open := s.sectionStart[section]
	if !open {
		return
	}
	delete(s.sectionStart, section)
	s.add(EventSectionTime, section, at.Sub(start).Seconds(), at)
}

// Close ends open sections and writes the buffered events. Later calls are no-ops.
func (s *AnalyticsSession) Close(ctx context.Context, at time.Time) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	for section := range s.sectionStart {
		s.leave(section, at)
	}
	s.closed = true
	events := s.buffer
	s.buffer = nil
	s.mu.Unlock()

	return s.sink.Write(ctx, events)
}

// AnalyticsBatch is what the client sends when a page session ends.
type AnalyticsBatch struct {
	SessionID string                `json:"session_id" validate:"required"`
	Page      string                `json:"page" validate:"required"`
	Events    []AnalyticsBatchEvent `json:"events" validate:"dive"`
}

// AnalyticsBatchEvent is one raw client interaction.
type AnalyticsBatchEvent struct {
	Type    string    `json:"type" validate:"required,oneof=page_view click scroll section_enter section_leave"`
	Section string    `json:"section"`
	Value   float64   `json:"value"`
	At      time.Time `json:"at"`
}

// IAnalyticsService ingests client analytics batches.
type IAnalyticsService interface {
	Ingest(ctx context.Context, profileID string, batch AnalyticsBatch) (int, error)
}

type analyticsService struct {
	sink AnalyticsSink
	now  func() time.Time
}

func NewAnalyticsService(sink AnalyticsSink) IAnalyticsService {
	return &analyticsService{sink: sink, now: utcNow}
}

// Ingest replays a batch through a fresh session and closes it. It returns how
// many events reached the sink.
func (s *analyticsService) Ingest(ctx context.Context, profileID string, batch AnalyticsBatch) (int, error) {
	if err := validateStruct(batch); err != nil {
		return 0, err
	}
	counting := &countingSink{next: s.sink}
	session := NewAnalyticsSession(counting, batch.SessionID, profileID, batch.Page)
	now := s.now()
	for _, e := range batch.Events {
		at := e.At
		if at.IsZero() {
			at = now
		}
		switch e.Type {
		case "scroll":
			session.ScrollDepth(int(e.Value), at)
		case "section_enter":
			session.EnterSection(e.Section, at)
		case "section_leave":
			session.LeaveSection(e.Section, at)
		case EventPageView, EventClick:
			session.Track(e.Type, e.Section, e.Value, at)
		}
	}
	err := session.Close(ctx, now)
	return counting.n, err
}

type countingSink struct {
	next AnalyticsSink
	n    int
}

func (c *countingSink) Write(ctx context.Context, events []AnalyticsEvent) error {
	c.n += len(events)
	return c.next.Write(ctx, events)
}
