package analytics

import (
	"time"
)

// EventType classifies a tracked interaction.
type EventType string

const (
	EventScreenView  EventType = "screen_view"
	EventInteraction EventType = "interaction"
	EventMatch       EventType = "match"
	EventMessage     EventType = "message"
	EventSession     EventType = "session"
)

// AnonymousEvent is a sanitized behavioral event. Properties have passed the
// anonymization engine before an event is ever constructed: PII keys are
// stripped and identifiers are salted hashes.
type AnonymousEvent struct {
	EventID    string            `json:"eventId"`
	SessionID  string            `json:"sessionId"`
	Type       EventType         `json:"eventType"`
	Name       string            `json:"eventName"`
	Timestamp  time.Time         `json:"timestamp"`
	Properties map[string]string `json:"properties,omitempty"`
	Cohort     string            `json:"cohort,omitempty"`
}

// EngagementMetrics are aggregate, non-PII behavioral measures used for
// cohort assignment.
type EngagementMetrics struct {
	DaysSinceRegistration int
	SessionCount          int
	AvgSessionDuration    time.Duration
	MessageCount          int
	MatchCount            int
	EventCount            int
}

// CohortRule is one threshold test over aggregate metrics. Rules are applied
// in priority order; the first match wins.
type CohortRule struct {
	CohortID string
	Matches  func(m EngagementMetrics) bool
}

// CohortDefinition is a derived, non-user-editable cohort.
type CohortDefinition struct {
	ID        string
	Name      string
	Criteria  string
	CreatedAt time.Time
	Active    bool
}

// Insights is the aggregate summary surfaced back to display code.
type Insights struct {
	Cohort        string
	EventCount    int
	FirstActivity time.Time
	LastActivity  time.Time
	TopEventTypes map[EventType]int
}
