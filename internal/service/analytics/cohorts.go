package analytics

import (
	"fmt"
	"time"

	"privloc/internal/domain/analytics"
	"privloc/internal/domain/privacy"
)

// minCohortEvents is the least aggregate history cohort assignment accepts.
const minCohortEvents = 3

// CohortEngine assigns users to behavioral cohorts from aggregate, non-PII
// metrics. Rules run in a fixed priority order; the first match wins.
type CohortEngine struct {
	rules       []analytics.CohortRule
	definitions []analytics.CohortDefinition
}

// NewCohortEngine builds the engine with the default rule set.
func NewCohortEngine() *CohortEngine {
	e := &CohortEngine{}

	e.addRule("new_users", "New users", "days since registration < 7",
		func(m analytics.EngagementMetrics) bool {
			return m.DaysSinceRegistration < 7
		})

	e.addRule("high_engagement", "Highly engaged", "avg session > 30m and messages > 10",
		func(m analytics.EngagementMetrics) bool {
			return m.AvgSessionDuration > 30*time.Minute && m.MessageCount > 10
		})

	e.addRule("active_matchers", "Active matchers", "matches > 5",
		func(m analytics.EngagementMetrics) bool {
			return m.MatchCount > 5
		})

	e.addRule("dormant", "Dormant", "no sessions in aggregate window",
		func(m analytics.EngagementMetrics) bool {
			return m.SessionCount == 0
		})

	e.addRule("casual_users", "Casual users", "default",
		func(m analytics.EngagementMetrics) bool {
			return true
		})

	return e
}

func (e *CohortEngine) addRule(id, name, criteria string, matches func(analytics.EngagementMetrics) bool) {
	e.rules = append(e.rules, analytics.CohortRule{CohortID: id, Matches: matches})
	e.definitions = append(e.definitions, analytics.CohortDefinition{
		ID:        id,
		Name:      name,
		Criteria:  criteria,
		CreatedAt: time.Now().UTC(),
		Active:    true,
	})
}

// DetermineCohort applies the rules in priority order. Metrics with too
// little history surface privacy.ErrInsufficientData instead of a default
// cohort.
func (e *CohortEngine) DetermineCohort(metrics analytics.EngagementMetrics) (string, error) {
	if metrics.EventCount < minCohortEvents {
		return "", fmt.Errorf("%d events, need %d: %w", metrics.EventCount, minCohortEvents, privacy.ErrInsufficientData)
	}

	for _, rule := range e.rules {
		if rule.Matches(metrics) {
			return rule.CohortID, nil
		}
	}

	// Unreachable while the default rule exists.
	return "", fmt.Errorf("no cohort rule matched")
}

// Definitions lists the active cohort definitions.
func (e *CohortEngine) Definitions() []analytics.CohortDefinition {
	defs := make([]analytics.CohortDefinition, len(e.definitions))
	copy(defs, e.definitions)
	return defs
}
