package modulebus

import "strings"

// Priority ranks how urgently downstream consumers should treat an event.
type Priority string

// Priority levels, lowest to highest.
const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// PriorityRule assigns a priority to event types containing any of its
// keywords. Rules are checked in order; the first match wins.
type PriorityRule struct {
	Keywords []string
	Priority Priority
}

// DefaultPriorityRules returns the standard rule table: operational
// emergencies outrank revenue-significant events, which outrank routine
// record changes. Types matching no rule default to PriorityLow.
func DefaultPriorityRules() []PriorityRule {
	return []PriorityRule{
		{
			Keywords: []string{"budget.exceeded", "security.breach", "system.down"},
			Priority: PriorityCritical,
		},
		{
			Keywords: []string{"deal.won", "payment.received", "stock.out", "employee.terminated"},
			Priority: PriorityHigh,
		},
		{
			Keywords: []string{".created", ".updated"},
			Priority: PriorityMedium,
		},
	}
}

// DefaultSubscriptionKeywords returns the high-value event-type keywords
// whose delivery is entitlement-gated even within a single module.
func DefaultSubscriptionKeywords() []string {
	return []string{"analytics", "prediction", "optimization", "intelligence"}
}

// Classifier derives event metadata from the event type. The rules live in
// a lookup table rather than scattered conditionals so the table itself is
// unit-testable and can be overridden per bus via WithClassifier.
type Classifier struct {
	rules                []PriorityRule
	subscriptionKeywords []string
}

// NewClassifier builds a classifier from an ordered rule table and a set of
// subscription-requiring keywords.
func NewClassifier(rules []PriorityRule, subscriptionKeywords []string) *Classifier {
	return &Classifier{
		rules:                rules,
		subscriptionKeywords: subscriptionKeywords,
	}
}

// DefaultClassifier returns a classifier with the standard tables.
func DefaultClassifier() *Classifier {
	return NewClassifier(DefaultPriorityRules(), DefaultSubscriptionKeywords())
}

// Priority returns the priority for an event type. The first rule with a
// keyword contained in the type wins; types matching no rule are low.
func (c *Classifier) Priority(eventType string) Priority {
	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(eventType, kw) {
				return rule.Priority
			}
		}
	}
	return PriorityLow
}

// RequiresSubscription reports whether delivery of an event must be gated
// on the tenant's entitlements: every cross-module event, plus any type
// containing a high-value keyword.
func (c *Classifier) RequiresSubscription(eventType string, crossModule bool) bool {
	if crossModule {
		return true
	}
	for _, kw := range c.subscriptionKeywords {
		if strings.Contains(eventType, kw) {
			return true
		}
	}
	return false
}
