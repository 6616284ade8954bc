// Package health provides health monitoring functionality for pipeline services
package health

import (
	"regexp"
	"strings"
	"time"
)

// Reported states. They travel as strings so the /health endpoint stays
// readable without a legend.
const (
	stateHealthy   = "healthy"
	stateUnhealthy = "unhealthy"
	stateDegraded  = "degraded"
)

// Status represents the health state of a service or the whole pipeline
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"` // true if status is "healthy"
	Status      string    `json:"status"`  // "healthy", "unhealthy", "degraded"
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
}

// Metrics contains health-related metrics
type Metrics struct {
	Uptime           time.Duration `json:"uptime"`
	ErrorCount       int           `json:"error_count"`
	PacketsProcessed int64         `json:"packets_processed,omitempty"`
	LastActivity     time.Time     `json:"last_activity,omitempty"`
}

// IsHealthy returns true if the status is healthy
func (s Status) IsHealthy() bool { return s.Status == stateHealthy }

// IsDegraded returns true if the status is degraded
func (s Status) IsDegraded() bool { return s.Status == stateDegraded }

// IsUnhealthy returns true if the status is unhealthy
func (s Status) IsUnhealthy() bool { return s.Status == stateUnhealthy }

// WithMetrics returns a copy of the status with metrics attached
func (s Status) WithMetrics(metrics *Metrics) Status {
	s.Metrics = metrics
	return s
}

// WithSubStatus returns a copy with one more sub-status. The copy owns its
// own slice, so the receiver's sub-statuses stay untouched.
func (s Status) WithSubStatus(subStatus Status) Status {
	subs := make([]Status, len(s.SubStatuses), len(s.SubStatuses)+1)
	copy(subs, s.SubStatuses)
	s.SubStatuses = append(subs, subStatus)
	return s
}

// newStatus stamps a status with the current time. The Healthy flag is
// derived from the state so the two can never disagree.
func newStatus(component, state, message string) Status {
	return Status{
		Component: component,
		Healthy:   state == stateHealthy,
		Status:    state,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewHealthy creates a new healthy status
func NewHealthy(component, message string) Status {
	return newStatus(component, stateHealthy, message)
}

// NewUnhealthy creates a new unhealthy status
func NewUnhealthy(component, message string) Status {
	return newStatus(component, stateUnhealthy, message)
}

// NewDegraded creates a new degraded status
func NewDegraded(component, message string) Status {
	return newStatus(component, stateDegraded, message)
}

// FromError converts an error into a status for a component. A nil error
// produces a healthy status. Error text is sanitized before it is exposed so
// broker URLs, file paths, and credentials never reach the health endpoint.
func FromError(component string, err error) Status {
	if err == nil {
		return NewHealthy(component, "Component healthy")
	}
	return NewUnhealthy(component, sanitizeErrorMessage(err.Error()))
}

// Aggregate folds sub-statuses into one status for the whole system. Any
// unhealthy sub-status makes the aggregate unhealthy; otherwise any degraded
// one makes it degraded.
func Aggregate(component string, subStatuses []Status) Status {
	if len(subStatuses) == 0 {
		return NewHealthy(component, "No sub-components to aggregate")
	}

	state, message := stateHealthy, "All sub-components are healthy"
	for _, sub := range subStatuses {
		switch {
		case sub.IsUnhealthy():
			state, message = stateUnhealthy, "One or more sub-components are unhealthy"
		case sub.IsDegraded() && state == stateHealthy:
			state, message = stateDegraded, "One or more sub-components are degraded"
		}
	}

	agg := newStatus(component, state, message)
	agg.SubStatuses = make([]Status, len(subStatuses))
	copy(agg.SubStatuses, subStatuses)
	return agg
}

// redaction is one sanitization rule applied to error text.
type redaction struct {
	re   *regexp.Regexp
	repl string
}

// Applied in order. URLs go before bare paths because a URL contains one,
// and IP addresses before ports so host:port collapses to [IP][PORT].
var redactions = []redaction{
	{regexp.MustCompile(`https?://[^\s]+`), "[URL]"},
	{regexp.MustCompile(`nats://[^\s]+`), "[URL]"},
	{regexp.MustCompile(`wss?://[^\s]+`), "[URL]"},
	{regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`), "[PATH]"},
	{regexp.MustCompile(`[A-Z]:\\[^:\s]+`), "[PATH]"},
	{regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`), "[IP]"},
	{regexp.MustCompile(`:\d{2,5}\b`), "[PORT]"},
}

var (
	credentialRegex = regexp.MustCompile(`(?i)(password|token|key|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
	credentialWords = []string{"password", "token", "key", "secret", "credential"}
)

// sanitizeErrorMessage strips connection details and secrets from error text
// so transport failures can surface in health responses. URLs become [URL],
// paths [PATH], addresses [IP] and [PORT], credential assignments [REDACTED].
func sanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	for _, r := range redactions {
		msg = r.re.ReplaceAllString(msg, r.repl)
	}

	lower := strings.ToLower(msg)
	for _, word := range credentialWords {
		if strings.Contains(lower, word) {
			return credentialRegex.ReplaceAllString(msg, "[REDACTED]")
		}
	}
	return msg
}
