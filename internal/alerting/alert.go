package alerting

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/meshtap/meshtap/internal/config"
)

type AlertSeverity string

const (
	SeverityFatal    AlertSeverity = "fatal"
	SeverityCritical AlertSeverity = "critical"
	SeverityWarning  AlertSeverity = "warning"
	SeverityError    AlertSeverity = "error"
)

type Alert struct {
	Severity  AlertSeverity
	Title     string
	Message   string
	Timestamp time.Time
	Source    string
	Resource  string
	Namespace string
	Route     string
	Context   map[string]interface{}
	ErrorCode string
}

func (a *Alert) Key() string {
	if a == nil {
		return ""
	}
	h := sha256.New()
	h.Write([]byte(a.Severity))
	h.Write([]byte(a.Source))
	h.Write([]byte(a.Resource))
	h.Write([]byte(a.Namespace))
	h.Write([]byte(a.Route))
	h.Write([]byte(a.Title))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func (a *Alert) Validate() error {
	if a == nil {
		return fmt.Errorf("alert is nil")
	}
	if a.Severity == "" {
		return fmt.Errorf("alert severity is required")
	}
	if a.Title == "" {
		return fmt.Errorf("alert title is required")
	}
	if a.Message == "" {
		return fmt.Errorf("alert message is required")
	}
	if a.Timestamp.IsZero() {
		return fmt.Errorf("alert timestamp is required")
	}
	if a.Source == "" {
		return fmt.Errorf("alert source is required")
	}
	return nil
}

func (a *Alert) Sanitize() {
	if a == nil {
		return
	}
	if len(a.Title) > 256 {
		a.Title = a.Title[:253] + "..."
	}
	if len(a.Message) > 1024 {
		a.Message = a.Message[:1021] + "..."
	}
	if len(a.Resource) > 256 {
		a.Resource = a.Resource[:253] + "..."
	}
	if len(a.Namespace) > 256 {
		a.Namespace = a.Namespace[:253] + "..."
	}
	if len(a.Route) > 512 {
		a.Route = a.Route[:509] + "..."
	}
	if len(a.Source) > 128 {
		a.Source = a.Source[:125] + "..."
	}
	if len(a.ErrorCode) > 64 {
		a.ErrorCode = a.ErrorCode[:61] + "..."
	}
}

// NewSuccessRateAlert reports a watched resource whose success rate
// dropped below the configured threshold.
func NewSuccessRateAlert(resource, namespace, route string, successRate, threshold float64) *Alert {
	return &Alert{
		Severity:  SeverityCritical,
		Title:     "Success rate below threshold",
		Message:   fmt.Sprintf("success rate %.1f%% dropped below %.1f%% for %s", successRate, threshold, resource),
		Timestamp: time.Now(),
		Source:    "watch",
		Resource:  resource,
		Namespace: namespace,
		Route:     route,
		Context: map[string]interface{}{
			"success_rate": successRate,
			"threshold":    threshold,
		},
	}
}

// NewStreamFailureAlert reports a tap stream that terminated with an error.
func NewStreamFailureAlert(target string, err error) *Alert {
	return &Alert{
		Severity:  SeverityError,
		Title:     "Tap stream failure",
		Message:   fmt.Sprintf("tap stream for %s failed: %v", target, err),
		Timestamp: time.Now(),
		Source:    "stream",
		Resource:  target,
		Context: map[string]interface{}{
			"error": err.Error(),
		},
	}
}

func ParseSeverity(severity string) AlertSeverity {
	switch severity {
	case "fatal":
		return SeverityFatal
	case "critical":
		return SeverityCritical
	case "warning":
		return SeverityWarning
	case "error":
		return SeverityError
	default:
		return SeverityError
	}
}

func SeverityLevel(severity AlertSeverity) int {
	switch severity {
	case SeverityFatal:
		return 4
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityError:
		return 1
	default:
		return 0
	}
}

func ShouldSendAlert(severity AlertSeverity) bool {
	if !config.AlertingEnabled {
		return false
	}
	minSeverity := ParseSeverity(config.GetAlertMinSeverity())
	return SeverityLevel(severity) >= SeverityLevel(minSeverity)
}
