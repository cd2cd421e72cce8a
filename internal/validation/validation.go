package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/meshtap/meshtap/internal/config"
)

var (
	resourceNameRegex     = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)
	namespaceRegex        = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)
	authorityRegex        = regexp.MustCompile(`^[a-zA-Z0-9]([-a-zA-Z0-9.]*[a-zA-Z0-9])?(:[0-9]{1,5})?$`)
	maxResourceNameLength = 63
	maxNamespaceLength    = 253
	maxOutputFormatLength = 10
	maxMetricsWindow      = 24 * time.Hour
)

var resourceKinds = map[string]string{
	"deployment":  "deployment",
	"deployments": "deployment",
	"deploy":      "deployment",
	"pod":         "pod",
	"pods":        "pod",
	"po":          "pod",
	"namespace":   "namespace",
	"namespaces":  "namespace",
	"ns":          "namespace",
	"service":     "service",
	"services":    "service",
	"svc":         "service",
	"replicaset":  "replicaset",
	"replicasets": "replicaset",
	"rs":          "replicaset",
	"daemonset":   "daemonset",
	"daemonsets":  "daemonset",
	"ds":          "daemonset",
	"statefulset": "statefulset",
	"sts":         "statefulset",
	"job":         "job",
	"jobs":        "job",
}

var validMethods = map[string]bool{
	"GET":     true,
	"HEAD":    true,
	"POST":    true,
	"PUT":     true,
	"PATCH":   true,
	"DELETE":  true,
	"OPTIONS": true,
	"TRACE":   true,
	"CONNECT": true,
}

func ValidateResourceName(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("resource name cannot be empty")
	}
	if len(name) > maxResourceNameLength {
		return fmt.Errorf("resource name exceeds maximum length of %d characters", maxResourceNameLength)
	}
	if !resourceNameRegex.MatchString(name) {
		return fmt.Errorf("resource name must match RFC 1123 subdomain format (lowercase alphanumeric and hyphens)")
	}
	return nil
}

func ValidateNamespace(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("namespace cannot be empty")
	}
	if len(name) > maxNamespaceLength {
		return fmt.Errorf("namespace exceeds maximum length of %d characters", maxNamespaceLength)
	}
	if !namespaceRegex.MatchString(name) {
		return fmt.Errorf("namespace must match RFC 1123 subdomain format (lowercase alphanumeric and hyphens)")
	}
	return nil
}

// ParseResourceTarget splits "kind/name" (or bare "kind" for kind-wide
// targets) into a canonical kind and name. Kind aliases follow kubectl.
func ParseResourceTarget(target string) (string, string, error) {
	if target == "" {
		return "", "", fmt.Errorf("resource target cannot be empty")
	}
	parts := strings.SplitN(target, "/", 2)
	kind, ok := resourceKinds[strings.ToLower(parts[0])]
	if !ok {
		return "", "", fmt.Errorf("unknown resource kind: %s", parts[0])
	}
	if len(parts) == 1 {
		return kind, "", nil
	}
	if err := ValidateResourceName(parts[1]); err != nil {
		return "", "", err
	}
	return kind, parts[1], nil
}

func ValidateResourceTarget(target string) error {
	_, _, err := ParseResourceTarget(target)
	return err
}

func ValidateMethod(method string) error {
	if method == "" {
		return nil
	}
	if len(method) > config.MaxMethodLength {
		return fmt.Errorf("method exceeds maximum length of %d characters", config.MaxMethodLength)
	}
	if !validMethods[strings.ToUpper(method)] {
		return fmt.Errorf("invalid HTTP method: %s", method)
	}
	return nil
}

func ValidatePath(path string) error {
	if path == "" {
		return nil
	}
	if len(path) > config.MaxPathLength {
		return fmt.Errorf("path exceeds maximum length of %d characters", config.MaxPathLength)
	}
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path must start with /")
	}
	for _, r := range path {
		if r < 32 || r == 127 {
			return fmt.Errorf("path contains control characters")
		}
	}
	return nil
}

func ValidateScheme(scheme string) error {
	if scheme == "" {
		return nil
	}
	s := strings.ToUpper(scheme)
	if s != "HTTP" && s != "HTTPS" {
		return fmt.Errorf("scheme must be HTTP or HTTPS")
	}
	return nil
}

func ValidateAuthority(authority string) error {
	if authority == "" {
		return nil
	}
	if len(authority) > config.MaxAuthorityLength {
		return fmt.Errorf("authority exceeds maximum length of %d characters", config.MaxAuthorityLength)
	}
	if !authorityRegex.MatchString(authority) {
		return fmt.Errorf("authority must be host or host:port")
	}
	return nil
}

func ValidateWindow(window string) error {
	if window == "" {
		return nil
	}
	d, err := time.ParseDuration(window)
	if err != nil {
		return fmt.Errorf("window must be a duration such as 30s or 1m: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("window must be positive")
	}
	if d > maxMetricsWindow {
		return fmt.Errorf("window cannot exceed %s", maxMetricsWindow)
	}
	return nil
}

func ValidateMaxRPS(rps float64) error {
	if rps <= 0 {
		return fmt.Errorf("max-rps must be positive")
	}
	if rps > config.MaxTapRPS {
		return fmt.Errorf("max-rps cannot exceed %.0f", config.MaxTapRPS)
	}
	return nil
}

func ValidateOutputFormat(format string) error {
	if format == "" {
		return nil
	}
	if len(format) > maxOutputFormatLength {
		return fmt.Errorf("output format exceeds maximum length of %d characters", maxOutputFormatLength)
	}
	format = strings.ToLower(format)
	if format != "table" && format != "json" && format != "wide" {
		return fmt.Errorf("output format must be 'table', 'json' or 'wide'")
	}
	return nil
}

func SanitizeDisplayString(s string) string {
	s = strings.TrimSpace(s)
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r >= 32 && r < 127 && r != '%' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
