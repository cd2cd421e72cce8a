package validation

import (
	"strings"
	"testing"
)

func TestValidateResourceName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid resource name", "my-deploy-123", false},
		{"valid with numbers", "web123", false},
		{"valid single char", "a", false},
		{"empty", "", true},
		{"too long", string(make([]byte, 64)), true},
		{"starts with dash", "-web", true},
		{"ends with dash", "web-", true},
		{"uppercase", "MyWeb", true},
		{"with underscore", "my_web", true},
		{"max length valid", "a" + strings.Repeat("b", 61), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateResourceName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateResourceName() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNamespace(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid namespace", "default", false},
		{"valid with numbers", "namespace123", false},
		{"empty", "", true},
		{"too long", string(make([]byte, 254)), true},
		{"starts with dash", "-namespace", true},
		{"ends with dash", "namespace-", true},
		{"uppercase", "Default", true},
		{"max length valid", "a" + strings.Repeat("b", 251), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNamespace(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateNamespace() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseResourceTarget(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKind string
		wantName string
		wantErr  bool
	}{
		{"deploy alias", "deploy/web", "deployment", "web", false},
		{"full kind", "deployment/web", "deployment", "web", false},
		{"plural kind", "deployments/web", "deployment", "web", false},
		{"pod alias", "po/web-abc123", "pod", "web-abc123", false},
		{"service alias", "svc/api", "service", "api", false},
		{"namespace alias", "ns/prod", "namespace", "prod", false},
		{"kind only", "deploy", "deployment", "", false},
		{"statefulset", "sts/db", "statefulset", "db", false},
		{"unknown kind", "widget/web", "", "", true},
		{"empty", "", "", "", true},
		{"bad name", "deploy/My_Web", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, name, err := ParseResourceTarget(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseResourceTarget(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if kind != tt.wantKind || name != tt.wantName {
				t.Errorf("ParseResourceTarget(%q) = (%q, %q), want (%q, %q)", tt.input, kind, name, tt.wantKind, tt.wantName)
			}
		})
	}
}

func TestValidateMethod(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty allowed", "", false},
		{"GET", "GET", false},
		{"lowercase get", "get", false},
		{"POST", "POST", false},
		{"DELETE", "DELETE", false},
		{"invalid", "FETCH", true},
		{"too long", strings.Repeat("G", 20), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMethod(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMethod(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty allowed", "", false},
		{"root", "/", false},
		{"normal path", "/api/users", false},
		{"with query chars", "/api/users?id=1", false},
		{"no leading slash", "api/users", true},
		{"control character", "/api/\x01users", true},
		{"too long", "/" + strings.Repeat("a", 3000), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateScheme(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty allowed", "", false},
		{"HTTP", "HTTP", false},
		{"https lowercase", "https", false},
		{"ftp", "ftp", true},
		{"garbage", "xyz", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateScheme(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateScheme(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateAuthority(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty allowed", "", false},
		{"host", "api.example.com", false},
		{"host with port", "api.example.com:8080", false},
		{"single label", "web", false},
		{"leading dash", "-web.example.com", true},
		{"with path", "api.example.com/v1", true},
		{"too long", strings.Repeat("a", 300), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAuthority(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAuthority(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateWindow(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty allowed", "", false},
		{"seconds", "30s", false},
		{"minutes", "1m", false},
		{"hours", "1h", false},
		{"not a duration", "soon", true},
		{"bare number", "30", true},
		{"zero", "0s", true},
		{"negative", "-1m", true},
		{"over a day", "25h", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWindow(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateWindow(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateMaxRPS(t *testing.T) {
	tests := []struct {
		name    string
		input   float64
		wantErr bool
	}{
		{"valid", 1.0, false},
		{"max", 100.0, false},
		{"zero", 0, true},
		{"negative", -1, true},
		{"over max", 101, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMaxRPS(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMaxRPS(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateOutputFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty allowed", "", false},
		{"table", "table", false},
		{"json", "json", false},
		{"wide", "wide", false},
		{"uppercase JSON", "JSON", false},
		{"csv", "csv", true},
		{"too long", strings.Repeat("j", 20), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOutputFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeDisplayString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean string", "web-frontend", "web-frontend"},
		{"trims whitespace", "  web  ", "web"},
		{"strips control chars", "web\x00\x01end", "webend"},
		{"strips percent", "100%done", "100done"},
		{"strips non-ascii", "wéb", "wb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeDisplayString(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeDisplayString(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
