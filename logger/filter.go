package logger

import (
	nethttp "net/http"
	"net/url"
	"strings"
)

// DefaultMaskValue replaces sensitive values in log output.
const DefaultMaskValue = "***"

// FilterConfig defines the configuration for sensitive data filtering
type FilterConfig struct {
	// SensitiveFields contains field names that should be masked in logs
	SensitiveFields []string
	// MaskValue is the value used to replace sensitive data (default: "***")
	MaskValue string
}

// DefaultFilterConfig returns a configuration covering the credentials an agent
// sends to its control plane.
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SensitiveFields: []string{
			"password", "passwd", "secret",
			"token", "auth_token", "api_key", "apikey", "x-api-key",
			"authorization", "proxy-authorization",
			"cookie", "set-cookie",
			"credential",
		},
		MaskValue: DefaultMaskValue,
	}
}

// SensitiveDataFilter masks sensitive fields, header values and URL passwords.
type SensitiveDataFilter struct {
	config *FilterConfig
}

// NewSensitiveDataFilter creates a new filter with the given configuration
func NewSensitiveDataFilter(config *FilterConfig) *SensitiveDataFilter {
	if config == nil {
		config = DefaultFilterConfig()
	}
	if config.MaskValue == "" {
		config.MaskValue = DefaultMaskValue
	}
	return &SensitiveDataFilter{config: config}
}

// FilterString filters sensitive data from string values. URL passwords are
// masked regardless of the key.
func (f *SensitiveDataFilter) FilterString(key, value string) string {
	if value == "" {
		return value
	}
	if f.isSensitiveField(key) {
		return f.config.MaskValue
	}
	if isURL(value) {
		return f.maskURL(value)
	}
	return value
}

// FilterValue filters sensitive data from header maps and field maps.
// Other value types pass through unchanged.
func (f *SensitiveDataFilter) FilterValue(key string, value any) any {
	if f.isSensitiveField(key) {
		return f.config.MaskValue
	}

	switch v := value.(type) {
	case string:
		return f.FilterString(key, v)
	case map[string]any:
		return f.FilterFields(v)
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, s := range v {
			out[k] = f.FilterString(k, s)
		}
		return out
	case map[string][]string:
		return f.filterMultiMap(v)
	case nethttp.Header:
		return f.filterMultiMap(v)
	default:
		return value
	}
}

// FilterFields filters every entry of a field map.
func (f *SensitiveDataFilter) FilterFields(fields map[string]any) map[string]any {
	filtered := make(map[string]any, len(fields))
	for key, value := range fields {
		filtered[key] = f.FilterValue(key, value)
	}
	return filtered
}

func (f *SensitiveDataFilter) filterMultiMap(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, vals := range m {
		masked := make([]string, len(vals))
		for i, s := range vals {
			masked[i] = f.FilterString(k, s)
		}
		out[k] = masked
	}
	return out
}

// isSensitiveField checks if a field name is considered sensitive
func (f *SensitiveDataFilter) isSensitiveField(fieldName string) bool {
	lowerFieldName := strings.ToLower(fieldName)
	for _, sensitiveField := range f.config.SensitiveFields {
		if strings.Contains(lowerFieldName, strings.ToLower(sensitiveField)) {
			return true
		}
	}
	return false
}

func isURL(value string) bool {
	return strings.HasPrefix(value, "http://") ||
		strings.HasPrefix(value, "https://") ||
		strings.HasPrefix(value, "ws://") ||
		strings.HasPrefix(value, "wss://")
}

// maskURL masks the password in URL user info while preserving structure
func (f *SensitiveDataFilter) maskURL(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return f.config.MaskValue
	}
	if parsed.User == nil {
		return urlStr
	}
	if _, hasPassword := parsed.User.Password(); !hasPassword {
		return urlStr
	}

	var b strings.Builder
	b.WriteString(parsed.Scheme)
	b.WriteString("://")
	b.WriteString(parsed.User.Username())
	b.WriteByte(':')
	b.WriteString(f.config.MaskValue)
	b.WriteByte('@')
	b.WriteString(parsed.Host)
	if p := parsed.EscapedPath(); p != "" {
		b.WriteString(p)
	}
	if q := parsed.RawQuery; q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}
	return b.String()
}
