package embedding

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// IsQuotaError reports whether err is an upstream rate-limit/quota
// rejection. Detection covers the structured API error code and, as a
// fallback, the conventional "quota" wording in the message.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") || strings.Contains(msg, "429")
}

// RetryDelay extracts the provider-supplied retry hint from a quota
// error, or 0 when none is present. Gemini attaches a google.rpc
// RetryInfo detail with a "retryDelay" duration string.
func RetryDelay(err error) time.Duration {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0
	}

	for _, detail := range apiErr.Details {
		t, _ := detail["@type"].(string)
		if !strings.HasSuffix(t, "RetryInfo") {
			continue
		}
		raw, _ := detail["retryDelay"].(string)
		if raw == "" {
			continue
		}
		if d, parseErr := time.ParseDuration(raw); parseErr == nil && d > 0 {
			return d
		}
	}
	return 0
}
