package validation

import (
	"fmt"
	"net/url"
	"strings"
)

/* ValidateURL validates an http or https URL with a host */
func ValidateURL(urlStr string) bool {
	urlStr = strings.TrimSpace(urlStr)
	if urlStr == "" {
		return false
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}

	return parsed.Host != ""
}

/* ValidateOrigins checks a CORS allow-list: each entry is "*" or a bare origin */
func ValidateOrigins(origins []string, fieldName string) error {
	for _, origin := range origins {
		if origin == "*" {
			continue
		}
		if !ValidateURL(origin) {
			return fmt.Errorf("%s contains an invalid origin: %q", fieldName, origin)
		}
		if parsed, _ := url.Parse(origin); parsed.Path != "" && parsed.Path != "/" {
			return fmt.Errorf("%s origin must not carry a path: %q", fieldName, origin)
		}
	}
	return nil
}
