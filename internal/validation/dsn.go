package validation

import (
	"fmt"
	"net/url"
	"strings"
)

/* ValidateDSN accepts a postgres:// URL or a keyword/value connection string */
func ValidateDSN(dsn, fieldName string) error {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return fmt.Errorf("%s is required and cannot be empty", fieldName)
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		parsed, err := url.Parse(dsn)
		if err != nil {
			return fmt.Errorf("%s is not a valid URL: %w", fieldName, err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("%s is missing a host", fieldName)
		}
		if strings.Trim(parsed.Path, "/") == "" {
			return fmt.Errorf("%s is missing a database name", fieldName)
		}
		return nil
	}

	lower := strings.ToLower(dsn)
	for _, req := range []string{"host=", "dbname="} {
		if !strings.Contains(lower, req) {
			return fmt.Errorf("%s is missing required component: %s", fieldName, strings.TrimSuffix(req, "="))
		}
	}
	return nil
}
