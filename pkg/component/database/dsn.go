package database

import (
	"fmt"
	"net/url"
	"strings"

	options "github.com/kart-io/quizmind/pkg/options/database"
)

// BuildDSN returns the data source name for the configured driver.
// For sqlite it is the database file path.
func BuildDSN(opts *options.Options) string {
	if opts == nil {
		return ""
	}

	switch opts.Driver {
	case options.DriverPostgres:
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			opts.Host,
			opts.Port,
			opts.Username,
			escapePostgresValue(opts.Password),
			opts.Database,
			opts.SSLMode,
		)
	case options.DriverMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			opts.Username,
			url.QueryEscape(opts.Password),
			opts.Host,
			opts.Port,
			opts.Database,
		)
	default:
		return opts.Path
	}
}

// escapePostgresValue quotes a key/value DSN value when it contains spaces,
// quotes or backslashes.
func escapePostgresValue(value string) string {
	if value == "" {
		return "''"
	}

	if strings.ContainsAny(value, " '\\") {
		escaped := strings.ReplaceAll(value, "\\", "\\\\")
		escaped = strings.ReplaceAll(escaped, "'", "\\'")
		return "'" + escaped + "'"
	}
	return value
}
