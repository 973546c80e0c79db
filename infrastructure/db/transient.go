package db

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

// transientPqCodes are Postgres SQLSTATE codes worth retrying: connection
// failures and serialization/deadlock errors under concurrent writers.
var transientPqCodes = map[string]bool{
	"08000": true, // connection_exception
	"08003": true, // connection_does_not_exist
	"08006": true, // connection_failure
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
}

// IsTransient classifies a database error as transient (worth retrying with
// backoff) per spec §4.3: connection reset and serialization failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return transientPqCodes[string(pqErr.Code)]
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "driver: bad connection")
}
