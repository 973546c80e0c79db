package httpapi

import (
	"github.com/analytics-sync/backend/infrastructure/errors"
)

func dbErr(operation string, err error) error {
	return errors.DatabaseError(operation, err)
}

// analyticsErr passes a validation error from the analytics engine straight
// through (so a bad metricId/date range surfaces as 400, not 500) and only
// wraps genuine lookup failures as Internal.
func analyticsErr(operation string, err error) error {
	if se := errors.GetServiceError(err); se != nil {
		return se
	}
	return errors.Internal(operation, err)
}

func notFoundEntity(entity string) error {
	return errors.NotFound("entity", entity)
}
