package services

import (
	"context"

	"github.com/opendots/opendots-backend/logger"
	"github.com/opendots/opendots-backend/store"
	"github.com/opendots/opendots-backend/types"
)

// D1StatusService reports on the secondary store for diagnostics.
type D1StatusService struct {
	reporter store.StatusReporter
}

// NewD1StatusService takes a nil reporter when D1 is not configured.
func NewD1StatusService(reporter store.StatusReporter) *D1StatusService {
	return &D1StatusService{reporter: reporter}
}

// Status lists the D1 tables and counts profiles. The returned error is set
// only when D1 is configured but unreachable; the status then carries it too.
func (s *D1StatusService) Status(ctx context.Context) (types.D1Status, error) {
	if s.reporter == nil {
		return types.D1Status{
			Status:   types.D1StatusNotAvailable,
			Message:  "D1 database is not available in this environment",
			IsWorker: false,
			Tables:   []string{},
		}, nil
	}

	log := logger.GetLogger()

	tables, err := s.reporter.Tables(ctx)
	if err != nil {
		log.Errorw("Failed to list D1 tables", "error", err)
		return errorStatus(err), err
	}

	status := types.D1Status{
		Status:   types.D1StatusAvailable,
		Message:  "D1 database is available",
		IsWorker: true,
		Tables:   tables,
	}

	if containsTable(tables, "user_profiles") {
		count, err := s.reporter.CountProfiles(ctx)
		if err != nil {
			log.Errorw("Failed to count D1 profiles", "error", err)
			return errorStatus(err), err
		}
		status.ProfileCount = &count
	}
	return status, nil
}

func errorStatus(err error) types.D1Status {
	return types.D1Status{
		Status:   types.D1StatusError,
		Message:  "Error accessing D1 database",
		IsWorker: true,
		Tables:   []string{},
		Error:    err.Error(),
	}
}

func containsTable(tables []string, name string) bool {
	for _, t := range tables {
		if t == name {
			return true
		}
	}
	return false
}
