package storage

import (
	"context"

	"github.com/mafzaal/letstalk-index/internal/app/domain/report"
)

// ReportStore persists run reports for later retrieval by the control surface.
type ReportStore interface {
	AppendReport(ctx context.Context, run report.Run) error
	ListReports(ctx context.Context, limit int) ([]report.Run, error)
}
