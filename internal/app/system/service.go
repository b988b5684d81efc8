package system

import (
	"context"

	core "github.com/mafzaal/letstalk-index/internal/app/core/service"
)

// Service represents a lifecycle-managed component. Every long-running
// module (the HTTP control plane, the Scheduler) implements this so the
// application can start and stop them deterministically.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// DescriptorProvider optionally advertises service metadata (layer, capabilities).
type DescriptorProvider interface {
	Descriptor() core.Descriptor
}
