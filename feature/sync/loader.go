package sync

import (
	"github.com/gofiber/fiber/v2"
)

// Feature serves cycle control, status and issue reports. It is disabled
// when the service has no orchestrator, as in the CLI report commands.
type Feature struct {
	service *Service
}

// NewFeature wraps svc.
func NewFeature(svc *Service) *Feature {
	return &Feature{service: svc}
}

func (f *Feature) Name() string { return "sync" }

func (f *Feature) IsEnabled() bool {
	return f.service != nil && f.service.orch != nil
}

// Load mounts the handler routes.
func (f *Feature) Load(router fiber.Router) error {
	NewHandler(f.service).RegisterRoutes(router)
	return nil
}
