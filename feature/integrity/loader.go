package integrity

import (
	"github.com/gofiber/fiber/v2"
)

// Feature exposes the drift checks over HTTP.
type Feature struct {
	handler *Handler
	enabled bool
}

// NewFeature wraps svc. A nil service leaves the feature disabled.
func NewFeature(svc *Service) *Feature {
	if svc == nil {
		return &Feature{}
	}
	return &Feature{handler: NewHandler(svc), enabled: true}
}

func (f *Feature) Name() string { return "integrity" }

func (f *Feature) IsEnabled() bool { return f.enabled }

// Load mounts the /integrity routes.
func (f *Feature) Load(router fiber.Router) error {
	f.handler.RegisterRoutes(router)
	return nil
}
