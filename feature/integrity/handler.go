package integrity

import (
	"errors"

	"crm-bridge/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for integrity checks.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the integrity routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/integrity")
	group.Get("/", h.HandleIntegrityCheck)
	group.Get("/store", h.HandleStoreCheck)
	group.Get("/remote", h.HandleRemoteCheck)
	group.Get("/mapping", h.HandleMappingCheck)
	group.Get("/archive", h.HandleArchiveCheck)
}

// HandleIntegrityCheck triggers all integrity checks.
// @Summary Run All Integrity Checks
// @Description Performs all available integrity checks (Store, Remote, Mapping, Archive). The remote check calls both remote systems.
// @Tags integrity
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{} "Combined Report"
// @Router /integrity [get]
func (h *Handler) HandleIntegrityCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	l.Info("Triggering all integrity checks")

	ctx := c.Context()
	report := make(map[string]interface{})

	if r, err := h.service.CheckStore(); err != nil {
		report["store"] = errorEntry(err)
	} else {
		report["store"] = r
	}

	if r, err := h.service.CheckMapping(); err != nil {
		report["mapping"] = errorEntry(err)
	} else {
		report["mapping"] = r
	}

	if r, err := h.service.CheckArchive(ctx, false); err != nil {
		report["archive"] = errorEntry(err)
	} else {
		report["archive"] = r
	}

	if r, err := h.service.CheckRemote(ctx); err != nil {
		report["remote"] = errorEntry(err)
	} else {
		report["remote"] = r
	}

	return c.JSON(report)
}

// HandleStoreCheck checks and optionally migrates the state store schema.
// @Summary Check State Store Schema
// @Description Checks that the state store tables and columns match the persisted models. Optionally migrates the schema.
// @Tags integrity
// @Accept json
// @Produce json
// @Param fix query boolean false "Migrate missing tables and columns"
// @Success 200 {object} checks.StoreReport "Store Report"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Failure 503 {object} map[string]string "Check not configured"
// @Router /integrity/store [get]
func (h *Handler) HandleStoreCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	fix := c.Query("fix") == "true"

	report, err := h.service.CheckStore()
	if err != nil {
		l.Error("Store check failed", zap.Error(err))
		return h.fail(c, err)
	}

	if !report.Matched && fix {
		l.Info("Attempting to migrate state store")
		if err := h.service.FixStore(c.Context()); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "Failed to migrate store",
				"details": err.Error(),
			})
		}
		if report, err = h.service.CheckStore(); err != nil {
			return h.fail(c, err)
		}
	}

	return c.JSON(report)
}

// HandleRemoteCheck checks mapped fields against the remote systems.
// @Summary Check Remote Fields
// @Description Verifies that every mapped field exists on the remote system.
// @Tags integrity
// @Accept json
// @Produce json
// @Success 200 {object} checks.RemoteReport "Remote Report"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Failure 503 {object} map[string]string "Check not configured"
// @Router /integrity/remote [get]
func (h *Handler) HandleRemoteCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	l.Info("Starting remote field check")

	report, err := h.service.CheckRemote(c.Context())
	if err != nil {
		l.Error("Remote check failed", zap.Error(err))
		return h.fail(c, err)
	}
	if !report.Matched {
		l.Warn("Remote field drift detected")
	}
	return c.JSON(report)
}

// HandleMappingCheck checks the field mapping for enum gaps.
// @Summary Check Field Mapping
// @Description Lists canonical enum values that one side cannot represent.
// @Tags integrity
// @Accept json
// @Produce json
// @Success 200 {object} checks.MappingReport "Mapping Report"
// @Failure 503 {object} map[string]string "Check not configured"
// @Router /integrity/mapping [get]
func (h *Handler) HandleMappingCheck(c *fiber.Ctx) error {
	report, err := h.service.CheckMapping()
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(report)
}

// HandleArchiveCheck checks and optionally creates the report archive bucket.
// @Summary Check Report Archive
// @Description Checks that the report archive bucket exists. Optionally creates it.
// @Tags integrity
// @Accept json
// @Produce json
// @Param fix query boolean false "Create the bucket"
// @Success 200 {object} ArchiveReport "Archive Report"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Failure 503 {object} map[string]string "Check not configured"
// @Router /integrity/archive [get]
func (h *Handler) HandleArchiveCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	fix := c.Query("fix") == "true"

	report, err := h.service.CheckArchive(c.Context(), fix)
	if err != nil {
		l.Error("Archive check failed", zap.Error(err))
		return h.fail(c, err)
	}
	return c.JSON(report)
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	if errors.Is(err, ErrNotConfigured) {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func errorEntry(err error) map[string]interface{} {
	return map[string]interface{}{"status": "error", "error": err.Error()}
}
