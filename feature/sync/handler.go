package sync

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"crm-bridge/core/logger"
	"crm-bridge/core/models"
	"crm-bridge/core/orchestrator"
	"crm-bridge/core/report"
	"crm-bridge/core/store"
	"crm-bridge/core/syncerr"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for sync cycles, issues and reports.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the sync routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	s := app.Group("/sync")
	s.Post("/run", h.HandleRun)
	s.Get("/status", h.HandleStatus)
	s.Post("/stop", h.HandleStop)
	s.Get("/cycles", h.HandleListCycles)
	s.Get("/cycles/:id", h.HandleGetCycle)
	s.Get("/cycles/:id/changes", h.HandleListChanges)
	s.Get("/cycles/:id/report", h.HandleChangesReport)

	i := app.Group("/issues")
	i.Get("/", h.HandleListIssues)
	i.Get("/export", h.HandleExportIssues)
	i.Post("/:id/resolve", h.HandleResolveIssue)

	r := app.Group("/reports")
	r.Get("/", h.HandleListReports)
	r.Get("/:name", h.HandleGetReport)

	reg := h.service.orch.Metrics().Registry()
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
}

// HandleRun starts a sync cycle.
// @Summary Run Sync Cycle
// @Description Starts a sync cycle. By default the cycle is queued and the request returns at once; with wait=true the cycle runs in the request and its report is returned.
// @Tags sync
// @Produce json
// @Param dry_run query boolean false "Plan without writing to either remote"
// @Param type query string false "Comma separated entity types (company, contact, deal)"
// @Param wait query boolean false "Run in the request and return the report"
// @Success 200 {object} orchestrator.Report "Cycle Report"
// @Success 202 {object} map[string]string "Cycle Queued"
// @Failure 400 {object} map[string]string "Bad Request"
// @Failure 409 {object} map[string]string "Cycle In Progress"
// @Router /sync/run [post]
func (h *Handler) HandleRun(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	types, err := parseTypes(c.Query("type"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	opts := orchestrator.RunOptions{DryRun: c.QueryBool("dry_run"), EntityTypes: types}
	wait := c.QueryBool("wait")

	l.Info("Sync run requested", zap.Bool("dry_run", opts.DryRun), zap.Bool("wait", wait))
	rep, err := h.service.Run(c.Context(), opts, wait)
	switch {
	case errors.Is(err, ErrNotTriggered), errors.Is(err, syncerr.ErrCycleInProgress):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case err != nil && rep == nil:
		l.Error("Sync run failed", zap.Error(err))
		return h.fail(c, err)
	case rep == nil:
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
	}
	if err != nil {
		l.Error("Sync cycle failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(rep)
	}
	return c.JSON(rep)
}

// HandleStatus returns the orchestrator state.
// @Summary Sync Status
// @Description Returns idle, running (with the current cycle) or the result of the last cycle.
// @Tags sync
// @Produce json
// @Success 200 {object} orchestrator.State "Status"
// @Router /sync/status [get]
func (h *Handler) HandleStatus(c *fiber.Ctx) error {
	return c.JSON(h.service.Status(c.Context()))
}

// HandleStop asks the running cycle to stop.
// @Summary Stop Sync Cycle
// @Description Requests a cooperative stop. Entity types already started finish; the cycle is recorded as failed.
// @Tags sync
// @Produce json
// @Success 200 {object} map[string]string "Stop Requested"
// @Failure 409 {object} map[string]string "No Cycle Running"
// @Router /sync/stop [post]
func (h *Handler) HandleStop(c *fiber.Ctx) error {
	if !h.service.Stop() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "no cycle is running"})
	}
	logger.WithRayID(h.service.logger, c).Info("Sync stop requested")
	return c.JSON(fiber.Map{"status": "stopping"})
}

// HandleListCycles lists recent cycles.
// @Summary List Cycles
// @Tags sync
// @Produce json
// @Param limit query int false "Maximum number of cycles" default(20)
// @Success 200 {array} store.SyncCycle "Cycles"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /sync/cycles [get]
func (h *Handler) HandleListCycles(c *fiber.Ctx) error {
	cycles, err := h.service.Cycles(c.Context(), c.QueryInt("limit", 20))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(cycles)
}

// HandleGetCycle returns one cycle.
// @Summary Get Cycle
// @Tags sync
// @Produce json
// @Param id path string true "Cycle ID"
// @Success 200 {object} store.SyncCycle "Cycle"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /sync/cycles/{id} [get]
func (h *Handler) HandleGetCycle(c *fiber.Ctx) error {
	cycle, err := h.service.Cycle(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(cycle)
}

// HandleListChanges returns the field change log of a cycle.
// @Summary List Cycle Changes
// @Tags sync
// @Produce json
// @Param id path string true "Cycle ID"
// @Success 200 {array} store.SyncChange "Changes"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /sync/cycles/{id}/changes [get]
func (h *Handler) HandleListChanges(c *fiber.Ctx) error {
	changes, err := h.service.Changes(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(changes)
}

// HandleChangesReport downloads the activity report of a cycle.
// @Summary Download Cycle Activity Report
// @Tags sync
// @Produce text/csv
// @Param id path string true "Cycle ID"
// @Success 200 {file} file "CSV Report"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /sync/cycles/{id}/report [get]
func (h *Handler) HandleChangesReport(c *fiber.Ctx) error {
	id := c.Params("id")
	var buf bytes.Buffer
	if err := h.service.WriteChangesReport(c.Context(), id, &buf); err != nil {
		return h.fail(c, err)
	}
	c.Set(fiber.HeaderContentType, report.ContentTypeCSV)
	c.Attachment(fmt.Sprintf("sync_activity_%s.csv", id))
	return c.Send(buf.Bytes())
}

// HandleListIssues lists reconciliation issues.
// @Summary List Issues
// @Description Lists open issues, newest first.
// @Tags issues
// @Produce json
// @Param entity_type query string false "Entity type"
// @Param kind query string false "Issue kind"
// @Param all query boolean false "Include resolved issues"
// @Param limit query int false "Maximum number of issues"
// @Success 200 {array} store.ReconciliationIssue "Issues"
// @Failure 400 {object} map[string]string "Bad Request"
// @Router /issues [get]
func (h *Handler) HandleListIssues(c *fiber.Ctx) error {
	f, err := issueFilter(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	issues, err := h.service.Issues(c.Context(), f)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(issues)
}

// HandleExportIssues downloads the reconciliation report.
// @Summary Export Issues
// @Description Renders the issues as CSV or XLSX. With archive=true the file is also stored in the report bucket.
// @Tags issues
// @Produce text/csv
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param format query string false "csv or xlsx" default(csv)
// @Param entity_type query string false "Entity type"
// @Param kind query string false "Issue kind"
// @Param all query boolean false "Include resolved issues"
// @Param archive query boolean false "Also upload to object storage"
// @Success 200 {file} file "Report"
// @Failure 400 {object} map[string]string "Bad Request"
// @Router /issues/export [get]
func (h *Handler) HandleExportIssues(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	format, err := report.ParseFormat(c.Query("format"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	f, err := issueFilter(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	exp, err := h.service.ExportIssues(c.Context(), format, f, c.QueryBool("archive"))
	if errors.Is(err, report.ErrArchiveDisabled) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		l.Error("Issue export failed", zap.Error(err))
		return h.fail(c, err)
	}

	l.Info("Issue report exported", zap.Int("issues", exp.Count), zap.String("archive_key", exp.ArchiveKey))
	if exp.ArchiveKey != "" {
		c.Set("X-Archive-Key", exp.ArchiveKey)
	}
	c.Set(fiber.HeaderContentType, exp.ContentType)
	c.Attachment(exp.Name)
	return c.Send(exp.Data)
}

// HandleResolveIssue marks an issue resolved.
// @Summary Resolve Issue
// @Tags issues
// @Produce json
// @Param id path string true "Issue ID"
// @Success 200 {object} store.ReconciliationIssue "Resolved Issue"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /issues/{id}/resolve [post]
func (h *Handler) HandleResolveIssue(c *fiber.Ctx) error {
	issue, err := h.service.ResolveIssue(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(issue)
}

// HandleListReports lists archived issue reports.
// @Summary List Archived Reports
// @Tags reports
// @Produce json
// @Success 200 {array} storage.ArchivedObject "Reports"
// @Failure 404 {object} map[string]string "Archive Disabled"
// @Router /reports [get]
func (h *Handler) HandleListReports(c *fiber.Ctx) error {
	objs, err := h.service.ArchivedReports(c.Context())
	if errors.Is(err, report.ErrArchiveDisabled) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(objs)
}

// HandleGetReport downloads an archived issue report.
// @Summary Download Archived Report
// @Tags reports
// @Param name path string true "Report file name"
// @Success 200 {file} file "Report"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /reports/{name} [get]
func (h *Handler) HandleGetReport(c *fiber.Ctx) error {
	name := c.Params("name")
	rc, err := h.service.ArchivedReport(c.Context(), name)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	contentType := report.ContentTypeCSV
	if strings.HasSuffix(name, "."+string(report.FormatXLSX)) {
		contentType = report.ContentTypeXLSX
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Attachment(name)
	return c.Send(data)
}

// fail maps an error to a status code.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, syncerr.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, syncerr.ErrCycleInProgress):
		status = fiber.StatusConflict
	case errors.Is(err, syncerr.ErrStoreUnavailable):
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func parseTypes(raw string) ([]models.EntityType, error) {
	var out []models.EntityType
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		et, err := models.ParseEntityType(name)
		if err != nil {
			return nil, err
		}
		out = append(out, et)
	}
	return out, nil
}

func issueFilter(c *fiber.Ctx) (store.IssueFilter, error) {
	f := store.IssueFilter{
		IncludeResolved: c.QueryBool("all"),
		Limit:           c.QueryInt("limit"),
	}
	if v := c.Query("entity_type"); v != "" {
		et, err := models.ParseEntityType(v)
		if err != nil {
			return f, err
		}
		f.EntityType = et
	}
	if v := c.Query("kind"); v != "" {
		kind := models.IssueKind(v)
		if !validKind(kind) {
			return f, fmt.Errorf("unknown issue kind %q", v)
		}
		f.Kind = kind
	}
	return f, nil
}

func validKind(k models.IssueKind) bool {
	for _, kind := range models.IssueKinds {
		if kind == k {
			return true
		}
	}
	return false
}
