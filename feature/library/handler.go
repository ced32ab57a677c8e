package library

import (
	"errors"

	"zotero-sync/core/logger"
	"zotero-sync/core/server"
	"zotero-sync/core/zotero"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// HeaderAPIKey carries the caller's Zotero key.
const HeaderAPIKey = "Zotero-API-Key"

// Handler handles HTTP requests for libraries.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers the library routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/libraries/:type/:id")
	group.Post("/sync", h.HandleSync)
	group.Get("/items", h.HandleItems)
	group.Get("/history", h.HandleHistory)
	app.Delete("/libraries/:type/:id", h.HandleForget)

	app.Put("/citekeys", h.HandleCitekeys)
}

// LibraryParam resolves the :type/:id route parameters.
func LibraryParam(c *fiber.Ctx) (zotero.Library, error) {
	return zotero.NewLibrary(zotero.LibraryType(c.Params("type")), c.Params("id"))
}

type syncBody struct {
	// Since is optional; when absent the current watermark is used.
	Since *int `json:"since"`
}

// HandleSync runs an incremental sync.
func (h *Handler) HandleSync(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	lib, err := LibraryParam(c)
	if err != nil {
		return server.Error(c, err)
	}

	var body syncBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return server.Error(c, &zotero.ValidationError{Field: "body", Err: err})
		}
	}
	since := -1
	if body.Since != nil {
		since = *body.Since
		if since < 0 {
			return server.Error(c, &zotero.ValidationError{Field: "since", Err: errors.New("must not be negative")})
		}
	}

	result, err := h.service.Sync(c.UserContext(), lib, c.Get(HeaderAPIKey), since)
	if err != nil {
		l.Error("Sync failed", zap.String("library", lib.Path), zap.Error(err))
		return server.Error(c, err)
	}
	return c.JSON(result)
}

// HandleItems returns the current snapshot.
func (h *Handler) HandleItems(c *fiber.Ctx) error {
	lib, err := LibraryParam(c)
	if err != nil {
		return server.Error(c, err)
	}
	snap, ok := h.service.Items(c.UserContext(), lib, c.Get(HeaderAPIKey))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "library has not been synced",
		})
	}
	return c.JSON(snap)
}

// HandleHistory lists recent sync events.
func (h *Handler) HandleHistory(c *fiber.Ctx) error {
	lib, err := LibraryParam(c)
	if err != nil {
		return server.Error(c, err)
	}
	records, err := h.service.History(c.UserContext(), lib, c.QueryInt("limit", 20))
	if errors.Is(err, ErrHistoryDisabled) {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		logger.WithRayID(h.logger, c).Error("History lookup failed", zap.Error(err))
		return server.Error(c, err)
	}
	return c.JSON(records)
}

// HandleForget drops all state held for a library.
func (h *Handler) HandleForget(c *fiber.Ctx) error {
	lib, err := LibraryParam(c)
	if err != nil {
		return server.Error(c, err)
	}
	if err := h.service.Forget(c.UserContext(), lib, c.Get(HeaderAPIKey)); err != nil {
		logger.WithRayID(h.logger, c).Error("Forget failed", zap.Error(err))
		return server.Error(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type citekeysBody struct {
	Citekeys []string `json:"citekeys"`
}

// HandleCitekeys replaces the registered citekeys.
func (h *Handler) HandleCitekeys(c *fiber.Ctx) error {
	var body citekeysBody
	if err := c.BodyParser(&body); err != nil {
		return server.Error(c, &zotero.ValidationError{Field: "body", Err: err})
	}
	n := h.service.SetCitekeys(body.Citekeys)
	return c.JSON(fiber.Map{"count": n})
}
