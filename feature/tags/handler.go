package tags

import (
	"zotero-sync/core/logger"
	"zotero-sync/core/server"
	"zotero-sync/core/zotero"
	"zotero-sync/feature/library"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for tags.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers the tag routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/libraries/:type/:id/tags")
	group.Get("/", h.HandleIndex)
	group.Delete("/", h.HandleDelete)
	group.Post("/rename", h.HandleRename)
}

// HandleIndex returns the categorized tag index. ?refresh=true bypasses the cache.
func (h *Handler) HandleIndex(c *fiber.Ctx) error {
	lib, err := library.LibraryParam(c)
	if err != nil {
		return server.Error(c, err)
	}
	listing, err := h.service.Index(c.UserContext(), lib, c.Get(library.HeaderAPIKey), c.QueryBool("refresh", false))
	if err != nil {
		logger.WithRayID(h.logger, c).Error("Tag index failed", zap.String("library", lib.Path), zap.Error(err))
		return server.Error(c, err)
	}
	return c.JSON(listing)
}

type deleteBody struct {
	Tags    []string `json:"tags"`
	Version int      `json:"version"`
}

// HandleDelete deletes tags guarded by the given library version.
func (h *Handler) HandleDelete(c *fiber.Ctx) error {
	lib, err := library.LibraryParam(c)
	if err != nil {
		return server.Error(c, err)
	}
	var body deleteBody
	if err := c.BodyParser(&body); err != nil {
		return server.Error(c, &zotero.ValidationError{Field: "body", Err: err})
	}

	version, err := h.service.Delete(c.UserContext(), DeleteRequest{
		APIKey:  c.Get(library.HeaderAPIKey),
		Library: lib,
		Tags:    body.Tags,
		Version: body.Version,
	})
	if err != nil {
		logger.WithRayID(h.logger, c).Error("Tag deletion failed", zap.String("library", lib.Path), zap.Error(err))
		return server.Error(c, err)
	}
	return c.JSON(fiber.Map{"version": version})
}

type renameBody struct {
	From []string `json:"from"`
	Into string   `json:"into"`
}

// HandleRename merges tags. Partially failed writes answer 207 with the per-chunk outcome.
func (h *Handler) HandleRename(c *fiber.Ctx) error {
	lib, err := library.LibraryParam(c)
	if err != nil {
		return server.Error(c, err)
	}
	var body renameBody
	if err := c.BodyParser(&body); err != nil {
		return server.Error(c, &zotero.ValidationError{Field: "body", Err: err})
	}

	result, err := h.service.Rename(c.UserContext(), RenameRequest{
		APIKey:  c.Get(library.HeaderAPIKey),
		Library: lib,
		From:    body.From,
		Into:    body.Into,
	})
	if err != nil {
		logger.WithRayID(h.logger, c).Error("Tag rename failed", zap.String("library", lib.Path), zap.Error(err))
		return server.Error(c, err)
	}

	status := fiber.StatusOK
	if result.Summary.Rejected > 0 || result.Summary.Failed > 0 {
		status = fiber.StatusMultiStatus
	}
	return c.Status(status).JSON(result)
}
