package server

import (
	"errors"
	"net/http"

	"zotero-sync/core/zotero"

	"github.com/gofiber/fiber/v2"
)

// Status maps engine errors to HTTP status codes.
func Status(err error) int {
	var validation *zotero.ValidationError
	var conflict *zotero.ConflictError
	var network *zotero.NetworkError
	var partial *zotero.PartialBatchFailure

	switch {
	case errors.As(err, &validation):
		return fiber.StatusBadRequest
	case errors.As(err, &conflict):
		return fiber.StatusConflict
	case errors.As(err, &partial):
		return fiber.StatusMultiStatus
	case errors.As(err, &network):
		if network.StatusCode == http.StatusForbidden || network.StatusCode == http.StatusNotFound {
			return network.StatusCode
		}
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// Error writes err as a JSON body with its mapped status.
func Error(c *fiber.Ctx, err error) error {
	return c.Status(Status(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}
