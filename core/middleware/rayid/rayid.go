package rayid

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// Header carries the ray id in requests and responses.
	Header = "X-Ray-ID"
	// LocalKey is where the ray id is stored in fiber locals.
	LocalKey = "ray_id"
)

// New returns a middleware that tags every request with a ray id.
// An incoming X-Ray-ID header is reused.
func New() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := c.Get(Header)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Locals(LocalKey, rid)
		c.Set(Header, rid)
		return c.Next()
	}
}
