package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/erikwilensky/codecheck/internal/observability"
)

const (
	correlationLocal       = "correlation_id"
	maxCorrelationIDLength = 128
)

// Checked in order. GitHub webhook deliveries keep their delivery id.
var correlationSources = []string{observability.CorrelationHeader, "X-Request-ID", "X-GitHub-Delivery"}

// CorrelationID assigns every request an identifier that follows it into logs,
// activity metadata and published assessment events.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := incomingCorrelationID(c)
		if id == "" {
			id = uuid.NewString()
		}

		c.Locals(correlationLocal, id)
		c.Set(observability.CorrelationHeader, id)
		c.SetUserContext(observability.WithCorrelationID(c.UserContext(), id))

		return c.Next()
	}
}

// GetCorrelationID returns the identifier bound to the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals(correlationLocal).(string); ok {
		return id
	}
	return observability.CorrelationID(c.UserContext())
}

func incomingCorrelationID(c *fiber.Ctx) string {
	for _, header := range correlationSources {
		id := strings.TrimSpace(c.Get(header))
		if validCorrelationID(id) {
			// fasthttp reuses header buffers once the handler returns.
			return strings.Clone(id)
		}
	}
	return ""
}

// validCorrelationID accepts short printable ASCII tokens only.
func validCorrelationID(id string) bool {
	if id == "" || len(id) > maxCorrelationIDLength {
		return false
	}
	for _, r := range id {
		if r < 0x21 || r > 0x7e {
			return false
		}
	}
	return true
}
