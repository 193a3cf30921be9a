package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

func parseActorID(c *fiber.Ctx) (int64, error) {
	raw, ok := c.Locals("user_id").(string)
	if !ok {
		return 0, fmt.Errorf("missing user id")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}
	return id, nil
}

// parseCursor reads the optional cursor query parameter as an RFC3339
// instant. An unparsable cursor is the caller's error.
func parseCursor(c *fiber.Ctx) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query("cursor"))
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		if parsed, err = time.Parse(time.RFC3339, raw); err != nil {
			return nil, fmt.Errorf("invalid cursor: %w", err)
		}
	}
	return &parsed, nil
}

// FormatCursor renders a timestamp the way parseCursor accepts it back.
func FormatCursor(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano)
}
