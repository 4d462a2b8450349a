package middleware

import (
	"fmt"

	"github.com/labstack/echo/v4"
)

// clientKey identifies the caller for rate-limit bucketing: the
// authenticated user ID when JWTAuth ran earlier in the chain, the
// client IP otherwise.
func clientKey(c echo.Context) string {
	if v := c.Get("user_id"); v != nil {
		return fmt.Sprintf("u:%v", v)
	}
	return "ip:" + c.RealIP()
}
