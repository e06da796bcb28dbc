package middleware

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"ForexPulse/pkg/logger"
)

// Recover turns handler panics into errors for the server's error handler and
// logs them with their stack.
func Recover(l *logger.Logger) echo.MiddlewareFunc {
	return echomw.RecoverWithConfig(echomw.RecoverConfig{
		DisablePrintStack: true,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			l.Error("http handler panic",
				logger.String("path", c.Path()),
				logger.Error(err),
				logger.String("stack", string(stack)),
			)
			return err
		},
	})
}
