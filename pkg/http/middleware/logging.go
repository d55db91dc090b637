// Package middleware holds the echo middleware shared by the API servers.
package middleware

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	applogger "TrendScanner/pkg/logger"
)

// RequestLogger logs one line per request: errors and 5xx at error level,
// 4xx at warn, the rest at debug.
func RequestLogger(l *applogger.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomw.RequestLoggerValues) error {
			fields := []applogger.Field{
				applogger.String("method", v.Method),
				applogger.String("uri", v.URI),
				applogger.String("remote", v.RemoteIP),
				applogger.Int("status", v.Status),
				applogger.Duration("latency", v.Latency),
			}
			if v.RequestID != "" {
				fields = append(fields, applogger.String("request_id", v.RequestID))
			}
			switch {
			case v.Error != nil || v.Status >= 500:
				l.Error("http request", append(fields, applogger.Error(v.Error))...)
			case v.Status >= 400:
				l.Warn("http request", fields...)
			default:
				l.Debug("http request", fields...)
			}
			return nil
		},
	})
}

// Recover turns handler panics into 500s and logs the stack.
func Recover(l *applogger.Logger) echo.MiddlewareFunc {
	return echomw.RecoverWithConfig(echomw.RecoverConfig{
		StackSize: 4 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			l.Error("http panic recovered",
				applogger.String("path", c.Path()),
				applogger.Error(err),
				applogger.String("stack", string(stack)))
			return err
		},
	})
}
