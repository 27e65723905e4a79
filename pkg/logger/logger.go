package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/noah-isme/uni-course-api/pkg/config"
	"github.com/noah-isme/uni-course-api/pkg/middleware/requestid"
)

// New builds the application logger. Production uses the JSON production
// preset; everything else gets the development preset so local output stays
// readable.
func New(cfg *config.Config) (*zap.Logger, error) {
	base := zap.NewDevelopmentConfig()
	if cfg.Env == config.EnvProduction {
		base = zap.NewProductionConfig()
	}

	if cfg.Log.Format == "console" {
		base.Encoding = "console"
	} else {
		base.Encoding = "json"
	}

	base.Level = parseLevel(cfg.Log.Level)
	base.EncoderConfig.TimeKey = "timestamp"
	base.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return base.Build()
}

func parseLevel(level string) zap.AtomicLevel {
	atomic := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if level == "" {
		return atomic
	}
	if err := atomic.UnmarshalText([]byte(level)); err != nil {
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return atomic
}

// GinMiddleware logs one line per request after the handler chain completes.
func GinMiddleware(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if id := requestid.Value(c); id != "" {
			fields = append(fields, zap.String("request_id", id))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		l.Info("http_request", fields...)
	}
}
