package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/yungbote/enrollment-backend/internal/http/middleware"
	"github.com/yungbote/enrollment-backend/internal/platform/envutil"
	"github.com/yungbote/enrollment-backend/internal/platform/logger"
)

type Config struct {
	Port            string
	JWTSecretKey    string
	CORSOrigins     []string
	ServiceName     string
	ShutdownTimeout time.Duration
}

// LoadEnvFile populates the process environment from ENV_FILE, or .env when unset.
// A missing file is not an error; variables already set win.
func LoadEnvFile() error {
	path := strings.TrimSpace(os.Getenv("ENV_FILE"))
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Port:            envutil.String("PORT", "8080", log),
		JWTSecretKey:    envutil.String("JWT_SECRET_KEY", "", log),
		CORSOrigins:     envutil.List("CORS_ALLOWED_ORIGINS", middleware.DefaultCORSOrigins, log),
		ServiceName:     envutil.String("OTEL_SERVICE_NAME", "enrollment-backend", log),
		ShutdownTimeout: envutil.Duration("SHUTDOWN_TIMEOUT", 15*time.Second, log),
	}
}
