package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yungbote/enrollment-backend/internal/http/middleware"
	"github.com/yungbote/enrollment-backend/internal/platform/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "JWT_SECRET_KEY", "CORS_ALLOWED_ORIGINS", "OTEL_SERVICE_NAME", "SHUTDOWN_TIMEOUT"} {
		t.Setenv(key, "")
	}
	cfg := LoadConfig(logger.Nop())
	if cfg.Port != "8080" {
		t.Fatalf("port: want=8080 got=%s", cfg.Port)
	}
	if cfg.JWTSecretKey != "" {
		t.Fatalf("jwt secret: want empty got=%q", cfg.JWTSecretKey)
	}
	if len(cfg.CORSOrigins) != len(middleware.DefaultCORSOrigins) {
		t.Fatalf("cors origins: want=%v got=%v", middleware.DefaultCORSOrigins, cfg.CORSOrigins)
	}
	if cfg.ShutdownTimeout != 15*time.Second {
		t.Fatalf("shutdown timeout: want=15s got=%s", cfg.ShutdownTimeout)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET_KEY", "s3cret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("SHUTDOWN_TIMEOUT", "3")
	cfg := LoadConfig(logger.Nop())
	if cfg.Port != "9090" || cfg.JWTSecretKey != "s3cret" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("cors origins: got=%v", cfg.CORSOrigins)
	}
	if cfg.ShutdownTimeout != 3*time.Second {
		t.Fatalf("shutdown timeout: want=3s got=%s", cfg.ShutdownTimeout)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("ENROLLMENT_TEST_FROM_FILE=loaded\nENROLLMENT_TEST_PRESET=file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("ENROLLMENT_TEST_PRESET", "process")
	t.Setenv("ENROLLMENT_TEST_FROM_FILE", "")
	os.Unsetenv("ENROLLMENT_TEST_FROM_FILE")

	if err := LoadEnvFile(); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("ENROLLMENT_TEST_FROM_FILE"); got != "loaded" {
		t.Fatalf("from file: want=loaded got=%q", got)
	}
	if got := os.Getenv("ENROLLMENT_TEST_PRESET"); got != "process" {
		t.Fatalf("preset: want=process got=%q", got)
	}
	os.Unsetenv("ENROLLMENT_TEST_FROM_FILE")
}

func TestLoadEnvFileMissing(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	if err := LoadEnvFile(); err != nil {
		t.Fatalf("missing file: want nil got=%v", err)
	}
}
