package envutil

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/enrollment-backend/internal/platform/logger"
)

func String(key, def string, log *logger.Logger) string {
	if log != nil {
		log = log.With("env_var", key)
	}
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		if log != nil {
			log.Debug("Environment variable not found, using default", "default", def)
		}
		return def
	}
	return strings.TrimSpace(val)
}

func Int(key string, def int, log *logger.Logger) int {
	raw := String(key, "", nil)
	if raw == "" {
		return def
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		if log != nil {
			log.Debug("Environment variable could not be parsed as int, using default", "env_var", key, "provided", raw, "default", def, "error", err)
		}
		return def
	}
	return i
}

func Bool(key string, def bool, log *logger.Logger) bool {
	switch strings.ToLower(String(key, "", nil)) {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		if log != nil {
			log.Debug("Environment variable could not be parsed as bool, using default", "env_var", key, "default", def)
		}
		return def
	}
}

// Duration accepts Go duration strings ("90s") or bare integers read as seconds.
func Duration(key string, def time.Duration, log *logger.Logger) time.Duration {
	raw := String(key, "", nil)
	if raw == "" {
		return def
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		if log != nil {
			log.Debug("Environment variable could not be parsed as duration, using default", "env_var", key, "provided", raw, "default", def, "error", err)
		}
		return def
	}
	return d
}

// List splits a comma separated variable, dropping empty entries.
func List(key string, def []string, log *logger.Logger) []string {
	raw := String(key, "", log)
	if raw == "" {
		return def
	}
	out := make([]string, 0, 4)
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
