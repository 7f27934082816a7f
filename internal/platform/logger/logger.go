package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

type Logger struct {
	SugaredLogger *zap.SugaredLogger
}

func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "test":
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: zapLogger.Sugar()}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Fatalw(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(sanitizeKVs(keysAndValues)...)}
}

var (
	redactOnce       sync.Once
	redactionEnabled bool
	hashSalt         string
)

type fieldAction int

const (
	keep fieldAction = iota
	redact
	hash
	mask
)

// fieldRules are matched in order against the lowercased key; the first fragment hit wins.
var fieldRules = []struct {
	fragment string
	action   fieldAction
}{
	{"signature", redact},
	{"token", redact},
	{"authorization", redact},
	{"password", redact},
	{"secret", redact},
	{"email", redact},
	{"payment_id", mask},
	{"student_id", hash},
	{"user_id", hash},
	{"actor_id", hash},
	{"ip_address", hash},
}

func actionFor(key string) fieldAction {
	if key == "" {
		return keep
	}
	for _, r := range fieldRules {
		if strings.Contains(key, r.fragment) {
			return r.action
		}
	}
	return keep
}

// capturedPayment reports whether a record carries a gateway signature. The order id is
// the other half of what the signature verifies, so it is withheld alongside it.
func capturedPayment(keys []string) bool {
	for _, k := range keys {
		if strings.Contains(k, "signature") {
			return true
		}
	}
	return false
}

func normKey(k interface{}) string {
	return strings.TrimSpace(strings.ToLower(toString(k)))
}

func sanitizeKVs(kv []interface{}) []interface{} {
	if len(kv) == 0 || !redactionOn() {
		return kv
	}
	keys := make([]string, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		keys = append(keys, normKey(kv[i]))
	}
	paired := capturedPayment(keys)

	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		out = append(out, toString(kv[i]), sanitizeField(keys[i/2], kv[i+1], paired))
	}
	return out
}

func sanitizeValue(key string, val interface{}) interface{} {
	return sanitizeField(key, val, false)
}

func sanitizeField(key string, val interface{}, paymentCaptured bool) interface{} {
	if paymentCaptured && strings.Contains(key, "order_id") {
		return "[REDACTED]"
	}
	switch actionFor(key) {
	case redact:
		return "[REDACTED]"
	case hash:
		return hashValue(val)
	case mask:
		return maskValue(val)
	}
	if m, ok := val.(map[string]interface{}); ok {
		return sanitizeMap(m)
	}
	return val
}

func sanitizeMap(m map[string]interface{}) map[string]interface{} {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, normKey(k))
	}
	paired := capturedPayment(keys)
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = sanitizeField(normKey(k), v, paired)
	}
	return out
}

// maskValue keeps the last four characters so support can match gateway references.
func maskValue(val interface{}) string {
	raw := toString(val)
	if len(raw) <= 4 {
		return strings.Repeat("*", len(raw))
	}
	return strings.Repeat("*", len(raw)-4) + raw[len(raw)-4:]
}

func hashValue(val interface{}) string {
	raw := toString(val)
	if raw == "" {
		return ""
	}
	h := sha256.New()
	if hashSalt != "" {
		_, _ = h.Write([]byte(hashSalt))
	}
	_, _ = h.Write([]byte(raw))
	sum := hex.EncodeToString(h.Sum(nil))
	return "hash:" + sum[:12]
}

func toString(v interface{}) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func redactionOn() bool {
	redactOnce.Do(func() {
		switch strings.TrimSpace(strings.ToLower(os.Getenv("LOG_REDACTION_ENABLED"))) {
		case "0", "false", "no", "off":
			redactionEnabled = false
		default:
			redactionEnabled = true
		}
		hashSalt = strings.TrimSpace(os.Getenv("LOG_HASH_SALT"))
	})
	return redactionEnabled
}
