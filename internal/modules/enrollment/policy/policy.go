// Package policy carries the enrollment defaults: validity window, EMI grace handling and
// completion criteria. The embedded policy.yaml can be replaced with a file named by
// ENROLLMENT_POLICY_YAML.
package policy

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/enrollment-backend/internal/domain"
	"github.com/yungbote/enrollment-backend/internal/platform/logger"
)

const PolicyEnv = "ENROLLMENT_POLICY_YAML"

//go:embed policy.yaml
var policyFS embed.FS

type Policy struct {
	ValidityMonths      int
	DefaultCurrency     string
	DefaultLearningPath domain.LearningPath
	GracePeriodDays     int
	MaxMissedPayments   int
	DefaultInterestRate float64
	CompletionCriteria  domain.CompletionCriteria
}

// Fallback is used when neither the override nor the embedded file can be parsed.
func Fallback() Policy {
	return Policy{
		ValidityMonths:      12,
		DefaultCurrency:     "INR",
		DefaultLearningPath: domain.LearningPathSequential,
		GracePeriodDays:     5,
		MaxMissedPayments:   3,
		CompletionCriteria:  domain.DefaultCompletionCriteria(),
	}
}

type yamlPolicy struct {
	Policy     string `yaml:"policy"`
	Version    int    `yaml:"version"`
	Enrollment struct {
		ValidityMonths      *int   `yaml:"validity_months"`
		DefaultCurrency     string `yaml:"default_currency"`
		DefaultLearningPath string `yaml:"default_learning_path"`
	} `yaml:"enrollment"`
	EMI struct {
		GracePeriodDays     *int     `yaml:"grace_period_days"`
		MaxMissedPayments   *int     `yaml:"max_missed_payments"`
		DefaultInterestRate *float64 `yaml:"default_interest_rate"`
	} `yaml:"emi"`
	CompletionCriteria struct {
		RequiredProgress    *int  `yaml:"required_progress"`
		RequiredAssignments *bool `yaml:"required_assignments"`
		RequiredQuizzes     *bool `yaml:"required_quizzes"`
	} `yaml:"completion_criteria"`
}

var (
	loadOnce sync.Once
	loaded   Policy
)

// Load reads the policy once per process. Failures are logged and fall back to the
// embedded defaults.
func Load(log *logger.Logger) Policy {
	loadOnce.Do(func() {
		loaded = load(log)
	})
	return loaded
}

func load(log *logger.Logger) Policy {
	if path := strings.TrimSpace(os.Getenv(PolicyEnv)); path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			var p Policy
			if p, err = Parse(data); err == nil {
				return p
			}
		}
		if log != nil {
			log.Warn("enrollment policy override invalid; using embedded defaults", "path", path, "error", err)
		}
	}
	data, err := policyFS.ReadFile("policy.yaml")
	if err == nil {
		var p Policy
		if p, err = Parse(data); err == nil {
			return p
		}
	}
	if log != nil {
		log.Error("embedded enrollment policy invalid; using fallback", "error", err)
	}
	return Fallback()
}

// Parse decodes a policy document. Missing keys keep their fallback values.
func Parse(data []byte) (Policy, error) {
	var doc yamlPolicy
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Policy{}, err
	}
	if strings.TrimSpace(doc.Policy) != "enrollment" {
		return Policy{}, fmt.Errorf("unexpected policy: %q", doc.Policy)
	}

	p := Fallback()
	if v := doc.Enrollment.ValidityMonths; v != nil {
		p.ValidityMonths = *v
	}
	if v := strings.TrimSpace(doc.Enrollment.DefaultCurrency); v != "" {
		p.DefaultCurrency = strings.ToUpper(v)
	}
	if v := strings.TrimSpace(doc.Enrollment.DefaultLearningPath); v != "" {
		p.DefaultLearningPath = domain.LearningPath(v)
	}
	if v := doc.EMI.GracePeriodDays; v != nil {
		p.GracePeriodDays = *v
	}
	if v := doc.EMI.MaxMissedPayments; v != nil {
		p.MaxMissedPayments = *v
	}
	if v := doc.EMI.DefaultInterestRate; v != nil {
		p.DefaultInterestRate = *v
	}
	if v := doc.CompletionCriteria.RequiredProgress; v != nil {
		p.CompletionCriteria.RequiredProgress = *v
	}
	if v := doc.CompletionCriteria.RequiredAssignments; v != nil {
		p.CompletionCriteria.RequiredAssignments = *v
	}
	if v := doc.CompletionCriteria.RequiredQuizzes; v != nil {
		p.CompletionCriteria.RequiredQuizzes = *v
	}
	return p, p.validate()
}

func (p Policy) validate() error {
	switch {
	case p.ValidityMonths < 1:
		return errors.New("validity_months must be at least 1")
	case p.GracePeriodDays < 0:
		return errors.New("grace_period_days must not be negative")
	case p.MaxMissedPayments < 0:
		return errors.New("max_missed_payments must not be negative")
	case p.DefaultInterestRate < 0:
		return errors.New("default_interest_rate must not be negative")
	case p.CompletionCriteria.RequiredProgress < 0 || p.CompletionCriteria.RequiredProgress > 100:
		return errors.New("required_progress must be within 0..100")
	case !p.DefaultLearningPath.Valid():
		return fmt.Errorf("unknown learning path: %s", p.DefaultLearningPath)
	}
	return nil
}
