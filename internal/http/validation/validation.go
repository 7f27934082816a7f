// Package validation registers enrollment-specific binding tags on gin's validator.
package validation

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/yungbote/enrollment-backend/internal/domain"
)

const (
	TagEnrollmentType    = "enrollment_type"
	TagPaymentStatus     = "payment_status"
	TagEnrollmentStatus  = "enrollment_status"
	TagLearningPath      = "learning_path"
	TagInstallmentStatus = "installment_status"
	TagLessonStatus      = "lesson_status"
)

var (
	once    sync.Once
	initErr error
)

// Register installs the custom tags once per process.
func Register() error {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			initErr = fmt.Errorf("unexpected binding engine %T", binding.Validator.Engine())
			return
		}
		initErr = RegisterOn(v)
	})
	return initErr
}

func RegisterOn(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	rules := map[string]func(string) bool{
		TagEnrollmentType:    func(s string) bool { return domain.EnrollmentType(s).Valid() },
		TagPaymentStatus:     func(s string) bool { return domain.PaymentStatus(s).Valid() },
		TagEnrollmentStatus:  func(s string) bool { return domain.EnrollmentStatus(s).Valid() },
		TagLearningPath:      func(s string) bool { return domain.LearningPath(s).Valid() },
		TagInstallmentStatus: func(s string) bool { return domain.InstallmentStatus(s).Valid() },
		TagLessonStatus:      func(s string) bool { return domain.LessonStatus(s).Valid() },
	}
	for tag, ok := range rules {
		if err := v.RegisterValidation(tag, stringRule(ok)); err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return nil
}

// stringRule accepts empty values so optional fields can be combined with omitempty.
func stringRule(ok func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		f := fl.Field()
		if f.Kind() == reflect.Ptr {
			if f.IsNil() {
				return true
			}
			f = f.Elem()
		}
		if f.Kind() != reflect.String {
			return false
		}
		s := f.String()
		return s == "" || ok(s)
	}
}
