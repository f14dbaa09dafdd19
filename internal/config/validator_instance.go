package config

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	stepIDPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)
)

// validatorInstance returns the process-wide validator, registering the
// custom tags this package relies on ("action_name", "step_id") exactly
// once.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("action_name", func(fl validator.FieldLevel) bool {
			return actionNamePattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("step_id", func(fl validator.FieldLevel) bool {
			return stepIDPattern.MatchString(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}
