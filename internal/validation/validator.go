package validation

import (
	"leihlokal/internal/schedule"

	"github.com/go-playground/validator/v10"
)

// Validator checks request structs. It satisfies echo.Validator.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New()
	// isodate: строка даты, которую понимает schedule.ParseDate
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := schedule.ParseDate(fl.Field().String())
		return err == nil
	})
	return &Validator{v: v}
}

func (v *Validator) Validate(i interface{}) error {
	return v.v.Struct(i)
}
