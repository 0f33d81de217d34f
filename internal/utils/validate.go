package utils

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"ms-booking/internal/models"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		err := validate.RegisterValidation("vehicletype", func(fl validator.FieldLevel) bool {
			return models.IsVehicleType(fl.Field().String())
		})
		if err != nil {
			panic(fmt.Sprintf("utils: register vehicletype validation: %v", err))
		}
	})
	return validate
}

// Validate checks the `validate` tags on v and returns a readable error
// naming every failed field.
func Validate(v interface{}) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "vehicletype":
			msgs = append(msgs, fmt.Sprintf("%s must be one of %s", fe.Field(), strings.Join(models.VehicleTypes, ", ")))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
