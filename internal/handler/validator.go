package handler

import (
    "errors"
    "reflect"
    "strings"

    "github.com/go-playground/validator/v10"

    "github.com/iliyamo/field-operations/internal/apperr"
)

// Validator adapts go-playground/validator to echo.Validator. Failures are
// reported as a validation error naming the first bad field by its JSON
// name.
type Validator struct {
    v *validator.Validate
}

func NewValidator() *Validator {
    v := validator.New(validator.WithRequiredStructEnabled())
    v.RegisterTagNameFunc(func(f reflect.StructField) string {
        name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
        if name == "-" {
            return ""
        }
        if name == "" {
            // form fields of multipart requests
            name = strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
        }
        return name
    })
    return &Validator{v: v}
}

func (cv *Validator) Validate(i any) error {
    err := cv.v.Struct(i)
    if err == nil {
        return nil
    }
    var ve validator.ValidationErrors
    if errors.As(err, &ve) && len(ve) > 0 {
        fe := ve[0]
        return apperr.Invalid(fe.Field(), "failed %q check", fe.Tag())
    }
    return apperr.Invalid("body", "%v", err)
}
