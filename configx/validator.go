package configx

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"go.eggybyte.com/busnode/core/errors"
)

// ValidatorOption configures the validator.
type ValidatorOption func(*validator.Validate)

// NewValidator creates a validator that reports fields by their env key.
func NewValidator(opts ...ValidatorOption) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if key := f.Tag.Get("env"); key != "" {
			return key
		}
		return f.Name
	})
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateStruct validates target's `validate` tags. Failures come back as a
// CONFIGURATION error listing every offending key.
func ValidateStruct(v *validator.Validate, target any) error {
	if v == nil {
		v = NewValidator()
	}

	err := v.Struct(target)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return errors.Configuration("configx.Validate", "validate configuration", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	details := make([]any, 0, 2*len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
		details = append(details, fe.Field(), fe.Tag())
	}
	return errors.Build(errors.CodeConfiguration).
		WithOp("configx.Validate").
		WithMsgf("invalid configuration: %s", strings.Join(msgs, "; ")).
		WithErr(err).
		WithDetails(details...).
		Err()
}
