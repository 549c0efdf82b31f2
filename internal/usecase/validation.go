package usecase

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is safe for concurrent use; validator caches struct metadata.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report field names the way they appear in config and JSON
	commonTags := []string{"json", "mapstructure"}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range commonTags {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})

	return v
}

// Validator exposes the shared struct validator to other layers (config, delivery)
func Validator() *validator.Validate {
	return validate
}
