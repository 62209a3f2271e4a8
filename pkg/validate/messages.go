package validate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// message returns the text shown for a failed rule: the field's message tag
// when it has one, a default for the rule otherwise.
func message(root reflect.Type, fe validator.FieldError) string {
	if f, ok := root.FieldByName(fe.StructField()); ok {
		if msg := f.Tag.Get("message"); msg != "" {
			return msg
		}
	}

	param := fe.Param()
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return bound("at least", param, fe.Kind())
	case "max":
		return bound("at most", param, fe.Kind())
	case "len":
		return bound("exactly", param, fe.Kind())
	case "email":
		return "Invalid email address"
	case "url", "http_url":
		return "Invalid URL"
	case "uuid", "uuid4":
		return "Invalid UUID"
	case "oneof":
		return "Must be one of " + strings.Join(strings.Fields(param), ", ")
	default:
		return fmt.Sprintf("Failed the %s rule", fe.Tag())
	}
}

func bound(relation, n string, kind reflect.Kind) string {
	switch kind {
	case reflect.String:
		return fmt.Sprintf("Must be %s %s characters", relation, n)
	case reflect.Slice, reflect.Array, reflect.Map:
		return fmt.Sprintf("Must contain %s %s items", relation, n)
	default:
		return fmt.Sprintf("Must be %s %s", relation, n)
	}
}
