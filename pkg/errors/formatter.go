package errors

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func msgForTag(tag string) string {
	switch tag {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "contains":
		return "Value is missing a required character"
	case "max":
		return "Value is too long or too large"
	default:
		return "Invalid value"
	}
}

func getJSONFieldName(structType reflect.Type, fieldName string) string {
	field, found := structType.FieldByName(fieldName)
	if !found {
		return fieldName
	}

	jsonTag := field.Tag.Get("json")
	if jsonTag == "" {
		return fieldName
	}

	parts := strings.Split(jsonTag, ",")
	return parts[0]
}

// FormatValidationErrors flattens validator errors into field/message pairs keyed
// by the JSON name of the offending field.
func FormatValidationErrors(err error, model interface{}) []ValidationErrorResponse {
	var errorsList []ValidationErrorResponse

	if err == nil {
		return errorsList
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errorsList
	}

	var structType reflect.Type
	if model != nil {
		structType = reflect.TypeOf(model)
		if structType.Kind() == reflect.Ptr {
			structType = structType.Elem()
		}
	}

	errorsList = make([]ValidationErrorResponse, len(validationErrors))

	for i, fieldError := range validationErrors {
		jsonField := fieldError.Field()
		if structType != nil {
			jsonField = getJSONFieldName(structType, fieldError.StructField())
		}

		message := msgForTag(fieldError.Tag())

		if fieldError.Param() != "" {
			switch fieldError.Tag() {
			case "contains":
				message = fmt.Sprintf("Must contain %q", fieldError.Param())
			case "max":
				message = fmt.Sprintf("Must not exceed %s characters", fieldError.Param())
			}
		}

		errorsList[i] = ValidationErrorResponse{
			Field:   jsonField,
			Message: message,
		}
	}

	return errorsList
}
