package ginapi

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/Alp4ka/goresource"
)

// BindBody returns a BodyValidator that decodes the body into T and checks
// it with the `binding` struct tags gin uses. The trusted body is T encoded
// back, so keys T does not declare are dropped.
func BindBody[T any]() goresource.BodyValidator {
	return goresource.BodyValidatorFunc(func(_ context.Context, body goresource.Object) (goresource.Object, error) {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}

		var v T
		if err = json.Unmarshal(raw, &v); err != nil {
			return nil, &goresource.ValidationError{Fields: decodeFailure(err)}
		}

		if err = binding.Validator.ValidateStruct(&v); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				return nil, &goresource.ValidationError{Fields: fieldFailures[T](verrs)}
			}
			return nil, err
		}

		if raw, err = json.Marshal(v); err != nil {
			return nil, err
		}

		out := goresource.Object{}
		if err = json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}

		return out, nil
	})
}

func decodeFailure(err error) map[string]string {
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) && te.Field != "" {
		return map[string]string{te.Field: "expected " + te.Type.String()}
	}

	return map[string]string{"": err.Error()}
}

// fieldFailures keys the failed validation tags by the JSON name of the
// struct field.
func fieldFailures[T any](verrs validator.ValidationErrors) map[string]string {
	typ := reflect.TypeOf((*T)(nil)).Elem()

	ret := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		ret[jsonName(typ, fe.StructField())] = fe.Tag()
	}

	return ret
}

func jsonName(typ reflect.Type, field string) string {
	if typ.Kind() != reflect.Struct {
		return field
	}

	sf, ok := typ.FieldByName(field)
	if !ok {
		return field
	}

	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return field
	}

	return name
}
