package goresource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"
)

// Check validates or transforms one body value. present reports whether the
// key was in the body at all. The returned value replaces the input.
//
// A returned *StorageError aborts validation as a server failure; any other
// error rejects the field.
type Check func(ctx context.Context, value any, present bool) (any, error)

// BodyValidator turns an untrusted body into a trusted one.
type BodyValidator interface {
	Validate(ctx context.Context, body Object) (Object, error)
}

type BodyValidatorFunc func(ctx context.Context, body Object) (Object, error)

func (f BodyValidatorFunc) Validate(ctx context.Context, body Object) (Object, error) {
	return f(ctx, body)
}

// Fields validates a body key by key. Keys without checks are dropped from
// the output. Failed fields are collected into one *ValidationError.
func Fields(checks map[string][]Check) BodyValidator {
	keys := lo.Keys(checks)
	slices.Sort(keys)

	return BodyValidatorFunc(func(ctx context.Context, body Object) (Object, error) {
		out := Object{}
		failed := map[string]string{}

		for _, key := range keys {
			value, present := body[key]

			var err error
			for _, check := range checks[key] {
				if value, err = check(ctx, value, present); err != nil {
					break
				}
				present = present || value != nil
			}

			var se *StorageError
			switch {
			case errors.As(err, &se):
				return nil, err
			case err != nil:
				failed[key] = err.Error()
			case present:
				out[key] = value
			}
		}

		if len(failed) > 0 {
			return nil, &ValidationError{Fields: failed}
		}

		return out, nil
	})
}

var (
	errRequired = errors.New("required")
	errExists   = errors.New("exists")
	errUnique   = errors.New("unique")
)

// Required rejects absent, nil and empty string values.
func Required() Check {
	return func(_ context.Context, value any, present bool) (any, error) {
		if !present || value == nil || value == "" {
			return nil, errRequired
		}

		return value, nil
	}
}

// Default supplies v for absent values.
func Default(v any) Check {
	return func(_ context.Context, value any, present bool) (any, error) {
		if !present || value == nil {
			return v, nil
		}

		return value, nil
	}
}

// String rejects present values that are not strings.
func String() Check {
	return func(_ context.Context, value any, present bool) (any, error) {
		if !present {
			return value, nil
		}
		if _, ok := value.(string); !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}

		return value, nil
	}
}

// UUID replaces the value with a fresh v4 uuid.
func UUID() Check {
	return func(context.Context, any, bool) (any, error) {
		return uuid.NewString(), nil
	}
}

// IsUUID rejects present values that are not uuids and normalizes the rest.
func IsUUID() Check {
	return func(_ context.Context, value any, present bool) (any, error) {
		if !present {
			return value, nil
		}

		s, _ := value.(string)
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid uuid: %w", err)
		}

		return id.String(), nil
	}
}

// DefaultPasswordCost is the bcrypt cost used by Password.
const DefaultPasswordCost = 12

// Password replaces a present string with its bcrypt hash so it can be
// verified but not read back.
func Password(cost int) Check {
	if cost == 0 {
		cost = DefaultPasswordCost
	}

	return func(_ context.Context, value any, present bool) (any, error) {
		if !present {
			return value, nil
		}

		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(s), cost)
		if err != nil {
			return nil, err
		}

		return string(hash), nil
	}
}

// Exists rejects values that match no record of model on field.
func Exists(model Model, field string) Check {
	return countCheck(model, field, func(n int) error {
		if n < 1 {
			return errExists
		}
		return nil
	})
}

// Unique rejects values already stored in model on field.
func Unique(model Model, field string) Check {
	return countCheck(model, field, func(n int) error {
		if n > 0 {
			return errUnique
		}
		return nil
	})
}

func countCheck(model Model, field string, verdict func(n int) error) Check {
	return func(ctx context.Context, value any, present bool) (any, error) {
		if !present {
			return value, nil
		}

		n, err := model.Count(ctx, SearchParams{Filters: Filter{field: value}})
		if err != nil {
			var se *StorageError
			if errors.As(err, &se) {
				return nil, err
			}
			return nil, storageError("count", err)
		}

		if err = verdict(n); err != nil {
			return nil, err
		}

		return value, nil
	}
}

// ValidateBody runs v on object bodies of POST, PUT and PATCH requests,
// replaces the body with the result and marks it trusted. Rejected bodies
// answer 409 with per-field details.
func ValidateBody(v BodyValidator, log zerolog.Logger) RequestFilter {
	return func(ctx context.Context, req *Request) *Response {
		switch req.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			return nil
		}

		body, ok := req.BodyObject()
		if !ok {
			return abort(http.StatusConflict, ErrPayloadInvalid)
		}

		out, err := v.Validate(ctx, body)
		if err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				log.Debug().Str("kind", "client").Str("route", req.Route.Path).Interface("fields", ve.Fields).Msg("body rejected")
				resp := failure(http.StatusConflict, ErrPayloadInvalid.Error(), ve.Fields)
				return &resp
			}

			log.Error().Err(err).Str("route", req.Route.Path).Msg("body validation failed")
			return abort(http.StatusInternalServerError, err)
		}

		req.Body = out
		req.MarkBodyValidated()

		return nil
	}
}
