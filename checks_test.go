package goresource

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func Test_Fields_Validate(t *testing.T) {
	users := &tStubModel{total: 1}
	ctx := context.Background()

	v := Fields(map[string][]Check{
		"name":    {Required(), String()},
		"email":   {Required(), Unique(users, "email")},
		"role":    {Default("member")},
		"managed": {Exists(users, "id")},
	})

	t.Run("collects failures", func(t *testing.T) {
		_, err := v.Validate(ctx, Object{"name": 1, "email": "a@b.c"})

		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		require.ErrorIs(t, err, ErrPayloadInvalid)
		require.Equal(t, map[string]string{
			"name":  "expected string, got int",
			"email": "unique",
		}, ve.Fields)
	})

	t.Run("drops unknown keys and applies defaults", func(t *testing.T) {
		free := Fields(map[string][]Check{
			"name": {Required()},
			"role": {Default("member")},
			"note": {String()},
		})

		got, err := free.Validate(ctx, Object{"name": "x", "admin": true})
		require.NoError(t, err)
		require.Equal(t, Object{"name": "x", "role": "member"}, got)
	})

	t.Run("storage failures abort", func(t *testing.T) {
		broken := &tStubModel{countErr: errors.New("connection reset")}
		f := Fields(map[string][]Check{"ref": {Exists(broken, "id")}})

		_, err := f.Validate(ctx, Object{"ref": 3})

		var se *StorageError
		require.ErrorAs(t, err, &se)
		require.Equal(t, "count", se.Op)
	})
}

func Test_Exists(t *testing.T) {
	ctx := context.Background()

	model := &tStubModel{total: 0}
	_, err := Exists(model, "id")(ctx, 9, true)
	require.EqualError(t, err, "exists")
	require.Equal(t, Filter{"id": 9}, model.lastCount.Filters)

	model.total = 2
	got, err := Exists(model, "id")(ctx, 9, true)
	require.NoError(t, err)
	require.Equal(t, 9, got)

	// Absent values are not looked up.
	_, err = Exists(model, "id")(ctx, nil, false)
	require.NoError(t, err)
	require.Equal(t, 2, model.callCount("count"))
}

func Test_UUID(t *testing.T) {
	got, err := UUID()(context.Background(), "ignored", true)
	require.NoError(t, err)
	_, err = uuid.Parse(got.(string))
	require.NoError(t, err)

	got, err = IsUUID()(context.Background(), "F47AC10B-58CC-4372-A567-0E02B2C3D479", true)
	require.NoError(t, err)
	require.Equal(t, "f47ac10b-58cc-4372-a567-0e02b2c3d479", got)

	_, err = IsUUID()(context.Background(), "nope", true)
	require.Error(t, err)
}

func Test_Password(t *testing.T) {
	got, err := Password(bcrypt.MinCost)(context.Background(), "s3cret", true)
	require.NoError(t, err)

	hash, ok := got.(string)
	require.True(t, ok)
	assert.NotEqual(t, "s3cret", hash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))

	_, err = Password(bcrypt.MinCost)(context.Background(), 42, true)
	require.Error(t, err)
}

func Test_ValidateBody(t *testing.T) {
	filter := ValidateBody(Fields(map[string][]Check{"name": {Required()}}), zerolog.Nop())
	ctx := context.Background()

	req := NewRequest(http.MethodPost, Route{})
	req.Body = Object{"name": "x", "extra": 1}

	require.Nil(t, filter(ctx, req))
	require.True(t, req.BodyValidated())
	require.Equal(t, Object{"name": "x"}, req.Body)

	req = NewRequest(http.MethodPatch, Route{})
	req.Body = Object{}

	resp := filter(ctx, req)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusConflict, resp.Status)
	require.Equal(t, ErrorBody{Error: ErrPayloadInvalid.Error(), Details: map[string]string{"name": "required"}}, resp.Body)
	require.False(t, req.BodyValidated())

	req = NewRequest(http.MethodPost, Route{})
	req.Body = []any{}

	resp = filter(ctx, req)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusConflict, resp.Status)

	req = NewRequest(http.MethodGet, Route{})
	require.Nil(t, filter(ctx, req))
	require.False(t, req.BodyValidated())

	boom := ValidateBody(BodyValidatorFunc(func(context.Context, Object) (Object, error) {
		return nil, errors.New("boom")
	}), zerolog.Nop())
	req = NewRequest(http.MethodPut, Route{})
	req.Body = Object{}

	resp = boom(ctx, req)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusInternalServerError, resp.Status)
}
