package ginapi

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alp4ka/goresource"
)

type tSignup struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Age   int    `json:"age,omitempty" binding:"omitempty,gte=18"`
}

func Test_BindBody(t *testing.T) {
	v := BindBody[tSignup]()

	tests := []struct {
		name       string
		body       goresource.Object
		want       goresource.Object
		wantFields map[string]string
	}{
		{
			name: "valid drops unknown keys",
			body: goresource.Object{"name": "bob", "email": "bob@example.com", "admin": true},
			want: goresource.Object{"name": "bob", "email": "bob@example.com"},
		},
		{
			name: "keeps declared values",
			body: goresource.Object{"name": "bob", "email": "bob@example.com", "age": 30},
			want: goresource.Object{"name": "bob", "email": "bob@example.com", "age": float64(30)},
		},
		{
			name:       "failed tags keyed by json name",
			body:       goresource.Object{"email": "not-an-email", "age": 12},
			wantFields: map[string]string{"name": "required", "email": "email", "age": "gte"},
		},
		{
			name:       "wrong type",
			body:       goresource.Object{"name": "bob", "email": "bob@example.com", "age": "old"},
			wantFields: map[string]string{"age": "expected int"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Validate(context.Background(), tt.body)
			if tt.wantFields != nil {
				var ve *goresource.ValidationError
				require.ErrorAs(t, err, &ve)
				require.Equal(t, tt.wantFields, ve.Fields)
				require.True(t, errors.Is(err, goresource.ErrPayloadInvalid))
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func Test_BindBody_Route(t *testing.T) {
	res := &tResource{}
	r := newTestEngine(t)
	Mount(r, "/users", res, goresource.Tags{Model: "users"},
		goresource.ValidateBody(BindBody[tSignup](), zerolog.Nop()))

	w := serve(r, http.MethodPost, "/users", `{"name":"bob"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"payload invalid","details":{"email":"required"}}`, w.Body.String())
	require.Empty(t, res.op)

	w = serve(r, http.MethodPost, "/users", `{"name":"bob","email":"bob@example.com","role":"admin"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.True(t, res.req.BodyValidated())
	require.Equal(t, goresource.Object{"name": "bob", "email": "bob@example.com"}, res.req.Body)
}
