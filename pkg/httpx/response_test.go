package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/teamhub/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestWriteOK(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.WriteOK(rec, http.StatusCreated, "created", map[string]string{"id": "1"})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.JSONEq(t, `{"success":true,"message":"created","data":{"id":"1"}}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Email string `json:"email"`
	}

	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"valid", `{"email":"a@b.c"}`, false},
		{"unknown field", `{"email":"a@b.c","x":1}`, true},
		{"trailing data", `{"email":"a@b.c"}{}`, true},
		{"not json", `email=a`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b body
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.in))
			err := httpx.DecodeJSON(httptest.NewRecorder(), req, &b)
			if tt.wantErr {
				require.ErrorIs(t, err, httpx.ErrBadRequestBody)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "a@b.c", b.Email)
		})
	}
}
