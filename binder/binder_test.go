package binder_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/binder"
)

type request struct {
	ID    uuid.UUID `path:"id"`
	Kind  string    `path:"kind"`
	Days  int       `query:"days"`
	Full  bool      `query:"full"`
	Role  string    `json:"role"`
	Notes string    `json:"notes"`
}

func TestJSON(t *testing.T) {
	t.Parallel()

	t.Run("decodes body", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"role":"admin"}`))
		r.Header.Set("Content-Type", "application/json; charset=utf-8")

		var req request
		require.NoError(t, binder.JSON()(r, &req))
		assert.Equal(t, "admin", req.Role)
	})

	t.Run("no body is not applicable", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		var req request
		assert.ErrorIs(t, binder.JSON()(r, &req), binder.ErrNotApplicable)
	})

	t.Run("wrong content type", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`role=admin`))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		var req request
		assert.ErrorIs(t, binder.JSON()(r, &req), binder.ErrUnsupportedMediaType)
	})

	t.Run("unknown fields rejected", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"owner":true}`))
		r.Header.Set("Content-Type", "application/json")
		var req request
		assert.ErrorIs(t, binder.JSON()(r, &req), binder.ErrInvalidJSON)
	})
}

func TestPathAndQuery(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	params := map[string]string{"id": id.String(), "kind": "invoice"}
	extract := func(_ *http.Request, key string) string { return params[key] }

	r := httptest.NewRequest(http.MethodGet, "/?days=30&full=true", nil)

	var req request
	require.NoError(t, binder.Path(extract)(r, &req))
	require.NoError(t, binder.Query()(r, &req))

	assert.Equal(t, id, req.ID)
	assert.Equal(t, "invoice", req.Kind)
	assert.Equal(t, 30, req.Days)
	assert.True(t, req.Full)

	bad := httptest.NewRequest(http.MethodGet, "/?days=many", nil)
	assert.ErrorIs(t, binder.Query()(bad, &req), binder.ErrInvalidQuery)

	badID := func(_ *http.Request, key string) string { return "not-a-uuid" }
	assert.ErrorIs(t, binder.Path(badID)(r, &req), binder.ErrInvalidPath)
}
