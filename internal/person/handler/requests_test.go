package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "vetclinic/pkg/domain-errors"
)

func TestUpdatePersonRequestValidate(t *testing.T) {
	five, six := int64(5), int64(6)

	assert.NoError(t, UpdatePersonRequest{Name: "x"}.Validate(5))
	assert.NoError(t, UpdatePersonRequest{ID: &five, Name: "x"}.Validate(5))

	err := UpdatePersonRequest{ID: &six, Name: "x"}.Validate(5)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestDecodeJSON(t *testing.T) {
	decode := func(body string) (CreatePersonRequest, error) {
		var req CreatePersonRequest
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		err := decodeJSON(httptest.NewRecorder(), r, &req)
		return req, err
	}

	t.Run("null id means generated", func(t *testing.T) {
		req, err := decode(`{"id": null, "name": "John"}`)
		require.NoError(t, err)
		assert.Nil(t, req.ID)
		assert.Equal(t, "John", req.Name)
	})

	t.Run("unknown fields are ignored", func(t *testing.T) {
		req, err := decode(`{"name": "John", "species": "cat"}`)
		require.NoError(t, err)
		assert.Equal(t, "John", req.Name)
	})

	t.Run("trailing data is rejected", func(t *testing.T) {
		_, err := decode(`{"name": "John"} {"name": "Again"}`)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("id overflow is rejected", func(t *testing.T) {
		_, err := decode(`{"id": 9223372036854775808, "name": "Big"}`)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("oversized body is rejected", func(t *testing.T) {
		_, err := decode(`{"name": "` + strings.Repeat("a", maxBodyBytes) + `"}`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too large")
	})
}
