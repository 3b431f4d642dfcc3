package utils_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"depotbook/src/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	testCases := []struct {
		err    error
		kind   utils.ErrorKind
		status int
	}{
		{utils.ValidationError("bad %s", "input"), utils.KindValidation, http.StatusBadRequest},
		{utils.AuthorizationError("no"), utils.KindAuthorization, http.StatusForbidden},
		{utils.NotFoundError("gone"), utils.KindNotFound, http.StatusNotFound},
		{utils.ConflictError("twice"), utils.KindConflict, http.StatusConflict},
		{utils.InsufficientLotsError("short"), utils.KindInsufficientLots, http.StatusUnprocessableEntity},
		{utils.ConstraintError("range"), utils.KindConstraint, http.StatusUnprocessableEntity},
	}
	for _, tc := range testCases {
		t.Run(string(tc.kind), func(t *testing.T) {
			assert.Equal(t, tc.kind, utils.KindOf(tc.err))

			wrapped := fmt.Errorf("context: %w", tc.err)
			assert.Equal(t, tc.kind, utils.KindOf(wrapped))
			assert.True(t, errors.Is(wrapped, &utils.Error{Kind: tc.kind}))

			var appErr *utils.Error
			require.True(t, errors.As(wrapped, &appErr))
			assert.Equal(t, tc.status, appErr.StatusCode())
		})
	}

	assert.Equal(t, "validation: bad input", utils.ValidationError("bad %s", "input").Error())
	assert.Equal(t, utils.ErrorKind(""), utils.KindOf(errors.New("plain")))
	assert.False(t, errors.Is(utils.NotFoundError("a"), &utils.Error{Kind: utils.KindNotFound, Message: "b"}))
}

func TestWriteError(t *testing.T) {
	t.Run("Application error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		utils.WriteError(rec, utils.ConflictError("depot broker/D1 already exists"))

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body struct {
			Error utils.Error `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, utils.KindConflict, body.Error.Kind)
		assert.Equal(t, "depot broker/D1 already exists", body.Error.Message)
	})

	t.Run("Unknown errors do not leak", func(t *testing.T) {
		rec := httptest.NewRecorder()
		utils.WriteError(rec, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})
}
