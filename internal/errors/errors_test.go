package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorFormatting(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewNetworkError("download quota file", cause)

	assert.Equal(t, "[NETWORK] download quota file: connection refused", err.Error())
	assert.Equal(t, cause, err.Unwrap())
}

func TestAppErrorWithoutCause(t *testing.T) {
	err := NewNotFoundError("holdings snapshot")
	assert.Equal(t, "[NOT_FOUND] holdings snapshot", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestAppErrorContext(t *testing.T) {
	err := NewParsingError("bad CNPJ", nil).
		WithContext("row", 17).
		WithContext("file", "inf_diario_202407.csv")

	assert.Equal(t, 17, err.Context["row"])
	assert.Equal(t, "inf_diario_202407.csv", err.Context["file"])
}

func TestIsTypeThroughWrapping(t *testing.T) {
	base := NewConfigError("profile weights", nil)
	wrapped := fmt.Errorf("load config: %w", base)

	assert.True(t, IsType(wrapped, ErrTypeConfig))
	assert.False(t, IsType(wrapped, ErrTypeNetwork))
	assert.False(t, IsType(fmt.Errorf("plain"), ErrTypeConfig))
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ProfileNotFoundError("agressivo"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "PROFILE_NOT_FOUND", resp.Error.ErrorCode)
	assert.Equal(t, "agressivo", resp.Error.Details)
}

func TestPredefinedErrorStatusCodes(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ErrInvalidRequest.StatusCode)
	assert.Equal(t, http.StatusNotFound, ErrRunNotFound.StatusCode)
	assert.Equal(t, http.StatusInternalServerError, ErrInternalServer.StatusCode)
}
