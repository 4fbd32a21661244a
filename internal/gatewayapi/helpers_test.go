package gatewayapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkincode/wagate/internal/wamanager"
)

func recordFailErr(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, failErr(c, err))
	return rec
}

func TestFailErrMapping(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
	}{
		{wamanager.ErrNotFound, http.StatusNotFound},
		{wamanager.ErrAlreadyExists, http.StatusConflict},
		{wamanager.ErrNotConnected, http.StatusPreconditionFailed},
		{&wamanager.DeliveryError{Op: "send text", Cause: errors.New("socket closed")}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := recordFailErr(t, tc.err)
		assert.Equal(t, tc.wantStatus, rec.Code, "error %v", tc.err)
	}
}

func TestFailErrUnwrapsWrappedSentinels(t *testing.T) {
	wrapped := &wamanager.DeliveryError{Op: "send media", Cause: errors.New("timeout")}
	rec := recordFailErr(t, wrapped)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "DELIVERY_FAILED")
}

func TestWarningPayload(t *testing.T) {
	out := warningPayload(map[string]interface{}{"done": true}, nil)
	_, has := out["warning"]
	assert.False(t, has)

	out = warningPayload(nil, &wamanager.TeardownWarning{InstanceID: 1, Detail: "destroy: timeout"})
	assert.Contains(t, out["warning"], "destroy: timeout")
}
