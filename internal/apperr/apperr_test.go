package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesByKind(t *testing.T) {
	err := fmt.Errorf("load class: %w", New(KindNotFound, "class not found"))

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "class not found", Message(err))
}

func TestWrap_HidesCauseFromClient(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.3:27017: connection refused")
	err := Unavailable("store unavailable", cause)

	assert.ErrorIs(t, err, cause)
	body := Body(err)["error"].(map[string]string)
	assert.Equal(t, "upstream_unavailable", body["kind"])
	assert.Equal(t, "store unavailable", body["message"])
	assert.NotContains(t, body["message"], "10.0.0.3")
}

func TestKindOf_Unclassified(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "internal error", Message(err))
	assert.Equal(t, http.StatusInternalServerError, Status(KindOf(err)))
}

func TestStatus(t *testing.T) {
	cases := map[Kind]int{
		KindUnauthorized:        http.StatusUnauthorized,
		KindForbidden:           http.StatusForbidden,
		KindNotFound:            http.StatusNotFound,
		KindAlreadySettled:      http.StatusConflict,
		KindSeatsExhausted:      http.StatusConflict,
		KindInvalidInput:        http.StatusBadRequest,
		KindPartialSettlement:   http.StatusAccepted,
		KindUpstreamUnavailable: http.StatusServiceUnavailable,
	}
	for kind, want := range cases {
		assert.Equal(t, want, Status(kind), string(kind))
	}
}
