package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMatchesOnKind(t *testing.T) {
	wrapped := fmt.Errorf("reserve: %w", Wrap(ErrNoSeatsAvailable, stderrors.New("full")))

	assert.True(t, stderrors.Is(wrapped, ErrNoSeatsAvailable))
	assert.False(t, stderrors.Is(wrapped, ErrEventNotFound))
	assert.True(t, IsDomain(wrapped))
	assert.Equal(t, KindNoSeatsAvailable, KindOf(wrapped))
	assert.Equal(t, http.StatusConflict, StatusCode(wrapped))
}

func TestRPCRoundTripKeepsType(t *testing.T) {
	payload, err := json.Marshal(ToRPC(ErrEventNotFound))
	require.NoError(t, err)

	var wire RPCError
	require.NoError(t, json.Unmarshal(payload, &wire))

	rebuilt := FromRPC(&wire)
	assert.True(t, stderrors.Is(rebuilt, ErrEventNotFound))
	assert.Equal(t, http.StatusNotFound, StatusCode(rebuilt))
	assert.Equal(t, "Event not found", wire.Message)
}

func TestToRPCHidesStorageDetail(t *testing.T) {
	r := ToRPC(StorageFailure(stderrors.New("pq: could not obtain lock on row in relation \"events\"")))

	assert.Equal(t, KindInternal, r.Kind)
	assert.Equal(t, http.StatusInternalServerError, r.StatusCode)
	assert.NotContains(t, r.Message, "pq:")

	r = ToRPC(stderrors.New("boom"))
	assert.Equal(t, KindInternal, r.Kind)
}

func TestMalformedCarriesReason(t *testing.T) {
	r := ToRPC(Malformed(stderrors.New("requesterId is required")))

	assert.Equal(t, KindMalformedRequest, r.Kind)
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)
	assert.Contains(t, r.Message, "requesterId is required")
}

func TestStatusCodeDefaults(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusCode(stderrors.New("x")))
	assert.Equal(t, http.StatusGatewayTimeout, StatusCode(ErrTimeout))
	assert.Nil(t, ToRPC(nil))
	assert.NoError(t, FromRPC(nil))
}
