package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowStore_Lifecycle(t *testing.T) {
	clock := newFakeClock()
	fs := NewFlowStore(10*time.Minute, clock.Now)
	defer fs.Stop()

	flow := &Flow{ClientID: "c", RedirectURI: testRedirectURI}
	state, err := fs.Begin(flow)
	require.NoError(t, err)
	assert.Equal(t, FlowPending, flow.Status)
	assert.Len(t, state, 43)

	advanced, err := fs.Advance(state, "upstream-code")
	require.NoError(t, err)
	assert.Same(t, flow, advanced)
	assert.Equal(t, FlowCodeIssued, flow.Status)
	assert.Equal(t, "upstream-code", flow.UpstreamCode)
	require.NotEmpty(t, flow.Code)

	_, err = fs.Advance(state, "again")
	assert.ErrorIs(t, err, ErrFlowNotFound, "state is single use")

	redeemed, err := fs.Redeem(flow.Code)
	require.NoError(t, err)
	assert.Equal(t, FlowExchanged, redeemed.Status)

	_, err = fs.Redeem(flow.Code)
	assert.ErrorIs(t, err, ErrFlowNotFound, "code is single use")
	assert.Equal(t, 0, fs.Count())
}

func TestFlowStore_Expiry(t *testing.T) {
	clock := newFakeClock()
	fs := NewFlowStore(10*time.Minute, clock.Now)
	defer fs.Stop()

	state, err := fs.Begin(&Flow{ClientID: "c"})
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	_, err = fs.Advance(state, "code")
	assert.ErrorIs(t, err, ErrFlowExpired)
}

func TestFlowStore_Cleanup(t *testing.T) {
	clock := newFakeClock()
	fs := NewFlowStore(time.Minute, clock.Now)
	defer fs.Stop()

	_, err := fs.Begin(&Flow{ClientID: "old"})
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)
	_, err = fs.Begin(&Flow{ClientID: "new"})
	require.NoError(t, err)

	fs.cleanup()
	assert.Equal(t, 1, fs.Count())
}

func TestFlowStore_StopIsIdempotent(t *testing.T) {
	fs := NewFlowStore(time.Minute, nil)
	fs.Stop()
	assert.NotPanics(t, fs.Stop)
}

func TestFlowStatus_String(t *testing.T) {
	assert.Equal(t, "pending", FlowPending.String())
	assert.Equal(t, "code_issued", FlowCodeIssued.String())
	assert.Equal(t, "exchanged", FlowExchanged.String())
	assert.Equal(t, "unknown", FlowStatus(42).String())
}
