package asset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAsset(t *testing.T) {
	t.Run("creates asset with valid inputs", func(t *testing.T) {
		a, err := NewAsset("DC-SRV-0001", "SN-AAA-111", "web server", "server")

		require.NoError(t, err)
		assert.Equal(t, "DC-SRV-0001", a.Tag)
		assert.Equal(t, "SN-AAA-111", a.SerialNumber)
		assert.Equal(t, StageRegistered, a.LifecycleStage)
		assert.True(t, a.Available)
		assert.Equal(t, 1, a.Version)
		assert.Len(t, a.GetDomainEvents(), 1)
		assert.Equal(t, EventAssetCreated, a.GetDomainEvents()[0].EventType())
	})

	t.Run("trims whitespace from tag and serial", func(t *testing.T) {
		a, err := NewAsset("  DC-SRV-0002 ", " SN-BBB-222 ", "server", "server")

		require.NoError(t, err)
		assert.Equal(t, "DC-SRV-0002", a.Tag)
		assert.Equal(t, "SN-BBB-222", a.SerialNumber)
	})

	t.Run("fails with empty tag", func(t *testing.T) {
		_, err := NewAsset("", "SN-1", "server", "server")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "tag cannot be empty")
	})

	t.Run("fails with empty serial number", func(t *testing.T) {
		_, err := NewAsset("DC-SRV-0003", "  ", "server", "server")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "Serial number cannot be empty")
	})

	t.Run("fails with empty category", func(t *testing.T) {
		_, err := NewAsset("DC-SRV-0004", "SN-4", "server", "")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "category cannot be empty")
	})
}

func TestAsset_SetAvailability(t *testing.T) {
	newTestAsset := func(t *testing.T) *Asset {
		a, err := NewAsset("DC-SRV-0100", "SN-100", "server", "server")
		require.NoError(t, err)
		a.ClearDomainEvents()
		return a
	}

	t.Run("marks asset unavailable with reason", func(t *testing.T) {
		a := newTestAsset(t)

		err := a.SetAvailability(false, "awaiting repair")

		require.NoError(t, err)
		assert.False(t, a.Available)
		assert.Equal(t, "awaiting repair", a.UnavailableReason)
		assert.Equal(t, 2, a.Version)
		assert.Len(t, a.GetDomainEvents(), 1)
	})

	t.Run("clears reason when marked available again", func(t *testing.T) {
		a := newTestAsset(t)
		require.NoError(t, a.SetAvailability(false, "awaiting repair"))

		err := a.SetAvailability(true, "")

		require.NoError(t, err)
		assert.True(t, a.Available)
		assert.Empty(t, a.UnavailableReason)
	})

	t.Run("requires a reason when going unavailable", func(t *testing.T) {
		a := newTestAsset(t)

		err := a.SetAvailability(false, "   ")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "reason is required")
	})

	t.Run("rejects availability incompatible with stage", func(t *testing.T) {
		a := newTestAsset(t)
		require.NoError(t, a.AdvanceStage(StageDecommissioned, "end of life"))

		err := a.SetAvailability(true, "")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not permit")
	})
}

func TestAsset_AdvanceStage(t *testing.T) {
	newTestAsset := func(t *testing.T) *Asset {
		a, err := NewAsset("DC-SRV-0200", "SN-200", "server", "server")
		require.NoError(t, err)
		a.ClearDomainEvents()
		return a
	}

	t.Run("moves through the receiving path", func(t *testing.T) {
		a := newTestAsset(t)

		require.NoError(t, a.AdvanceStage(StageReceived, ""))
		require.NoError(t, a.AdvanceStage(StageRacked, ""))
		require.NoError(t, a.AdvanceStage(StagePoweredOn, ""))

		assert.Equal(t, StagePoweredOn, a.LifecycleStage)
		assert.True(t, a.Available)
	})

	t.Run("decommissioning forces unavailable", func(t *testing.T) {
		a := newTestAsset(t)

		err := a.AdvanceStage(StageDecommissioned, "end of life")

		require.NoError(t, err)
		assert.False(t, a.Available)
		assert.Equal(t, "end of life", a.UnavailableReason)
	})

	t.Run("maintenance forces unavailable with default reason", func(t *testing.T) {
		a := newTestAsset(t)

		err := a.AdvanceStage(StageMaintenance, "")

		require.NoError(t, err)
		assert.False(t, a.Available)
		assert.NotEmpty(t, a.UnavailableReason)
	})

	t.Run("cannot leave a terminal stage", func(t *testing.T) {
		a := newTestAsset(t)
		require.NoError(t, a.AdvanceStage(StageDecommissioned, "end of life"))

		err := a.AdvanceStage(StageRunning, "")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "terminal stage")
	})

	t.Run("rejects unknown stage", func(t *testing.T) {
		a := newTestAsset(t)

		err := a.AdvanceStage(LifecycleStage("melted"), "")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "Unknown lifecycle stage")
	})
}

func TestAsset_MergeAttributes(t *testing.T) {
	t.Run("merges and overwrites attributes", func(t *testing.T) {
		a, err := NewAsset("DC-SRV-0300", "SN-300", "server", "server")
		require.NoError(t, err)

		require.NoError(t, a.MergeAttributes(map[string]string{"ip_address": "10.0.0.5", "os": "linux"}))
		require.NoError(t, a.MergeAttributes(map[string]string{"ip_address": "10.0.0.9"}))

		attrs, err := a.AttributeMap()
		require.NoError(t, err)
		assert.Equal(t, "10.0.0.9", attrs["ip_address"])
		assert.Equal(t, "linux", attrs["os"])
	})

	t.Run("empty value removes the key", func(t *testing.T) {
		a, err := NewAsset("DC-SRV-0301", "SN-301", "server", "server")
		require.NoError(t, err)
		require.NoError(t, a.MergeAttributes(map[string]string{"os": "linux"}))

		require.NoError(t, a.MergeAttributes(map[string]string{"os": ""}))

		attrs, err := a.AttributeMap()
		require.NoError(t, err)
		assert.NotContains(t, attrs, "os")
	})

	t.Run("fails with no fields", func(t *testing.T) {
		a, err := NewAsset("DC-SRV-0302", "SN-302", "server", "server")
		require.NoError(t, err)

		err = a.MergeAttributes(nil)

		require.Error(t, err)
	})
}

func TestLifecycleStage_AllowsAvailability(t *testing.T) {
	assert.True(t, StageRunning.AllowsAvailability(true))
	assert.True(t, StageRunning.AllowsAvailability(false))
	assert.False(t, StageDecommissioned.AllowsAvailability(true))
	assert.True(t, StageDecommissioned.AllowsAvailability(false))
	assert.False(t, StageMaintenance.AllowsAvailability(true))
	assert.False(t, StagePoweredOn.AllowsAvailability(false))
}
