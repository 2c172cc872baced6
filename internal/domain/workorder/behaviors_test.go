package workorder

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcasset/backend/internal/domain/asset"
	"github.com/dcasset/backend/internal/domain/shared"
)

// fakeLedger implements asset.Reader over a map
type fakeLedger struct {
	byTag    map[string]*asset.Asset
	bySerial map[string]*asset.Asset
}

func newFakeLedger(assets ...*asset.Asset) *fakeLedger {
	l := &fakeLedger{byTag: map[string]*asset.Asset{}, bySerial: map[string]*asset.Asset{}}
	for _, a := range assets {
		l.byTag[a.Tag] = a
		l.bySerial[a.SerialNumber] = a
	}
	return l
}

func (l *fakeLedger) FindByTag(_ context.Context, tag string) (*asset.Asset, error) {
	if a, ok := l.byTag[tag]; ok {
		return a, nil
	}
	return nil, shared.ErrNotFound
}

func (l *fakeLedger) FindBySerialNumber(_ context.Context, serial string) (*asset.Asset, error) {
	if a, ok := l.bySerial[serial]; ok {
		return a, nil
	}
	return nil, shared.ErrNotFound
}

func rackedAsset(t *testing.T, tag, serial string) *asset.Asset {
	t.Helper()
	a, err := asset.NewAsset(tag, serial, "server", "server")
	require.NoError(t, err)
	require.NoError(t, a.AdvanceStage(asset.StageReceived, ""))
	require.NoError(t, a.AdvanceStage(asset.StageRacked, ""))
	return a
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	registry, err := NewDefaultRegistry(validator.New())
	require.NoError(t, err)
	return registry
}

func TestRegistry(t *testing.T) {
	t.Run("holds the built-in types", func(t *testing.T) {
		registry := testRegistry(t)
		assert.Equal(t, []string{
			TypeConfiguration, TypeFaultHandling, TypeGenericOperation,
			TypeNetworkCable, TypePowerManagement, TypeRacking, TypeReceiving,
		}, registry.Types())
	})

	t.Run("rejects duplicate registration", func(t *testing.T) {
		registry := testRegistry(t)
		err := registry.Register(TypeRacking, &RackingBehavior{validate: validator.New()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})

	t.Run("unknown type is not found", func(t *testing.T) {
		registry := testRegistry(t)
		_, err := registry.Get("teleportation")
		require.Error(t, err)
		assert.True(t, shared.IsDomainError(err, "NOT_FOUND"))
	})
}

func TestReceivingBehavior(t *testing.T) {
	b := &ReceivingBehavior{validate: validator.New()}
	payload := []byte(`{"source_order_number":"PO-77","devices":[
		{"serial_number":"SN-1","tag":"DC-SRV-0001","name":"web-1","category":"server"},
		{"serial_number":"SN-2","tag":"DC-SRV-0002","name":"web-2","category":"server","datacenter":"dc1","room":"r2"}
	]}`)

	t.Run("accepts a valid device batch", func(t *testing.T) {
		require.NoError(t, b.ValidatePayload(payload))
	})

	t.Run("rejects empty device list", func(t *testing.T) {
		err := b.ValidatePayload([]byte(`{"devices":[]}`))
		require.Error(t, err)
		assert.True(t, shared.IsDomainError(err, "VALIDATION_ERROR"))
	})

	t.Run("rejects duplicate serial numbers in one payload", func(t *testing.T) {
		err := b.ValidatePayload([]byte(`{"devices":[
			{"serial_number":"SN-1","tag":"A","name":"a","category":"server"},
			{"serial_number":"SN-1","tag":"B","name":"b","category":"server"}
		]}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Duplicate serial number")
	})

	t.Run("expands one item per device without asset tags", func(t *testing.T) {
		items, err := b.ExpandItems(nil, payload)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Nil(t, items[0].AssetTag)
		assert.Equal(t, "SN-1", items[0].SerialNumber)
		assert.NotEmpty(t, items[0].OperationData)
	})

	t.Run("rejects targets", func(t *testing.T) {
		_, err := b.ExpandItems([]string{"DC-SRV-0001"}, payload)
		require.Error(t, err)
	})

	t.Run("precondition fails when a serial is already registered", func(t *testing.T) {
		existing, err := asset.NewAsset("DC-OLD-1", "SN-1", "old", "server")
		require.NoError(t, err)
		ledger := newFakeLedger(existing)

		err = b.CheckPreconditions(context.Background(), ledger, nil, payload)
		require.Error(t, err)
		assert.True(t, shared.IsDomainError(err, "PRECONDITION_FAILED"))
		assert.Contains(t, err.Error(), "SN-1")
	})

	t.Run("effect creates the asset in the received stage", func(t *testing.T) {
		items, err := b.ExpandItems(nil, payload)
		require.NoError(t, err)
		item := &WorkOrderItem{SerialNumber: items[1].SerialNumber, OperationData: items[1].OperationData}

		mutations, err := b.ItemEffect(item, payload)
		require.NoError(t, err)
		require.Len(t, mutations, 1)
		require.NotNil(t, mutations[0].Create)
		created := mutations[0].Create
		assert.Equal(t, "DC-SRV-0002", created.Tag)
		assert.Equal(t, asset.StageReceived, created.LifecycleStage)
		assert.Equal(t, "dc1", created.Datacenter)
	})
}

func TestRackingBehavior(t *testing.T) {
	b := &RackingBehavior{validate: validator.New()}
	payload := []byte(`{"datacenter":"dc1","room":"r2","cabinet":"c17","u_position_start":10,"u_position_end":12}`)

	t.Run("targets are exclusive", func(t *testing.T) {
		assert.True(t, b.ExclusiveTargets())
	})

	t.Run("rejects inverted u-position range", func(t *testing.T) {
		err := b.ValidatePayload([]byte(`{"datacenter":"dc1","room":"r2","cabinet":"c17","u_position_start":12,"u_position_end":10}`))
		require.Error(t, err)
	})

	t.Run("precondition requires the received stage", func(t *testing.T) {
		a := rackedAsset(t, "DC-SRV-0001", "SN-1")
		ledger := newFakeLedger(a)

		err := b.CheckPreconditions(context.Background(), ledger, []string{"DC-SRV-0001"}, payload)
		require.Error(t, err)
		assert.True(t, shared.IsDomainError(err, "PRECONDITION_FAILED"))
		assert.Contains(t, err.Error(), "DC-SRV-0001")
	})

	t.Run("precondition names a missing asset", func(t *testing.T) {
		err := b.CheckPreconditions(context.Background(), newFakeLedger(), []string{"DC-GONE-9"}, payload)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DC-GONE-9")
	})

	t.Run("effect relocates and advances the stage", func(t *testing.T) {
		a, err := asset.NewAsset("DC-SRV-0001", "SN-1", "server", "server")
		require.NoError(t, err)
		require.NoError(t, a.AdvanceStage(asset.StageReceived, ""))

		tag := "DC-SRV-0001"
		mutations, err := b.ItemEffect(&WorkOrderItem{AssetTag: &tag}, payload)
		require.NoError(t, err)
		require.Len(t, mutations, 1)
		require.NoError(t, mutations[0].Apply(a))
		assert.Equal(t, asset.StageRacked, a.LifecycleStage)
		assert.Equal(t, "c17", a.Cabinet)
		assert.Equal(t, "U10-U12", a.RackPosition)
	})
}

func TestPowerManagementBehavior(t *testing.T) {
	b := &PowerManagementBehavior{validate: validator.New()}

	t.Run("power off requires a reason", func(t *testing.T) {
		err := b.ValidatePayload([]byte(`{"action":"power_off"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reason")
	})

	t.Run("rejects unknown action", func(t *testing.T) {
		err := b.ValidatePayload([]byte(`{"action":"reboot"}`))
		require.Error(t, err)
	})

	t.Run("power on effect advances a racked asset and restores availability", func(t *testing.T) {
		a := rackedAsset(t, "DC-SRV-0001", "SN-1")

		tag := "DC-SRV-0001"
		mutations, err := b.ItemEffect(&WorkOrderItem{AssetTag: &tag}, []byte(`{"action":"power_on"}`))
		require.NoError(t, err)
		require.NoError(t, mutations[0].Apply(a))
		assert.Equal(t, asset.StagePoweredOn, a.LifecycleStage)
		assert.True(t, a.Available)
	})

	t.Run("power off effect marks the asset unavailable with the reason", func(t *testing.T) {
		a := rackedAsset(t, "DC-SRV-0001", "SN-1")
		require.NoError(t, a.AdvanceStage(asset.StagePoweredOn, ""))

		tag := "DC-SRV-0001"
		mutations, err := b.ItemEffect(&WorkOrderItem{AssetTag: &tag}, []byte(`{"action":"power_off","reason":"scheduled maintenance"}`))
		require.NoError(t, err)
		require.NoError(t, mutations[0].Apply(a))
		assert.False(t, a.Available)
		assert.Equal(t, "scheduled maintenance", a.UnavailableReason)
		assert.Equal(t, asset.StageRacked, a.LifecycleStage)
	})

	t.Run("precondition rejects powering off an asset that is not powered", func(t *testing.T) {
		a, err := asset.NewAsset("DC-SRV-0002", "SN-2", "server", "server")
		require.NoError(t, err)
		ledger := newFakeLedger(a)

		err = b.CheckPreconditions(context.Background(), ledger, []string{"DC-SRV-0002"},
			[]byte(`{"action":"power_off","reason":"maintenance"}`))
		require.Error(t, err)
		assert.True(t, shared.IsDomainError(err, "PRECONDITION_FAILED"))
	})
}

func TestConfigurationBehavior(t *testing.T) {
	b := &ConfigurationBehavior{validate: validator.New()}

	t.Run("requires at least one field", func(t *testing.T) {
		err := b.ValidatePayload([]byte(`{"fields":{}}`))
		require.Error(t, err)
	})

	t.Run("effect merges attributes", func(t *testing.T) {
		a := rackedAsset(t, "DC-SRV-0001", "SN-1")

		tag := "DC-SRV-0001"
		mutations, err := b.ItemEffect(&WorkOrderItem{AssetTag: &tag}, []byte(`{"fields":{"bios_version":"2.4.1","raid":"raid10"}}`))
		require.NoError(t, err)
		require.NoError(t, mutations[0].Apply(a))

		attrs, err := a.AttributeMap()
		require.NoError(t, err)
		assert.Equal(t, "2.4.1", attrs["bios_version"])
		assert.Equal(t, "raid10", attrs["raid"])
	})
}

func TestNetworkCableBehavior(t *testing.T) {
	b := &NetworkCableBehavior{validate: validator.New()}

	t.Run("rejects unknown cable type", func(t *testing.T) {
		err := b.ValidatePayload([]byte(`{"port":"eth0","cable_type":"coax"}`))
		require.Error(t, err)
	})

	t.Run("precondition rejects assets not racked yet", func(t *testing.T) {
		a, err := asset.NewAsset("DC-SRV-0001", "SN-1", "server", "server")
		require.NoError(t, err)
		ledger := newFakeLedger(a)

		err = b.CheckPreconditions(context.Background(), ledger, []string{"DC-SRV-0001"},
			[]byte(`{"port":"eth0","cable_type":"ethernet"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not racked")
	})

	t.Run("effect records the cable on the port attribute", func(t *testing.T) {
		a := rackedAsset(t, "DC-SRV-0001", "SN-1")

		tag := "DC-SRV-0001"
		mutations, err := b.ItemEffect(&WorkOrderItem{AssetTag: &tag},
			[]byte(`{"port":"eth1","cable_type":"fiber","new_cable_serial":"CAB-88"}`))
		require.NoError(t, err)
		require.NoError(t, mutations[0].Apply(a))

		attrs, err := a.AttributeMap()
		require.NoError(t, err)
		assert.Equal(t, "fiber:CAB-88", attrs["cable_eth1"])
	})
}

func TestFaultHandlingBehavior(t *testing.T) {
	b := &FaultHandlingBehavior{validate: validator.New()}

	t.Run("requires a description", func(t *testing.T) {
		err := b.ValidatePayload([]byte(`{"action":"mark_faulty"}`))
		require.Error(t, err)
	})

	t.Run("precondition rejects restoring an available asset", func(t *testing.T) {
		a := rackedAsset(t, "DC-SRV-0001", "SN-1")
		ledger := newFakeLedger(a)

		err := b.CheckPreconditions(context.Background(), ledger, []string{"DC-SRV-0001"},
			[]byte(`{"action":"restore","description":"repair done"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not marked faulty")
	})

	t.Run("mark faulty then restore round-trips availability", func(t *testing.T) {
		a := rackedAsset(t, "DC-SRV-0001", "SN-1")
		tag := "DC-SRV-0001"

		mutations, err := b.ItemEffect(&WorkOrderItem{AssetTag: &tag},
			[]byte(`{"action":"mark_faulty","description":"disk errors"}`))
		require.NoError(t, err)
		require.NoError(t, mutations[0].Apply(a))
		assert.Equal(t, asset.StageMaintenance, a.LifecycleStage)
		assert.False(t, a.Available)
		assert.Equal(t, "disk errors", a.UnavailableReason)

		mutations, err = b.ItemEffect(&WorkOrderItem{AssetTag: &tag},
			[]byte(`{"action":"restore","description":"disk replaced"}`))
		require.NoError(t, err)
		require.NoError(t, mutations[0].Apply(a))
		assert.Equal(t, asset.StageRacked, a.LifecycleStage)
		assert.True(t, a.Available)
		assert.Empty(t, a.UnavailableReason)
	})

	t.Run("decommission effect retires the asset", func(t *testing.T) {
		a := rackedAsset(t, "DC-SRV-0001", "SN-1")
		tag := "DC-SRV-0001"

		mutations, err := b.ItemEffect(&WorkOrderItem{AssetTag: &tag},
			[]byte(`{"action":"decommission","description":"end of life"}`))
		require.NoError(t, err)
		require.NoError(t, mutations[0].Apply(a))
		assert.Equal(t, asset.StageDecommissioned, a.LifecycleStage)
		assert.False(t, a.Available)
	})
}

func TestGenericOperationBehavior(t *testing.T) {
	b := &GenericOperationBehavior{validate: validator.New()}

	t.Run("requires a summary", func(t *testing.T) {
		err := b.ValidatePayload([]byte(`{"detail":{"x":"y"}}`))
		require.Error(t, err)
	})

	t.Run("rejects duplicate targets", func(t *testing.T) {
		_, err := b.ExpandItems([]string{"DC-SRV-0001", "DC-SRV-0001"}, []byte(`{"summary":"dust filters"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Duplicate target")
	})

	t.Run("effect records the last operation", func(t *testing.T) {
		a := rackedAsset(t, "DC-SRV-0001", "SN-1")
		tag := "DC-SRV-0001"

		mutations, err := b.ItemEffect(&WorkOrderItem{AssetTag: &tag}, []byte(`{"summary":"replaced dust filters"}`))
		require.NoError(t, err)
		require.NoError(t, mutations[0].Apply(a))

		attrs, err := a.AttributeMap()
		require.NoError(t, err)
		assert.Equal(t, "replaced dust filters", attrs["last_operation"])
	})
}
