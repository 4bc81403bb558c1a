package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"cdfichain/native/oracle"
	"cdfichain/native/subscription"
	"cdfichain/native/vesting"
)

// Module records: owner slots, the subscription config, price bindings and
// vesting schedules.

var (
	moduleOwnerPrefix     = []byte("module/owner/")
	subscriptionConfigKey = []byte("subscription/config")
	oracleBindingFormat   = "oracle/binding/%d"
	vestingPrefix         = []byte("vesting/")
)

func moduleOwnerKey(module string) []byte {
	return recordKey(moduleOwnerPrefix, []byte(module))
}

// ModuleOwner returns the owner of module, or the zero address.
func (m *Manager) ModuleOwner(module string) (common.Address, error) {
	var owner common.Address
	if _, err := m.KVGet(moduleOwnerKey(module), &owner); err != nil {
		return common.Address{}, err
	}
	return owner, nil
}

func (m *Manager) SetModuleOwner(module string, owner common.Address) error {
	return m.KVPut(moduleOwnerKey(module), owner)
}

// SubscriptionConfig returns the stored config, or nil before genesis.
func (m *Manager) SubscriptionConfig() (*subscription.Config, error) {
	cfg := new(subscription.Config)
	ok, err := m.KVGet(subscriptionConfigKey, cfg)
	if err != nil || !ok {
		return nil, err
	}
	return cfg, nil
}

func (m *Manager) PutSubscriptionConfig(cfg *subscription.Config) error {
	return m.KVPut(subscriptionConfigKey, cfg)
}

func oracleBindingKey(chainID uint64) []byte {
	return []byte(fmt.Sprintf(oracleBindingFormat, chainID))
}

// OracleBinding returns the binding for chainID, or nil when never set.
func (m *Manager) OracleBinding(chainID uint64) (*oracle.Binding, error) {
	binding := new(oracle.Binding)
	ok, err := m.KVGet(oracleBindingKey(chainID), binding)
	if err != nil || !ok {
		return nil, err
	}
	return binding, nil
}

func (m *Manager) PutOracleBinding(binding *oracle.Binding) error {
	return m.KVPut(oracleBindingKey(binding.ChainID), binding)
}

// VestingState returns the stored schedule, or nil when never set.
func (m *Manager) VestingState(id string) (*vesting.State, error) {
	st := new(vesting.State)
	ok, err := m.KVGet(recordKey(vestingPrefix, []byte(id)), st)
	if err != nil || !ok {
		return nil, err
	}
	return st, nil
}

func (m *Manager) PutVestingState(id string, st *vesting.State) error {
	return m.KVPut(recordKey(vestingPrefix, []byte(id)), st)
}
