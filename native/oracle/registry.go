package oracle

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"cdfichain/core/events"
	nativecommon "cdfichain/native/common"
)

var errNilState = errors.New("oracle registry: state not configured")

type registryState interface {
	nativecommon.OwnerView
	OracleBinding(chainID uint64) (*Binding, error)
	PutOracleBinding(*Binding) error
}

// Registry keeps the per-chain feed and pool bindings. Writes are gated on
// the owner of the module the registry belongs to.
type Registry struct {
	state   registryState
	emitter events.Emitter
	module  string
}

// NewRegistry returns a registry owned through the subscription module.
func NewRegistry() *Registry {
	return &Registry{emitter: events.NoopEmitter{}, module: nativecommon.ModuleSubscription}
}

func (r *Registry) SetState(state registryState) { r.state = state }

func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// UpdateChainlinkPriceFeed binds feed for chainID. The event fires on every
// call, including identical overwrites.
func (r *Registry) UpdateChainlinkPriceFeed(caller common.Address, chainID uint64, feed common.Address) error {
	binding, err := r.authorizedBinding(caller, chainID)
	if err != nil {
		return err
	}
	binding.Feed = feed
	if err := r.state.PutOracleBinding(binding); err != nil {
		return err
	}
	r.emitter.Emit(events.PriceFeedChanged{ChainID: chainID, Feed: feed})
	return nil
}

// UpdateV3Pools binds pool for chainID.
func (r *Registry) UpdateV3Pools(caller common.Address, chainID uint64, pool common.Address) error {
	binding, err := r.authorizedBinding(caller, chainID)
	if err != nil {
		return err
	}
	binding.Pool = pool
	if err := r.state.PutOracleBinding(binding); err != nil {
		return err
	}
	r.emitter.Emit(events.PoolChanged{ChainID: chainID, Pool: pool})
	return nil
}

func (r *Registry) PriceFeed(chainID uint64) (common.Address, error) {
	binding, err := r.Binding(chainID)
	if err != nil {
		return common.Address{}, err
	}
	return binding.Feed, nil
}

func (r *Registry) Pool(chainID uint64) (common.Address, error) {
	binding, err := r.Binding(chainID)
	if err != nil {
		return common.Address{}, err
	}
	return binding.Pool, nil
}

// Binding returns the stored binding, or an empty one for an unknown chain.
func (r *Registry) Binding(chainID uint64) (*Binding, error) {
	if r.state == nil {
		return nil, errNilState
	}
	binding, err := r.state.OracleBinding(chainID)
	if err != nil {
		return nil, err
	}
	if binding == nil {
		binding = &Binding{ChainID: chainID}
	}
	return binding, nil
}

func (r *Registry) authorizedBinding(caller common.Address, chainID uint64) (*Binding, error) {
	if r.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.RequireOwner(r.state, r.module, caller); err != nil {
		return nil, err
	}
	return r.Binding(chainID)
}
