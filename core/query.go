package core

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cdfichain/core/state"
	"cdfichain/native/oracle"
	"cdfichain/native/subscription"
	"cdfichain/native/vesting"
)

// Read queries take the node lock for the state access only. Oracle reads
// run after it is released against a snapshot of the bindings.

func (n *Node) view(fn func(rt *runtime) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	rt := n.newRuntime(context.Background(), state.NewManager(n.trie), nil)
	return fn(rt)
}

// SubscriptionInfo is the subscription config together with its owner.
type SubscriptionInfo struct {
	Config *subscription.Config
	Owner  common.Address
	Vault  common.Address
}

func (n *Node) Subscription() (*SubscriptionInfo, error) {
	var info SubscriptionInfo
	err := n.view(func(rt *runtime) error {
		cfg, err := rt.subscription.Config()
		if err != nil {
			return err
		}
		owner, err := rt.subscription.Owner()
		if err != nil {
			return err
		}
		info = SubscriptionInfo{Config: cfg, Owner: owner, Vault: rt.subscription.Vault()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// SubscriptionToken loads a minted subscription.
func (n *Node) SubscriptionToken(id uint64) (*subscription.Token, error) {
	var tok *subscription.Token
	err := n.view(func(rt *runtime) (err error) {
		tok, err = rt.subscription.Token(id)
		return err
	})
	return tok, err
}

func (n *Node) Binding(chainID uint64) (*oracle.Binding, error) {
	var binding *oracle.Binding
	err := n.view(func(rt *runtime) (err error) {
		binding, err = rt.registry.Binding(chainID)
		return err
	})
	return binding, err
}

func (n *Node) TokenBalance(token, holder common.Address) (*big.Int, error) {
	var out *big.Int
	err := n.view(func(rt *runtime) (err error) {
		out, err = rt.state.TokenBalance(token, holder)
		return err
	})
	return out, err
}

func (n *Node) TokenAllowance(token, owner, spender common.Address) (*big.Int, error) {
	var out *big.Int
	err := n.view(func(rt *runtime) (err error) {
		out, err = rt.state.TokenAllowance(token, owner, spender)
		return err
	})
	return out, err
}

func (n *Node) NativeBalance(addr common.Address) (*big.Int, error) {
	var out *big.Int
	err := n.view(func(rt *runtime) (err error) {
		out, err = rt.state.NativeBalance(addr)
		return err
	})
	return out, err
}

func (n *Node) Nonce(addr common.Address) (uint64, error) {
	var out uint64
	err := n.view(func(rt *runtime) (err error) {
		out, err = rt.state.Nonce(addr)
		return err
	})
	return out, err
}

// VestingInfo summarises one schedule at the node's current time.
type VestingInfo struct {
	Params     vesting.Params
	State      *vesting.State
	Phase      vesting.Phase
	Vault      common.Address
	Balance    *big.Int
	Vested     *big.Int
	Releasable *big.Int
}

func (n *Node) Vesting(id string) (*VestingInfo, error) {
	var info VestingInfo
	err := n.view(func(rt *runtime) error {
		s, err := rt.schedule(id)
		if err != nil {
			return err
		}
		st, err := s.Snapshot()
		if err != nil {
			return err
		}
		phase, err := s.Phase()
		if err != nil {
			return err
		}
		vested, err := s.VestedAmount()
		if err != nil {
			return err
		}
		releasable, err := s.Releasable()
		if err != nil {
			return err
		}
		balance := big.NewInt(0)
		if st.Token != (common.Address{}) {
			if balance, err = rt.state.TokenBalance(st.Token, s.Vault()); err != nil {
				return err
			}
		}
		info = VestingInfo{
			Params:     s.Params(),
			State:      st,
			Phase:      phase,
			Vault:      s.Vault(),
			Balance:    balance,
			Vested:     vested,
			Releasable: releasable,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// bindingSnapshot serves bindings read under the node lock.
type bindingSnapshot map[uint64]*oracle.Binding

func (b bindingSnapshot) Binding(chainID uint64) (*oracle.Binding, error) {
	if binding, ok := b[chainID]; ok && binding != nil {
		return binding, nil
	}
	return &oracle.Binding{ChainID: chainID}, nil
}

func (n *Node) priceResolvers() (*oracle.NativePriceResolver, *oracle.PoolPriceResolver, *subscription.Config, error) {
	snapshot := bindingSnapshot{}
	var cfg *subscription.Config
	var now func() int64
	err := n.view(func(rt *runtime) error {
		binding, err := rt.registry.Binding(n.chainID)
		if err != nil {
			return err
		}
		snapshot[n.chainID] = binding
		cfg, err = rt.subscription.Config()
		if err != nil {
			return err
		}
		nowFn := n.nowFn
		now = func() int64 { return nowFn().Unix() }
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	native := oracle.NewNativePriceResolver(snapshot, n.directory, n.chainID)
	native.SetMaxAge(n.maxPriceAge)
	native.SetNowFunc(now)
	pool := oracle.NewPoolPriceResolver(snapshot, n.directory, n.chainID, native)
	return native, pool, cfg, nil
}

// NativePrice returns the USD price of the native currency at 8 decimals.
func (n *Node) NativePrice(ctx context.Context) (*big.Int, error) {
	native, _, _, err := n.priceResolvers()
	if err != nil {
		return nil, err
	}
	return native.GetNativePrice(ctx)
}

// RequiredNative is the native amount a subscription currently costs.
func (n *Node) RequiredNative(ctx context.Context) (*big.Int, error) {
	native, _, cfg, err := n.priceResolvers()
	if err != nil {
		return nil, err
	}
	price, err := native.GetNativePrice(ctx)
	if err != nil {
		return nil, err
	}
	return oracle.RequiredNative(cfg.PriceUSD, price), nil
}

// PriceInCDFi is the discounted CDFi amount a subscription currently costs.
func (n *Node) PriceInCDFi(ctx context.Context) (*big.Int, error) {
	_, pool, cfg, err := n.priceResolvers()
	if err != nil {
		return nil, err
	}
	return pool.GetPriceInCDFi(ctx, oracle.PoolQuote{
		PriceUSD:        cfg.PriceUSD,
		DiscountPercent: cfg.DiscountPercent,
		CDFi:            cfg.CDFi,
		Stables:         cfg.Stables(),
	})
}
