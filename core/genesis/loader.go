// core/genesis/loader.go
package genesis

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"cdfichain/core/state"
	"cdfichain/crypto"
	nativecommon "cdfichain/native/common"
	"cdfichain/native/oracle"
	"cdfichain/native/subscription"
	"cdfichain/native/vesting"
	"cdfichain/storage"
	"cdfichain/storage/trie"
)

// BuildGenesisFromSpec writes the genesis state into db and returns the
// committed root.
func BuildGenesisFromSpec(spec *GenesisSpec, db storage.Database) (common.Hash, error) {
	if spec == nil {
		return common.Hash{}, fmt.Errorf("genesis spec must not be nil")
	}
	if db == nil {
		return common.Hash{}, fmt.Errorf("database must not be nil")
	}
	stateTrie, err := trie.NewTrie(db, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("init state trie: %w", err)
	}
	if err := Apply(spec, state.NewManager(stateTrie)); err != nil {
		return common.Hash{}, err
	}
	root, err := stateTrie.Commit(0)
	if err != nil {
		return common.Hash{}, fmt.Errorf("commit state: %w", err)
	}
	return root, nil
}

// Apply writes every genesis record through manager. Iteration over maps is
// sorted so the resulting root is deterministic.
func Apply(spec *GenesisSpec, manager *state.Manager) error {
	if spec == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if spec.Subscription.priceUSD == nil {
		if err := spec.validate(); err != nil {
			return err
		}
	}
	if err := manager.SetStateVersion(state.StateVersion); err != nil {
		return fmt.Errorf("state version: %w", err)
	}

	// 1) Subscription
	sub := spec.Subscription
	if err := manager.SetModuleOwner(nativecommon.ModuleSubscription, spec.owner); err != nil {
		return fmt.Errorf("subscription owner: %w", err)
	}
	cfg := &subscription.Config{
		Name:               sub.Name,
		Symbol:             sub.Symbol,
		PriceUSD:           new(big.Int).Set(sub.priceUSD),
		DiscountPercent:    sub.DiscountPercent,
		MaxSupply:          new(big.Int).Set(sub.maxSupply),
		USDT:               sub.usdt,
		USDC:               sub.usdc,
		CDFi:               sub.cdfi,
		AllowCallerTokenID: sub.AllowCallerTokenID,
	}
	if err := manager.PutSubscriptionConfig(cfg); err != nil {
		return fmt.Errorf("subscription config: %w", err)
	}
	collection := nativecommon.ModuleAddress(nativecommon.ModuleSubscription)
	if err := manager.SetNFTCollection(collection, state.NFTCollection{Name: sub.Name, Symbol: sub.Symbol}); err != nil {
		return fmt.Errorf("subscription collection: %w", err)
	}

	// 2) Oracle bindings
	oracles := append([]OracleSpec(nil), spec.Oracles...)
	sort.Slice(oracles, func(i, j int) bool { return oracles[i].ChainID < oracles[j].ChainID })
	for _, o := range oracles {
		binding := &oracle.Binding{ChainID: o.ChainID, Feed: o.feed, Pool: o.pool}
		if err := manager.PutOracleBinding(binding); err != nil {
			return fmt.Errorf("oracle binding %d: %w", o.ChainID, err)
		}
	}

	// 3) Vesting: every schedule gets an owner, configured ones also state.
	configured := make(map[string]VestingSpec, len(spec.Vesting))
	for _, v := range spec.Vesting {
		configured[v.params.ID] = v
	}
	params := spec.ScheduleParams()
	for _, id := range sortedKeys(params) {
		p := params[id]
		owner := spec.owner
		v, ok := configured[id]
		if ok {
			owner = v.owner
		}
		if err := manager.SetModuleOwner(p.Module, owner); err != nil {
			return fmt.Errorf("vesting %s owner: %w", id, err)
		}
		if !ok {
			continue
		}
		st := &vesting.State{Claimed: big.NewInt(0), Token: v.token, Beneficiary: v.beneficiary}
		if err := manager.PutVestingState(id, st); err != nil {
			return fmt.Errorf("vesting %s: %w", id, err)
		}
		if v.amount != nil && v.amount.Sign() > 0 {
			if err := manager.MintToken(v.token, nativecommon.ModuleAddress(p.Module), v.amount); err != nil {
				return fmt.Errorf("vesting %s funding: %w", id, err)
			}
		}
	}

	// 4) Native allocations
	for _, account := range sortedKeys(spec.Native) {
		addr, err := crypto.ParseAddress(account)
		if err != nil {
			return fmt.Errorf("native[%q]: %w", account, err)
		}
		amount, err := parseAmount(spec.Native[account])
		if err != nil {
			return fmt.Errorf("native[%q]: %w", account, err)
		}
		if err := manager.CreditNative(addr, amount); err != nil {
			return fmt.Errorf("native[%q]: %w", account, err)
		}
	}

	// 5) Token allocations (token sorted, then holder sorted)
	for _, tokenStr := range sortedKeys(spec.Tokens) {
		token, err := crypto.ParseAddress(tokenStr)
		if err != nil {
			return fmt.Errorf("tokens[%q]: %w", tokenStr, err)
		}
		holders := spec.Tokens[tokenStr]
		for _, account := range sortedKeys(holders) {
			holder, err := crypto.ParseAddress(account)
			if err != nil {
				return fmt.Errorf("tokens[%q][%q]: %w", tokenStr, account, err)
			}
			amount, err := parseAmount(holders[account])
			if err != nil {
				return fmt.Errorf("tokens[%q][%q]: %w", tokenStr, account, err)
			}
			if err := manager.MintToken(token, holder, amount); err != nil {
				return fmt.Errorf("tokens[%q][%q]: %w", tokenStr, account, err)
			}
		}
	}
	return nil
}
