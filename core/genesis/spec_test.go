// core/genesis/spec_test.go
package genesis

import (
	"bytes"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"cdfichain/core/state"
	"cdfichain/crypto"
	nativecommon "cdfichain/native/common"
	"cdfichain/native/vesting"
	"cdfichain/storage"
	"cdfichain/storage/trie"
)

const yamlGenesis = `chainId: 31337
owner: "%OWNER%"
subscription:
  name: CDFiSubscription
  symbol: CDS
  priceUsd: "400"
  discountPercent: 40
  maxSupply: "1000"
  usdt: "0x00000000000000000000000000000000000000a1"
  usdc: "0x00000000000000000000000000000000000000a2"
  cdfi: "0x00000000000000000000000000000000000000a3"
oracles:
  - chainId: 31337
    feed: "0x00000000000000000000000000000000000000f1"
    pool: "0x00000000000000000000000000000000000000f2"
vesting:
  - schedule: liquidity
    token: "0x00000000000000000000000000000000000000a3"
    beneficiary: "0x00000000000000000000000000000000000000b1"
    duration: 1h
    amount: "5000"
native:
  "0x00000000000000000000000000000000000000c1": "1000000000000000000000"
tokens:
  "0x00000000000000000000000000000000000000a1":
    "%OWNER%": "250"
`

func writeGenesis(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func ownerBech32() (string, common.Address) {
	raw := bytes.Repeat([]byte{0x0e}, 20)
	return crypto.EncodeBech32(common.BytesToAddress(raw)), common.BytesToAddress(raw)
}

func TestLoadGenesisSpecYAMLAndBuild(t *testing.T) {
	ownerStr, owner := ownerBech32()
	body := string(bytes.ReplaceAll([]byte(yamlGenesis), []byte("%OWNER%"), []byte(ownerStr)))
	spec, err := LoadGenesisSpec(writeGenesis(t, "genesis.yaml", body))
	require.NoError(t, err)

	chainID, ok := spec.ChainIDValue()
	require.True(t, ok)
	require.Equal(t, uint64(31337), chainID)

	params := spec.ScheduleParams()
	require.Equal(t, time.Hour, params[vesting.ScheduleLiquidity].Duration)
	require.Equal(t, 29*time.Minute, params[vesting.ScheduleLiquidity].Cliff)
	require.Equal(t, vesting.TeamParams(), params[vesting.ScheduleTeam])

	db := storage.NewMemDB()
	defer db.Close()
	root, err := BuildGenesisFromSpec(spec, db)
	require.NoError(t, err)

	tr, err := trie.NewTrie(db, root.Bytes())
	require.NoError(t, err)
	require.NoError(t, state.EnsureStateVersion(tr))
	m := state.NewManager(tr)

	cfg, err := m.SubscriptionConfig()
	require.NoError(t, err)
	wantPrice, _ := new(big.Int).SetString("400000000000000000000", 10)
	require.Equal(t, wantPrice, cfg.PriceUSD)
	require.Equal(t, uint8(40), cfg.DiscountPercent)
	require.Equal(t, int64(1000), cfg.MaxSupply.Int64())
	require.Equal(t, common.HexToAddress("0xa3"), cfg.CDFi)

	for _, module := range []string{nativecommon.ModuleSubscription, nativecommon.ModuleVestingTeam, nativecommon.ModuleVestingLiquidity} {
		got, err := m.ModuleOwner(module)
		require.NoError(t, err)
		require.Equal(t, owner, got, module)
	}

	binding, err := m.OracleBinding(31337)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0xf1"), binding.Feed)
	require.Equal(t, common.HexToAddress("0xf2"), binding.Pool)

	st, err := m.VestingState(vesting.ScheduleLiquidity)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0xb1"), st.Beneficiary)
	require.Zero(t, st.StartTime)
	team, err := m.VestingState(vesting.ScheduleTeam)
	require.NoError(t, err)
	require.Nil(t, team)

	vaultBal, err := m.TokenBalance(common.HexToAddress("0xa3"), nativecommon.ModuleAddress(nativecommon.ModuleVestingLiquidity))
	require.NoError(t, err)
	require.Equal(t, int64(5000), vaultBal.Int64())

	native, err := m.NativeBalance(common.HexToAddress("0xc1"))
	require.NoError(t, err)
	require.Equal(t, "1000000000000000000000", native.String())

	usdt, err := m.TokenBalance(common.HexToAddress("0xa1"), owner)
	require.NoError(t, err)
	require.Equal(t, int64(250), usdt.Int64())

	meta, ok, err := m.NFTCollection(nativecommon.ModuleAddress(nativecommon.ModuleSubscription))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "CDS", meta.Symbol)
}

func TestBuildGenesisIsDeterministic(t *testing.T) {
	ownerStr, _ := ownerBech32()
	body := string(bytes.ReplaceAll([]byte(yamlGenesis), []byte("%OWNER%"), []byte(ownerStr)))
	path := writeGenesis(t, "genesis.yml", body)

	roots := make([]common.Hash, 2)
	for i := range roots {
		spec, err := LoadGenesisSpec(path)
		require.NoError(t, err)
		db := storage.NewMemDB()
		roots[i], err = BuildGenesisFromSpec(spec, db)
		require.NoError(t, err)
		db.Close()
	}
	require.Equal(t, roots[0], roots[1])
}

func TestLoadGenesisSpecJSON(t *testing.T) {
	path := writeGenesis(t, "genesis.json", `{
  "owner": "0x00000000000000000000000000000000000000aa",
  "subscription": {"name": "Sub", "symbol": "SUB", "priceUsd": "12.5", "maxSupply": "10"}
}`)
	spec, err := LoadGenesisSpec(path)
	require.NoError(t, err)
	_, ok := spec.ChainIDValue()
	require.False(t, ok)
	require.Equal(t, "12500000000000000000", spec.Subscription.priceUSD.String())
}

func TestLoadGenesisSpecRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown field": `{"owner": "0x00000000000000000000000000000000000000aa", "bogus": 1}`,
		"bad owner":     `{"owner": "nope", "subscription": {"name": "S", "priceUsd": "1", "maxSupply": "1"}}`,
		"discount":      `{"owner": "0x00000000000000000000000000000000000000aa", "subscription": {"name": "S", "priceUsd": "1", "maxSupply": "1", "discountPercent": 100}}`,
		"zero supply":   `{"owner": "0x00000000000000000000000000000000000000aa", "subscription": {"name": "S", "priceUsd": "1", "maxSupply": "0"}}`,
		"schedule":      `{"owner": "0x00000000000000000000000000000000000000aa", "subscription": {"name": "S", "priceUsd": "1", "maxSupply": "1"}, "vesting": [{"schedule": "advisors"}]}`,
		"allocation":    `{"owner": "0x00000000000000000000000000000000000000aa", "subscription": {"name": "S", "priceUsd": "1", "maxSupply": "1"}, "native": {"0x00000000000000000000000000000000000000aa": "-5"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadGenesisSpec(writeGenesis(t, "genesis.json", body))
			require.Error(t, err)
		})
	}
}

func TestParseAndFormatUSD(t *testing.T) {
	v, err := ParseUSD("400")
	require.NoError(t, err)
	require.Equal(t, "400000000000000000000", v.String())
	require.Equal(t, "400", FormatUSD(v))

	_, err = ParseUSD("0.0000000000000000001")
	require.Error(t, err)
	_, err = ParseUSD("-1")
	require.Error(t, err)
}
