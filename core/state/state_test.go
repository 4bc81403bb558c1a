package state

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"cdfichain/native/oracle"
	"cdfichain/native/subscription"
	"cdfichain/native/vesting"
	"cdfichain/storage"
	"cdfichain/storage/trie"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	token = common.HexToAddress("0x00000000000000000000000000000000000000d4")
)

func newTestManager(t *testing.T) (*Manager, *trie.Trie) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	require.NoError(t, err)
	return NewManager(tr), tr
}

func TestNativeLedger(t *testing.T) {
	m, _ := newTestManager(t)

	bal, err := m.NativeBalance(alice)
	require.NoError(t, err)
	require.Zero(t, bal.Sign())

	require.NoError(t, m.CreditNative(alice, big.NewInt(100)))
	require.NoError(t, m.TransferNative(alice, bob, big.NewInt(40)))
	require.ErrorIs(t, m.TransferNative(alice, bob, big.NewInt(61)), ErrInsufficientBalance)
	require.ErrorIs(t, m.CreditNative(alice, big.NewInt(-1)), ErrNegativeAmount)

	bal, err = m.NativeBalance(alice)
	require.NoError(t, err)
	require.Equal(t, int64(60), bal.Int64())
	bal, err = m.NativeBalance(bob)
	require.NoError(t, err)
	require.Equal(t, int64(40), bal.Int64())

	require.NoError(t, m.SetNonce(alice, 7))
	nonce, err := m.Nonce(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(7), nonce)
	bal, err = m.NativeBalance(alice)
	require.NoError(t, err)
	require.Equal(t, int64(60), bal.Int64(), "nonce update must keep the balance")
}

func TestTokenLedger(t *testing.T) {
	m, _ := newTestManager(t)

	require.NoError(t, m.MintToken(token, alice, big.NewInt(500)))
	supply, err := m.TokenSupply(token)
	require.NoError(t, err)
	require.Equal(t, int64(500), supply.Int64())

	require.NoError(t, m.TokenTransfer(token, alice, bob, big.NewInt(100)))
	require.ErrorIs(t, m.TokenTransfer(token, bob, alice, big.NewInt(101)), ErrInsufficientBalance)
	require.Error(t, m.TokenTransfer(token, alice, common.Address{}, big.NewInt(1)))

	require.ErrorIs(t, m.TokenTransferFrom(token, carol, alice, carol, big.NewInt(1)), ErrInsufficientAllowance)
	require.NoError(t, m.TokenTransferFrom(token, carol, alice, carol, big.NewInt(0)))

	require.NoError(t, m.TokenApprove(token, alice, carol, big.NewInt(50)))
	require.NoError(t, m.TokenTransferFrom(token, carol, alice, carol, big.NewInt(30)))
	allowance, err := m.TokenAllowance(token, alice, carol)
	require.NoError(t, err)
	require.Equal(t, int64(20), allowance.Int64())

	for holder, want := range map[common.Address]int64{alice: 370, bob: 100, carol: 30} {
		bal, err := m.TokenBalance(token, holder)
		require.NoError(t, err)
		require.Equal(t, want, bal.Int64(), holder.Hex())
	}
}

func TestNFTLedger(t *testing.T) {
	m, _ := newTestManager(t)
	collection := common.HexToAddress("0x00000000000000000000000000000000000000ee")

	require.NoError(t, m.SetNFTCollection(collection, NFTCollection{Name: "CDFiSubscription", Symbol: "CDS"}))
	meta, ok, err := m.NFTCollection(collection)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "CDS", meta.Symbol)

	require.NoError(t, m.NFTMint(collection, alice, 0, "metadata_uri", "extended_metadata_uri"))
	require.ErrorIs(t, m.NFTMint(collection, bob, 0, "", ""), ErrTokenExists)

	owner, ok, err := m.NFTOwnerOf(collection, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, alice, owner)

	_, ok, err = m.NFTOwnerOf(collection, 1)
	require.NoError(t, err)
	require.False(t, ok)

	uri, additional, ok, err := m.NFTMetadata(collection, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "metadata_uri", uri)
	require.Equal(t, "extended_metadata_uri", additional)

	require.ErrorIs(t, m.NFTTransfer(collection, bob, bob, 0), ErrNotTokenOwner)
	require.NoError(t, m.NFTApprove(collection, alice, bob, 0))
	approved, err := m.NFTGetApproved(collection, 0)
	require.NoError(t, err)
	require.Equal(t, bob, approved)
	require.NoError(t, m.NFTTransfer(collection, bob, carol, 0))

	owner, _, err = m.NFTOwnerOf(collection, 0)
	require.NoError(t, err)
	require.Equal(t, carol, owner)
	approved, err = m.NFTGetApproved(collection, 0)
	require.NoError(t, err)
	require.Equal(t, common.Address{}, approved)

	count, err := m.NFTBalanceOf(collection, alice)
	require.NoError(t, err)
	require.Zero(t, count)
	count, err = m.NFTBalanceOf(collection, carol)
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)

	require.ErrorIs(t, m.NFTApprove(collection, alice, bob, 9), ErrNonexistentToken)
}

func TestModuleRecords(t *testing.T) {
	m, _ := newTestManager(t)

	owner, err := m.ModuleOwner("subscription")
	require.NoError(t, err)
	require.Equal(t, common.Address{}, owner)
	require.NoError(t, m.SetModuleOwner("subscription", alice))
	owner, err = m.ModuleOwner("subscription")
	require.NoError(t, err)
	require.Equal(t, alice, owner)

	cfg, err := m.SubscriptionConfig()
	require.NoError(t, err)
	require.Nil(t, cfg)
	require.NoError(t, m.PutSubscriptionConfig(&subscription.Config{
		Name:               "CDFiSubscription",
		PriceUSD:           big.NewInt(400),
		MaxSupply:          big.NewInt(10),
		DiscountPercent:    40,
		CDFi:               token,
		Minted:             2,
		NextTokenID:        2,
		AllowCallerTokenID: true,
	}))
	cfg, err = m.SubscriptionConfig()
	require.NoError(t, err)
	require.Equal(t, int64(400), cfg.PriceUSD.Int64())
	require.Equal(t, uint8(40), cfg.DiscountPercent)
	require.Equal(t, token, cfg.CDFi)
	require.True(t, cfg.AllowCallerTokenID)

	binding, err := m.OracleBinding(31337)
	require.NoError(t, err)
	require.Nil(t, binding)
	require.NoError(t, m.PutOracleBinding(&oracle.Binding{ChainID: 31337, Feed: bob}))
	binding, err = m.OracleBinding(31337)
	require.NoError(t, err)
	require.Equal(t, bob, binding.Feed)
	require.Equal(t, common.Address{}, binding.Pool)

	require.NoError(t, m.PutVestingState(vesting.ScheduleTeam, &vesting.State{StartTime: 99, Claimed: big.NewInt(5), Token: token, Beneficiary: carol}))
	st, err := m.VestingState(vesting.ScheduleTeam)
	require.NoError(t, err)
	require.Equal(t, uint64(99), st.StartTime)
	require.Equal(t, carol, st.Beneficiary)
	st, err = m.VestingState(vesting.ScheduleLiquidity)
	require.NoError(t, err)
	require.Nil(t, st)
}

func TestStateVersion(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.CheckStateVersion())
	require.NoError(t, m.SetStateVersion(StateVersion))
	require.NoError(t, m.CheckStateVersion())
	require.NoError(t, m.SetStateVersion(StateVersion+1))
	require.ErrorIs(t, m.CheckStateVersion(), ErrStateVersionMismatch)
}

func TestRecordsSurviveCommit(t *testing.T) {
	m, tr := newTestManager(t)
	require.NoError(t, m.MintToken(token, alice, big.NewInt(9)))
	root, err := tr.Commit(1)
	require.NoError(t, err)

	reopened, err := trie.NewTrie(tr.Store(), root.Bytes())
	require.NoError(t, err)
	bal, err := NewManager(reopened).TokenBalance(token, alice)
	require.NoError(t, err)
	require.Equal(t, int64(9), bal.Int64())
}
