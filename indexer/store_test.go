package indexer

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"cdfichain/core/types"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	store, err := New(db, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func receipt(height uint64, eventTypes ...string) *types.Receipt {
	r := &types.Receipt{
		TxHash:    common.BigToHash(new(big.Int).SetUint64(height)),
		From:      common.HexToAddress("0xb0b"),
		Method:    "subscription_buyWithNative",
		Status:    types.ReceiptStatusSuccess,
		Result:    map[string]string{"tokenId": fmt.Sprintf("%d", height)},
		Height:    height,
		StateRoot: common.HexToHash("0xabc"),
	}
	for _, typ := range eventTypes {
		r.Events = append(r.Events, types.Event{Type: typ, Attributes: map[string]string{"height": "ignored", "asset": "native"}})
	}
	return r
}

func TestIndexAndLoadReceipt(t *testing.T) {
	store := setupStore(t)
	r := receipt(1, "SubscriptionPurchased", "Failed")
	require.NoError(t, store.Index(r))

	row, err := store.Receipt(r.TxHash.Hex())
	require.NoError(t, err)
	require.Equal(t, uint64(1), row.Height)
	require.Equal(t, r.From.Hex(), row.From)
	require.JSONEq(t, `{"tokenId":"1"}`, row.Result)
	require.Len(t, row.Events, 2)
	require.Equal(t, "SubscriptionPurchased", row.Events[0].Type)
	require.Equal(t, "Failed", row.Events[1].Type)

	_, err = store.Receipt(common.Hash{9}.Hex())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestIndexIsIdempotent(t *testing.T) {
	store := setupStore(t)
	r := receipt(1, "SubscriptionPurchased")
	require.NoError(t, store.Index(r))
	require.NoError(t, store.Index(r))

	events, err := store.Events("", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestEventsFilterAndOrder(t *testing.T) {
	store := setupStore(t)
	store.PublishReceipt(receipt(1, "SubscriptionPurchased"))
	store.PublishReceipt(receipt(2, "USDTWithdrawn", "USDCWithdrawn", "CDFiWithdrawn"))
	store.PublishReceipt(receipt(3, "SubscriptionPurchased"))

	purchased, err := store.Events("SubscriptionPurchased", 0)
	require.NoError(t, err)
	require.Len(t, purchased, 2)
	require.Equal(t, "3", purchased[0].Attributes["height"])
	require.Equal(t, "1", purchased[1].Attributes["height"])
	require.Equal(t, "native", purchased[0].Attributes["asset"])

	latest, err := store.Events("", 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	require.Equal(t, "SubscriptionPurchased", latest[0].Type)
	require.Equal(t, "CDFiWithdrawn", latest[1].Type)
}

func TestFailedReceiptIndexedWithoutEvents(t *testing.T) {
	store := setupStore(t)
	r := receipt(4)
	r.Status = types.ReceiptStatusFailed
	r.RevertReason = "Max supply reached!"
	require.NoError(t, store.Index(r))

	row, err := store.Receipt(r.TxHash.Hex())
	require.NoError(t, err)
	require.Equal(t, "Max supply reached!", row.RevertReason)
	require.Empty(t, row.Events)
}
