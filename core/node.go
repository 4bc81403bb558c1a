package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	coreerrors "cdfichain/core/errors"
	"cdfichain/core/events"
	"cdfichain/core/genesis"
	"cdfichain/core/state"
	"cdfichain/core/types"
	"cdfichain/native/oracle"
	"cdfichain/native/vesting"
	"cdfichain/observability"
	cdfiotel "cdfichain/observability/otel"
	"cdfichain/storage"
	"cdfichain/storage/trie"
)

var (
	ErrInvalidSignature = errors.New("core: invalid transaction signature")
	ErrInvalidChainID   = errors.New("core: wrong chain id")
	ErrInvalidNonce     = errors.New("core: wrong nonce")
	ErrUnknownMethod    = errors.New("core: unknown method")
	ErrNotPayable       = errors.New("core: method does not accept value")
	ErrReceiptNotFound  = errors.New("core: receipt not found")
	ErrUnknownSchedule  = errors.New("core: unknown vesting schedule")
)

var (
	headKey       = []byte("cdfi/head")
	receiptPrefix = []byte("cdfi/receipt/")
)

// ReceiptSink receives every committed receipt. Sinks are called with the
// node lock released, so concurrent submitters may deliver out of height
// order. They must not block for long.
type ReceiptSink interface {
	PublishReceipt(*types.Receipt)
}

// Config wires a node. Schedules defaults to the built-in vesting timings and
// Meters to the global OpenTelemetry meter provider.
type Config struct {
	ChainID     uint64
	Directory   oracle.Directory
	MaxPriceAge time.Duration
	Schedules   map[string]vesting.Params
	Logger      *slog.Logger
	Meters      metric.MeterProvider
}

type headRecord struct {
	Height uint64
	Root   common.Hash
}

// Node owns the state trie and executes signed transactions one at a time.
// Every transaction runs against a copy of the trie that replaces the live
// one only when the call succeeds.
type Node struct {
	mu sync.Mutex

	db          storage.Database
	trie        *trie.Trie
	height      uint64
	chainID     uint64
	directory   oracle.Directory
	maxPriceAge time.Duration
	schedules   map[string]vesting.Params
	nowFn       func() time.Time

	logger      *slog.Logger
	tracer      trace.Tracer
	metrics     *observability.SubscriptionMetricsSet
	instruments *observability.LedgerInstruments

	sinkMu sync.RWMutex
	sinks  []ReceiptSink
}

// NewNode opens the node at the persisted head. On an empty database the
// genesis spec is applied first; spec may be nil once a head exists.
func NewNode(db storage.Database, cfg Config, spec *genesis.GenesisSpec) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database must not be nil")
	}
	if cfg.Directory == nil {
		return nil, fmt.Errorf("core: oracle directory must not be nil")
	}
	if spec != nil {
		if id, ok := spec.ChainIDValue(); ok && id != cfg.ChainID {
			return nil, fmt.Errorf("core: genesis chain id %d does not match configured %d", id, cfg.ChainID)
		}
	}
	head, ok, err := readHead(db)
	if err != nil {
		return nil, err
	}
	if !ok {
		if spec == nil {
			return nil, fmt.Errorf("core: empty database and no genesis spec")
		}
		root, err := genesis.BuildGenesisFromSpec(spec, db)
		if err != nil {
			return nil, fmt.Errorf("core: build genesis: %w", err)
		}
		head = &headRecord{Height: 0, Root: root}
		if err := writeHead(db, head); err != nil {
			return nil, err
		}
	}
	stateTrie, err := trie.NewTrie(db, head.Root.Bytes())
	if err != nil {
		return nil, fmt.Errorf("core: open state at %s: %w", head.Root.Hex(), err)
	}
	if err := state.NewManager(stateTrie).CheckStateVersion(); err != nil {
		return nil, err
	}

	schedules := cfg.Schedules
	if schedules == nil && spec != nil {
		schedules = spec.ScheduleParams()
	}
	if schedules == nil {
		schedules = map[string]vesting.Params{
			vesting.ScheduleTeam:      vesting.TeamParams(),
			vesting.ScheduleLiquidity: vesting.LiquidityParams(),
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	n := &Node{
		db:          db,
		trie:        stateTrie,
		height:      head.Height,
		chainID:     cfg.ChainID,
		directory:   cfg.Directory,
		maxPriceAge: cfg.MaxPriceAge,
		schedules:   schedules,
		nowFn:       time.Now,
		logger:      logger.With(slog.String("component", "executor")),
		tracer:      cdfiotel.Tracer(),
		metrics:     observability.SubscriptionMetrics(),
		instruments: observability.NewLedgerInstruments(cfg.Meters),
	}
	n.metrics.SetHeight(n.height)
	n.logger.Info("state opened",
		slog.Uint64("height", n.height),
		slog.String("root", head.Root.Hex()),
		slog.Uint64("chainId", n.chainID))
	return n, nil
}

// SetNowFunc overrides the clock used by vesting and price staleness checks.
func (n *Node) SetNowFunc(now func() time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if now == nil {
		now = time.Now
	}
	n.nowFn = now
}

// AddReceiptSink registers a subscriber for committed receipts.
func (n *Node) AddReceiptSink(sink ReceiptSink) {
	if sink == nil {
		return
	}
	n.sinkMu.Lock()
	n.sinks = append(n.sinks, sink)
	n.sinkMu.Unlock()
}

func (n *Node) ChainID() uint64 { return n.chainID }

func (n *Node) Height() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.height
}

func (n *Node) StateRoot() common.Hash {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.trie.Root()
}

// Execute validates and runs tx. Transactions with a bad signature, chain id,
// nonce or method are rejected with an error and leave no trace. Anything
// else produces a receipt: on failure the call's effects are discarded but
// the nonce is still consumed.
func (n *Node) Execute(ctx context.Context, tx *types.Transaction) (receipt *types.Receipt, err error) {
	if tx == nil {
		return nil, fmt.Errorf("core: nil transaction")
	}
	ctx, span := cdfiotel.StartExecution(ctx, n.tracer, tx.Method)
	defer func() {
		if err != nil {
			cdfiotel.RecordRejection(span, err)
		}
		span.End()
	}()
	start := time.Now()

	from, err := tx.From()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	cdfiotel.RecordSender(span, from.Hex())
	if tx.ChainID == nil || !tx.ChainID.IsUint64() || tx.ChainID.Uint64() != n.chainID {
		return nil, fmt.Errorf("%w: got %v want %d", ErrInvalidChainID, tx.ChainID, n.chainID)
	}
	method, ok := methods[tx.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, tx.Method)
	}
	value := tx.Value
	if value == nil {
		value = big.NewInt(0)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("core: negative value")
	}
	if value.Sign() > 0 && !method.payable {
		return nil, fmt.Errorf("%w: %s", ErrNotPayable, tx.Method)
	}

	n.mu.Lock()
	receipt, buffered, err := n.executeLocked(ctx, tx, from, value, method)
	n.mu.Unlock()
	if err != nil {
		return nil, err
	}

	cdfiotel.RecordReceipt(span, receipt.Status, receipt.Height, receipt.RevertReason)
	n.observe(ctx, receipt, method, buffered, time.Since(start))
	n.publish(receipt)
	return receipt, nil
}

func (n *Node) executeLocked(ctx context.Context, tx *types.Transaction, from common.Address, value *big.Int, method methodSpec) (*types.Receipt, []events.Event, error) {
	nonce, err := state.NewManager(n.trie).Nonce(from)
	if err != nil {
		return nil, nil, err
	}
	if tx.Nonce != nonce {
		return nil, nil, fmt.Errorf("%w: got %d want %d", ErrInvalidNonce, tx.Nonce, nonce)
	}

	hash, err := tx.Hash()
	if err != nil {
		return nil, nil, err
	}
	receipt := &types.Receipt{
		TxHash: hash,
		From:   from,
		Method: tx.Method,
		Status: types.ReceiptStatusSuccess,
		Events: []types.Event{},
	}

	work := n.trie.Copy()
	manager := state.NewManager(work)
	if err := manager.SetNonce(from, nonce+1); err != nil {
		return nil, nil, err
	}
	buf := &events.Buffer{}
	rt := n.newRuntime(ctx, manager, buf)
	call := &callContext{from: from, value: value, params: tx.Params}

	result, execErr := func() (map[string]string, error) {
		if value.Sign() > 0 {
			if err := manager.TransferNative(from, rt.subscription.Vault(), value); err != nil {
				return nil, err
			}
		}
		return method.run(rt, call)
	}()

	var buffered []events.Event
	if execErr != nil {
		receipt.Status = types.ReceiptStatusFailed
		receipt.RevertReason = coreerrors.RevertReason(execErr)
		work = n.trie.Copy()
		if err := state.NewManager(work).SetNonce(from, nonce+1); err != nil {
			return nil, nil, err
		}
	} else {
		receipt.Result = result
		receipt.Events = buf.Render()
		buffered = buf.Events()
	}

	height := n.height + 1
	root, err := work.Commit(height)
	if err != nil {
		return nil, nil, fmt.Errorf("core: commit state: %w", err)
	}
	receipt.Height = height
	receipt.StateRoot = root
	if err := writeHead(n.db, &headRecord{Height: height, Root: root}); err != nil {
		return nil, nil, err
	}
	if err := writeReceipt(n.db, receipt); err != nil {
		return nil, nil, err
	}
	n.trie = work
	n.height = height
	return receipt, buffered, nil
}

func (n *Node) observe(ctx context.Context, receipt *types.Receipt, method methodSpec, buffered []events.Event, took time.Duration) {
	reverted := !receipt.Succeeded()
	n.metrics.ObserveTx(receipt.Method, reverted, took)
	n.metrics.SetHeight(receipt.Height)
	if method.asset != "" {
		n.metrics.RecordPurchase(method.asset, reverted)
		n.instruments.RecordPurchase(ctx, method.asset, reverted)
	}
	for _, evt := range buffered {
		n.metrics.RecordEvent(evt.EventType())
		switch e := evt.(type) {
		case events.Failed:
			n.metrics.RecordRefundFailure()
			n.instruments.RecordRefundFailure(ctx)
		case events.Withdrawn:
			n.metrics.RecordWithdrawal(e.Kind)
			n.instruments.RecordWithdrawal(ctx, e.Kind)
		case events.TokenClaimed:
			n.metrics.RecordVestingClaim(e.Schedule)
			n.instruments.RecordVestingClaim(ctx, e.Schedule)
		}
	}

	attrs := []any{
		slog.String("txHash", receipt.TxHash.Hex()),
		slog.String("from", receipt.From.Hex()),
		slog.String("method", receipt.Method),
		slog.Uint64("height", receipt.Height),
		slog.Duration("took", took),
	}
	if reverted {
		n.logger.Warn("transaction reverted", append(attrs, slog.String("reason", receipt.RevertReason))...)
		return
	}
	n.logger.Info("transaction committed", append(attrs, slog.Int("events", len(receipt.Events)))...)
}

func (n *Node) publish(receipt *types.Receipt) {
	n.sinkMu.RLock()
	sinks := append([]ReceiptSink(nil), n.sinks...)
	n.sinkMu.RUnlock()
	for _, sink := range sinks {
		sink.PublishReceipt(receipt)
	}
}

// Receipt returns a committed receipt by transaction hash.
func (n *Node) Receipt(hash common.Hash) (*types.Receipt, error) {
	raw, err := n.db.Get(receiptKey(hash))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, err
	}
	var receipt types.Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, fmt.Errorf("core: decode receipt %s: %w", hash.Hex(), err)
	}
	return &receipt, nil
}

func receiptKey(hash common.Hash) []byte {
	return append(append([]byte(nil), receiptPrefix...), hash.Bytes()...)
}

func writeReceipt(db storage.Database, receipt *types.Receipt) error {
	raw, err := json.Marshal(receipt)
	if err != nil {
		return err
	}
	return db.Put(receiptKey(receipt.TxHash), raw)
}

func readHead(db storage.Database) (*headRecord, bool, error) {
	raw, err := db.Get(headKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var head headRecord
	if err := rlp.DecodeBytes(raw, &head); err != nil {
		return nil, false, fmt.Errorf("core: decode head: %w", err)
	}
	return &head, true, nil
}

func writeHead(db storage.Database, head *headRecord) error {
	raw, err := rlp.EncodeToBytes(head)
	if err != nil {
		return err
	}
	return db.Put(headKey, raw)
}
