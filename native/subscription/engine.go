package subscription

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cdfichain/core/events"
	nativecommon "cdfichain/native/common"
	"cdfichain/native/oracle"
)

var (
	errNilState        = errors.New("subscription engine: state not configured")
	errNotInitialised  = errors.New("subscription engine: config not initialised")
	errNilNativePricer = errors.New("subscription engine: native price resolver not configured")
	errNilPoolPricer   = errors.New("subscription engine: pool price resolver not configured")
)

type engineState interface {
	nativecommon.OwnerView
	SetModuleOwner(module string, owner common.Address) error
	SubscriptionConfig() (*Config, error)
	PutSubscriptionConfig(*Config) error

	NFTMint(collection, to common.Address, id uint64, uri, additionalURI string) error
	NFTOwnerOf(collection common.Address, id uint64) (common.Address, bool, error)
	NFTMetadata(collection common.Address, id uint64) (uri string, additionalURI string, ok bool, err error)

	NativeBalance(addr common.Address) (*big.Int, error)
	TransferNative(from, to common.Address, amount *big.Int) error
	TokenBalance(token, holder common.Address) (*big.Int, error)
	TokenTransfer(token, from, to common.Address, amount *big.Int) error
	TokenTransferFrom(token, spender, from, to common.Address, amount *big.Int) error
}

type nativePricer interface {
	GetNativePrice(ctx context.Context) (*big.Int, error)
}

type poolPricer interface {
	GetPriceInCDFi(ctx context.Context, q oracle.PoolQuote) (*big.Int, error)
}

// Engine sells subscriptions and runs the treasury. Funds are held by the
// module vault, which is also the key of the subscription collection.
type Engine struct {
	state   engineState
	emitter events.Emitter
	native  nativePricer
	pool    poolPricer
	ctx     context.Context
	vault   common.Address
}

func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		ctx:     context.Background(),
		vault:   nativecommon.ModuleAddress(nativecommon.ModuleSubscription),
	}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPricers wires the native and pool price resolvers.
func (e *Engine) SetPricers(native nativePricer, pool poolPricer) {
	e.native = native
	e.pool = pool
}

// SetContext bounds the oracle reads made during the current call.
func (e *Engine) SetContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	e.ctx = ctx
}

// Vault returns the account holding the subscription treasury.
func (e *Engine) Vault() common.Address { return e.vault }

// Config returns a copy of the stored configuration.
func (e *Engine) Config() (*Config, error) {
	if e.state == nil {
		return nil, errNilState
	}
	cfg, err := e.state.SubscriptionConfig()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, errNotInitialised
	}
	if cfg.PriceUSD == nil {
		cfg.PriceUSD = big.NewInt(0)
	}
	if cfg.MaxSupply == nil {
		cfg.MaxSupply = big.NewInt(0)
	}
	return cfg, nil
}

func (e *Engine) Owner() (common.Address, error) {
	if e.state == nil {
		return common.Address{}, errNilState
	}
	return e.state.ModuleOwner(nativecommon.ModuleSubscription)
}

func (e *Engine) TotalMinted() (uint64, error) {
	cfg, err := e.Config()
	if err != nil {
		return 0, err
	}
	return cfg.Minted, nil
}

// OwnerOf returns the holder of a minted subscription.
func (e *Engine) OwnerOf(id uint64) (common.Address, error) {
	tok, err := e.Token(id)
	if err != nil {
		return common.Address{}, err
	}
	return tok.Owner, nil
}

func (e *Engine) TokenURI(id uint64) (string, error) {
	tok, err := e.Token(id)
	if err != nil {
		return "", err
	}
	return tok.URI, nil
}

func (e *Engine) GetAdditionalURI(id uint64) (string, error) {
	tok, err := e.Token(id)
	if err != nil {
		return "", err
	}
	return tok.AdditionalURI, nil
}

// Token loads a minted subscription. Unknown ids fail with ErrNonexistentToken.
func (e *Engine) Token(id uint64) (*Token, error) {
	if e.state == nil {
		return nil, errNilState
	}
	owner, ok, err := e.state.NFTOwnerOf(e.vault, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nonexistentToken(id)
	}
	uri, additional, _, err := e.state.NFTMetadata(e.vault, id)
	if err != nil {
		return nil, err
	}
	return &Token{ID: id, Owner: owner, URI: uri, AdditionalURI: additional}, nil
}

func (e *Engine) requireOwner(caller common.Address) error {
	if e.state == nil {
		return errNilState
	}
	return nativecommon.RequireOwner(e.state, nativecommon.ModuleSubscription, caller)
}
