// core/genesis/spec.go
package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"cdfichain/crypto"
	"cdfichain/native/vesting"
)

// usdDecimals is the precision of on-chain USD amounts.
const usdDecimals = 18

type GenesisSpec struct {
	ChainID      *uint64                      `json:"chainId,omitempty" yaml:"chainId,omitempty"`
	Owner        string                       `json:"owner" yaml:"owner"`
	Subscription SubscriptionSpec             `json:"subscription" yaml:"subscription"`
	Oracles      []OracleSpec                 `json:"oracles,omitempty" yaml:"oracles,omitempty"`
	Vesting      []VestingSpec                `json:"vesting,omitempty" yaml:"vesting,omitempty"`
	Native       map[string]string            `json:"native,omitempty" yaml:"native,omitempty"` // addr -> amount
	Tokens       map[string]map[string]string `json:"tokens,omitempty" yaml:"tokens,omitempty"` // token -> addr -> amount

	owner common.Address
}

type SubscriptionSpec struct {
	Name               string `json:"name" yaml:"name"`
	Symbol             string `json:"symbol" yaml:"symbol"`
	PriceUSD           string `json:"priceUsd" yaml:"priceUsd"`
	DiscountPercent    uint8  `json:"discountPercent" yaml:"discountPercent"`
	MaxSupply          string `json:"maxSupply" yaml:"maxSupply"`
	USDT               string `json:"usdt,omitempty" yaml:"usdt,omitempty"`
	USDC               string `json:"usdc,omitempty" yaml:"usdc,omitempty"`
	CDFi               string `json:"cdfi,omitempty" yaml:"cdfi,omitempty"`
	AllowCallerTokenID bool   `json:"allowCallerTokenId,omitempty" yaml:"allowCallerTokenId,omitempty"`

	priceUSD  *big.Int
	maxSupply *big.Int
	usdt      common.Address
	usdc      common.Address
	cdfi      common.Address
}

type OracleSpec struct {
	ChainID uint64 `json:"chainId" yaml:"chainId"`
	Feed    string `json:"feed,omitempty" yaml:"feed,omitempty"`
	Pool    string `json:"pool,omitempty" yaml:"pool,omitempty"`

	feed common.Address
	pool common.Address
}

// VestingSpec seeds one schedule. Cliff and Duration are Go duration strings
// and replace the schedule's built-in timing when set.
type VestingSpec struct {
	Schedule    string `json:"schedule" yaml:"schedule"`
	Token       string `json:"token,omitempty" yaml:"token,omitempty"`
	Beneficiary string `json:"beneficiary,omitempty" yaml:"beneficiary,omitempty"`
	Owner       string `json:"owner,omitempty" yaml:"owner,omitempty"`
	Cliff       string `json:"cliff,omitempty" yaml:"cliff,omitempty"`
	Duration    string `json:"duration,omitempty" yaml:"duration,omitempty"`
	// Amount is minted to the schedule vault in the schedule's token.
	Amount      string `json:"amount,omitempty" yaml:"amount,omitempty"`

	amount      *big.Int
	token       common.Address
	beneficiary common.Address
	owner       common.Address
	params      vesting.Params
}

// LoadGenesisSpec reads a genesis file. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	var spec GenesisSpec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("decode genesis spec %q: %w", path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("decode genesis spec %q: %w", path, err)
		}
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis spec %q: %w", path, err)
	}
	return &spec, nil
}

// ChainIDValue reports the chain id pinned by the genesis file, if any.
func (s *GenesisSpec) ChainIDValue() (uint64, bool) {
	if s.ChainID == nil {
		return 0, false
	}
	return *s.ChainID, true
}

// ScheduleParams returns the effective timing of every vesting schedule,
// including the built-in ones the file does not mention.
func (s *GenesisSpec) ScheduleParams() map[string]vesting.Params {
	out := map[string]vesting.Params{
		vesting.ScheduleTeam:      vesting.TeamParams(),
		vesting.ScheduleLiquidity: vesting.LiquidityParams(),
	}
	for _, v := range s.Vesting {
		if v.params.ID != "" {
			out[v.params.ID] = v.params
		}
	}
	return out
}

func (s *GenesisSpec) validate() error {
	owner, err := crypto.ParseAddress(s.Owner)
	if err != nil {
		return fmt.Errorf("owner: %w", err)
	}
	s.owner = owner

	if err := s.Subscription.validate(); err != nil {
		return fmt.Errorf("subscription: %w", err)
	}

	seenChains := make(map[uint64]struct{}, len(s.Oracles))
	for i := range s.Oracles {
		o := &s.Oracles[i]
		if _, dup := seenChains[o.ChainID]; dup {
			return fmt.Errorf("oracles[%d]: duplicate chainId %d", i, o.ChainID)
		}
		seenChains[o.ChainID] = struct{}{}
		if o.feed, err = optionalAddress(o.Feed); err != nil {
			return fmt.Errorf("oracles[%d].feed: %w", i, err)
		}
		if o.pool, err = optionalAddress(o.Pool); err != nil {
			return fmt.Errorf("oracles[%d].pool: %w", i, err)
		}
	}

	seenSchedules := make(map[string]struct{}, len(s.Vesting))
	for i := range s.Vesting {
		v := &s.Vesting[i]
		if err := v.validate(s.owner); err != nil {
			return fmt.Errorf("vesting[%d]: %w", i, err)
		}
		if _, dup := seenSchedules[v.params.ID]; dup {
			return fmt.Errorf("vesting[%d]: duplicate schedule %q", i, v.Schedule)
		}
		seenSchedules[v.params.ID] = struct{}{}
	}

	for _, account := range sortedKeys(s.Native) {
		if _, err := crypto.ParseAddress(account); err != nil {
			return fmt.Errorf("native[%q]: %w", account, err)
		}
		if _, err := parseAmount(s.Native[account]); err != nil {
			return fmt.Errorf("native[%q]: %w", account, err)
		}
	}
	for _, token := range sortedKeys(s.Tokens) {
		if _, err := crypto.ParseAddress(token); err != nil {
			return fmt.Errorf("tokens[%q]: %w", token, err)
		}
		holders := s.Tokens[token]
		for _, account := range sortedKeys(holders) {
			if _, err := crypto.ParseAddress(account); err != nil {
				return fmt.Errorf("tokens[%q][%q]: %w", token, account, err)
			}
			if _, err := parseAmount(holders[account]); err != nil {
				return fmt.Errorf("tokens[%q][%q]: %w", token, account, err)
			}
		}
	}
	return nil
}

func (sub *SubscriptionSpec) validate() error {
	if strings.TrimSpace(sub.Name) == "" {
		return fmt.Errorf("name must be provided")
	}
	price, err := ParseUSD(sub.PriceUSD)
	if err != nil {
		return fmt.Errorf("priceUsd: %w", err)
	}
	if price.Sign() == 0 {
		return fmt.Errorf("priceUsd must be positive")
	}
	sub.priceUSD = price
	if sub.DiscountPercent > 99 {
		return fmt.Errorf("discountPercent must be below 100")
	}
	maxSupply, err := parseAmount(sub.MaxSupply)
	if err != nil {
		return fmt.Errorf("maxSupply: %w", err)
	}
	if maxSupply.Sign() == 0 {
		return fmt.Errorf("maxSupply must be positive")
	}
	sub.maxSupply = maxSupply
	if sub.usdt, err = optionalAddress(sub.USDT); err != nil {
		return fmt.Errorf("usdt: %w", err)
	}
	if sub.usdc, err = optionalAddress(sub.USDC); err != nil {
		return fmt.Errorf("usdc: %w", err)
	}
	if sub.cdfi, err = optionalAddress(sub.CDFi); err != nil {
		return fmt.Errorf("cdfi: %w", err)
	}
	return nil
}

func (v *VestingSpec) validate(defaultOwner common.Address) error {
	switch strings.TrimSpace(v.Schedule) {
	case vesting.ScheduleTeam:
		v.params = vesting.TeamParams()
	case vesting.ScheduleLiquidity:
		v.params = vesting.LiquidityParams()
	default:
		return fmt.Errorf("unknown schedule %q", v.Schedule)
	}
	var err error
	if v.token, err = optionalAddress(v.Token); err != nil {
		return fmt.Errorf("token: %w", err)
	}
	if v.beneficiary, err = optionalAddress(v.Beneficiary); err != nil {
		return fmt.Errorf("beneficiary: %w", err)
	}
	v.owner = defaultOwner
	if strings.TrimSpace(v.Owner) != "" {
		if v.owner, err = crypto.ParseAddress(v.Owner); err != nil {
			return fmt.Errorf("owner: %w", err)
		}
	}
	if strings.TrimSpace(v.Cliff) != "" {
		if v.params.Cliff, err = time.ParseDuration(v.Cliff); err != nil {
			return fmt.Errorf("cliff: %w", err)
		}
	}
	if strings.TrimSpace(v.Duration) != "" {
		if v.params.Duration, err = time.ParseDuration(v.Duration); err != nil {
			return fmt.Errorf("duration: %w", err)
		}
	}
	if strings.TrimSpace(v.Amount) != "" {
		if v.token == (common.Address{}) {
			return fmt.Errorf("amount requires a token")
		}
		if v.amount, err = parseAmount(v.Amount); err != nil {
			return fmt.Errorf("amount: %w", err)
		}
	}
	if v.params.Cliff < 0 || v.params.Duration < 0 {
		return fmt.Errorf("cliff and duration must not be negative")
	}
	return nil
}

// ParseUSD converts a decimal dollar string such as "400" or "12.5" into an
// 18 decimal fixed point integer. Finer precision is rejected.
func ParseUSD(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount must be provided")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount must not be negative")
	}
	scaled := d.Shift(usdDecimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimals", value, usdDecimals)
	}
	return scaled.BigInt(), nil
}

// FormatUSD renders an 18 decimal USD amount as a plain decimal string.
func FormatUSD(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -usdDecimals).String()
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount must be provided")
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return amount.ToBig(), nil
}

func optionalAddress(value string) (common.Address, error) {
	if strings.TrimSpace(value) == "" {
		return common.Address{}, nil
	}
	return crypto.ParseAddress(value)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
