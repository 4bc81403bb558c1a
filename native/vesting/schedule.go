package vesting

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "cdfichain/core/errors"
	"cdfichain/core/events"
	nativecommon "cdfichain/native/common"
)

var errNilState = errors.New("vesting schedule: state not configured")

// Phase is the lifecycle position of a schedule.
type Phase string

const (
	PhaseNotStarted  Phase = "not_started"
	PhaseVesting     Phase = "vesting"
	PhaseFullyVested Phase = "fully_vested"
)

// State is the persisted part of a schedule. The token balance is read from
// the ledger whenever it is needed.
type State struct {
	StartTime   uint64
	Claimed     *big.Int
	Token       common.Address
	Beneficiary common.Address
}

type scheduleState interface {
	nativecommon.OwnerView
	VestingState(id string) (*State, error)
	PutVestingState(id string, st *State) error
	TokenBalance(token, holder common.Address) (*big.Int, error)
	TokenTransfer(token, from, to common.Address, amount *big.Int) error
}

// Schedule is a linear release with a cliff over the tokens held by its
// vault. It starts once and is otherwise only driven by the clock.
type Schedule struct {
	params  Params
	state   scheduleState
	emitter events.Emitter
	nowFn   func() int64
	vault   common.Address
}

func NewSchedule(params Params) *Schedule {
	return &Schedule{
		params:  params,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		vault:   nativecommon.ModuleAddress(params.Module),
	}
}

func (s *Schedule) SetState(state scheduleState) { s.state = state }

func (s *Schedule) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		s.emitter = events.NoopEmitter{}
		return
	}
	s.emitter = emitter
}

// SetNowFunc overrides the clock. Primarily intended for tests.
func (s *Schedule) SetNowFunc(now func() int64) {
	if now == nil {
		s.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	s.nowFn = now
}

func (s *Schedule) Params() Params        { return s.params }
func (s *Schedule) Vault() common.Address { return s.vault }

// Snapshot returns the persisted state.
func (s *Schedule) Snapshot() (*State, error) {
	if s.state == nil {
		return nil, errNilState
	}
	st, err := s.state.VestingState(s.params.ID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		st = &State{}
	}
	if st.Claimed == nil {
		st.Claimed = big.NewInt(0)
	}
	return st, nil
}

// StartVesting stamps the start time. It can only happen once.
func (s *Schedule) StartVesting(caller common.Address) error {
	st, err := s.authorized(caller)
	if err != nil {
		return err
	}
	if st.StartTime != 0 {
		return coreerrors.Revertf("Vesting already started!")
	}
	now := s.now()
	st.StartTime = now
	if err := s.state.PutVestingState(s.params.ID, st); err != nil {
		return err
	}
	s.emitter.Emit(events.VestingStarted{Schedule: s.params.ID, StartTime: now})
	return nil
}

// VestedAmount is the cumulative amount released by the clock so far, out of
// everything the schedule ever held (current balance plus claims).
func (s *Schedule) VestedAmount() (*big.Int, error) {
	st, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.vested(st)
}

// Releasable is the vested amount not yet claimed.
func (s *Schedule) Releasable() (*big.Int, error) {
	st, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.releasable(st)
}

// WithdrawVestedTokens sends the releasable amount to the beneficiary. A zero
// claim is allowed and still emits TokenClaimed.
func (s *Schedule) WithdrawVestedTokens(caller common.Address) (*big.Int, error) {
	st, err := s.authorized(caller)
	if err != nil {
		return nil, err
	}
	if st.StartTime == 0 || s.now() < st.StartTime+uint64(s.params.Cliff/time.Second) {
		return nil, coreerrors.Revertf("Vesting under cliff!")
	}
	amount, err := s.releasable(st)
	if err != nil {
		return nil, err
	}
	if amount.Sign() > 0 {
		if err := s.state.TokenTransfer(st.Token, s.vault, st.Beneficiary, amount); err != nil {
			return nil, fmt.Errorf("vesting %s: release: %w", s.params.ID, err)
		}
		st.Claimed = new(big.Int).Add(st.Claimed, amount)
		if err := s.state.PutVestingState(s.params.ID, st); err != nil {
			return nil, err
		}
	}
	s.emitter.Emit(events.TokenClaimed{Schedule: s.params.ID, Beneficiary: st.Beneficiary, Amount: amount})
	return amount, nil
}

func (s *Schedule) SetTokenAddress(caller, token common.Address) error {
	st, err := s.authorized(caller)
	if err != nil {
		return err
	}
	st.Token = token
	if err := s.state.PutVestingState(s.params.ID, st); err != nil {
		return err
	}
	s.emitter.Emit(events.TokenAddressSetted{Schedule: s.params.ID, Token: token})
	return nil
}

func (s *Schedule) SetTeamWallet(caller, wallet common.Address) error {
	st, err := s.authorized(caller)
	if err != nil {
		return err
	}
	st.Beneficiary = wallet
	if err := s.state.PutVestingState(s.params.ID, st); err != nil {
		return err
	}
	s.emitter.Emit(events.TeamWalletChanged{Schedule: s.params.ID, Wallet: wallet})
	return nil
}

// Phase reports where the schedule is at the current time.
func (s *Schedule) Phase() (Phase, error) {
	st, err := s.Snapshot()
	if err != nil {
		return "", err
	}
	switch {
	case st.StartTime == 0:
		return PhaseNotStarted, nil
	case s.now() >= st.StartTime+uint64(s.params.Duration/time.Second):
		return PhaseFullyVested, nil
	default:
		return PhaseVesting, nil
	}
}

func (s *Schedule) vested(st *State) (*big.Int, error) {
	if st.StartTime == 0 {
		return big.NewInt(0), nil
	}
	balance := big.NewInt(0)
	if st.Token != (common.Address{}) {
		var err error
		balance, err = s.state.TokenBalance(st.Token, s.vault)
		if err != nil {
			return nil, err
		}
	}
	total := new(big.Int).Add(balance, st.Claimed)
	now := s.now()
	if now <= st.StartTime {
		if s.params.Duration <= 0 {
			return total, nil
		}
		return big.NewInt(0), nil
	}
	elapsed := now - st.StartTime
	duration := uint64(s.params.Duration / time.Second)
	if duration == 0 || elapsed >= duration {
		return total, nil
	}
	out := new(big.Int).Mul(total, new(big.Int).SetUint64(elapsed))
	return out.Quo(out, new(big.Int).SetUint64(duration)), nil
}

func (s *Schedule) releasable(st *State) (*big.Int, error) {
	vested, err := s.vested(st)
	if err != nil {
		return nil, err
	}
	out := new(big.Int).Sub(vested, st.Claimed)
	if out.Sign() < 0 {
		out.SetInt64(0)
	}
	return out, nil
}

func (s *Schedule) authorized(caller common.Address) (*State, error) {
	if s.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.RequireOwner(s.state, s.params.Module, caller); err != nil {
		return nil, err
	}
	return s.Snapshot()
}

func (s *Schedule) now() uint64 {
	now := s.nowFn()
	if now < 0 {
		return 0
	}
	return uint64(now)
}
