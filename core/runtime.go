package core

import (
	"context"
	"fmt"

	"cdfichain/core/events"
	"cdfichain/core/state"
	"cdfichain/native/oracle"
	"cdfichain/native/subscription"
	"cdfichain/native/vesting"
)

// runtime binds one set of module engines to a state view. Each transaction
// gets a fresh runtime over its own trie copy and event buffer.
type runtime struct {
	state        *state.Manager
	registry     *oracle.Registry
	native       *oracle.NativePriceResolver
	pool         *oracle.PoolPriceResolver
	subscription *subscription.Engine
	schedules    map[string]*vesting.Schedule
}

func (n *Node) newRuntime(ctx context.Context, manager *state.Manager, emitter events.Emitter) *runtime {
	now := func() int64 { return n.nowFn().Unix() }

	registry := oracle.NewRegistry()
	registry.SetState(manager)
	registry.SetEmitter(emitter)

	native := oracle.NewNativePriceResolver(registry, n.directory, n.chainID)
	native.SetMaxAge(n.maxPriceAge)
	native.SetNowFunc(now)
	pool := oracle.NewPoolPriceResolver(registry, n.directory, n.chainID, native)

	engine := subscription.NewEngine()
	engine.SetState(manager)
	engine.SetEmitter(emitter)
	engine.SetPricers(native, pool)
	engine.SetContext(ctx)

	schedules := make(map[string]*vesting.Schedule, len(n.schedules))
	for id, params := range n.schedules {
		s := vesting.NewSchedule(params)
		s.SetState(manager)
		s.SetEmitter(emitter)
		s.SetNowFunc(now)
		schedules[id] = s
	}
	return &runtime{
		state:        manager,
		registry:     registry,
		native:       native,
		pool:         pool,
		subscription: engine,
		schedules:    schedules,
	}
}

func (rt *runtime) schedule(id string) (*vesting.Schedule, error) {
	s, ok := rt.schedules[id]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownSchedule, id)
	}
	return s, nil
}
