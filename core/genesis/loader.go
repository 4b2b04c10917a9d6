package genesis

import (
	"context"
	"fmt"

	"questchain/core"
)

// Apply instantiates ledger from spec. A ledger that is already initialized is
// left untouched and Apply returns a nil result, so nodes can replay the same
// genesis on every start.
func Apply(ctx context.Context, ledger *core.Ledger, spec *GenesisSpec) (*core.Result, error) {
	if spec == nil {
		return nil, fmt.Errorf("genesis spec must not be nil")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger must not be nil")
	}
	initialized, err := ledger.IsInitialized()
	if err != nil {
		return nil, err
	}
	if initialized {
		return nil, nil
	}
	res, err := ledger.InstantiateAt(ctx, spec.Initializer, spec.InstantiateMsg(), spec.GenesisTimestamp())
	if err != nil {
		return nil, fmt.Errorf("apply genesis: %w", err)
	}
	return res, nil
}
