package disburse

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/luxfi/cleanvault/pkg/chain"
	"github.com/luxfi/cleanvault/pkg/core"
	"github.com/luxfi/cleanvault/pkg/metrics"
	"github.com/luxfi/log"
)

// NativeDisburser tops up accounts with native currency from the master.
type NativeDisburser struct {
	dispatcher
	params Params
}

// NewNativeDisburser creates a disburser signing for chainID.
func NewNativeDisburser(client chain.Client, chainID *big.Int, params Params, logger log.Logger, m *metrics.Metrics) *NativeDisburser {
	return &NativeDisburser{
		dispatcher: newDispatcher(client, chainID, logger, m),
		params:     params,
	}
}

// Disburse sends params.NativeValue from master to each target in order.
func (n *NativeDisburser) Disburse(ctx context.Context, master *core.Account, targets []common.Address) (*Report, error) {
	transfers := make([]transfer, len(targets))
	for i, to := range targets {
		to := to
		transfers[i] = transfer{
			key:   master.PrivateKey,
			from:  master.Address,
			label: to.Hex(),
			build: func(nonce uint64) *types.LegacyTx {
				return &types.LegacyTx{
					Nonce:    nonce,
					GasPrice: n.params.GasPrice,
					Gas:      n.params.NativeGasLimit,
					To:       &to,
					Value:    n.params.NativeValue,
				}
			},
		}
	}

	n.log.Info("Sending native currency to accounts", "accounts", len(targets), "value", n.params.NativeValue)
	return n.run(ctx, PhaseNative, transfers)
}
