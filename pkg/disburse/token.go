package disburse

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/luxfi/cleanvault/pkg/chain"
	"github.com/luxfi/cleanvault/pkg/core"
	"github.com/luxfi/cleanvault/pkg/erc20"
	"github.com/luxfi/cleanvault/pkg/metrics"
	"github.com/luxfi/log"
)

// TokenDisburser moves every account's token balance to the master address.
// Each account pays its own gas.
type TokenDisburser struct {
	dispatcher
	params   Params
	contract common.Address
}

// NewTokenDisburser creates a disburser calling the token at contract.
func NewTokenDisburser(client chain.Client, chainID *big.Int, contract common.Address, params Params, logger log.Logger, m *metrics.Metrics) *TokenDisburser {
	return &TokenDisburser{
		dispatcher: newDispatcher(client, chainID, logger, m),
		params:     params,
		contract:   contract,
	}
}

// Disburse transfers each account's amount to master, in order. Every payload
// is encoded before the first send, so an amount that does not fit its slot
// stops the phase before anything is broadcast.
func (t *TokenDisburser) Disburse(ctx context.Context, accounts []*core.Account, master common.Address) (*Report, error) {
	transfers := make([]transfer, len(accounts))
	for i, acc := range accounts {
		data, err := erc20.EncodeTransfer(master, acc.Amount)
		if err != nil {
			return &Report{Phase: PhaseToken, Receipts: []*types.Receipt{}, Cursor: i},
				&core.DispatchError{Phase: PhaseToken, Index: i, Address: acc.Address.Hex(), Err: err}
		}
		transfers[i] = transfer{
			key:   acc.PrivateKey,
			from:  acc.Address,
			label: acc.Address.Hex(),
			build: func(nonce uint64) *types.LegacyTx {
				return &types.LegacyTx{
					Nonce:    nonce,
					GasPrice: t.params.GasPrice,
					Gas:      t.params.TokenGasLimit,
					To:       &t.contract,
					Value:    new(big.Int),
					Data:     data,
				}
			},
		}
	}

	t.log.Info("Sending tokens to master", "accounts", len(accounts), "total", core.TotalAmount(accounts), "master", master.Hex())
	return t.run(ctx, PhaseToken, transfers)
}
