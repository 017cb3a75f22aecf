// Package disburse sends the two sweep phases: native currency from the
// master to every unlocked account, then every account's tokens back.
package disburse

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/luxfi/cleanvault/pkg/chain"
	"github.com/luxfi/cleanvault/pkg/core"
	"github.com/luxfi/cleanvault/pkg/metrics"
	"github.com/luxfi/log"
)

// Report is the outcome of one disbursement phase. Receipts are in send
// order. Cursor is the index of the next target: 0 after a completed phase,
// the failing index after an aborted one.
type Report struct {
	Phase    string
	Receipts []*types.Receipt
	Cursor   int
}

// Completed reports whether every target was paid.
func (r *Report) Completed(targets int) bool {
	return r.Cursor == 0 && len(r.Receipts) == targets
}

// transfer is one outbound transaction before its nonce is known.
type transfer struct {
	key   *ecdsa.PrivateKey
	from  common.Address
	label string
	build func(nonce uint64) *types.LegacyTx
}

type dispatcher struct {
	client  chain.Client
	signer  types.Signer
	log     log.Logger
	metrics *metrics.Metrics
}

func newDispatcher(client chain.Client, chainID *big.Int, logger log.Logger, m *metrics.Metrics) dispatcher {
	return dispatcher{
		client:  client,
		signer:  types.LatestSignerForChainID(chainID),
		log:     logger,
		metrics: m,
	}
}

// run sends transfers strictly one after another. The first failure stops the
// phase; receipts collected so far are returned with the error.
func (d *dispatcher) run(ctx context.Context, phase string, transfers []transfer) (*Report, error) {
	report := &Report{Phase: phase, Receipts: make([]*types.Receipt, 0, len(transfers))}

	for report.Cursor < len(transfers) {
		t := transfers[report.Cursor]
		receipt, err := d.send(ctx, phase, t)
		if err != nil {
			d.metrics.TxFailed.WithLabelValues(phase).Inc()
			d.log.Error("Failed to send transaction", "phase", phase, "account", t.label, "index", report.Cursor, "error", err)
			return report, &core.DispatchError{Phase: phase, Index: report.Cursor, Address: t.label, Err: err}
		}
		report.Receipts = append(report.Receipts, receipt)
		report.Cursor++
	}

	report.Cursor = 0
	return report, nil
}

func (d *dispatcher) send(ctx context.Context, phase string, t transfer) (*types.Receipt, error) {
	nonce, err := d.client.NonceAt(ctx, t.from, nil)
	if err != nil {
		return nil, &core.NonceQueryError{Address: t.from.Hex(), Err: err}
	}

	tx, err := types.SignNewTx(t.key, d.signer, t.build(nonce))
	if err != nil {
		return nil, err
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, err
	}

	d.log.Info("Sending transaction", "phase", phase, "account", t.label, "nonce", nonce, "hash", tx.Hash().Hex())
	receipt, err := d.client.SendRawTransaction(ctx, raw)
	if err != nil {
		return nil, &core.BroadcastError{TxHash: tx.Hash().Hex(), Err: err}
	}

	d.metrics.TxSent.WithLabelValues(phase).Inc()
	if receipt.Status == types.ReceiptStatusFailed {
		d.metrics.TxReverted.WithLabelValues(phase).Inc()
		d.log.Warn("Transaction failed on-chain", "phase", phase, "account", t.label, "hash", receipt.TxHash.Hex(), "gasUsed", receipt.GasUsed)
	}
	return receipt, nil
}
