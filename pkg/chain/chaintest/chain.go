// Package chaintest provides an in-memory chain that satisfies chain.Client.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/luxfi/cleanvault/pkg/erc20"
)

// ErrUnreachable is returned by every call once the chain is marked offline.
var ErrUnreachable = errors.New("chaintest: node unreachable")

// Chain records every accepted transaction and tracks confirmed nonces per sender.
type Chain struct {
	mu sync.Mutex

	chainID  *big.Int
	signer   types.Signer
	head     uint64
	nonces   map[common.Address]uint64
	balances map[common.Address]*big.Int

	// Offline makes every call fail with ErrUnreachable.
	Offline bool
	// FailSend is consulted before each broadcast with the zero-based send
	// count; a non-nil error rejects the transaction.
	FailSend func(n int, tx *types.Transaction) error
	// FailBalance is consulted before each balanceOf call.
	FailBalance func(holder common.Address) error
	// Revert marks the receipt of a transaction as failed on-chain.
	Revert func(tx *types.Transaction) bool

	Sent        []*types.Transaction
	Senders     []common.Address
	sendCalls   int
	nonceCalls  int
	balanceCall int
}

// New creates an empty chain with the given chain id.
func New(chainID int64) *Chain {
	id := big.NewInt(chainID)
	return &Chain{
		chainID:  id,
		signer:   types.LatestSignerForChainID(id),
		head:     1,
		nonces:   make(map[common.Address]uint64),
		balances: make(map[common.Address]*big.Int),
	}
}

// SetTokenBalance sets the token balance reported for holder.
func (c *Chain) SetTokenBalance(holder common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[holder] = new(big.Int).Set(amount)
}

// SetNonce sets the confirmed transaction count of account.
func (c *Chain) SetNonce(account common.Address, nonce uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nonces[account] = nonce
}

// Nonce returns the confirmed transaction count of account.
func (c *Chain) Nonce(account common.Address) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonces[account]
}

// NonceCalls returns how many times NonceAt was called.
func (c *Chain) NonceCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonceCalls
}

// BalanceCalls returns how many balanceOf calls were served.
func (c *Chain) BalanceCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balanceCall
}

func (c *Chain) BlockNumber(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Offline {
		return 0, ErrUnreachable
	}
	return c.head, nil
}

func (c *Chain) NetworkID(ctx context.Context) (*big.Int, error) {
	return c.ChainID(ctx)
}

func (c *Chain) ChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Offline {
		return nil, ErrUnreachable
	}
	return new(big.Int).Set(c.chainID), nil
}

func (c *Chain) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Offline {
		return 0, ErrUnreachable
	}
	c.nonceCalls++
	return c.nonces[account], nil
}

// CallContract answers balanceOf calls from the configured balances.
func (c *Chain) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if len(call.Data) != 36 || common.Bytes2Hex(call.Data[:4]) != "70a08231" {
		return nil, fmt.Errorf("chaintest: unsupported call %x", call.Data)
	}
	holder := common.BytesToAddress(call.Data[4:])

	c.mu.Lock()
	offline, fail := c.Offline, c.FailBalance
	c.balanceCall++
	balance := new(big.Int)
	if b, ok := c.balances[holder]; ok {
		balance.Set(b)
	}
	c.mu.Unlock()

	if offline {
		return nil, ErrUnreachable
	}
	if fail != nil {
		if err := fail(holder); err != nil {
			return nil, err
		}
	}
	return common.LeftPadBytes(balance.Bytes(), 32), nil
}

// SendRawTransaction decodes raw, checks the signature and nonce, and mines it
// immediately.
func (c *Chain) SendRawTransaction(ctx context.Context, raw []byte) (*types.Receipt, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("chaintest: invalid transaction encoding: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Offline {
		return nil, ErrUnreachable
	}
	n := c.sendCalls
	c.sendCalls++
	if c.FailSend != nil {
		if err := c.FailSend(n, tx); err != nil {
			return nil, err
		}
	}

	sender, err := types.Sender(c.signer, tx)
	if err != nil {
		return nil, fmt.Errorf("chaintest: invalid signature: %w", err)
	}
	if want := c.nonces[sender]; tx.Nonce() != want {
		return nil, fmt.Errorf("chaintest: nonce %d for %s, expected %d", tx.Nonce(), sender.Hex(), want)
	}
	c.nonces[sender]++
	c.head++
	c.Sent = append(c.Sent, tx)
	c.Senders = append(c.Senders, sender)

	status := types.ReceiptStatusSuccessful
	if c.Revert != nil && c.Revert(tx) {
		status = types.ReceiptStatusFailed
	}
	if status == types.ReceiptStatusSuccessful && len(tx.Data()) > 0 {
		c.applyTransfer(sender, tx)
	}
	return &types.Receipt{
		Type:              tx.Type(),
		Status:            status,
		CumulativeGasUsed: tx.Gas(),
		GasUsed:           tx.Gas(),
		TxHash:            tx.Hash(),
		BlockNumber:       new(big.Int).SetUint64(c.head),
		Logs:              []*types.Log{},
	}, nil
}

func (c *Chain) applyTransfer(sender common.Address, tx *types.Transaction) {
	to, amount, err := erc20.DecodeTransfer(tx.Data())
	if err != nil {
		return
	}
	from, ok := c.balances[sender]
	if !ok || from.Cmp(amount) < 0 {
		return
	}
	from.Sub(from, amount)
	if c.balances[to] == nil {
		c.balances[to] = new(big.Int)
	}
	c.balances[to].Add(c.balances[to], amount)
}
