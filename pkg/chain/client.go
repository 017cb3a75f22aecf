// Package chain is the boundary to the EVM node: connectivity, nonces,
// raw transaction broadcast and token balance reads.
package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client is the subset of node functionality the sweeper depends on.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	NetworkID(ctx context.Context) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	// NonceAt returns the confirmed transaction count of account.
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	// CallContract executes a read-only contract call.
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	// SendRawTransaction broadcasts a signed, wire-encoded transaction and
	// blocks until its receipt is available.
	SendRawTransaction(ctx context.Context, raw []byte) (*types.Receipt, error)
}

// EthClient adapts go-ethereum's ethclient to Client.
type EthClient struct {
	*ethclient.Client
}

// Dial connects to the node at rawurl.
func Dial(ctx context.Context, rawurl string) (*EthClient, error) {
	client, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", rawurl, err)
	}
	return NewEthClient(client), nil
}

// NewEthClient wraps an established RPC connection.
func NewEthClient(client *rpc.Client) *EthClient {
	return &EthClient{Client: ethclient.NewClient(client)}
}

// SendRawTransaction submits raw through eth_sendRawTransaction and waits
// until the node reports a receipt for its hash. Receipt lookups that fail
// while the node is still indexing are retried until ctx is done.
func (c *EthClient) SendRawTransaction(ctx context.Context, raw []byte) (*types.Receipt, error) {
	var hash common.Hash
	if err := c.Client.Client().CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Encode(raw)); err != nil {
		return nil, err
	}
	if hash == (common.Hash{}) {
		hash = crypto.Keccak256Hash(raw)
	}
	receipt, err := bind.WaitMined(ctx, c.Client, hash)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for receipt of %s: %w", hash.Hex(), err)
	}
	return receipt, nil
}
