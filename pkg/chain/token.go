package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/luxfi/cleanvault/pkg/erc20"
)

// Token is a read-only binding to a fungible token contract.
type Token struct {
	client  Client
	address common.Address
}

// NewToken binds the token contract deployed at address.
func NewToken(client Client, address common.Address) *Token {
	return &Token{client: client, address: address}
}

// Address returns the contract address.
func (t *Token) Address() common.Address {
	return t.address
}

// BalanceOf returns the token balance of holder at the latest block.
func (t *Token) BalanceOf(ctx context.Context, holder common.Address) (*big.Int, error) {
	data, err := erc20.PackBalanceOf(holder)
	if err != nil {
		return nil, err
	}
	to := t.address
	output, err := t.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	return erc20.UnpackBalanceOf(output)
}
