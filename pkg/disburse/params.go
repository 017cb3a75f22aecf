package disburse

import (
	"math/big"

	"github.com/ethereum/go-ethereum/params"
)

// Phase names used in logs, metrics and errors.
const (
	PhaseNative = "native"
	PhaseToken  = "token"
)

// Params are the fixed fee and value settings of both phases.
type Params struct {
	// GasPrice is paid by every transaction of both phases.
	GasPrice *big.Int
	// NativeValue is sent from the master to each account to cover its gas.
	NativeValue *big.Int
	// NativeGasLimit is the cost of a plain value transfer.
	NativeGasLimit uint64
	// TokenGasLimit bounds the token contract's transfer execution.
	TokenGasLimit uint64
}

// DefaultParams returns 5 gwei gas price, a 0.005 ether top-up, 21000 gas for
// transfers and 910000 gas for token calls.
func DefaultParams() Params {
	return Params{
		GasPrice:       new(big.Int).Mul(big.NewInt(5), big.NewInt(params.GWei)),
		NativeValue:    big.NewInt(5_000_000_000_000_000),
		NativeGasLimit: params.TxGas,
		TokenGasLimit:  910000,
	}
}

// GasBudget is the native currency a token transfer can consume.
func (p Params) GasBudget() *big.Int {
	return new(big.Int).Mul(p.GasPrice, new(big.Int).SetUint64(p.TokenGasLimit))
}
