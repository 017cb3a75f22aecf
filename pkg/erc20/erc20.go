// Package erc20 builds the call payloads the sweeper sends to a fungible token contract.
package erc20

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/luxfi/cleanvault/pkg/core"
	"golang.org/x/crypto/sha3"
)

const (
	// TransferSignature is the canonical signature of the token transfer method.
	TransferSignature = "transfer(address,uint256)"

	// SlotSize is the width of one ABI-encoded argument.
	SlotSize = 32

	// TransferPayloadSize is selector + address slot + amount slot.
	TransferPayloadSize = 4 + 2*SlotSize
)

// TransferSelector identifies transfer(address,uint256).
var TransferSelector = [4]byte{0xa9, 0x05, 0x9c, 0xbb}

// balanceOfABI is the minimal contract interface used for balance lookups.
const balanceOfABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}]`

// ABI is the parsed balanceOf interface.
var ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(balanceOfABI))
	if err != nil {
		panic(fmt.Sprintf("erc20: invalid balanceOf ABI: %v", err))
	}
	ABI = parsed

	if sel := Selector(TransferSignature); !bytes.Equal(sel[:], TransferSelector[:]) {
		panic(fmt.Sprintf("erc20: transfer selector mismatch: %x", sel))
	}
}

// Selector returns the first four bytes of the Keccak256 hash of a method signature.
func Selector(signature string) [4]byte {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(signature))
	var sel [4]byte
	copy(sel[:], hasher.Sum(nil))
	return sel
}

// EncodeTransfer builds the call data for transfer(to, amount). The amount must
// be non-negative and fit in 32 bytes; anything else fails before a payload is
// produced.
func EncodeTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	if amount == nil {
		return nil, core.ErrEncodingf("transfer amount is missing")
	}
	if amount.Sign() < 0 {
		return nil, core.ErrEncodingf("transfer amount %s is negative", amount)
	}
	word, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, core.ErrEncodingf("transfer amount %s exceeds %d bytes", amount, SlotSize)
	}

	data := make([]byte, 0, TransferPayloadSize)
	data = append(data, TransferSelector[:]...)
	data = append(data, common.LeftPadBytes(to.Bytes(), SlotSize)...)
	amountSlot := word.Bytes32()
	data = append(data, amountSlot[:]...)
	return data, nil
}

// DecodeTransfer splits transfer call data back into its destination and amount.
func DecodeTransfer(data []byte) (common.Address, *big.Int, error) {
	if len(data) != TransferPayloadSize {
		return common.Address{}, nil, core.ErrEncodingf("transfer payload is %d bytes, want %d", len(data), TransferPayloadSize)
	}
	if !bytes.Equal(data[:4], TransferSelector[:]) {
		return common.Address{}, nil, core.ErrEncodingf("unexpected selector %x", data[:4])
	}
	addrSlot := data[4 : 4+SlotSize]
	if !bytes.Equal(addrSlot[:SlotSize-common.AddressLength], make([]byte, SlotSize-common.AddressLength)) {
		return common.Address{}, nil, core.ErrEncodingf("address slot is not zero padded")
	}
	to := common.BytesToAddress(addrSlot[SlotSize-common.AddressLength:])
	amount := new(big.Int).SetBytes(data[4+SlotSize:])
	return to, amount, nil
}

// PackBalanceOf builds the call data for balanceOf(holder).
func PackBalanceOf(holder common.Address) ([]byte, error) {
	return ABI.Pack("balanceOf", holder)
}

// UnpackBalanceOf decodes the return data of balanceOf.
func UnpackBalanceOf(output []byte) (*big.Int, error) {
	values, err := ABI.Unpack("balanceOf", output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack balanceOf result: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("balanceOf returned %d values", len(values))
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf returned %T", values[0])
	}
	return balance, nil
}
