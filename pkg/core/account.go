package core

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	jsoniter "github.com/json-iterator/go"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// KeystoreRecord is an encrypted keystore file as found on disk. Raw holds the
// file content untouched; Amount is attached once the token balance is known.
type KeystoreRecord struct {
	File    string
	Address string // hex, no 0x prefix
	Raw     json.RawMessage
	Amount  *big.Int
}

// ParseKeystoreRecord decodes a keystore file. A record without an address
// field is reported with an empty Address.
func ParseKeystoreRecord(file string, data []byte) (*KeystoreRecord, error) {
	var header struct {
		Address string `json:"address"`
	}
	if err := jsonCodec.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("failed to parse keystore %s: %w", file, err)
	}
	return &KeystoreRecord{
		File:    file,
		Address: strings.TrimPrefix(strings.ToLower(header.Address), "0x"),
		Raw:     json.RawMessage(data),
	}, nil
}

// HexAddress returns the record's address as a checksummed chain address.
func (r *KeystoreRecord) HexAddress() common.Address {
	return common.HexToAddress(r.Address)
}

// MarshalJSON emits the keystore object as read from disk with the resolved amount
// added as a decimal string.
func (r *KeystoreRecord) MarshalJSON() ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if err := jsonCodec.Unmarshal(r.Raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to re-encode keystore %s: %w", r.File, err)
	}
	if r.Amount != nil {
		amount, err := jsonCodec.Marshal(r.Amount.String())
		if err != nil {
			return nil, err
		}
		fields["amount"] = amount
	}
	return jsonCodec.Marshal(fields)
}

// Account is a decrypted signing credential. It only lives in memory and has
// no JSON form.
type Account struct {
	Address    common.Address
	PrivateKey *ecdsa.PrivateKey
	Amount     *big.Int
}

// MarshalJSON refuses to serialize key material.
func (a *Account) MarshalJSON() ([]byte, error) {
	return nil, fmt.Errorf("account %s holds key material and cannot be persisted", a.Address.Hex())
}

// TotalAmount sums the token balances carried by accounts.
func TotalAmount(accounts []*Account) *big.Int {
	total := new(big.Int)
	for _, acc := range accounts {
		if acc.Amount != nil {
			total.Add(total, acc.Amount)
		}
	}
	return total
}
