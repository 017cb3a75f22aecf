package keystore

import (
	"encoding/json"
	"fmt"
	"os"

	ethkeystore "github.com/ethereum/go-ethereum/accounts/keystore"
	jsoniter "github.com/json-iterator/go"
	"github.com/luxfi/cleanvault/pkg/core"
	"github.com/luxfi/cleanvault/pkg/metrics"
	"github.com/luxfi/cleanvault/pkg/snapshot"
	"github.com/luxfi/log"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// Result partitions decrypted keystores. len(Unlocked)+len(Failed) always
// equals the number of records handed to Decrypt.
type Result struct {
	Unlocked []*core.Account
	Failed   []*core.KeystoreRecord
}

// Decryptor unlocks keystores with a shared passphrase.
type Decryptor struct {
	sink    snapshot.Writer
	log     log.Logger
	metrics *metrics.Metrics
}

// NewDecryptor creates a decryptor that records failures through sink.
func NewDecryptor(sink snapshot.Writer, logger log.Logger, m *metrics.Metrics) *Decryptor {
	return &Decryptor{sink: sink, log: logger, metrics: m}
}

// Decrypt unlocks every record in order. Records that fail to decrypt are
// collected, written to the failed-accounts snapshot and left out of the
// unlocked set; they never abort the run.
func (d *Decryptor) Decrypt(records []*core.KeystoreRecord, passphrase string) (*Result, error) {
	result := &Result{
		Unlocked: make([]*core.Account, 0, len(records)),
		Failed:   make([]*core.KeystoreRecord, 0),
	}
	for _, record := range records {
		account, err := Unlock(record, passphrase)
		if err != nil {
			d.log.Error("Failed to decrypt keystore", "address", record.Address, "file", record.File, "error", err)
			d.metrics.DecryptFailures.Inc()
			result.Failed = append(result.Failed, record)
			continue
		}
		result.Unlocked = append(result.Unlocked, account)
	}

	if err := d.sink.Write(snapshot.FailedAccounts, result.Failed); err != nil {
		return nil, err
	}
	d.log.Info("Keystores decrypted", "unlocked", len(result.Unlocked), "failed", len(result.Failed))
	return result, nil
}

// Unlock decrypts a single keystore. The resolved amount carries over.
func Unlock(record *core.KeystoreRecord, passphrase string) (*core.Account, error) {
	normalized, err := NormalizeCrypto(record.Raw)
	if err != nil {
		return nil, &core.DecryptionError{Address: record.Address, Err: err}
	}
	key, err := ethkeystore.DecryptKey(normalized, passphrase)
	if err != nil {
		return nil, &core.DecryptionError{Address: record.Address, Err: err}
	}
	if record.Address != "" && key.Address != record.HexAddress() {
		return nil, &core.DecryptionError{
			Address: record.Address,
			Err:     fmt.Errorf("key belongs to %s", key.Address.Hex()),
		}
	}
	return &core.Account{
		Address:    key.Address,
		PrivateKey: key.PrivateKey,
		Amount:     record.Amount,
	}, nil
}

// NormalizeCrypto renames a capitalised "Crypto" envelope to "crypto". Some
// exporters write the former; go-ethereum's keystore format uses the latter.
func NormalizeCrypto(raw []byte) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if err := jsonCodec.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	upper, hasUpper := fields["Crypto"]
	if !hasUpper {
		return raw, nil
	}
	if _, hasLower := fields["crypto"]; !hasLower {
		fields["crypto"] = upper
	}
	delete(fields, "Crypto")
	return jsonCodec.Marshal(fields)
}

// LoadRecord reads a single keystore file.
func LoadRecord(path string) (*core.KeystoreRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	record, err := core.ParseKeystoreRecord(path, data)
	if err != nil {
		return nil, err
	}
	if record.Address == "" {
		return nil, core.ErrInvalidInputf("master_key_path", "keystore %s has no address", path)
	}
	return record, nil
}
