// Package snapshot dumps intermediate and final sweep results as JSON files
// for audit and recovery.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
)

// Well-known snapshot file names.
const (
	AddressesWithTokens = "ADDRESSES_WITH_TOKENS.json"
	FailedAccounts      = "FAILED_ACCOUNTS.json"
	PaidAccountsEther   = "PAID_ACCOUNTS_ETHER.json"
	PaidAccountsToken   = "PAID_ACCOUNTS_TOKEN.json"
)

const (
	dirPerm  = 0o750
	filePerm = 0o640
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Writer persists a collection under a well-known name.
type Writer interface {
	Write(name string, v interface{}) error
}

// Sink writes snapshots into a single directory, overwriting earlier runs.
type Sink struct {
	dir string
}

// NewSink creates dir if needed and returns a sink writing into it.
func NewSink(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory %s: %w", dir, err)
	}
	return &Sink{dir: dir}, nil
}

// Path returns the location of the snapshot called name.
func (s *Sink) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Write encodes v as one JSON document and replaces the file called name.
func (s *Sink) Write(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	if err := os.WriteFile(s.Path(name), data, filePerm); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
