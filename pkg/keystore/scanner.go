// Package keystore discovers funded keystore files and unlocks them.
package keystore

import (
	"context"
	"math/big"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/luxfi/cleanvault/pkg/core"
	"github.com/luxfi/cleanvault/pkg/metrics"
	"github.com/luxfi/log"
	"golang.org/x/sync/errgroup"
)

// DefaultScanConcurrency bounds the number of in-flight balance queries.
const DefaultScanConcurrency = 16

// BalanceReader reports a holder's token balance.
type BalanceReader interface {
	BalanceOf(ctx context.Context, holder common.Address) (*big.Int, error)
}

// Scanner finds keystores whose address holds a positive token balance.
type Scanner struct {
	token       BalanceReader
	log         log.Logger
	metrics     *metrics.Metrics
	concurrency int
}

// NewScanner creates a scanner querying balances from token.
func NewScanner(token BalanceReader, logger log.Logger, m *metrics.Metrics, concurrency int) *Scanner {
	if concurrency <= 0 {
		concurrency = DefaultScanConcurrency
	}
	return &Scanner{token: token, log: logger, metrics: m, concurrency: concurrency}
}

// Scan reads every file in dir and returns the keystores holding tokens, in
// file name order. Files that cannot be read or parsed are skipped, as are
// files without an address, the master address and repeated addresses. A
// failed balance query aborts the scan.
func (s *Scanner) Scan(ctx context.Context, dir string, master common.Address) ([]*core.KeystoreRecord, error) {
	candidates, err := s.load(dir, master)
	if err != nil {
		return nil, err
	}

	balances := make([]*big.Int, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, record := range candidates {
		i, record := i, record
		g.Go(func() error {
			balance, err := s.token.BalanceOf(gctx, record.HexAddress())
			if err != nil {
				return &core.BalanceQueryError{Address: record.Address, Err: err}
			}
			balances[i] = balance
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	holders := make([]*core.KeystoreRecord, 0, len(candidates))
	for i, record := range candidates {
		if balances[i] == nil || balances[i].Sign() <= 0 {
			s.log.Debug("Skipping keystore without tokens", "address", record.Address, "file", record.File)
			continue
		}
		record.Amount = balances[i]
		holders = append(holders, record)
	}
	s.metrics.HoldersFound.Add(float64(len(holders)))
	s.log.Info("Keystore scan complete", "dir", dir, "files", len(candidates), "holders", len(holders))
	return holders, nil
}

// load parses the keystore files of dir and drops the ones that can never be swept.
func (s *Scanner) load(dir string, master common.Address) ([]*core.KeystoreRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	seen := make(map[common.Address]bool, len(entries))
	records := make([]*core.KeystoreRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.log.Warn("Skipping unreadable keystore file", "file", path, "error", err)
			continue
		}
		record, err := core.ParseKeystoreRecord(path, data)
		if err != nil {
			s.log.Warn("Skipping non-JSON keystore file", "file", path, "error", err)
			continue
		}
		s.metrics.KeystoresScanned.Inc()

		if record.Address == "" {
			continue
		}
		addr := record.HexAddress()
		if addr == master {
			s.log.Debug("Skipping master keystore", "file", path)
			continue
		}
		if seen[addr] {
			s.log.Warn("Skipping duplicate keystore", "address", record.Address, "file", path)
			continue
		}
		seen[addr] = true
		records = append(records, record)
	}
	return records, nil
}
