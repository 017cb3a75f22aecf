// Package pipeline sequences a sweep: connect, scan, decrypt, fund gas,
// collect tokens.
package pipeline

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/looplab/fsm"
	"github.com/luxfi/cleanvault/pkg/chain"
	"github.com/luxfi/cleanvault/pkg/core"
	"github.com/luxfi/cleanvault/pkg/disburse"
	"github.com/luxfi/cleanvault/pkg/keystore"
	"github.com/luxfi/cleanvault/pkg/metrics"
	"github.com/luxfi/cleanvault/pkg/snapshot"
	"github.com/luxfi/log"
)

// Config carries the operator inputs of a run.
type Config struct {
	Endpoint        string
	KeysPath        string
	MasterKeyPath   string
	MasterPassword  string
	KeysPassword    string
	Contract        common.Address
	ScanConcurrency int
	Params          disburse.Params
}

// Result describes how far a run got.
type Result struct {
	State       string
	LatestBlock uint64
	NetworkID   *big.Int
	Holders     []*core.KeystoreRecord
	Unlocked    int
	Failed      []*core.KeystoreRecord
	TotalAmount *big.Int
	Native      *disburse.Report
	Token       *disburse.Report
}

// Pipeline runs one sweep against a single chain client.
type Pipeline struct {
	cfg     Config
	client  chain.Client
	sink    snapshot.Writer
	log     log.Logger
	metrics *metrics.Metrics
	fsm     *fsm.FSM
}

// New creates a pipeline in the CONNECTING state.
func New(cfg Config, client chain.Client, sink snapshot.Writer, logger log.Logger, m *metrics.Metrics) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		client:  client,
		sink:    sink,
		log:     logger,
		metrics: m,
	}
	p.fsm = newStateMachine(fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			p.log.Info("Pipeline state changed", "from", e.Src, "to", e.Dst)
		},
	})
	return p
}

// State returns the current pipeline state.
func (p *Pipeline) State() string {
	return p.fsm.Current()
}

// Run drives the pipeline to a terminal state. A nil error means the run ended
// in DONE or NO_FUNDS_FOUND; any error leaves it in FATAL.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	result := &Result{}
	defer func() { result.State = p.fsm.Current() }()

	chainID, err := p.connect(ctx, result)
	if err != nil {
		return result, p.fail(err)
	}

	if err := p.transition(ctx, EventScan); err != nil {
		return result, err
	}
	masterRecord, err := keystore.LoadRecord(p.cfg.MasterKeyPath)
	if err != nil {
		return result, p.fail(fmt.Errorf("failed to load master keystore: %w", err))
	}
	holders, err := keystore.NewScanner(chain.NewToken(p.client, p.cfg.Contract), p.log, p.metrics, p.cfg.ScanConcurrency).
		Scan(ctx, p.cfg.KeysPath, masterRecord.HexAddress())
	if err != nil {
		return result, p.fail(err)
	}
	result.Holders = holders
	if err := p.sink.Write(snapshot.AddressesWithTokens, holders); err != nil {
		return result, p.fail(err)
	}

	if err := p.transition(ctx, EventDecrypt); err != nil {
		return result, err
	}
	decrypted, err := keystore.NewDecryptor(p.sink, p.log, p.metrics).Decrypt(holders, p.cfg.KeysPassword)
	if err != nil {
		return result, p.fail(err)
	}
	result.Unlocked = len(decrypted.Unlocked)
	result.Failed = decrypted.Failed
	result.TotalAmount = core.TotalAmount(decrypted.Unlocked)

	if len(decrypted.Unlocked) == 0 {
		p.log.Warn("No tokens found in the keys directory", "dir", p.cfg.KeysPath)
		return result, p.transition(ctx, EventNoFunds)
	}
	p.log.Info("Found accounts with tokens", "accounts", result.Unlocked, "tokens", result.TotalAmount)

	if err := p.transition(ctx, EventDisburseNative); err != nil {
		return result, err
	}
	master, err := keystore.Unlock(masterRecord, p.cfg.MasterPassword)
	if err != nil {
		return result, p.fail(fmt.Errorf("failed to decrypt master keystore: %w", err))
	}
	targets := make([]common.Address, len(decrypted.Unlocked))
	for i, acc := range decrypted.Unlocked {
		targets[i] = acc.Address
	}
	native := disburse.NewNativeDisburser(p.client, chainID, p.cfg.Params, p.log, p.metrics)
	result.Native, err = native.Disburse(ctx, master, targets)
	if err := p.persistReceipts(snapshot.PaidAccountsEther, result.Native, err); err != nil {
		return result, p.fail(err)
	}

	if err := p.transition(ctx, EventDisburseToken); err != nil {
		return result, err
	}
	token := disburse.NewTokenDisburser(p.client, chainID, p.cfg.Contract, p.cfg.Params, p.log, p.metrics)
	result.Token, err = token.Disburse(ctx, decrypted.Unlocked, master.Address)
	if err := p.persistReceipts(snapshot.PaidAccountsToken, result.Token, err); err != nil {
		return result, p.fail(err)
	}

	return result, p.transition(ctx, EventFinish)
}

// connect checks that the node answers and returns the chain id to sign for.
func (p *Pipeline) connect(ctx context.Context, result *Result) (*big.Int, error) {
	block, err := p.client.BlockNumber(ctx)
	if err != nil {
		return nil, &core.ConnectivityError{Endpoint: p.cfg.Endpoint, Err: err}
	}
	networkID, err := p.client.NetworkID(ctx)
	if err != nil {
		return nil, &core.ConnectivityError{Endpoint: p.cfg.Endpoint, Err: err}
	}
	chainID, err := p.client.ChainID(ctx)
	if err != nil {
		return nil, &core.ConnectivityError{Endpoint: p.cfg.Endpoint, Err: err}
	}
	result.LatestBlock = block
	result.NetworkID = networkID
	p.log.Info("Connected to chain", "latestBlock", block, "networkID", networkID, "chainID", chainID)
	return chainID, nil
}

// persistReceipts writes whatever a phase collected, including after a failed
// send, since the nonces it consumed cannot be reused.
func (p *Pipeline) persistReceipts(name string, report *disburse.Report, sendErr error) error {
	if report != nil {
		if err := p.sink.Write(name, report.Receipts); err != nil {
			if sendErr != nil {
				p.log.Error("Failed to persist partial receipts", "file", name, "error", err)
				return sendErr
			}
			return err
		}
	}
	return sendErr
}

func (p *Pipeline) transition(ctx context.Context, event string) error {
	if err := p.fsm.Event(ctx, event); err != nil {
		return p.fail(fmt.Errorf("invalid pipeline transition %q from %s: %w", event, p.fsm.Current(), err))
	}
	return nil
}

func (p *Pipeline) fail(err error) error {
	state := p.fsm.Current()
	if p.fsm.Can(EventFail) {
		if ferr := p.fsm.Event(context.Background(), EventFail); ferr != nil {
			p.log.Error("Failed to enter fatal state", "error", ferr)
		}
	}
	p.log.Error("Pipeline aborted", "state", state, "error", err)
	return fmt.Errorf("%s: %w", state, err)
}
