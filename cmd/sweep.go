package cmd

import (
	"context"
	"errors"

	"github.com/luxfi/cleanvault/pkg/application"
	"github.com/luxfi/cleanvault/pkg/chain"
	"github.com/luxfi/cleanvault/pkg/core"
	"github.com/luxfi/cleanvault/pkg/disburse"
	"github.com/luxfi/cleanvault/pkg/metrics"
	"github.com/luxfi/cleanvault/pkg/pipeline"
	"github.com/luxfi/cleanvault/pkg/settings"
	"github.com/luxfi/cleanvault/pkg/snapshot"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// session holds what both the sweep and inspect commands need
type session struct {
	settings *settings.Settings
	client   *chain.EthClient
	sink     *snapshot.Sink
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

// openSession connects to the node before asking the operator for anything
// or creating the output directory.
func openSession(cmd *cobra.Command, app *application.Vault) (*session, error) {
	endpoint, err := settings.Endpoint(app.Config)
	if err != nil {
		return nil, err
	}
	client, err := connect(cmd.Context(), app, endpoint)
	if err != nil {
		return nil, err
	}

	s, err := settings.Collect(app.Config, settings.NewTerminalPrompter(cmd.InOrStdin(), cmd.OutOrStdout()))
	if err != nil {
		client.Close()
		return nil, err
	}

	sink, err := snapshot.NewSink(s.OutputDir)
	if err != nil {
		client.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	return &session{
		settings: s,
		client:   client,
		sink:     sink,
		registry: registry,
		metrics:  metrics.New(registry),
	}, nil
}

func connect(ctx context.Context, app *application.Vault, endpoint string) (*chain.EthClient, error) {
	client, err := chain.Dial(ctx, endpoint)
	if err != nil {
		return nil, &core.ConnectivityError{Endpoint: endpoint, Err: err}
	}
	block, err := client.BlockNumber(ctx)
	if err != nil {
		client.Close()
		app.Log.Error("Node is unreachable", "endpoint", endpoint, "error", err)
		return nil, &core.ConnectivityError{Endpoint: endpoint, Err: err}
	}
	app.Log.Info("Connected to chain", "endpoint", endpoint, "latestBlock", block)
	return client, nil
}

func (s *session) close() {
	s.client.Close()
}

func (s *session) pipelineConfig() pipeline.Config {
	return pipeline.Config{
		Endpoint:        s.settings.RPCURL,
		KeysPath:        s.settings.KeysPath,
		MasterKeyPath:   s.settings.MasterKeyPath,
		MasterPassword:  s.settings.MasterPassword,
		KeysPassword:    s.settings.KeysPassword,
		Contract:        s.settings.Contract,
		ScanConcurrency: s.settings.ScanConcurrency,
		Params:          disburse.DefaultParams(),
	}
}

func (s *session) serveMetrics(ctx context.Context, app *application.Vault) {
	if s.settings.MetricsAddr == "" {
		return
	}
	go func() {
		if err := metrics.Serve(ctx, s.settings.MetricsAddr, s.registry); err != nil {
			app.Log.Warn("Metrics server stopped", "addr", s.settings.MetricsAddr, "error", err)
		}
	}()
}

func runSweep(cmd *cobra.Command, app *application.Vault) error {
	sess, err := openSession(cmd, app)
	if err != nil {
		var connErr *core.ConnectivityError
		if errors.As(err, &connErr) {
			cmd.PrintErrf("Sweep aborted in %s: %v\n", pipeline.StateConnecting, err)
		}
		return err
	}
	defer sess.close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sess.serveMetrics(ctx, app)

	p := pipeline.New(sess.pipelineConfig(), sess.client, sess.sink, app.Log, sess.metrics)
	result, err := p.Run(ctx)
	if err != nil {
		cmd.PrintErrf("Sweep aborted in %s: %v\n", result.State, err)
		return err
	}

	out := cmd.OutOrStdout()
	switch result.State {
	case pipeline.StateNoFundsFound:
		cmd.Println("There were no tokens in the supplied folder. Check whether you entered the correct folder.")
	case pipeline.StateDone:
		printSummary(out, result)
		cmd.Println("Finished sending transactions.")
	}
	return nil
}
