package cmd

import (
	"fmt"
	"io"

	"github.com/luxfi/cleanvault/pkg/application"
	"github.com/luxfi/cleanvault/pkg/chain"
	"github.com/luxfi/cleanvault/pkg/core"
	"github.com/luxfi/cleanvault/pkg/keystore"
	"github.com/luxfi/cleanvault/pkg/pipeline"
	"github.com/luxfi/cleanvault/pkg/snapshot"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewInspectCmd creates the inspect command: a read-only scan that reports
// which keystores hold tokens without decrypting or sending anything.
func NewInspectCmd(app *application.Vault) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "List keystores holding tokens without sending transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd, app)
			if err != nil {
				return err
			}
			defer sess.close()

			ctx := cmd.Context()
			master, err := keystore.LoadRecord(sess.settings.MasterKeyPath)
			if err != nil {
				return err
			}
			scanner := keystore.NewScanner(chain.NewToken(sess.client, sess.settings.Contract), app.Log, sess.metrics, sess.settings.ScanConcurrency)
			holders, err := scanner.Scan(ctx, sess.settings.KeysPath, master.HexAddress())
			if err != nil {
				return err
			}
			if err := sess.sink.Write(snapshot.AddressesWithTokens, holders); err != nil {
				return err
			}

			printHolders(cmd.OutOrStdout(), holders)
			cmd.Printf("Snapshot written to %s\n", sess.sink.Path(snapshot.AddressesWithTokens))
			return nil
		},
	}
}

func printHolders(out io.Writer, holders []*core.KeystoreRecord) {
	table := tablewriter.NewWriter(out)
	table.SetBorder(false)
	table.SetHeader([]string{"Address", "Amount", "File"})
	for _, h := range holders {
		table.Append([]string{h.HexAddress().Hex(), h.Amount.String(), h.File})
	}
	table.Render()
	fmt.Fprintf(out, "%d keystores hold tokens\n", len(holders))
}

func printSummary(out io.Writer, result *pipeline.Result) {
	fmt.Fprintf(out, "Latest block: %d, network: %s\n", result.LatestBlock, result.NetworkID)
	fmt.Fprintf(out, "Accounts with tokens: %d (failed to decrypt: %d)\n", result.Unlocked, len(result.Failed))
	fmt.Fprintf(out, "Tokens found: %s\n", result.TotalAmount)
	if result.Native != nil {
		fmt.Fprintf(out, "Native top-ups sent: %d\n", len(result.Native.Receipts))
	}
	if result.Token != nil {
		fmt.Fprintf(out, "Token transfers sent: %d\n", len(result.Token.Receipts))
	}
}
