package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/ethwatch/internal/control"
	"github.com/vietddude/ethwatch/internal/infra/eth"
)

var headCmd = &cobra.Command{
	Use:   "head",
	Short: "Show the chain head reported by each provider and by the gateway",
	Run:   runHead,
}

func init() {
	rootCmd.AddCommand(headCmd)
}

func runHead(cmd *cobra.Command, args []string) {
	cfg := control.FromAppConfig(loadConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	contract, err := eth.NewContract(cfg.ContractAddr)
	if err != nil {
		slog.Error("Failed to load contract abi", "error", err)
		os.Exit(1)
	}
	gateway, clients, err := control.NewGateway(ctx, cfg, contract)
	if err != nil {
		slog.Error("Failed to connect to providers", "error", err)
		os.Exit(1)
	}
	defer func() {
		for _, c := range clients {
			c.Close()
		}
	}()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "PROVIDER\tHEAD\tERROR")
	for _, c := range clients {
		head, err := c.BlockNumber(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(w, "%s\t-\t%v\n", c.Name(), err)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t\n", c.Name(), head)
	}

	head, err := gateway.BlockNumber(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(w, "gateway\t-\t%v\n", err)
	} else {
		_, _ = fmt.Fprintf(w, "gateway\t%d\t\n", head)
	}
	_ = w.Flush()
}
