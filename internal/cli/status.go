package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/ethwatch/internal/indexing/health"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running watcher",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "watcher address (default is localhost:<server.port>)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	addr := statusAddr
	if addr == "" {
		cfg := loadConfig()
		addr = fmt.Sprintf("localhost:%d", cfg.Server.Port)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	report, err := fetchReport(ctx, "http://"+addr+"/health/detailed")
	if err != nil {
		slog.Error("Failed to query watcher", "addr", addr, "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "STATUS\tMODE\tLAST BLOCK\tQUEUE\tUNCONFIRMED")
	_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n",
		report.SystemStatus,
		report.Watcher.Mode,
		report.Watcher.LastEthereumBlock,
		report.Watcher.PriorityQueueSize,
		len(report.Watcher.UnconfirmedOps),
	)
	_ = w.Flush()

	_, _ = fmt.Fprintln(os.Stdout)
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "PROVIDER\tSTATUS\tOK\tFAILED\tTHROTTLED\tLAST ERROR")
	for _, p := range report.Providers {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
			p.Name, p.Status, p.Successes, p.Failures, p.ThrottleCount, p.LastError)
	}
	_ = w.Flush()
}

// statusReport mirrors health.HealthReport. Unconfirmed ops are only counted.
type statusReport struct {
	SystemStatus health.SystemStatus `json:"system_status"`
	Watcher      struct {
		Mode              string            `json:"mode"`
		LastEthereumBlock uint64            `json:"last_ethereum_block"`
		PriorityQueueSize int               `json:"priority_queue_size"`
		UnconfirmedOps    []json.RawMessage `json:"unconfirmed_ops"`
	} `json:"watcher"`
	Providers []struct {
		Name          string `json:"name"`
		Status        string `json:"status"`
		Successes     int    `json:"successes"`
		Failures      int    `json:"failures"`
		ThrottleCount int    `json:"throttle_count"`
		LastError     string `json:"last_error"`
	} `json:"providers"`
}

func fetchReport(ctx context.Context, url string) (*statusReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var report statusReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode health report: %w", err)
	}
	return &report, nil
}
