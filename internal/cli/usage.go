package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pagewright/pagewright/internal/metrics"
)

var usageServer string

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show server runtime statistics",
	Long: `Show runtime statistics of a running pagewright server: call counts
and timings per operation, plus parse-retry and fallback counters.

Examples:
  pagewright usage
  pagewright usage --server http://localhost:8473`,
	RunE: runUsage,
}

func init() {
	usageCmd.Flags().StringVar(&usageServer, "server", "", "server base URL (default: PAGEWRIGHT_SERVER_URL or localhost:8473)")
}

func runUsage(cmd *cobra.Command, args []string) error {
	base := usageServer
	if base == "" {
		base = os.Getenv("PAGEWRIGHT_SERVER_URL")
	}
	if base == "" {
		base = "http://localhost:8473"
	}
	base = strings.TrimSuffix(base, "/ws")
	base = strings.TrimSuffix(base, "/")
	base = strings.Replace(base, "ws://", "http://", 1)
	base = strings.Replace(base, "wss://", "https://", 1)

	httpClient := &http.Client{Timeout: 10 * time.Second}
	resp, err := httpClient.Get(base + "/metrics")
	if err != nil {
		return fmt.Errorf("fetch server stats: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch server stats: %s", resp.Status)
	}

	var snap metrics.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return fmt.Errorf("decode server stats: %w", err)
	}

	printServerStats(snap)
	return nil
}

// printServerStats displays server runtime statistics.
func printServerStats(snap metrics.Snapshot) {
	fmt.Printf("Server Statistics (in-memory, since restart)\n")
	fmt.Printf("═══════════════════════════════════════════════\n")
	fmt.Printf("Uptime: %.1f seconds\n", snap.UptimeSeconds)

	if snap.Gateway != nil {
		fmt.Printf("\nModel Gateway:\n")
		printOpStats(snap.Gateway)
	}
	if snap.Classify != nil {
		fmt.Printf("\nClassification:\n")
		printOpStats(snap.Classify)
	}
	if snap.Handle != nil {
		fmt.Printf("\nHandlers:\n")
		printOpStats(snap.Handle)
	}
	if snap.DBRead != nil {
		fmt.Printf("\nDB Read:\n")
		printOpStats(snap.DBRead)
	}
	if snap.DBWrite != nil {
		fmt.Printf("\nDB Write:\n")
		printOpStats(snap.DBWrite)
	}

	fmt.Printf("\nRecovery:\n")
	fmt.Printf("  Parse retries:      %d\n", snap.ParseRetries)
	fmt.Printf("  Fail-open classify: %d\n", snap.FailOpenClassify)
	fmt.Printf("  Default envelopes:  %d\n", snap.DefaultEnvelopes)
}

// printOpStats displays timing statistics for an operation.
func printOpStats(op *metrics.OperationSnapshot) {
	fmt.Printf("  Calls: %d, Total: %dms\n", op.Count, op.TotalTimeMs)
	fmt.Printf("  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}
