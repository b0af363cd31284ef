// Command safecheck is the SafeCheck CLI. It classifies a URL, email
// address, or SHA-256 hash and prints a verdict, running all collectors
// in-process against an in-memory history.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/safecheck/safecheck/internal/cache"
	"github.com/safecheck/safecheck/internal/collector"
	"github.com/safecheck/safecheck/internal/history"
	"github.com/safecheck/safecheck/internal/ratelimit"
	"github.com/safecheck/safecheck/internal/redact"
	"github.com/safecheck/safecheck/internal/retry"
	"github.com/safecheck/safecheck/internal/safecheck"
	"github.com/safecheck/safecheck/internal/scanner"
	"github.com/safecheck/safecheck/internal/scoring"
	"github.com/safecheck/safecheck/internal/target"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile   string
	dnsServer string
	jsonOut   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "safecheck",
	Short: "SafeCheck security verdict CLI",
	Long: `safecheck classifies a URL, email address, or SHA-256 file hash
and produces a security verdict: a 0-100 score, a SAFE/CAUTION/RISK
status, and the reasons behind it.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.safecheck")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if dnsServer == "" {
			dnsServer = viper.GetString("dns_server")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.safecheck/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dnsServer, "dns", "", "upstream DNS server host:port (default "+collector.DefaultDNSServer+")")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print raw JSON instead of a table")

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of results")
	historyCmd.Flags().IntVar(&historyOffset, "offset", 0, "number of results to skip")
	historyCmd.Flags().StringVar(&historyQuery, "search", "", "substring filter on the target value")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(rescanCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan <url|email|sha256>",
	Short: "Scan an input and print its verdict",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _ := buildService()

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		resp, err := svc.CheckSync(ctx, args[0], safecheck.Options{})
		if err != nil {
			return err
		}
		printResult(resp)
		return nil
	},
}

var rescanCmd = &cobra.Command{
	Use:   "rescan <url|email|sha256>",
	Short: "Scan an input, bypassing any fresh prior result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _ := buildService()

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		resp, err := svc.Rescan(ctx, args[0])
		if err != nil {
			return err
		}
		printResult(resp)
		return nil
	},
}

var (
	historyLimit  int
	historyOffset int
	historyQuery  string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previous scan results",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, repo := buildService()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var (
			results []*scoring.ScanResult
			err     error
		)
		if historyQuery != "" {
			results, err = repo.SearchScanResults(ctx, historyQuery)
		} else {
			results, err = repo.GetScanResults(ctx, historyLimit, historyOffset)
		}
		if err != nil {
			return err
		}
		printHistory(results)
		return nil
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect <input>",
	Short: "Classify an input without scanning it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, ok := target.Detect(args[0])
		if !ok {
			return fmt.Errorf("input is not a URL, email address, or SHA-256 hash")
		}
		fmt.Printf("%s\t%s\n", t.Kind, t.Value)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the safecheck version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("safecheck", version)
	},
}

func buildService() (*safecheck.Service, history.Repository) {
	logger := zap.NewNop()
	if viper.GetBool("verbose") {
		logger, _ = zap.NewDevelopment()
	}

	deps := &scanner.Deps{
		DNS:        collector.NewMiekgResolver(dnsServer, 0, logger),
		TLS:        collector.NewStandardTLSAnalyzer(0, logger),
		Whois:      collector.NewPortWhoisClient(0, logger),
		Disposable: collector.NewStaticDisposableChecker(),
		Reputation: collector.NewStaticReputationSource(),
		Limiter:    ratelimit.New(10, time.Second),
		Retry:      retry.NewPolicy(),
		Weights:    scoring.DefaultWeights(),
		Logger:     logger,
	}

	pipelines := map[target.Kind]scanner.Scanner{
		target.KindURL:      scanner.NewURLScanner(deps),
		target.KindEmail:    scanner.NewEmailScanner(deps),
		target.KindFileHash: scanner.NewHashScanner(deps),
	}

	repo := history.NewMemoryRepository()
	return safecheck.New(pipelines, repo, cache.New(), safecheck.Config{
		RedactPolicy: redact.PolicyNone,
	}, logger), repo
}

func printHistory(results []*scoring.ScanResult) {
	if jsonOut {
		out, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(out))
		return
	}
	if len(results) == 0 {
		fmt.Println("no scan results")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCANNED\tSCORE\tSTATUS\tKIND\tTARGET")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			r.TimestampUTC.Format(time.RFC3339), r.Score, r.Status, r.Target.Kind, r.Target.Value)
	}
	w.Flush()
}

func printResult(resp *safecheck.ScanResponse) {
	r := resp.ScanResult

	if jsonOut {
		out, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(out))
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Target:\t%s\n", r.Target.Value)
	fmt.Fprintf(w, "Kind:\t%s\n", r.Target.Kind)
	fmt.Fprintf(w, "Score:\t%d\n", r.Score)
	fmt.Fprintf(w, "Status:\t%s\n", r.Status)
	fmt.Fprintf(w, "Scanned:\t%s (%dms)\n", r.TimestampUTC.Format(time.RFC3339), resp.ProcessingTimeMs)
	fmt.Fprintln(w, "Reasons:")
	for _, reason := range r.Reasons {
		fmt.Fprintf(w, "  %+d\t%s\t%s\n", reason.Delta, reason.Code, reason.Message)
	}
	w.Flush()
}
