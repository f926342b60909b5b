package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/snarg/interview-stt/internal/database"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent entries from the transcript log",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set, transcript log is disabled")
	}

	ctx, cancel := withTimeout(10 * time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL, dbPoolOptions(cfg), log.With().Str("component", "database").Logger())
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	rows, err := db.ListRecentTranscriptions(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("list transcriptions: %w", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tPROVIDER\tLANG\tENC\tBYTES\tMS\tTEXT")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.CreatedAt.Format(time.RFC3339), r.Provider, r.Language,
			r.Encoding, r.AudioBytes, r.ElapsedMs, preview(r.Text, 60))
	}
	return tw.Flush()
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
