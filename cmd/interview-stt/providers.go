package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/snarg/interview-stt/internal/transcribe"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Show the resolved provider chain in fallback order",
	Args:  cobra.NoArgs,
	RunE:  runProviders,
}

func runProviders(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	adapters := transcribe.BuildAdapters(cfg.STT, log)
	if len(adapters) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no providers configured")
		return nil
	}
	// Same ordering the orchestrator uses.
	orch := transcribe.NewOrchestrator(adapters, nil, cfg.STT.Timeout, log)

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPROVIDER\tPRIORITY\tTIMEOUT\tACCEPTS\tPREFERRED")
	for i, d := range orch.Descriptors() {
		accepts := make([]string, len(d.Accepted))
		for j, e := range d.Accepted {
			accepts[j] = string(e)
		}
		timeout := "-"
		if d.Timeout > 0 {
			timeout = d.Timeout.String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n",
			i+1, d.Name, d.Priority, timeout, strings.Join(accepts, ","), d.Preferred)
	}
	return tw.Flush()
}
