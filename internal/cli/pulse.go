package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	emitImpact  float64
	emitContext string
	emitAgent   string
	emitDeps    []string
)

var emitCmd = &cobra.Command{
	Use:   "emit <action>",
	Short: "Append a pulse to the current identity's chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, db, err := openKernel()
		if err != nil {
			return err
		}
		defer db.Close()

		var ctx json.RawMessage
		if emitContext != "" {
			if !json.Valid([]byte(emitContext)) {
				return fmt.Errorf("--context must be valid JSON")
			}
			ctx = json.RawMessage(emitContext)
		}

		p, err := k.Emit(args[0], emitImpact, ctx, emitAgent, emitDeps)
		if err != nil {
			return err
		}

		fmt.Printf("pulse %s\n", p.PulseID)
		fmt.Printf("  action: %s  impact: %.1f\n", p.Action, p.Impact)
		fmt.Printf("  hash:   %s\n", p.Hash)
		if p.PrevHash != nil {
			fmt.Printf("  prev:   %s\n", *p.PrevHash)
		}
		return nil
	},
}

var (
	logLimit  int
	logAction string
	logGlobal bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show pulses newest-first",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, db, err := openKernel()
		if err != nil {
			return err
		}
		defer db.Close()

		var pulses []pulseRow
		if logGlobal {
			all, err := k.AllPulses(logLimit)
			if err != nil {
				return err
			}
			for _, p := range all {
				pulses = append(pulses, pulseRow{p.CreatedAt, p.Action, p.Impact, p.OriginDID})
			}
		} else {
			did := k.CurrentDID()
			if did == "" {
				return fmt.Errorf("no active identity; run `pulse identity new`")
			}
			mine, err := k.Pulses(did, logLimit, logAction)
			if err != nil {
				return err
			}
			for _, p := range mine {
				pulses = append(pulses, pulseRow{p.CreatedAt, p.Action, p.Impact, ""})
			}
		}

		if len(pulses) == 0 {
			fmt.Println("no pulses")
			return nil
		}
		for _, row := range pulses {
			ts := time.UnixMilli(row.at).Format("2006-01-02 15:04:05")
			if row.origin != "" {
				fmt.Printf("%s  %-24s %6.1f  %s\n", ts, row.action, row.impact, row.origin)
			} else {
				fmt.Printf("%s  %-24s %6.1f\n", ts, row.action, row.impact)
			}
		}
		return nil
	},
}

type pulseRow struct {
	at     int64
	action string
	impact float64
	origin string
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the current identity's chain integrity",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, db, err := openKernel()
		if err != nil {
			return err
		}
		defer db.Close()

		did := k.CurrentDID()
		if did == "" {
			return fmt.Errorf("no active identity; run `pulse identity new`")
		}

		report, err := k.VerifyChain(did)
		if err != nil {
			return err
		}

		if report.Valid {
			color.Green("chain OK (%d pulses)", report.Count)
			return nil
		}
		color.Red("chain BROKEN at pulse %s (%d pulses)", report.BrokenAt, report.Count)
		return fmt.Errorf("chain verification failed")
	},
}

func init() {
	emitCmd.Flags().Float64Var(&emitImpact, "impact", 1, "impact score (capped at 10 toward karma)")
	emitCmd.Flags().StringVar(&emitContext, "context", "", "JSON context payload")
	emitCmd.Flags().StringVar(&emitAgent, "agent", "", "agent id this pulse is scoped to")
	emitCmd.Flags().StringSliceVar(&emitDeps, "dep", nil, "referenced pulse ids (repeatable)")

	logCmd.Flags().IntVar(&logLimit, "limit", 50, "max pulses to show")
	logCmd.Flags().StringVar(&logAction, "action", "", "filter by action kind")
	logCmd.Flags().BoolVar(&logGlobal, "global", false, "show the cross-identity feed")
}
