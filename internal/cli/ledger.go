package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var topLimit int

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the karma leaderboard and network stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, db, err := openKernel()
		if err != nil {
			return err
		}
		defer db.Close()

		idents, err := k.Leaderboard(topLimit)
		if err != nil {
			return err
		}
		stats, err := k.Stats()
		if err != nil {
			return err
		}

		if len(idents) == 0 {
			fmt.Println("no identities")
			return nil
		}

		bold := color.New(color.Bold)
		bold.Println("rank  karma    did")
		for i, ident := range idents {
			fmt.Printf("%4d  %7.1f  %s\n", i+1, ident.Karma, ident.DID)
		}
		fmt.Println()
		fmt.Printf("identities: %d  pulses: %d  karma: %.1f  staked: %.1f\n",
			stats.TotalIdentities, stats.TotalPulses, stats.TotalKarma, stats.TotalStaked)
		return nil
	},
}

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the current identity's ledger as a JSON snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, db, err := openKernel()
		if err != nil {
			return err
		}
		defer db.Close()

		snap, err := k.Export()
		if err != nil {
			return err
		}

		out := os.Stdout
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			defer f.Close()
			out = f
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		if exportOut != "" {
			fmt.Fprintf(os.Stderr, "exported %d pulses to %s\n", len(snap.Pulses), exportOut)
		}
		return nil
	},
}

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe every collection (irreversible)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetYes {
			return fmt.Errorf("refusing to wipe without --yes")
		}

		k, db, err := openKernel()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := k.Reset(); err != nil {
			return err
		}
		color.Red("all data wiped")
		return nil
	},
}

func init() {
	topCmd.Flags().IntVar(&topLimit, "limit", 10, "number of identities to show")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "write snapshot to a file instead of stdout")
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "confirm the wipe")
}
