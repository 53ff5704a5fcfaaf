package cli

import (
	"fmt"
	"os"

	"github.com/lazypower/pulse/internal/kernel"
	"github.com/lazypower/pulse/internal/store"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Local identity and activity ledger",
	Long:  "Pulse keeps a deterministic identity and a hash-linked activity log in a single local SQLite file. Single Go binary, no network.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(identityCmd)
	rootCmd.AddCommand(emitCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(resetCmd)
}

// dbPath resolves the database location: PULSE_DB env, else the default
// under the home directory.
func dbPath() (string, error) {
	if p := os.Getenv("PULSE_DB"); p != "" {
		return p, nil
	}
	return store.DefaultDBPath()
}

// openKernel opens the store and builds a kernel with its persisted
// session restored. Callers own closing the returned DB.
func openKernel() (*kernel.Kernel, *store.DB, error) {
	path, err := dbPath()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve db path: %w", err)
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	k, err := kernel.New(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return k, db, nil
}
