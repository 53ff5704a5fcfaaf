package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Manage the local identity",
}

var identityNewMnemonic string

var identityNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create (or recover) an identity from a mnemonic phrase",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, db, err := openKernel()
		if err != nil {
			return err
		}
		defer db.Close()

		res, err := k.CreateIdentity(identityNewMnemonic)
		if err != nil {
			return err
		}

		if res.Recovered {
			color.Yellow("recovered existing identity")
		} else {
			color.Green("created identity")
			fmt.Println()
			fmt.Println("mnemonic (write this down, it is shown once):")
			fmt.Printf("  %s\n", res.Mnemonic)
		}
		fmt.Println()
		fmt.Printf("did:    %s\n", res.Identity.DID)
		fmt.Printf("karma:  %.1f\n", res.Identity.Karma)
		return nil
	},
}

var identityRecoverCmd = &cobra.Command{
	Use:   "recover <word> [word...]",
	Short: "Recover an identity from its mnemonic phrase",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, db, err := openKernel()
		if err != nil {
			return err
		}
		defer db.Close()

		res, err := k.RecoverIdentity(strings.Join(args, " "))
		if err != nil {
			return err
		}

		if res.Recovered {
			color.Green("identity recovered")
		} else {
			color.Yellow("no existing record; created fresh identity from phrase")
		}
		fmt.Printf("did:    %s\n", res.Identity.DID)
		fmt.Printf("karma:  %.1f\n", res.Identity.Karma)
		return nil
	},
}

var identityShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, db, err := openKernel()
		if err != nil {
			return err
		}
		defer db.Close()

		ident, err := k.CurrentIdentity()
		if err != nil {
			return err
		}
		if ident == nil {
			return fmt.Errorf("no active identity; run `pulse identity new`")
		}

		fmt.Printf("did:     %s\n", ident.DID)
		fmt.Printf("pubkey:  %s\n", ident.PublicKey)
		fmt.Printf("karma:   %.1f\n", ident.Karma)
		fmt.Printf("status:  %s\n", ident.Status)
		fmt.Printf("created: %s\n", time.UnixMilli(ident.CreatedAt).Format(time.RFC3339))
		return nil
	},
}

var identityLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the current session (deletes no data)",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, db, err := openKernel()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := k.Logout(); err != nil {
			return err
		}
		fmt.Println("logged out")
		return nil
	},
}

func init() {
	identityNewCmd.Flags().StringVar(&identityNewMnemonic, "mnemonic", "", "derive from an existing phrase instead of generating one")
	identityCmd.AddCommand(identityNewCmd)
	identityCmd.AddCommand(identityRecoverCmd)
	identityCmd.AddCommand(identityShowCmd)
	identityCmd.AddCommand(identityLogoutCmd)
}
