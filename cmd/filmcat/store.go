package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect persisted data and restore backups",
}

var storeInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show where the users and films are stored",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("store info")
		if err != nil {
			return err
		}
		defer a.Close()

		infos, err := a.StoreInfo()
		if err != nil {
			return err
		}
		for _, info := range infos {
			if !info.Exists {
				fmt.Printf("%s\t%s\t(not yet written)\n", info.Name, info.Location)
				continue
			}
			line := fmt.Sprintf("%s\t%s\t%d bytes\t%s",
				info.Name, info.Location, info.Size, info.Modified.Local().Format("2006-01-02 15:04:05"))
			if info.Revision > 0 {
				line += fmt.Sprintf("\trevision %d", info.Revision)
			}
			fmt.Println(line)
		}

		total, approved := a.FilmCounts()
		fmt.Printf("%d users, %d films (%d approved)\n", len(a.Users()), total, approved)
		return nil
	},
}

var storeBackupsCmd = &cobra.Command{
	Use:   "backups STORE",
	Short: "List retained backups of a store (users or films)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("store backups")
		if err != nil {
			return err
		}
		defer a.Close()

		backups, err := a.Backups(args[0])
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			fmt.Println("No backups")
			return nil
		}
		for _, b := range backups {
			sealed := ""
			if b.Encrypted {
				sealed = "\tencrypted"
			}
			fmt.Printf("%s\t%s\t%d bytes%s\n",
				b.Ref, b.CreatedAt.Local().Format("2006-01-02 15:04:05"), b.Size, sealed)
		}
		return nil
	},
}

var storeRestoreCmd = &cobra.Command{
	Use:   "restore STORE BACKUP_REF",
	Short: "Replace a store with one of its backups",
	Long: `Replace a store with one of its backups.

The current contents are backed up first, so a restore can itself be undone.
Encrypted backups prompt for the private key passphrase.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, ref := args[0], args[1]

		a, err := newApp("store restore")
		if err != nil {
			return err
		}
		defer a.Close()

		var passphrase string
		if a.BackupsEncrypted() && strings.HasSuffix(ref, ".age") {
			passphrase, err = readSecret("Passphrase: ")
			if err != nil {
				return err
			}
		}

		if err := a.RestoreBackup(name, ref, passphrase); err != nil {
			return err
		}
		fmt.Printf("Restored %s from %s\n", name, ref)
		return nil
	},
}

func init() {
	storeCmd.AddCommand(storeInfoCmd)
	storeCmd.AddCommand(storeBackupsCmd)
	storeCmd.AddCommand(storeRestoreCmd)
}
