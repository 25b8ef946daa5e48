package commands

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/voxpod/voxpod/pkg/config"
	"github.com/voxpod/voxpod/pkg/kv"
	"github.com/voxpod/voxpod/pkg/store"
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Manage device registrations",
}

var deviceAddCmd = &cobra.Command{
	Use:   "add <device-id>",
	Short: "Register a device and print its token",
	Long: `Register a device and print its access token.

The token is generated once and only its hash is stored; note it down,
it cannot be recovered later. Run this while the server is stopped, the
database is single-writer.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := cmd.Flags().GetString("name")
		if err != nil {
			return err
		}

		st, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		raw := make([]byte, 16)
		if _, err := rand.Read(raw); err != nil {
			return err
		}
		token := hex.EncodeToString(raw)
		if _, err := st.RegisterDevice(cmd.Context(), args[0], name, token); err != nil {
			return err
		}
		fmt.Printf("device:\t%s\ntoken:\t%s\n", args[0], token)
		return nil
	},
}

var deviceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		devs, err := st.ListDevices(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DEVICE\tNAME\tLAST SEEN")
		for _, d := range devs {
			last := "never"
			if !d.LastSeen.IsZero() {
				last = d.LastSeen.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", d.DeviceID, d.Name, last)
		}
		return w.Flush()
	},
}

var deviceRemoveCmd = &cobra.Command{
	Use:   "remove <device-id>",
	Short: "Remove a device registration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()
		return st.DeleteDevice(cmd.Context(), args[0])
	},
}

func init() {
	deviceAddCmd.Flags().String("name", "", "human-readable device name")
	deviceCmd.AddCommand(deviceAddCmd)
	deviceCmd.AddCommand(deviceListCmd)
	deviceCmd.AddCommand(deviceRemoveCmd)
}

func openStore() (*store.Store, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := kv.NewBadger(kv.BadgerOptions{Dir: filepath.Join(cfg.DataDir, "db")})
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return store.New(db), func() { db.Close() }, nil
}
