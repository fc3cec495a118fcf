package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/leandrodaf/midiroute/sdk/contracts"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List MIDI input and output ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, _, err := newClient(cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		ins, err := client.ListInputs()
		if err != nil {
			return fmt.Errorf("list inputs: %w", err)
		}
		outs, err := client.ListOutputs()
		if err != nil {
			return fmt.Errorf("list outputs: %w", err)
		}
		printDevices(cmd.OutOrStdout(), "Inputs", ins)
		printDevices(cmd.OutOrStdout(), "Outputs", outs)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func printDevices(w io.Writer, title string, devices []contracts.DeviceInfo) {
	fmt.Fprintf(w, "%s:\n", title)
	if len(devices) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, d := range devices {
		if d.Manufacturer != "" {
			fmt.Fprintf(w, "  %d: %s (%s)\n", d.Index, d.Name, d.Manufacturer)
			continue
		}
		fmt.Fprintf(w, "  %d: %s\n", d.Index, d.Name)
	}
}
