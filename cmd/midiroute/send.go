package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leandrodaf/midiroute/internal/codec"
	"github.com/leandrodaf/midiroute/sdk/contracts"
)

var (
	sendTo    string
	sendSysEx string
	sendDelay time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send [flags] MESSAGE...",
	Short: "Send messages to an output",
	Long: `Send each MESSAGE, written "<kind> <channel> <data> [value]" with kind one of
cc, program, noteon or noteoff, to the first output matching --to.`,
	Example: `  midiroute send --to synth "noteon 0 60 100" "noteoff 0 60"
  midiroute send --to synth --sysex "hello"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && sendSysEx == "" {
			return fmt.Errorf("nothing to send")
		}
		msgs := make([]codec.Message, 0, len(args))
		for _, arg := range args {
			msg, err := codec.Parse(arg)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, log, err := newClient(cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		out, err := client.OpenOutput(contracts.Selector{Pattern: sendTo})
		if err != nil {
			return err
		}
		if sendSysEx != "" {
			if err := out.SendSysEx(sendSysEx); err != nil {
				return err
			}
		}
		for i, msg := range msgs {
			if i > 0 && sendDelay > 0 {
				time.Sleep(sendDelay)
			}
			if err := out.Send(msg); err != nil {
				return err
			}
			log.Debug("Sent " + codec.Text(msg))
		}
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVarP(&sendTo, "to", "t", "", "output port pattern")
	sendCmd.Flags().StringVar(&sendSysEx, "sysex", "", "send the string as a system exclusive message first")
	sendCmd.Flags().DurationVar(&sendDelay, "delay", 0, "pause between messages")
	rootCmd.AddCommand(sendCmd)
}
