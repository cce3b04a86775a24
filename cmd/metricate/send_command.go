package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tsawler/metricate/control"
	"github.com/tsawler/metricate/settings"
	"github.com/tsawler/metricate/transport"
)

func newSendCommand(ctx *commandContext) *cobra.Command {
	var url string
	var enabled bool
	var smart bool
	var fragment string
	var raw bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "send <action|json>",
		Short: "Send a control command to a running metricate serve",
		Long: "Send one command over the control channel and print the response.\n" +
			"Actions: toggle, convert, enable, disable, set-rounding-mode, rescan, append, status.\n" +
			"With --raw the argument is sent verbatim as a JSON command.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if url == "" {
				url = "ws://" + cfg.Server.Addr + cfg.Server.Path
			}

			var payload []byte
			if raw {
				payload = []byte(args[0])
			} else {
				command := control.Command{Action: control.Action(strings.TrimSpace(args[0])), HTML: fragment}
				if cmd.Flags().Changed("enabled") {
					command.Patch.Enabled = settings.Bool(enabled)
				}
				if cmd.Flags().Changed("smart") {
					command.Patch.SmartRounding = settings.Bool(smart)
				}
				payload, err = command.Encode()
				if err != nil {
					return err
				}
			}

			sendCtx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			client, err := transport.Dial(sendCtx, url)
			if err != nil {
				return fmt.Errorf("connect to %s: %w", url, err)
			}
			defer client.Close()

			data, err := client.Send(sendCtx, payload)
			if err != nil {
				return err
			}

			var pretty bytes.Buffer
			if err := json.Indent(&pretty, data, "", "  "); err != nil {
				pretty.Reset()
				pretty.Write(data)
			}
			fmt.Fprintln(cmd.OutOrStdout(), pretty.String())

			resp, err := control.DecodeResponse(data)
			if err != nil {
				return err
			}
			if !resp.Success {
				return errors.New("command failed: " + resp.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Control channel URL (defaults to ws://server.addr/server.path)")
	cmd.Flags().BoolVar(&enabled, "enabled", false, "Set the enabled setting")
	cmd.Flags().BoolVar(&smart, "smart", false, "Set the smartRounding setting")
	cmd.Flags().StringVar(&fragment, "html", "", "HTML fragment for the append action")
	cmd.Flags().BoolVar(&raw, "raw", false, "Send the argument as a raw JSON command")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Time to wait for the response")
	return cmd
}
