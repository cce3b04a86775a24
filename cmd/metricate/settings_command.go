package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tsawler/metricate/settings"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Read or change the stored conversion settings",
	}

	settingsCmd.AddCommand(newSettingsGetCommand(ctx))
	settingsCmd.AddCommand(newSettingsSetCommand(ctx))
	return settingsCmd
}

func openStore(ctx *commandContext, cmd *cobra.Command) (settings.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := cfg.OpenStore(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("open settings store: %w", err)
	}
	return store, nil
}

func printSettings(cmd *cobra.Command, s settings.Settings) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s\n", settings.KeyEnabled, yesNo(s.Enabled))
	fmt.Fprintf(out, "%s: %s\n", settings.KeySmartRounding, yesNo(s.SmartRounding))
}

func newSettingsGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the stored settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ctx, cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			s, err := store.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}
			printSettings(cmd, s)
			return nil
		},
	}
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	var enabled bool
	var smart bool

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change stored settings; a running server picks them up on its next start",
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch settings.Patch
			if cmd.Flags().Changed("enabled") {
				patch.Enabled = settings.Bool(enabled)
			}
			if cmd.Flags().Changed("smart-rounding") {
				patch.SmartRounding = settings.Bool(smart)
			}
			if patch.Empty() {
				return errors.New("nothing to set: pass --enabled and/or --smart-rounding")
			}

			store, err := openStore(ctx, cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			s, err := store.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}
			s = patch.Apply(s)
			if err := store.Save(cmd.Context(), s); err != nil {
				return fmt.Errorf("save settings: %w", err)
			}
			printSettings(cmd, s)
			return nil
		},
	}

	cmd.Flags().BoolVar(&enabled, "enabled", true, "Whether conversion is enabled")
	cmd.Flags().BoolVar(&smart, "smart-rounding", false, "Whether smart rounding is used")
	return cmd
}
