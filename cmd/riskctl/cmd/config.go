package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"futures-risk-go/risk"
)

func newConfigCmd(opts *options) *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Manage named risk configurations",
	}
	c.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List configuration names",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				m, cfg, err := opts.riskConfigs()
				if err != nil {
					return err
				}
				for _, name := range m.List() {
					mark := " "
					if name == cfg.Risk.Profile {
						mark = "*"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mark, name)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "show [name]",
			Short: "Print a configuration as YAML (unknown names show the default)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				m, cfg, err := opts.riskConfigs()
				if err != nil {
					return err
				}
				name := cfg.Risk.Profile
				if len(args) == 1 {
					name = args[0]
				}
				if _, ok := m.Lookup(name); !ok {
					fmt.Fprintf(cmd.ErrOrStderr(), "config %q not found, showing %s\n", name, risk.DefaultConfigName)
				}
				out, err := yaml.Marshal(m.Get(name))
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			},
		},
		newConfigSetCmd(opts),
		&cobra.Command{
			Use:   "set-default <name>",
			Short: "Copy a named configuration over the default",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				m, _, err := opts.riskConfigs()
				if err != nil {
					return err
				}
				if err := m.SetDefault(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "default <- %s\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete a named configuration",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				m, _, err := opts.riskConfigs()
				if err != nil {
					return err
				}
				ok, err := m.Delete(args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("config %q not found", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			},
		},
	)
	return c
}

func newConfigSetCmd(opts *options) *cobra.Command {
	var file string
	c := &cobra.Command{
		Use:   "set <name> --file profile.yaml",
		Short: "Create or replace a named configuration from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var rc risk.Config
			if err := yaml.Unmarshal(raw, &rc); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			m, _, err := opts.riskConfigs()
			if err != nil {
				return err
			}
			if err := m.Set(args[0], rc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", args[0])
			return nil
		},
	}
	c.Flags().StringVarP(&file, "file", "f", "", "YAML file holding one risk configuration")
	_ = c.MarkFlagRequired("file")
	return c
}
