package main

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/calrun/calrun/pkg/config"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Show or change the verify policy",
		GroupID: gUtility,
		Long: `Show or change the session policy: how strictly readbacks are checked
against targets, how often they are retried, and how long the run waits for
values to settle. Values not present in the config file use built-in
defaults that suit most instruments.`,
	}

	cmd.AddCommand(
		newConfigShowCommand(),
		newConfigSetCommand(),
	)

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective verify policy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}

			if asJSON {
				raw, err := config.NewRawFileConfigFromConfig(conf)
				if err != nil {
					return err
				}
				b, err := json.MarshalIndent(raw, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(b))
				return nil
			}

			cmd.Println(bold("Verify policy:"))
			cmd.Printf("  verify-tolerance: %s\n", bold("%g", conf.VerifyTolerance()))
			cmd.Printf("  verify-attempts:  %s\n", bold("%d", conf.VerifyAttempts()))
			cmd.Printf("  settle-delay:     %s\n", bold("%s", conf.SettleDelay()))
			cmd.Printf("  retry-delay:      %s\n", bold("%s", conf.RetryDelay()))
			cmd.Printf("  stabilize-delay:  %s\n", bold("%s", conf.StabilizeDelay()))
			cmd.Println()
			cmd.Printf("Config file: %s\n", configPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the policy as JSON")

	return cmd
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one policy value and save it",
		Long: `Change one policy value and save it to the config file.

Keys:
  verify-tolerance   absolute readback tolerance (e.g. 0.01)
  verify-attempts    readback attempts per parameter (e.g. 3)
  settle-delay       wait between write and first readback (e.g. 300ms)
  retry-delay        wait between failed readbacks (e.g. 500ms)
  stabilize-delay    wait after measurement start (e.g. 3s)`,
		Example: `  calrun config set verify-tolerance 0.05
  calrun config set settle-delay 300ms`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}

			key, value := args[0], args[1]
			switch key {
			case "verify-tolerance":
				tol, err := strconv.ParseFloat(value, 64)
				if err != nil {
					return fmt.Errorf("invalid tolerance: %v", err)
				}
				if tol <= 0 || math.IsNaN(tol) || math.IsInf(tol, 0) {
					return fmt.Errorf("tolerance must be a positive finite number, got %q", value)
				}
				conf.SetVerifyTolerance(tol)
			case "verify-attempts":
				n, err := strconv.Atoi(value)
				if err != nil {
					return fmt.Errorf("invalid attempts: %v", err)
				}
				if n < 1 {
					return fmt.Errorf("attempts must be at least 1, got %d", n)
				}
				conf.SetVerifyAttempts(n)
			case "settle-delay", "retry-delay", "stabilize-delay":
				d, err := time.ParseDuration(value)
				if err != nil {
					return fmt.Errorf("invalid duration %q: %v", value, err)
				}
				if d < 0 {
					return fmt.Errorf("%s must not be negative", key)
				}
				switch key {
				case "settle-delay":
					conf.SetSettleDelay(d)
				case "retry-delay":
					conf.SetRetryDelay(d)
				default:
					conf.SetStabilizeDelay(d)
				}
			default:
				return fmt.Errorf("unknown key %q", key)
			}

			if err := conf.Save(); err != nil {
				return err
			}
			logrus.Infof("saved %s to %s", key, configPath)
			return nil
		},
	}
}
