package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calrun/calrun/pkg/device"
	"github.com/calrun/calrun/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewPortsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "ports",
		Short:   "List serial ports on this machine",
		GroupID: gUtility,
		Long:    `List the serial ports an instrument (or a Prologix adapter) could be attached to, for use with --serial.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := device.ListSerialPorts()
			if err != nil {
				return fmt.Errorf("failed to list serial ports: %v", err)
			}
			if len(ports) == 0 {
				cmd.Println("No serial ports found.")
				return nil
			}
			for _, p := range ports {
				cmd.Println(p)
			}
			return nil
		},
	}
}
