package cli

import (
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

// NewDescribeCmd creates the describe command
func NewDescribeCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Describe the registered protocol mappers",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, _, err := loadProvider(cmd)
			if err != nil {
				return err
			}
			defer provider.Close()

			registry, err := provider.Registry()
			if err != nil {
				return err
			}

			descriptors := registry.Descriptors()

			var data []byte
			switch output {
			case "yaml", "":
				data, err = yaml.Marshal(descriptors)
			case "json":
				data, err = json.MarshalIndent(descriptors, "", "  ")
			default:
				return fmt.Errorf("unknown output format: %s (supported: json, yaml)", output)
			}
			if err != nil {
				return fmt.Errorf("failed to encode descriptors: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "Output format (json, yaml)")
	return cmd
}
