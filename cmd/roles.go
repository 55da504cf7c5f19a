package cmd

import (
	"fmt"

	"github.com/elshanq/resume-screener/internal/roles"

	"github.com/spf13/cobra"
)

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Print the role catalogue with requirement profiles",
	RunE: func(_ *cobra.Command, _ []string) error {
		catalogue := roles.Default()

		config, err := getConfig()
		if err == nil && config != nil && config.Roles != nil {
			if err := catalogue.Merge(config.Roles); err != nil {
				return fmt.Errorf("merging role overrides: %w", err)
			}
		}

		for _, role := range catalogue.All() {
			fmt.Printf("%s (%s)\n%s\n\n", role.ID, role.Title, role.Requirements)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(rolesCmd)
}
