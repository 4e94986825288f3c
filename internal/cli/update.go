package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/guiyumin/vskip/internal/core/updater"
	"github.com/guiyumin/vskip/internal/core/version"
)

var updateCheck bool

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update vskip to the latest release",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		up, err := updater.New(version.Version)
		if err != nil {
			return err
		}

		if updateCheck {
			rel, newer, err := up.Check(ctx)
			if err != nil {
				return err
			}
			if !newer {
				printOK("Already up to date (v%s)", version.Version)
				return nil
			}
			printWarn("v%s is available (running v%s)", rel.Version, version.Version)
			fmt.Println(dimStyle.Render(rel.URL))
			return nil
		}

		fmt.Printf("Checking for updates (running v%s)...\n", version.Version)
		installed, err := up.Update(ctx)
		if err != nil {
			return err
		}
		if installed == "" {
			printOK("Already up to date (v%s)", version.Version)
			return nil
		}
		printOK("Successfully updated to v%s", installed)
		return nil
	},
}

func init() {
	updateCmd.Flags().BoolVar(&updateCheck, "check", false, "only report whether a newer release exists")
	rootCmd.AddCommand(updateCmd)
}
