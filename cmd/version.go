package cmd

import (
	"fmt"
	"runtime/debug"

	cobra "github.com/spf13/cobra"
)

// Overridden at release time via -ldflags; module builds fall back to
// whatever the Go toolchain recorded.
var (
	version = ""
	commit  = ""
	date    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Long:  `Display version information for the Greenlight coordinator.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("greenlight version %s\n", buildVersion())
		if c := buildCommit(); c != "" {
			fmt.Printf("commit: %s\n", c)
		}
		fmt.Printf("built at: %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func buildVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "devel"
}

func buildCommit() string {
	if commit != "" {
		return commit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			return setting.Value
		}
	}
	return ""
}
