package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	config "github.com/greenlight-dev/greenlight/config"
	ui "github.com/greenlight-dev/greenlight/internal/ui"
	cobra "github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new project with Greenlight",
	Long: `Initialize a new project directory with Greenlight configuration.
This creates the .greenlight directory with a configuration file and a
.gitignore covering the files the coordinator writes at runtime.

This is the recommended command to start using Greenlight in a new project.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initializeProject(cmd)
	},
}

func init() {
	initCmd.Flags().Bool("overwrite", false, "Overwrite existing files if they already exist")
	initCmd.Flags().Bool("userspace", false, "Initialize configuration in user home directory (~/.greenlight/)")
	rootCmd.AddCommand(initCmd)
}

func initializeProject(cmd *cobra.Command) error {
	overwrite, _ := cmd.Flags().GetBool("overwrite")
	userspace, _ := cmd.Flags().GetBool("userspace")

	var configPath, gitignorePath string

	if userspace {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		configPath = filepath.Join(homeDir, config.ConfigDirName, config.ConfigFileName)
		gitignorePath = filepath.Join(homeDir, config.ConfigDirName, config.GitignoreFileName)
	} else {
		configPath = config.DefaultConfigPath
		gitignorePath = filepath.Join(config.ConfigDirName, config.GitignoreFileName)
	}

	if !overwrite {
		if err := validateFilesNotExist(configPath, gitignorePath); err != nil {
			return err
		}
	}

	if err := config.DefaultConfig().SaveConfig(configPath); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	gitignoreContent := `# Ignore coordinator runtime files
messages.db
messages.jsonl
*.log
`

	if err := os.WriteFile(gitignorePath, []byte(gitignoreContent), 0644); err != nil {
		return fmt.Errorf("failed to create .gitignore file: %w", err)
	}

	var scopeDesc string
	if userspace {
		scopeDesc = "userspace"
	} else {
		scopeDesc = "project"
	}

	fmt.Printf("%s Successfully initialized Greenlight %s configuration\n", ui.FormatSuccess("✓"), scopeDesc)
	fmt.Printf("   Created: %s\n", configPath)
	fmt.Printf("   Created: %s\n", gitignorePath)
	fmt.Println("")
	if userspace {
		fmt.Println("This userspace configuration will be used as a fallback for all projects.")
		fmt.Println("Project-level configurations will take precedence when present.")
		fmt.Println("")
	}
	fmt.Println("You can now customize the configuration:")
	fmt.Println("  • Set the gateway endpoint: greenlight config set gateway.url <url>")
	fmt.Println("  • Review effective settings: greenlight config show")
	fmt.Println("  • Start the coordinator: greenlight run")

	return nil
}

func validateFilesNotExist(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("file %s already exists (use --overwrite to replace existing files)", path)
		}
	}
	return nil
}
