package commands

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/gitmesam/dcc/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize dcc configuration interactively",
	Long: `Guides you through setting up dcc configuration step by step.
Creates a project-level config file with output and caching settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit()
	},
}

func runInit() error {
	conf := config.DefaultConfig()

	output := string(conf.Output)
	cacheDir := conf.CacheDir
	caching := !conf.NoCache
	verbose := conf.Verbose

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Output format").
				Description("How structuring results are rendered by default").
				Options(
					huh.NewOption("Text", string(config.FormatText)),
					huh.NewOption("JSON", string(config.FormatJSON)),
				).
				Value(&output),
			huh.NewConfirm().
				Title("Cache structuring results?").
				Description("Memoizes results keyed by input digest").
				Value(&caching),
			huh.NewConfirm().
				Title("Verbose logging?").
				Value(&verbose),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	if caching {
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Cache directory").
					Placeholder(conf.CacheDir).
					Value(&cacheDir),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
	}

	conf.Output = config.OutputFormat(output)
	conf.NoCache = !caching
	conf.Verbose = verbose
	if cacheDir != "" {
		conf.CacheDir = cacheDir
	}

	if err := conf.Validate(); err != nil {
		return err
	}
	if err := conf.SaveProject(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Println("Configuration written to .dcc/config.yaml")
	return nil
}
