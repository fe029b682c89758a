// Command prdeck is a terminal dashboard for a pull request triage
// service. It shows the service's pull requests bucketed into review
// stages, reserves one PR from a stage and opens it in the browser, and
// remembers which PRs the reviewer has dismissed for good.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"

	"prdeck/internal/config"
	"prdeck/internal/feed"
	"prdeck/internal/hidestore"
	"prdeck/internal/model"
	"prdeck/internal/reserve"
	"prdeck/internal/tui"
)

var version = "dev"

var cli struct {
	Server  string           `short:"s" help:"Base URL of the triage service."`
	Limit   int              `short:"n" help:"Maximum pull requests fetched per stage."`
	Config  string           `type:"path" help:"Path to the config file."`
	Store   string           `type:"path" help:"Path to the hidden-items file."`
	Include string           `help:"Initial include pattern."`
	Exclude string           `help:"Initial exclude pattern."`
	Version kong.VersionFlag `short:"v" help:"Print version and exit."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("prdeck"),
		kong.Description("Terminal dashboard for a pull request triage service."),
		kong.Vars{"version": version},
	)

	cfgPath := cli.Config
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if cli.Server != "" {
		cfg.Server = cli.Server
	}
	if cli.Limit > 0 {
		cfg.Limit = cli.Limit
	}
	if cli.Store != "" {
		cfg.StorePath = cli.Store
	}

	m := tui.New(
		feed.NewHTTPSource(cfg.Server),
		reserve.NewClient(cfg.Server),
		hidestore.Open(cfg.StorePath),
		tui.Options{
			Limit:  cfg.Limit,
			Filter: model.FilterSpec{Include: cli.Include, Exclude: cli.Exclude},
		},
	)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
