package commands

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/fingerspell/internal/plugin"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List installed output plugins",
	Args:  cobra.NoArgs,
	RunE:  runPlugins,
}

func runPlugins(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mgr := plugin.NewManager(cfg.Plugins.Dir)
	if err := mgr.Discover(); err != nil {
		return fmt.Errorf("failed to discover plugins: %w", err)
	}
	return printPlugins(cmd.OutOrStdout(), mgr, cfg.Plugins.Enabled)
}

func printPlugins(w io.Writer, mgr *plugin.Manager, enabled []string) error {
	plugins := mgr.List()
	if len(plugins) == 0 {
		_, err := fmt.Fprintf(w, "No plugins in %s\n", mgr.PluginDir())
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tENABLED\tEVENTS\tDESCRIPTION")
	for _, p := range plugins {
		on := "no"
		if slices.Contains(enabled, p.Manifest.Name) {
			on = "yes"
		}
		events := strings.Join(p.Manifest.Events, ",")
		if events == "" {
			events = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.Manifest.Name, p.Manifest.Version, on, events, p.Manifest.Description)
	}
	return tw.Flush()
}
