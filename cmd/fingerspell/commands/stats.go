package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ayusman/fingerspell/internal/app"
	"github.com/ayusman/fingerspell/internal/config"
	"github.com/ayusman/fingerspell/internal/gesture"
	"github.com/ayusman/fingerspell/internal/store"
)

var (
	statsLanguage string
	statsSide     string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-letter sample counts for a dataset",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsLanguage, "language", "", "dataset language (default from config)")
	statsCmd.Flags().StringVar(&statsSide, "side", "", "dataset side, left or right (default from config)")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	language, side, err := datasetTarget(cfg, statsLanguage, statsSide)
	if err != nil {
		return err
	}

	persist, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(persist)

	counts, err := persist.Stats(commandContext(cmd.Context()), side, language)
	if err != nil {
		return err
	}
	return printStats(cmd.OutOrStdout(), language, side, counts)
}

func printStats(w io.Writer, language string, side gesture.Side, counts []store.LabelCount) error {
	if len(counts) == 0 {
		_, err := fmt.Fprintf(w, "No samples for %s/%s\n", language, side)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tSAMPLES")
	total := 0
	for _, c := range counts {
		fmt.Fprintf(tw, "%s\t%s\n", c.Label, humanize.Comma(int64(c.Samples)))
		total += c.Samples
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%s/%s: %s %s across %s %s\n",
		language, side,
		humanize.Comma(int64(total)), plural(total, "sample", "samples"),
		humanize.Comma(int64(len(counts))), plural(len(counts), "label", "labels"))
	return err
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// datasetTarget resolves --language and --side against the config defaults.
func datasetTarget(cfg *config.Config, language, side string) (string, gesture.Side, error) {
	if language == "" {
		language = cfg.Session.Language
	}
	if side == "" {
		side = cfg.Session.Side
	}
	s, err := gesture.ParseSide(side)
	if err != nil {
		return "", "", err
	}
	return language, s, nil
}

func openStore(cfg *config.Config) (store.Persistence, error) {
	return app.OpenStore(cfg.Store)
}

func closeStore(p store.Persistence) {
	if c, ok := p.(interface{ Close() error }); ok {
		c.Close()
	}
}

// commandContext returns ctx or a background context for commands run
// outside Execute.
func commandContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
