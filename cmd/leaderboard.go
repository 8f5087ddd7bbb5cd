package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/victornm/facematch/internal/domain"
	"github.com/victornm/facematch/internal/leaderboard"
	"github.com/victornm/facematch/internal/server"
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Inspect or reset the persisted leaderboards",
}

var leaderboardShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the leaderboard of a mode",
	Example: `  facematch leaderboard show --mode hard
  facematch leaderboard show --mode easy -o yaml`,
	Args: cobra.NoArgs,
	RunE: runLeaderboardShow,
}

var leaderboardClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every entry from the leaderboard of a mode",
	Args:  cobra.NoArgs,
	RunE:  runLeaderboardClear,
}

func init() {
	rootCmd.AddCommand(leaderboardCmd)
	leaderboardCmd.AddCommand(leaderboardShowCmd, leaderboardClearCmd)

	leaderboardCmd.PersistentFlags().String("mode", string(domain.ModeEasy), "Game mode: easy or hard")

	leaderboardShowCmd.Flags().StringP("output", "o", "table", "Output format: table, json or yaml")

	leaderboardClearCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
}

func openLeaderboard(ctx context.Context) (*leaderboard.Service, func(), error) {
	store, err := server.OpenStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}

	ls := leaderboard.NewService(leaderboard.Config{
		Storage: store,
		Prefix:  cfg.Storage.Prefix,
	})

	return ls, func() { store.Close() }, nil
}

func runLeaderboardShow(cmd *cobra.Command, _ []string) error {
	mode, err := domain.ParseMode(mustGetString(cmd, "mode"))
	if err != nil {
		return err
	}

	ls, closeStore, err := openLeaderboard(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	l, err := ls.GetScores(cmd.Context(), leaderboard.GetScoresRequest{Mode: mode})
	if err != nil {
		return err
	}

	return printLeaderboard(cmd.OutOrStdout(), mustGetString(cmd, "output"), l)
}

func printLeaderboard(w io.Writer, format string, l *domain.Leaderboard) error {
	out := toOutput(l)

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(out)
	case "table":
		if len(l.Entries) == 0 {
			_, err := fmt.Fprintf(w, "No scores yet for mode %s\n", l.Mode)
			return err
		}

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RANK\tNAME\tSCORE\tDATE")
		for i, e := range l.Entries {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", i+1, e.Name, e.Score, e.Date.Local().Format(time.DateTime))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

type leaderboardOutput struct {
	Mode    string        `json:"mode" yaml:"mode"`
	Entries []entryOutput `json:"entries" yaml:"entries"`
}

type entryOutput struct {
	Name  string    `json:"name" yaml:"name"`
	Score int       `json:"score" yaml:"score"`
	Date  time.Time `json:"date" yaml:"date"`
}

func toOutput(l *domain.Leaderboard) leaderboardOutput {
	out := leaderboardOutput{Mode: string(l.Mode), Entries: []entryOutput{}}
	for _, e := range l.Entries {
		out.Entries = append(out.Entries, entryOutput{Name: e.Name, Score: e.Score, Date: e.Date})
	}
	return out
}

func runLeaderboardClear(cmd *cobra.Command, _ []string) error {
	mode, err := domain.ParseMode(mustGetString(cmd, "mode"))
	if err != nil {
		return err
	}

	if !mustGetBool(cmd, "yes") && !confirmAction(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Clear the %s leaderboard? [y/N]: ", mode)) {
		fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
		return nil
	}

	ls, closeStore, err := openLeaderboard(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	if err := ls.ClearScores(cmd.Context(), leaderboard.ClearScoresRequest{Mode: mode}); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Cleared the %s leaderboard\n", mode)
	return nil
}
