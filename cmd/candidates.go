package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/victornm/facematch/internal/candidate"
	"github.com/victornm/facematch/internal/deck"
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Work with candidate files",
}

var candidatesValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check that a candidate file can start a game",
	Long: `Check that a JSON or YAML candidate file can start a game.

Every candidate needs an id, a first and last name, an image and a gender.
Ids must be unique. A gender shared by a single candidate is reported: its
rounds fall back to a decoy of another gender.

Example:
  facematch candidates validate testdata/people.json`,
	Args: cobra.ExactArgs(1),
	RunE: runCandidatesValidate,
}

func init() {
	rootCmd.AddCommand(candidatesCmd)
	candidatesCmd.AddCommand(candidatesValidateCmd)
}

func runCandidatesValidate(cmd *cobra.Command, args []string) error {
	cs, err := candidate.LoadFile(args[0])
	if err != nil {
		return err
	}

	if err := deck.New(deck.Config{}).Initialize(cs); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d candidates\n", args[0], len(cs))

	genders := candidate.Genders(cs)
	for _, g := range slices.Sorted(maps.Keys(genders)) {
		n := genders[g]
		fmt.Fprintf(out, "  %-10s %d\n", g, n)
		if n == 1 {
			fmt.Fprintf(out, "  warning: %q has a single candidate, its rounds use a decoy of another gender\n", g)
		}
	}

	return nil
}
