package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tpg/internal/evo"
	"tpg/pkg/tpg"
)

// learnerFlags selects either an explicit program or a random one.
type learnerFlags struct {
	program string
	action  int64
	team    string
}

func (f *learnerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.program, "program", "", `explicit program, e.g. "sum r0 o1; cos r1 r0" (random when empty)`)
	cmd.Flags().Int64Var(&f.action, "action", 0, "atomic action code")
	cmd.Flags().StringVar(&f.team, "team", "", "team id to reference instead of an atomic action")
}

func (f *learnerFlags) actionValue() tpg.Action {
	if f.team != "" {
		return tpg.TeamAction(f.team)
	}
	return tpg.AtomicAction(f.action)
}

func (a *app) buildLearner(f *learnerFlags) (*tpg.Learner, error) {
	if f.program == "" {
		return a.client.NewLearner(f.actionValue(), a.cfg.Learner.MaxProgramSize, 0)
	}
	program, err := tpg.ParseProgram(f.program)
	if err != nil {
		return nil, err
	}
	return a.client.NewLearnerFromProgram(f.actionValue(), program, a.cfg.Learner.MaxProgramSize, 0)
}

func newNewCommand(a *app) *cobra.Command {
	var (
		flags  learnerFlags
		count  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Generate learners and print their programs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 1 {
				return errors.New("count must be >= 1")
			}
			learners := make([]*tpg.Learner, 0, count)
			for i := 0; i < count; i++ {
				l, err := a.buildLearner(&flags)
				if err != nil {
					return err
				}
				learners = append(learners, l)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(learners)
			}
			for _, l := range learners {
				printLearner(cmd.OutOrStdout(), l)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&count, "count", 1, "number of learners to generate")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print learners as JSON")
	return cmd
}

func newTraceCommand(a *app) *cobra.Command {
	var (
		flags learnerFlags
		obs   string
	)
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Execute a learner once and print every register write",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			observation, err := parseObservation(obs)
			if err != nil {
				return err
			}
			l, err := a.buildLearner(&flags)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printLearner(out, l)

			steps, raw := a.client.Trace(l, observation, nil)
			for _, step := range steps {
				if step.Skipped {
					fmt.Fprintf(out, "%3d  %-18s skipped\n", step.Index, step.Instruction)
					continue
				}
				reset := ""
				if step.Reset {
					reset = "  reset"
				}
				fmt.Fprintf(out, "%3d  %-18s src=%-12g r%d: %g -> %g%s\n",
					step.Index, step.Instruction, step.Source, step.Op.Destination, step.Before, step.After, reset)
			}
			fmt.Fprintf(out, "raw=%g bid=%g\n", raw, a.client.Bid(l, observation, nil))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&obs, "obs", "", "comma-separated observation vector")
	return cmd
}

func newBidCommand(a *app) *cobra.Command {
	var (
		flags    learnerFlags
		obs      string
		steps    int
		learners int
	)
	cmd := &cobra.Command{
		Use:   "bid",
		Short: "Bid against an observation, optionally over a stateful episode or a group of learners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			observation, err := parseObservation(obs)
			if err != nil {
				return err
			}
			if steps < 1 {
				return errors.New("steps must be >= 1")
			}
			if learners < 1 {
				return errors.New("learners must be >= 1")
			}

			group := make([]*tpg.Learner, 0, learners)
			for i := 0; i < learners; i++ {
				l, err := a.buildLearner(&flags)
				if err != nil {
					return err
				}
				group = append(group, l)
			}

			out := cmd.OutOrStdout()
			store := a.client.NewRegisterStore()
			for step := 0; step < steps; step++ {
				bids, err := a.client.BidAll(cmd.Context(), group, observation, store)
				if err != nil {
					return err
				}
				order := make([]int, len(group))
				for i := range order {
					order[i] = i
				}
				sort.SliceStable(order, func(i, j int) bool { return bids[order[i]] > bids[order[j]] })
				for _, i := range order {
					fmt.Fprintf(out, "step=%d learner=%d action=%s bid=%.6f\n", step, group[i].ID, group[i].Action, bids[i])
				}
				a.logger.Debug("episode step", zap.Int("step", step), zap.Int64("winner", group[order[0]].ID))
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&obs, "obs", "", "comma-separated observation vector")
	cmd.Flags().IntVar(&steps, "steps", 1, "episode length; registers persist between steps")
	cmd.Flags().IntVar(&learners, "learners", 1, "number of learners bidding in parallel")
	return cmd
}

func newMutateCommand(a *app) *cobra.Command {
	var (
		flags    learnerFlags
		rounds   int
		operator string
	)
	cmd := &cobra.Command{
		Use:   "mutate",
		Short: "Apply mutation rounds to a learner and print the evolving program",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rounds < 1 {
				return errors.New("rounds must be >= 1")
			}
			l, err := a.buildLearner(&flags)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printLearner(out, l)

			maxSize := a.cfg.Learner.MaxProgramSize
			for round := 0; round < rounds; round++ {
				var changed bool
				if operator != "" {
					changed, err = a.client.ApplyOperator(cmd.Context(), l, operator, maxSize)
				} else {
					changed, err = a.client.MutateProgram(cmd.Context(), l, a.cfg.Mutation, maxSize)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "round=%d changed=%t length=%d\n", round, changed, len(l.Program))
			}
			printLearner(out, l)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&rounds, "rounds", 1, "number of mutation rounds")
	cmd.Flags().StringVar(&operator, "operator", "", "apply only this operator each round (see tpgctl operators)")
	return cmd
}

func newOperatorsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "operators",
		Short: "List program mutation operators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range evo.ListOperators() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func printLearner(w io.Writer, l *tpg.Learner) {
	fmt.Fprintf(w, "learner id=%d gen=%d action=%s refs=%d length=%d\n",
		l.ID, l.BirthGeneration, l.Action, l.TeamRefCount, len(l.Program))
	for i, in := range l.Program {
		fmt.Fprintf(w, "  %2d: %s\n", i, in)
	}
}

func parseObservation(text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("--obs is required")
	}
	parts := strings.Split(text, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("parse observation %q: %w", part, err)
		}
		out = append(out, v)
	}
	return out, nil
}
