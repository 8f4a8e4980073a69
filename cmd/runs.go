package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/store"
)

// statsScanLimit bounds how many runs `runs stats` aggregates.
const statsScanLimit = 10000

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stage run history",
	Long:  "List, show and summarize the runs recorded in the store.",
}

// historyCommand builds a runs subcommand that receives an open, migrated
// store and closes it afterwards.
func historyCommand(use, short string, args cobra.PositionalArgs, fn func(*cobra.Command, store.Store, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, argv []string) error {
			ctx := cmd.Context()
			st, err := initStore(ctx, cfg.Store)
			if err != nil {
				return err
			}
			if st == nil {
				return eris.New("run history needs store.driver sqlite or postgres")
			}
			defer st.Close() //nolint:errcheck

			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}
			return fn(cmd, st, argv)
		},
	}
}

var runsListCmd = historyCommand("list", "List recent runs, newest first", cobra.NoArgs,
	func(cmd *cobra.Command, st store.Store, _ []string) error {
		var f store.RunFilter
		f.Stage, _ = cmd.Flags().GetString("stage")
		status, _ := cmd.Flags().GetString("status")
		f.Status = model.RunStatus(status)
		f.Limit, _ = cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(cmd.Context(), f)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if len(runs) == 0 {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No runs recorded.")
			return nil
		}
		formatRunsList(cmd.OutOrStdout(), runs)
		return nil
	})

var runsShowCmd = historyCommand("show <run-id>", "Print one run as JSON", cobra.ExactArgs(1),
	func(cmd *cobra.Command, st store.Store, args []string) error {
		run, err := st.GetRun(cmd.Context(), args[0])
		if err != nil {
			return eris.Wrapf(err, "runs show %s", args[0])
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	})

var runsStatsCmd = historyCommand("stats", "Summarize runs per stage", cobra.NoArgs,
	func(cmd *cobra.Command, st store.Store, _ []string) error {
		stage, _ := cmd.Flags().GetString("stage")
		runs, err := st.ListRuns(cmd.Context(), store.RunFilter{Stage: stage, Limit: statsScanLimit})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}
		formatRunStats(cmd.OutOrStdout(), computeRunStats(runs))
		return nil
	})

func init() {
	const stageHelp = "only runs of this stage (homepages, profiles, features)"
	runsListCmd.Flags().String("stage", "", stageHelp)
	runsListCmd.Flags().String("status", "", "only runs with this status (running, complete, failed)")
	runsListCmd.Flags().Int("limit", 50, "maximum runs to list")
	runsStatsCmd.Flags().String("stage", "", stageHelp)

	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats aggregates a set of runs.
type runStats struct {
	Total      int
	Complete   int
	Failed     int
	Running    int
	Rows       int
	RowsFailed int
	Tokens     int64
	Cost       float64
	AvgDurSecs float64

	finished time.Duration
	nDone    int
}

func (s *runStats) add(r model.Run) {
	s.Total++
	switch r.Status {
	case model.RunStatusComplete:
		s.Complete++
	case model.RunStatusFailed:
		s.Failed++
	default:
		s.Running++
	}
	s.Rows += r.Stats.Written
	s.RowsFailed += r.Stats.Failed
	s.Tokens += r.Stats.TotalTokens
	s.Cost += r.Stats.TotalCost
	if r.FinishedAt != nil {
		s.finished += r.FinishedAt.Sub(r.CreatedAt)
		s.nDone++
		s.AvgDurSecs = s.finished.Seconds() / float64(s.nDone)
	}
}

// stageRunStats holds the overall aggregate plus one per stage, in
// pipeline order.
type stageRunStats struct {
	All     runStats
	ByStage []namedRunStats
}

type namedRunStats struct {
	Stage string
	runStats
}

func computeRunStats(runs []model.Run) stageRunStats {
	var out stageRunStats
	idx := map[string]int{}
	for _, name := range []string{model.StageHomepages, model.StageProfiles, model.StageFeatures} {
		idx[name] = len(out.ByStage)
		out.ByStage = append(out.ByStage, namedRunStats{Stage: name})
	}

	for _, r := range runs {
		out.All.add(r)
		i, ok := idx[r.Stage]
		if !ok {
			i = len(out.ByStage)
			idx[r.Stage] = i
			out.ByStage = append(out.ByStage, namedRunStats{Stage: r.Stage})
		}
		out.ByStage[i].add(r)
	}
	return out
}

func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTAGE\tSTATUS\tROWS\tFAILED\tCOST\tCREATED\tDURATION")
	for _, r := range runs {
		took := "-"
		if r.FinishedAt != nil {
			took = r.FinishedAt.Sub(r.CreatedAt).Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t$%.4f\t%s\t%s\n",
			truncateID(r.ID), r.Stage, r.Status,
			r.Stats.Written, r.Stats.Failed, r.Stats.TotalCost,
			r.CreatedAt.Format("2006-01-02 15:04"), took)
	}
	_ = w.Flush()
}

// formatRunStats prints one row per stage that has runs, then the total.
func formatRunStats(out io.Writer, s stageRunStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(w, "STAGE\tRUNS\tOK\tFAILED\tRUNNING\tROWS\tROW ERRORS\tTOKENS\tCOST\tAVG TIME\t")
	row := func(name string, rs runStats) {
		avg := "-"
		if rs.AvgDurSecs > 0 {
			avg = fmt.Sprintf("%.1fs", rs.AvgDurSecs)
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t$%.4f\t%s\t\n",
			name, rs.Total, rs.Complete, rs.Failed, rs.Running,
			rs.Rows, rs.RowsFailed, rs.Tokens, rs.Cost, avg)
	}
	for _, st := range s.ByStage {
		if st.Total > 0 {
			row(st.Stage, st.runStats)
		}
	}
	row("total", s.All)
	_ = w.Flush()
}

// truncateID shortens a run UUID to its first block.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
