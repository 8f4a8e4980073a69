package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/enrich-cli/internal/config"
	"github.com/sells-group/enrich-cli/internal/pipeline"
)

// stageBuilder constructs a stage over a prepared environment.
type stageBuilder func(c *config.Config, env *stageEnv) (pipeline.Stage, error)

// stageDef describes one stage command and where its files live by
// default.
type stageDef struct {
	name   string
	short  string
	input  func(config.FilesConfig) string
	output func(config.FilesConfig) string
	build  stageBuilder
}

var stageDefs = []stageDef{
	{
		name:   config.StageHomepages,
		short:  "Find the official homepage of every company",
		input:  func(f config.FilesConfig) string { return f.Companies },
		output: func(f config.FilesConfig) string { return f.Homepages },
		build: func(c *config.Config, env *stageEnv) (pipeline.Stage, error) {
			return buildHomepageStage(c, env)
		},
	},
	{
		name:   config.StageProfiles,
		short:  "Look up company profiles by homepage domain",
		input:  func(f config.FilesConfig) string { return f.Homepages },
		output: func(f config.FilesConfig) string { return f.Profiles },
		build: func(c *config.Config, env *stageEnv) (pipeline.Stage, error) {
			return buildProfileStage(c, env)
		},
	},
	{
		name:   config.StageFeatures,
		short:  "Extract AI features and use cases from each website",
		input:  func(f config.FilesConfig) string { return f.Profiles },
		output: func(f config.FilesConfig) string { return f.Features },
		build: func(c *config.Config, env *stageEnv) (pipeline.Stage, error) {
			return buildFeatureStage(c, env), nil
		},
	},
}

func newStageCmd(def stageDef) *cobra.Command {
	cmd := &cobra.Command{
		Use:   def.name,
		Short: def.short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			env, err := initEnv(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer env.Close()

			sum, err := runStage(cmd.Context(), cfg, env, def, def.input(cfg.Files), def.output(cfg.Files), limit)
			if sum != nil {
				printSummary(cmd.OutOrStdout(), sum)
			}
			return err
		},
	}
	cmd.Flags().Int("limit", 0, "stop after this many rows (0 = all)")
	return cmd
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Run homepages, profiles and features in sequence",
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		env, err := initEnv(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		for _, def := range stageDefs {
			sum, err := runStage(cmd.Context(), cfg, env, def, def.input(cfg.Files), def.output(cfg.Files), limit)
			if sum != nil {
				printSummary(cmd.OutOrStdout(), sum)
			}
			if err != nil {
				return err
			}
			if sum.Interrupted {
				return eris.Errorf("%s interrupted, later stages skipped", def.name)
			}
		}
		return nil
	},
}

func runStage(ctx context.Context, c *config.Config, env *stageEnv, def stageDef, in, out string, limit int) (*pipeline.Summary, error) {
	warnMissingCredentials(c, def.name)
	stage, err := def.build(c, env)
	if err != nil {
		return nil, eris.Wrapf(err, "build %s stage", def.name)
	}
	return env.Runner(limit).Run(ctx, stage, in, out)
}

// printSummary writes the end-of-run report.
func printSummary(out io.Writer, s *pipeline.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Stage:\t%s\n", s.Stage)
	if s.RunID != "" {
		_, _ = fmt.Fprintf(w, "Run:\t%s\n", s.RunID)
	}
	_, _ = fmt.Fprintf(w, "Output:\t%s\n", s.Output)
	_, _ = fmt.Fprintf(w, "Rows written:\t%d\n", s.Written)
	_, _ = fmt.Fprintf(w, "Rows skipped:\t%d\n", s.Skipped)
	_, _ = fmt.Fprintf(w, "Rows failed:\t%d\n", s.Failed)
	if s.Usage.Calls > 0 || s.Usage.JinaTokens > 0 {
		_, _ = fmt.Fprintf(w, "Model calls:\t%d\n", s.Usage.Calls)
		_, _ = fmt.Fprintf(w, "Total tokens used:\t%d\n", s.Usage.TotalTokens)
		_, _ = fmt.Fprintf(w, "Reader tokens used:\t%d\n", s.Usage.JinaTokens)
		_, _ = fmt.Fprintf(w, "Total cost:\t$%.4f\n", s.Usage.Cost)
	}
	_, _ = fmt.Fprintf(w, "Duration:\t%s\n", s.Duration.Round(time.Millisecond))
	if s.Interrupted {
		_, _ = fmt.Fprintln(w, "Status:\tinterrupted")
	}
	_ = w.Flush()
}

func init() {
	for _, def := range stageDefs {
		rootCmd.AddCommand(newStageCmd(def))
	}
	allCmd.Flags().Int("limit", 0, "stop each stage after this many rows (0 = all)")
	rootCmd.AddCommand(allCmd)
}
