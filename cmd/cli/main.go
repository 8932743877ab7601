// Command cli is the terminal front end of the analysis engine. Every
// subcommand prints the same JSON envelope the engine produces, so the
// CLI doubles as a smoke test of the full stack.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"datawhisperer/app"
	"datawhisperer/domain/core"
	"datawhisperer/domain/inference"
	"datawhisperer/domain/profile"
	"datawhisperer/internal/config"
	"datawhisperer/internal/container"
	svcinference "datawhisperer/internal/inference"
	"datawhisperer/internal/viz"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// A missing .env is fine; the environment may carry everything.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "datawhisperer",
		Short:         "Exploratory data analysis engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newIngestCmd(),
		newDatasetsCmd(),
		newLineageCmd(),
		newQualityCmd(),
		newDescribeCmd(),
		newCorrCmd(),
		newTestCmd(),
		newFilterCmd(),
		newSelectCmd(),
		newMutateCmd(),
		newRemoveOutliersCmd(),
		newChartCmd(),
		newRunsCmd(),
		newCompareCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withEngine wires the container and hands the engine to the command
// body. The envelope is printed either way so scripted callers always
// get parseable output.
func withEngine(fn func(ctx context.Context, e *app.Engine) (any, error)) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	c, err := container.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Shutdown()

	payload, opErr := fn(ctx, c.Engine)
	return printEnvelope(app.Respond(payload, opErr))
}

func printEnvelope(env app.Envelope) error {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	if env["ok"] == false {
		os.Exit(1)
	}
	return nil
}

func newIngestCmd() *cobra.Command {
	var sheet string
	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Load a CSV or Excel file as a new dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *app.Engine) (any, error) {
				path := args[0]
				if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
					return e.IngestExcel(ctx, path, sheet)
				}
				return e.IngestCSV(ctx, path)
			})
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "Excel sheet name (default: first sheet)")
	return cmd
}

func newDatasetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "datasets",
		Short: "List every known dataset, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *app.Engine) (any, error) {
				list, err := e.ListDatasets(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]any{"datasets": list, "count": len(list)}, nil
			})
		},
	}
}

func newLineageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lineage [dataset-id]",
		Short: "Show a dataset's ancestry back to its root ingestion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *app.Engine) (any, error) {
				chain, err := e.Lineage(ctx, core.DatasetID(args[0]))
				if err != nil {
					return nil, err
				}
				return map[string]any{"lineage": chain, "depth": len(chain)}, nil
			})
		},
	}
}

func newQualityCmd() *cobra.Command {
	var method string
	cmd := &cobra.Command{
		Use:   "quality [dataset-id]",
		Short: "Profile columns and score dataset readiness",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *app.Engine) (any, error) {
				return e.CheckQuality(ctx, core.DatasetID(args[0]), profile.OutlierMethod(method))
			})
		},
	}
	cmd.Flags().StringVar(&method, "method", string(profile.OutlierIQR), "Outlier method: iqr, zscore, or both")
	return cmd
}

func newDescribeCmd() *cobra.Command {
	var bivariateY string
	cmd := &cobra.Command{
		Use:   "describe [dataset-id] [columns...]",
		Short: "Univariate summaries, or a bivariate one with --against",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *app.Engine) (any, error) {
				id := core.DatasetID(args[0])
				if bivariateY != "" {
					if len(args) != 2 {
						return nil, fmt.Errorf("bivariate describe needs exactly one x column")
					}
					return e.Bivariate(ctx, id, args[1], bivariateY)
				}
				return e.Univariate(ctx, id, args[1:])
			})
		},
	}
	cmd.Flags().StringVar(&bivariateY, "against", "", "Second column for a bivariate summary")
	return cmd
}

func newCorrCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "corr [dataset-id] [columns...]",
		Short: "Pairwise correlation matrix over numeric columns",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *app.Engine) (any, error) {
				return e.CorrelationMatrix(ctx, core.DatasetID(args[0]), args[1:])
			})
		},
	}
}

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run a hypothesis test",
	}
	cmd.AddCommand(newOneSampleCmd(), newTwoSampleCmd(), newBinomialCmd(), newCLTCmd())
	return cmd
}

func newOneSampleCmd() *cobra.Command {
	var (
		mu          float64
		testType    string
		alternative string
		alpha       float64
	)
	cmd := &cobra.Command{
		Use:   "one-sample [dataset-id] [column]",
		Short: "Test a column mean against a hypothesized value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *app.Engine) (any, error) {
				return e.OneSample(ctx, core.DatasetID(args[0]), svcinference.OneSampleParams{
					Column:      args[1],
					TestType:    inference.TestKind(testType),
					Mu:          mu,
					Alternative: inference.Alternative(alternative),
					Alpha:       alpha,
				})
			})
		},
	}
	cmd.Flags().Float64Var(&mu, "mu", 0, "Hypothesized mean")
	cmd.Flags().StringVar(&testType, "type", "t", "Test statistic: t or z")
	cmd.Flags().StringVar(&alternative, "alternative", string(inference.TwoSided), "two-sided, less, or greater")
	cmd.Flags().Float64Var(&alpha, "alpha", 0, "Significance level (default from config)")
	return cmd
}

func newTwoSampleCmd() *cobra.Command {
	var (
		groupCol    string
		groupA      string
		groupB      string
		testType    string
		alternative string
		alpha       float64
	)
	cmd := &cobra.Command{
		Use:   "two-sample [dataset-id] [column]",
		Short: "Compare the means of two groups",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *app.Engine) (any, error) {
				return e.TwoSample(ctx, core.DatasetID(args[0]), svcinference.TwoSampleParams{
					Column:      args[1],
					GroupColumn: groupCol,
					GroupA:      groupA,
					GroupB:      groupB,
					TestType:    inference.TestKind(testType),
					Alternative: inference.Alternative(alternative),
					Alpha:       alpha,
				})
			})
		},
	}
	cmd.Flags().StringVar(&groupCol, "group-col", "", "Column holding the group labels")
	cmd.Flags().StringVar(&groupA, "group-a", "", "First group label")
	cmd.Flags().StringVar(&groupB, "group-b", "", "Second group label")
	cmd.Flags().StringVar(&testType, "type", "t", "Test statistic: t or z")
	cmd.Flags().StringVar(&alternative, "alternative", string(inference.TwoSided), "two-sided, less, or greater")
	cmd.Flags().Float64Var(&alpha, "alpha", 0, "Significance level (default from config)")
	_ = cmd.MarkFlagRequired("group-col")
	_ = cmd.MarkFlagRequired("group-a")
	_ = cmd.MarkFlagRequired("group-b")
	return cmd
}

func newBinomialCmd() *cobra.Command {
	var (
		successes   int
		n           int
		p0          float64
		alternative string
		alpha       float64
	)
	cmd := &cobra.Command{
		Use:   "binomial",
		Short: "Exact test of a proportion against p0",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *app.Engine) (any, error) {
				return e.Binomial(ctx, svcinference.BinomialParams{
					Successes:   successes,
					N:           n,
					P0:          p0,
					Alternative: inference.Alternative(alternative),
					Alpha:       alpha,
				})
			})
		},
	}
	cmd.Flags().IntVar(&successes, "successes", 0, "Observed success count")
	cmd.Flags().IntVar(&n, "n", 0, "Trial count")
	cmd.Flags().Float64Var(&p0, "p0", 0.5, "Hypothesized proportion")
	cmd.Flags().StringVar(&alternative, "alternative", string(inference.TwoSided), "two-sided, less, or greater")
	cmd.Flags().Float64Var(&alpha, "alpha", 0, "Significance level (default from config)")
	_ = cmd.MarkFlagRequired("successes")
	_ = cmd.MarkFlagRequired("n")
	return cmd
}

func newCLTCmd() *cobra.Command {
	var (
		sampleSize int
		nSamples   int
	)
	cmd := &cobra.Command{
		Use:   "clt [dataset-id] [column]",
		Short: "Simulate the sampling distribution of a column mean",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *app.Engine) (any, error) {
				return e.CLTSampling(ctx, core.DatasetID(args[0]), svcinference.CLTParams{
					Column:     args[1],
					SampleSize: sampleSize,
					NSamples:   nSamples,
				})
			})
		},
	}
	cmd.Flags().IntVar(&sampleSize, "sample-size", 30, "Bootstrap sample size")
	cmd.Flags().IntVar(&nSamples, "n-samples", 1000, "Number of bootstrap samples")
	return cmd
}

func newFilterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "filter [dataset-id] [condition]",
		Short: "Keep rows matching a boolean condition",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *app.Engine) (any, error) {
				return e.Filter(ctx, core.DatasetID(args[0]), args[1])
			})
		},
	}
}

func newSelectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select [dataset-id] [columns...]",
		Short: "Project the dataset onto the named columns",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *app.Engine) (any, error) {
				return e.SelectColumns(ctx, core.DatasetID(args[0]), args[1:])
			})
		},
	}
}

func newMutateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mutate [dataset-id] [name=expression...]",
		Short: "Assign computed columns from expressions",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *app.Engine) (any, error) {
				expressions := make(map[string]string, len(args)-1)
				for _, pair := range args[1:] {
					name, expr, ok := strings.Cut(pair, "=")
					if !ok || name == "" {
						return nil, fmt.Errorf("expected name=expression, got %q", pair)
					}
					expressions[name] = expr
				}
				return e.Mutate(ctx, core.DatasetID(args[0]), expressions)
			})
		},
	}
}

func newRemoveOutliersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-outliers [dataset-id] [columns...]",
		Short: "Drop rows outside the profiler's IQR bounds",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *app.Engine) (any, error) {
				return e.RemoveOutliers(ctx, core.DatasetID(args[0]), args[1:])
			})
		},
	}
}

func newChartCmd() *cobra.Command {
	var (
		x    string
		y    string
		hue  string
		bins int
	)
	cmd := &cobra.Command{
		Use:   "chart [dataset-id] [chart-type]",
		Short: "Render a chart, reusing the artifact for repeat requests",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *app.Engine) (any, error) {
				return e.RenderChart(ctx, viz.RawSpec{
					DatasetID: args[0],
					ChartType: args[1],
					X:         x,
					Y:         y,
					Hue:       hue,
					Bins:      bins,
				})
			})
		},
	}
	cmd.Flags().StringVar(&x, "x", "", "X column")
	cmd.Flags().StringVar(&y, "y", "", "Y column")
	cmd.Flags().StringVar(&hue, "hue", "", "Grouping column")
	cmd.Flags().IntVar(&bins, "bins", 0, "Histogram bins (default 10)")
	_ = cmd.MarkFlagRequired("x")
	return cmd
}

func newRunsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs [dataset-id]",
		Short: "List analysis runs, newest first (all datasets when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *app.Engine) (any, error) {
				if len(args) == 1 {
					runs, err := e.ListRuns(ctx, core.DatasetID(args[0]), limit)
					if err != nil {
						return nil, err
					}
					return map[string]any{"runs": runs, "count": len(runs)}, nil
				}
				runs, err := e.RecentRuns(ctx, limit)
				if err != nil {
					return nil, err
				}
				return map[string]any{"runs": runs, "count": len(runs)}, nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum runs to return")
	return cmd
}

func newCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare [run-id-a] [run-id-b]",
		Short: "Diff two saved analysis runs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *app.Engine) (any, error) {
				return e.CompareRuns(ctx, core.RunID(args[0]), core.RunID(args[1]))
			})
		},
	}
}
