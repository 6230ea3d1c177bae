// Command nozze-plan loads a catalog, solves it at a baseline budget and at
// the budget reduced by a cut, and prints both plans with what changed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"nozze/internal/cli"
	"nozze/internal/core"
	applog "nozze/internal/log"
	"nozze/internal/planner"
	"nozze/internal/sources/files"
)

func main() {
	cli.LoadEnvFile()

	var (
		budgetFlag  = flag.String("budget", envOr("DEFAULT_BUDGET", "40000"), "baseline budget, e.g. 40000 or \"$40,000\"")
		cutFlag     = flag.String("cut", envOr("DEFAULT_CUT", "2000"), "amount removed from the baseline budget")
		dataDir     = flag.String("data", envOr("DATA_DIR", "./data"), "directory holding categories.csv and packages.csv, or catalog.yaml")
		weightsFlag = flag.String("weights", "", "comma separated overrides, e.g. Venue=9,Music=3")
		asJSON      = flag.Bool("json", false, "print the comparison as JSON")
		logLevel    = flag.String("log-level", "warn", "log level")
	)
	flag.Parse()

	logger := cli.SetupLogger(*logLevel)

	if err := run(context.Background(), os.Stdout, *dataDir, *budgetFlag, *cutFlag, *weightsFlag, *asJSON); err != nil {
		logger.Error("Planning failed", applog.FieldError, err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, dataDir, budgetArg, cutArg, weightsArg string, asJSON bool) error {
	budget, err := core.ParseAmount(budgetArg)
	if err != nil {
		return fmt.Errorf("parse -budget %q: %w", budgetArg, err)
	}
	cut, err := core.ParseAmount(cutArg)
	if err != nil {
		return fmt.Errorf("parse -cut %q: %w", cutArg, err)
	}
	weights, err := parseWeights(weightsArg)
	if err != nil {
		return err
	}

	cat, err := planner.LoadCatalog(ctx, files.New(dataDir), weights)
	if err != nil {
		return err
	}
	cmp, err := planner.New(nil).Compare(ctx, cat, budget, cut)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(planner.NewReport(cmp))
	}
	return render(out, cmp)
}

// parseWeights reads "Name=weight" pairs separated by commas.
func parseWeights(s string) (map[string]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	out := make(map[string]float64)
	for _, pair := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("parse -weights: %q is not Name=weight", pair)
		}
		var w float64
		if _, err := fmt.Sscan(strings.TrimSpace(value), &w); err != nil {
			return nil, fmt.Errorf("parse -weights: weight of %q: %w", name, err)
		}
		out[name] = w
	}
	return out, nil
}

func render(out io.Writer, cmp planner.Comparison) error {
	fmt.Fprintf(out, "\nResults for FULL budget (%s)\n", cmp.Baseline.Budget)
	if err := renderPlan(out, "Full", cmp.Baseline); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nResults AFTER cutting %s (Budget = %s)\n", cmp.Cut, cmp.Reduced.Budget)
	if err := renderPlan(out, "Cut", cmp.Reduced); err != nil {
		return err
	}

	fmt.Fprintln(out, "\n--- What changed ---")
	if len(cmp.Changes) == 0 {
		fmt.Fprintln(out, "No package changed.")
	} else {
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "category\tpackage_full\tcost_full\tpackage_cut\tcost_cut\tvalue_delta")
		for _, c := range cmp.Changes {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.2f\n",
				c.Category, c.From.Name, c.From.Cost, c.To.Name, c.To.Cost, c.ValueDelta())
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "Savings:     %s\n", cmp.Savings)
	fmt.Fprintf(out, "Value lost:  %.2f\n", cmp.ValueLost)
	return nil
}

func renderPlan(out io.Writer, label string, p core.Plan) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "category\tpackage\tcost\tquality\tweight")
	for _, s := range p.Selections {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%g\n", s.Category, s.Package.Name, s.Package.Cost, s.Package.Quality, s.Weight)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n--- Summary (%s) ---\n", label)
	fmt.Fprintf(out, "Budget:      %s\n", p.Budget)
	fmt.Fprintf(out, "Spend:       %s\n", p.TotalCost)
	fmt.Fprintf(out, "Remaining:   %s\n", p.Remaining())
	fmt.Fprintf(out, "Value Score: %.2f\n", p.TotalValue)
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
