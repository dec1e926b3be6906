package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/report"
)

var (
	reportCmd = &cobra.Command{
		Use:   "report",
		Short: "Produce the period report from exported files",
		Example: `  attribution report --from 2024-03-01 --to 2024-03-31 \
    --spend facebook=fb.csv --spend tiktok=tt.csv \
    --orders orders.csv --analytics pages.csv --out report.json`,
		RunE: runReport,
	}

	reportFlags struct {
		from, to   string
		influencer string
		orders     string
		analytics  string
		spend      map[string]string
		catalogDir string
		out        string
	}
)

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportFlags.from, "from", "", "first day of the period, YYYY-MM-DD")
	f.StringVar(&reportFlags.to, "to", "", "last day of the period, YYYY-MM-DD")
	f.StringVar(&reportFlags.influencer, "influencer-spend", "", "influencer spend of the period")
	f.StringVar(&reportFlags.orders, "orders", "", "orders export; stored order lines are used when omitted")
	f.StringVar(&reportFlags.analytics, "analytics", "", "landing page analytics export; GA4 is used when omitted")
	f.StringToStringVar(&reportFlags.spend, "spend", nil, "spend export per platform, platform=path")
	f.StringVar(&reportFlags.catalogDir, "catalog", "", "import the catalog exports of this directory before the run")
	f.StringVarP(&reportFlags.out, "out", "o", "", "write the report JSON here instead of stdout")
}

func runReport(cmd *cobra.Command, args []string) error {
	_, a, err := bootstrap()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := a.Open(ctx); err != nil {
		return err
	}
	defer a.Close()

	if reportFlags.catalogDir != "" {
		paths := resolveCatalogPaths(reportFlags.catalogDir, nil)
		if err := importCatalog(ctx, a.Repository(), paths); err != nil {
			return err
		}
	}

	in, err := reportInput()
	if err != nil {
		return err
	}
	p, err := a.Pipeline(ctx)
	if err != nil {
		return err
	}
	rep, err := p.Run(ctx, in)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if reportFlags.out != "" {
		f, err := os.Create(reportFlags.out)
		if err != nil {
			return fmt.Errorf("can't create %s: %w", reportFlags.out, err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func reportInput() (*report.Input, error) {
	period, err := report.ParsePeriod(reportFlags.from, reportFlags.to)
	if err != nil {
		return nil, err
	}
	influencer, err := report.ParseAmount("influencer-spend", reportFlags.influencer)
	if err != nil {
		return nil, err
	}
	in := &report.Input{
		Period:          period,
		InfluencerSpend: influencer,
		Spend:           map[entity.Platform]*report.File{},
	}
	if in.Orders, err = report.OpenFile(reportFlags.orders); err != nil {
		return nil, err
	}
	if in.Analytics, err = report.OpenFile(reportFlags.analytics); err != nil {
		return nil, err
	}
	for platform, path := range reportFlags.spend {
		f, err := report.OpenFile(path)
		if err != nil {
			return nil, err
		}
		in.Spend[entity.Platform(platform)] = f
	}
	return in, nil
}
