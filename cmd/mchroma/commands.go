package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mchroma/internal/adapters/peaktable"
	"mchroma/internal/core"
	"mchroma/pkg/domain"
)

const (
	formatTable = "table"
	formatCSV   = "csv"
)

type outputFlags struct {
	format       string
	includeTrace bool
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.format, "format", "f", formatTable, "output format: table or csv")
	cmd.Flags().BoolVar(&o.includeTrace, "include-trace", false, "prefix every row with its trace name")
}

func (o outputFlags) options() peaktable.Options {
	return peaktable.Options{IncludeTrace: o.includeTrace}
}

func (a *app) importFiles(ctx context.Context, svc *core.Service, files []string) error {
	for _, f := range files {
		_, res, err := svc.ImportFile(ctx, f, "")
		if err := a.checked(res, err); err != nil {
			return fmt.Errorf("import %s: %w", f, err)
		}
	}
	return nil
}

// forEachImported runs fn once per trace imported from files, with that trace active.
func (a *app) forEachImported(ctx context.Context, svc *core.Service, files []string, fn func() error) error {
	first := len(svc.State().Traces)
	if err := a.importFiles(ctx, svc, files); err != nil {
		return err
	}
	for i := first; i < first+len(files); i++ {
		if err := a.checked(svc.SetActive(ctx, i)); err != nil {
			return err
		}
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) writeTables(ctx context.Context, svc *core.Service, out outputFlags) error {
	switch out.format {
	case formatCSV:
		return svc.ExportCSV(ctx, a.stdout, out.options())
	case formatTable:
		tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
		for _, tr := range svc.State().Traces {
			if tr.Hidden {
				continue
			}
			if _, err := fmt.Fprintf(tw, "# %s\n", tr.Name); err != nil {
				return err
			}
			if err := writeTabRow(tw, peaktable.Header(peaktable.Options{})); err != nil {
				return err
			}
			for _, row := range tr.PeakTable() {
				if err := writeTabRow(tw, row.Values()); err != nil {
					return err
				}
			}
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", out.format)
	}
}

func writeTabRow(tw *tabwriter.Writer, cells []string) error {
	for i, c := range cells {
		sep := "\t"
		if i == len(cells)-1 {
			sep = "\n"
		}
		if _, err := fmt.Fprint(tw, c, sep); err != nil {
			return err
		}
	}
	return nil
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		out       outputFlags
		threshold float64
		mode      string
	)
	cmd := &cobra.Command{
		Use:   "analyze FILE...",
		Short: "Import exports and autopick every feature above a threshold",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			svc, closeFn, err := a.session(ctx, false)
			if err != nil {
				return err
			}
			defer closeWith(closeFn, &err)
			err = a.forEachImported(ctx, svc, args, func() error {
				return a.checked(svc.ThresholdAutopick(ctx, threshold, domain.AreaMode(mode)))
			})
			if err != nil {
				return err
			}
			return a.writeTables(ctx, svc, out)
		},
	}
	out.register(cmd)
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 100, "signal level a feature must rise above")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "area mode (bb, vv, bv, vb); empty uses the configured default")
	return cmd
}

func newDetectCmd(a *app) *cobra.Command {
	var (
		out   outputFlags
		at    []float64
		spans []string
		mode  string
	)
	cmd := &cobra.Command{
		Use:   "detect FILE...",
		Short: "Add peaks at crest times or between explicit bounds",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if len(at) == 0 && len(spans) == 0 {
				return fmt.Errorf("detect needs --at or --between")
			}
			bounds := make([][2]float64, 0, len(spans))
			for _, s := range spans {
				var t0, tf float64
				if _, err := fmt.Sscanf(s, "%g:%g", &t0, &tf); err != nil {
					return fmt.Errorf("--between %q: want START:END", s)
				}
				bounds = append(bounds, [2]float64{t0, tf})
			}
			ctx := cmd.Context()
			svc, closeFn, err := a.session(ctx, false)
			if err != nil {
				return err
			}
			defer closeWith(closeFn, &err)
			err = a.forEachImported(ctx, svc, args, func() error {
				for _, t := range at {
					if err := a.checked(svc.OnePointPeak(ctx, t, domain.AreaMode(mode))); err != nil {
						return fmt.Errorf("peak at %g: %w", t, err)
					}
				}
				for _, b := range bounds {
					if err := a.checked(svc.AddPeak(ctx, b[0], b[1], domain.AreaMode(mode))); err != nil {
						return fmt.Errorf("peak %g:%g: %w", b[0], b[1], err)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			return a.writeTables(ctx, svc, out)
		},
	}
	out.register(cmd)
	cmd.Flags().Float64SliceVar(&at, "at", nil, "crest time to detect a peak around; repeatable")
	cmd.Flags().StringArrayVar(&spans, "between", nil, "explicit peak bounds START:END in minutes; repeatable")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "area mode (bb, vv, bv, vb); empty uses the configured default")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		includeTrace bool
		threshold    float64
		urlExpiry    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "export [FILE...]",
		Short: "Publish the session's peak tables to the blob store",
		Long: `export publishes the peak tables of every visible trace as one CSV object
under the configured export prefix. Files given on the command line are
imported and autopicked first.`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			svc, closeFn, err := a.session(ctx, true)
			if err != nil {
				return err
			}
			defer closeWith(closeFn, &err)
			err = a.forEachImported(ctx, svc, args, func() error {
				return a.checked(svc.ThresholdAutopick(ctx, threshold, ""))
			})
			if err != nil {
				return err
			}
			info, err := svc.PublishCSV(ctx, peaktable.Options{IncludeTrace: includeTrace})
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(a.stdout, "%s\t%d bytes\t%s\n", info.Key, info.Size, info.ETag); err != nil {
				return err
			}
			if urlExpiry <= 0 {
				return nil
			}
			u, err := svc.ExportURL(ctx, info.Key, urlExpiry)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.stdout, u)
			return err
		},
	}
	cmd.Flags().BoolVar(&includeTrace, "include-trace", true, "prefix every row with its trace name")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 100, "autopick threshold for imported files")
	cmd.Flags().DurationVar(&urlExpiry, "url", 0, "also print a download URL valid for this long (e.g. 15m)")
	return cmd
}

func newExportsCmd(a *app) *cobra.Command {
	var (
		remove []string
		keep   int
	)
	cmd := &cobra.Command{
		Use:   "exports",
		Short: "List, delete or prune published peak tables",
		Long: `exports lists the peak tables published under the export prefix, oldest
first. --delete removes the given keys; --keep N deletes all but the newest N.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()
			svc, closeFn, err := a.session(ctx, true)
			if err != nil {
				return err
			}
			defer closeWith(closeFn, &err)
			for _, key := range remove {
				existed, err := svc.DeleteExport(ctx, key)
				if err != nil {
					return err
				}
				if !existed {
					return fmt.Errorf("no export %s", key)
				}
				if _, err := fmt.Fprintf(a.stdout, "deleted\t%s\n", key); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("keep") {
				deleted, err := svc.PruneExports(ctx, keep)
				if err != nil {
					return err
				}
				for _, key := range deleted {
					if _, err := fmt.Fprintf(a.stdout, "deleted\t%s\n", key); err != nil {
						return err
					}
				}
			}
			infos, err := svc.ListExports(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			for _, info := range infos {
				if _, err := fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", info.Key, info.Size,
					info.LastModified.Format(time.RFC3339), info.Metadata["traces"]); err != nil {
					return err
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringArrayVar(&remove, "delete", nil, "export key to delete; repeatable")
	cmd.Flags().IntVar(&keep, "keep", 0, "delete all but the newest N exports")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective settings as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := yaml.NewEncoder(a.stdout)
			enc.SetIndent(2)
			if err := enc.Encode(a.settings); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func newStepCmd(a *app, use, short string, step func(*core.Service, context.Context) (domain.Result, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()
			svc, closeFn, err := a.session(ctx, false)
			if err != nil {
				return err
			}
			defer closeWith(closeFn, &err)
			if err := a.checked(step(svc, ctx)); err != nil {
				return err
			}
			snap := svc.Snapshot()
			_, err = fmt.Fprintf(a.stdout, "state %d of %d\n", snap.Present, len(snap.States)-1)
			return err
		},
	}
}
