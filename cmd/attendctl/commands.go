package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"smartattendance/internal/config"
	"smartattendance/internal/export"
	"smartattendance/internal/model"
	"smartattendance/internal/registry"
	"smartattendance/internal/report"
	"smartattendance/internal/store"
)

type opener func() (store.Store, error)

type cli struct {
	cfg  config.App
	open opener
	now  func() time.Time
}

func newRootCmd(cfg config.App, open opener) *cobra.Command {
	c := &cli{cfg: cfg, open: open, now: time.Now}
	root := &cobra.Command{
		Use:           "attendctl",
		Short:         "Administer the attendance store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		c.migrateCmd(),
		c.studentsCmd(),
		c.exportCmd(),
		c.backupCmd(),
		c.restoreCmd(),
		c.reportCmd(),
	)
	return root
}

// withStore opens the configured store for the duration of fn.
func (c *cli) withStore(fn func(st store.Store) error) error {
	st, err := c.open()
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the SQL schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withStore(func(st store.Store) error {
				db, ok := st.(*store.SQL)
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "store %q has no schema\n", c.cfg.StoreDriver)
					return nil
				}
				if err := db.Migrate(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", c.cfg.StoreDriver)
				return nil
			})
		},
	}
}

func (c *cli) studentsCmd() *cobra.Command {
	students := &cobra.Command{Use: "students", Short: "Inspect the student registry"}
	var query string
	list := &cobra.Command{
		Use:   "list",
		Short: "List registered students",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withStore(func(st store.Store) error {
				all, err := registry.NewService(st).Search(cmd.Context(), query)
				if err != nil {
					return err
				}
				records, err := st.ListAttendance(cmd.Context(), model.AttendanceFilter{})
				if err != nil {
					return err
				}
				counts := report.AttendanceCounts(records)
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "INDEX\tNAME\tFACE DATA\tRECORDS\tREGISTERED\tID")
				for _, s := range all {
					face := "no"
					if s.HasFaceTemplate() {
						face = "yes"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
						s.IndexNumber, s.FullName, face, counts[s.ID], s.RegisteredAt.Format(time.RFC3339), s.ID)
				}
				return tw.Flush()
			})
		},
	}
	list.Flags().StringVarP(&query, "query", "q", "", "filter by name or index number")
	students.AddCommand(list)
	return students
}

func (c *cli) exportCmd() *cobra.Command {
	var (
		out       string
		date      string
		studentID string
	)
	cmd := &cobra.Command{
		Use:       "export students|attendance",
		Short:     "Write a CSV export",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"students", "attendance"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(func(st store.Store) error {
				svc := export.NewService(st, c.now)
				return c.writeTo(cmd, out, func(w io.Writer) error {
					if args[0] == "students" {
						return svc.StudentsCSV(cmd.Context(), w)
					}
					if date != "" {
						if _, err := time.Parse(model.DateLayout, date); err != nil {
							return model.Invalid("date", "must be YYYY-MM-DD")
						}
					}
					return svc.AttendanceCSV(cmd.Context(), w, model.AttendanceFilter{StudentID: studentID, Date: date})
				})
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&date, "date", "", "only records for this day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&studentID, "student", "", "only records for this student id")
	return cmd
}

func (c *cli) backupCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a full JSON backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out == "" {
				out = export.BackupFilename(c.now())
			}
			return c.withStore(func(st store.Store) error {
				return c.writeTo(cmd, out, func(w io.Writer) error {
					return export.NewService(st, c.now).Backup(cmd.Context(), w)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file, - for stdout")
	return cmd
}

func (c *cli) restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <file>",
		Short: "Replace all data with a JSON backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return c.withStore(func(st store.Store) error {
				b, err := export.NewService(st, c.now).Restore(cmd.Context(), f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "restored %d students and %d attendance records\n", len(b.Students), len(b.AttendanceRecords))
				return nil
			})
		},
	}
}

func (c *cli) reportCmd() *cobra.Command {
	var flaggedOnly bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print per-student attendance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withStore(func(st store.Store) error {
				rep, err := report.NewService(st, report.Options{
					TotalDays: c.cfg.InstructionalDays,
					Threshold: c.cfg.FlagThreshold,
					Window:    c.cfg.DailyWindow,
				}).Build(cmd.Context())
				if err != nil {
					return err
				}
				rows := rep.Students
				if flaggedOnly {
					rows = rep.Flagged
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "%d students, %d records, %d instructional days, threshold %.1f%%\n",
					rep.TotalStudents, rep.TotalRecords, rep.TotalDays, rep.Threshold)
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "INDEX\tNAME\tDAYS\tPERCENT\tFLAGGED")
				for _, s := range rows {
					flag := ""
					if s.Percentage < rep.Threshold {
						flag = "yes"
					}
					fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f\t%s\n", s.IndexNumber, s.FullName, s.DaysPresent, s.Percentage, flag)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&flaggedOnly, "flagged", false, "only students below the threshold")
	return cmd
}

// writeTo sends fn's output to path, or stdout for "" and "-".
func (c *cli) writeTo(cmd *cobra.Command, path string, fn func(io.Writer) error) error {
	if path == "" || path == "-" {
		return fn(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
	return nil
}
