package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/klabast/wb-services/plaza/internal/admin"
	"github.com/klabast/wb-services/plaza/internal/event"
)

// Output formats for events list
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

func newEventsCommand(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "events",
		Short:   "Inspect and maintain the stored events",
		GroupID: "management",
	}
	cmd.AddCommand(
		newEventsListCommand(a),
		newEventsExportCommand(a),
		newEventsClearCommand(a),
	)
	return cmd
}

func newEventsListCommand(a *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the stored events",
		Long: `List the stored events in stored order. When nothing valid is stored the
built-in defaults are listed, exactly as the site would show them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			events, backends, err := a.eventStore(cmd.Context())
			if err != nil {
				return err
			}
			defer backends.Close()

			list := events.Load(cmd.Context())
			out := cmd.OutOrStdout()
			switch detectOutput(output, out) {
			case OutputTable:
				return writeTable(out, list)
			case OutputJSON:
				return admin.WriteJSON(out, list)
			case OutputYAML:
				return admin.WriteYAML(out, list)
			}
			return fmt.Errorf("unknown output %q (want table, json or yaml)", output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format: table, json or yaml (default table on a terminal, json otherwise)")
	return cmd
}

// detectOutput picks a table for terminals and JSON for pipes
func detectOutput(explicit string, w io.Writer) string {
	if explicit != "" {
		return strings.ToLower(explicit)
	}
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return OutputTable
	}
	return OutputJSON
}

func writeTable(w io.Writer, events []event.Event) error {
	table := tablewriter.NewTable(w)
	table.Header("ID", "Title", "Date", "Time", "Venue", "Status", "Booking")
	for _, e := range events {
		booking := "no"
		if e.Bookable() {
			booking = "yes"
		}
		if err := table.Append(
			strconv.FormatInt(e.ID, 10),
			e.Title,
			e.Date,
			e.Time,
			e.Venue.DisplayName(),
			string(e.Status),
			booking,
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func newEventsExportCommand(a *App) *cobra.Command {
	var format, file string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the stored events",
		Example: `  plaza events export --format ics > plaza.ics
  plaza events export --format csv --file ./exports`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := admin.ParseFormat(format)
			if err != nil {
				return err
			}

			events, backends, err := a.eventStore(cmd.Context())
			if err != nil {
				return err
			}
			defer backends.Close()
			list := events.Load(cmd.Context())
			now := time.Now()

			if file == "" {
				return admin.Write(cmd.OutOrStdout(), f, list, now)
			}

			path := file
			if info, err := os.Stat(file); err == nil && info.IsDir() {
				path = filepath.Join(file, admin.ExportFilename(f, now))
			}
			out, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create export file: %w", err)
			}
			if err := admin.Write(out, f, list, now); err != nil {
				_ = out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
			a.logger.Info().Str("path", path).Int("count", len(list)).Str("format", string(f)).Msg("Events exported")
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(admin.FormatJSON), "export format: json, csv, ics or yaml")
	cmd.Flags().StringVar(&file, "file", "", "write to this file, or into this directory under the default name")
	return cmd
}

func newEventsClearCommand(a *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every stored event",
		Long: `Remove the stored collection. The site falls back to the built-in
default events until new ones are saved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear all events without --yes")
			}
			events, backends, err := a.eventStore(cmd.Context())
			if err != nil {
				return err
			}
			defer backends.Close()

			if err := events.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All events cleared.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm removing all events")
	return cmd
}
