package ui

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/javiermolinar/airtime/internal/command"
	"github.com/javiermolinar/airtime/internal/dateutil"
	"github.com/javiermolinar/airtime/internal/server"
	"github.com/javiermolinar/airtime/internal/slot"
)

func parseInts(args []string, names ...string) ([]int, error) {
	out := make([]int, len(args))
	for i, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", names[i], arg)
		}
		out[i] = n
	}
	return out, nil
}

func (a *App) selectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select <year> <month>",
		Short: "Prepare a month's grid and make it the edit target",
		Long: `Create the month's grid if needed, prune grids outside the keep
window and remember the month for the next reserve or cancel.

Example:
  airtime select 2025 3`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseInts(args, "year", "month")
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), command.SelectPeriod{Year: n[0], Month: n[1]})
		},
	}
}

// selectMonth selects a "YYYY-MM" month before an edit, when one was given.
func (a *App) selectMonth(ctx context.Context, month string) error {
	if month == "" {
		return nil
	}
	t, err := dateutil.ParseMonth(month, a.now())
	if err != nil {
		return fmt.Errorf("invalid --month: %w", err)
	}
	return a.run(ctx, command.SelectPeriod{Year: t.Year(), Month: int(t.Month())})
}

func parseEntries(args []string) ([]slot.Entry, error) {
	entries := make([]slot.Entry, 0, len(args))
	for _, arg := range args {
		e, err := command.ParseEntry(arg)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (a *App) reserveCmd() *cobra.Command {
	var (
		day   int
		tag   string
		text  string
		month string
	)

	cmd := &cobra.Command{
		Use:   "reserve <channel@H:MM>...",
		Short: "Reserve slots on a day of the selected month",
		Long: `Write the reservation text into each channel's slot. "@" in the
text is replaced by the entry's time. Occupied slots are skipped unless the
color is the appendable one.

Example:
  airtime reserve --day 15 --color cyan --text "News @" Alpha@9:05 "Channel 2@19:30"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := parseEntries(args)
			if err != nil {
				return err
			}
			if err := a.selectMonth(cmd.Context(), month); err != nil {
				return err
			}
			return a.run(cmd.Context(), command.Reserve{Day: day, Color: tag, Text: text, Entries: entries})
		},
	}

	cmd.Flags().IntVar(&day, "day", 0, "Day of the month")
	cmd.Flags().StringVar(&tag, "color", "", "Color tag")
	cmd.Flags().StringVar(&text, "text", "", "Reservation text")
	cmd.Flags().StringVar(&month, "month", "", "Select this month first (YYYY-MM)")
	_ = cmd.MarkFlagRequired("day")
	_ = cmd.MarkFlagRequired("text")

	return cmd
}

func (a *App) cancelCmd() *cobra.Command {
	var (
		day   int
		month string
	)

	cmd := &cobra.Command{
		Use:   "cancel <channel@H:MM>...",
		Short: "Clear slots on a day of the selected month",
		Long: `Clear each channel's slot and mark it as cancelled.

Example:
  airtime cancel --day 15 Alpha@9:05`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := parseEntries(args)
			if err != nil {
				return err
			}
			if err := a.selectMonth(cmd.Context(), month); err != nil {
				return err
			}
			return a.run(cmd.Context(), command.Cancel{Day: day, Entries: entries})
		},
	}

	cmd.Flags().IntVar(&day, "day", 0, "Day of the month")
	cmd.Flags().StringVar(&month, "month", "", "Select this month first (YYYY-MM)")
	_ = cmd.MarkFlagRequired("day")

	return cmd
}

func (a *App) dayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "day [<year> <month>] <day>",
		Short: "Show free slots of one day",
		Long: `Show free slots of one day. Without year and month the month of the
previous day view is used.

Examples:
  airtime day 2025 3 15
  airtime day 16`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 && len(args) != 3 {
				return fmt.Errorf("accepts 1 or 3 arg(s), received %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				n, err := parseInts(args, "day")
				if err != nil {
					return err
				}
				return a.run(cmd.Context(), command.ViewDay{Day: n[0]})
			}
			n, err := parseInts(args, "year", "month", "day")
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), command.ViewDay{Year: n[0], Month: n[1], Day: n[2]})
		},
	}
}

func (a *App) pruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete month grids outside the keep window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lc, err := a.lifecycle()
			if err != nil {
				return err
			}
			deleted, err := lc.Prune(cmd.Context(), a.now())
			if err != nil {
				return fmt.Errorf("pruning grids: %w", err)
			}
			if len(deleted) == 0 {
				_, _ = fmt.Fprintln(a.out, colorMuted.Sprint("Nothing to prune"))
				return nil
			}
			for _, name := range deleted {
				_, _ = fmt.Fprintf(a.out, "Deleted %s\n", name)
			}
			return nil
		},
	}
}

func (a *App) sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send",
		Short: "Run a chat message read from stdin",
		Long: `Read a message in the chat protocol from stdin and print the reply.

Reserve:  text, day, color tag, then one "<channel> <H:MM>" per line.
Cancel:   "cancel", day, then one "<channel> <H:MM>" per line.

Example:
  printf 'News @\n15\ncyan\nAlpha 9:05\n' | airtime send`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := io.ReadAll(a.in)
			if err != nil {
				return fmt.Errorf("reading message: %w", err)
			}
			d, err := a.dispatcher()
			if err != nil {
				return err
			}
			printReport(a.out, d.HandleMessage(cmd.Context(), a.user, strings.TrimRight(string(data), "\n")))
			return nil
		},
	}
}

func (a *App) serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			d, err := a.dispatcher()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.config.Server.Addr
			}
			return server.New(d, a.logger, a.debug).Run(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}
