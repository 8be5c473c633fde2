package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/matheus3301/wppbot/internal/config"
	"github.com/matheus3301/wppbot/internal/daemon"
	"github.com/matheus3301/wppbot/internal/lock"
	"github.com/matheus3301/wppbot/internal/session"
	"github.com/matheus3301/wppbot/internal/state"
	"github.com/matheus3301/wppbot/internal/store"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type options struct {
	session string
	json    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "wppbotctl",
		Short:         "Inspect a wppbot session",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.session, "session", "", "session name (overrides config default)")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "output in JSON format")

	root.AddCommand(
		newHealthCmd(opts),
		newStatsCmd(opts),
		newUsersCmd(opts),
		newGroupsCmd(opts),
		newCommandsCmd(opts),
		newRunsCmd(opts),
		newSentCmd(opts),
	)
	return root
}

func (o *options) sessionName() (string, error) {
	cfg, err := config.LoadOrDefault(session.ConfigPath())
	if err != nil {
		return "", err
	}
	return session.Resolve(o.session, cfg)
}

func (o *options) snapshot(ctx context.Context) (*state.Store, error) {
	name, err := o.sessionName()
	if err != nil {
		return nil, err
	}
	st, err := state.ReadSnapshot(ctx, session.StatePath(name))
	if errors.Is(err, state.ErrNoSnapshot) {
		return nil, fmt.Errorf("session %q has no saved state yet", name)
	}
	return st, err
}

func (o *options) journal() (*store.DB, error) {
	name, err := o.sessionName()
	if err != nil {
		return nil, err
	}
	return store.OpenReadOnly(session.JournalPath(name))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type healthReport struct {
	Session string `json:"session"`
	PID     int    `json:"pid,omitempty"`
	Running bool   `json:"running"`
	Health  string `json:"health"`
}

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show whether the daemon is running and serving",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := opts.sessionName()
			if err != nil {
				return err
			}
			report := healthReport{Session: name, Health: healthpb.HealthCheckResponse_UNKNOWN.String()}
			report.PID, report.Running = lock.Holder(session.Dir(name))

			var checkErr error
			if report.Running {
				ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
				defer cancel()
				var st healthpb.HealthCheckResponse_ServingStatus
				st, checkErr = daemon.CheckHealth(ctx, session.SocketPath(name))
				report.Health = st.String()
			}

			out := cmd.OutOrStdout()
			if opts.json {
				if err := writeJSON(out, report); err != nil {
					return err
				}
			} else {
				_, _ = fmt.Fprintf(out, "Session: %s\n", report.Session)
				if report.Running {
					_, _ = fmt.Fprintf(out, "Daemon:  running (pid %d)\n", report.PID)
				} else {
					_, _ = fmt.Fprintln(out, "Daemon:  stopped")
				}
				_, _ = fmt.Fprintf(out, "Health:  %s\n", report.Health)
			}
			return checkErr
		},
	}
}

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show message and command counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := opts.snapshot(cmd.Context())
			if err != nil {
				return err
			}
			sum := st.Summary()
			sum.TotalPlugins = len(st.Commands())

			out := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(out, sum)
			}
			_, _ = fmt.Fprintf(out, "Messages: %d\n", sum.TotalMessages)
			_, _ = fmt.Fprintf(out, "Commands: %d\n", sum.TotalCommands)
			_, _ = fmt.Fprintf(out, "Users:    %d\n", sum.TotalUsers)
			_, _ = fmt.Fprintf(out, "Groups:   %d\n", sum.TotalGroups)
			_, _ = fmt.Fprintf(out, "Plugins:  %d\n", sum.TotalPlugins)
			_, _ = fmt.Fprintf(out, "Since:    %s (%s)\n", sum.StartTime.Format(time.RFC3339), sum.UptimeString())
			return nil
		},
	}
}

func newUsersCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List known participants",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := opts.snapshot(cmd.Context())
			if err != nil {
				return err
			}
			users := st.Users()
			out := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(out, users)
			}
			if len(users) == 0 {
				_, _ = fmt.Fprintln(out, "No users recorded.")
				return nil
			}
			for _, u := range users {
				_, _ = fmt.Fprintf(out, "%-40s %6d msgs %5d cmds  last %s\n",
					u.ID, u.MessageCount, u.CommandCount, u.LastSeen.Format(time.DateTime))
			}
			return nil
		},
	}
}

type groupRow struct {
	ID           string    `json:"id"`
	MessageCount int64     `json:"messageCount"`
	Participants int       `json:"participants"`
	FirstSeen    time.Time `json:"firstSeen"`
	LastActivity time.Time `json:"lastActivity"`
}

func newGroupsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "List groups the bot has seen",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := opts.snapshot(cmd.Context())
			if err != nil {
				return err
			}
			groups := st.Groups()
			rows := make([]groupRow, 0, len(groups))
			for _, g := range groups {
				rows = append(rows, groupRow{
					ID:           g.ID,
					MessageCount: g.MessageCount,
					Participants: len(g.Participants),
					FirstSeen:    g.FirstSeen,
					LastActivity: g.LastActivity,
				})
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(out, rows)
			}
			if len(rows) == 0 {
				_, _ = fmt.Fprintln(out, "No groups recorded.")
				return nil
			}
			for _, r := range rows {
				_, _ = fmt.Fprintf(out, "%-40s %6d msgs %4d members  last %s\n",
					r.ID, r.MessageCount, r.Participants, r.LastActivity.Format(time.DateTime))
			}
			return nil
		},
	}
}

type commandRow struct {
	Name string `json:"name"`
	state.CommandEntry
}

func newCommandsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List the commands registered at the last plugin load",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := opts.snapshot(cmd.Context())
			if err != nil {
				return err
			}
			rows := commandRows(st.Commands())
			out := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(out, rows)
			}
			for _, r := range rows {
				_, _ = fmt.Fprintf(out, "%-12s %-14s %-20s %s\n", r.Name, r.Category, r.SourceFile, r.Description)
			}
			return nil
		},
	}
}

func commandRows(entries map[string]state.CommandEntry) []commandRow {
	rows := make([]commandRow, 0, len(entries))
	for name, e := range entries {
		rows = append(rows, commandRow{Name: name, CommandEntry: e})
	}
	slices.SortFunc(rows, func(a, b commandRow) int { return strings.Compare(a.Name, b.Name) })
	return rows
}

func newRunsCmd(opts *options) *cobra.Command {
	var (
		command string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent command runs from the journal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := opts.journal()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			runs, err := db.ListRuns(command, limit)
			if err != nil {
				return err
			}
			counts, err := db.RunCounts()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(out, map[string]any{"counts": counts, "runs": runs})
			}
			_, _ = fmt.Fprintf(out, "ok: %d  failed: %d  not found: %d\n",
				counts[store.RunOK], counts[store.RunFailed], counts[store.RunNotFound])
			for _, r := range runs {
				line := fmt.Sprintf("%s  %-10s %-9s %5dms  %s",
					time.UnixMilli(r.StartedAt).Format(time.DateTime), r.Command, r.Status, r.DurationMs, r.ChatJID)
				if r.ErrorMessage != "" {
					line += "  " + r.ErrorMessage
				}
				_, _ = fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&command, "command", "", "only runs of this command")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to show")
	return cmd
}

func newSentCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sent",
		Short: "Show recent messages sent by the bot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := opts.journal()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			entries, err := db.ListOutbound(limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(out, entries)
			}
			for _, e := range entries {
				_, _ = fmt.Fprintf(out, "%s  %-7s %s  %q\n",
					time.UnixMilli(e.CreatedAt).Format(time.DateTime), e.Status, e.ChatJID, e.Body)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to show")
	return cmd
}
