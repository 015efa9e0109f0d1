package sessionscmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/cmd/chatrelay/cmdconfig"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

const sessionsLongDesc string = `List and remove stored chat sessions.

Examples:
  chatrelay sessions ls
  chatrelay sessions ls --store sqlite:./chat.db
  chatrelay sessions rm chat old-session`

const sessionsShortDesc string = "Manage stored sessions"

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

const (
	idWidth      = 24
	titleWidth   = 34
	countWidth   = 10
	timeLayout   = "2006-01-02 15:04"
	noSessionMsg = "No sessions stored."
)

type sessionsCommander struct {
	store string
}

func NewSessionsCmd() *cobra.Command {
	cmder := &sessionsCommander{}

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: sessionsShortDesc,
		Long:  sessionsLongDesc,
	}

	cmd.PersistentFlags().StringVar(&cmder.store, cmdconfig.StoreFlag, "", cmdconfig.StoreFlagUsage)

	cmd.AddCommand(&cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List stored sessions, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.list(cmd.Context(), cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "rm <id...>",
		Aliases: []string{"delete"},
		Short:   "Remove stored sessions",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.remove(cmd.Context(), cmd, args)
		},
	})

	return cmd
}

func (c *sessionsCommander) open(ctx context.Context, cmd *cobra.Command) (storage.Store, error) {
	cfg, err := cmdconfig.Load(cmd)
	if err != nil {
		return nil, err
	}
	return cmdconfig.OpenStore(ctx, cfg, c.store, logger.New(cmd.ErrOrStderr(), cfg.Debug))
}

func (c *sessionsCommander) list(ctx context.Context, cmd *cobra.Command) error {
	store, err := c.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("could not list sessions: %w", err)
	}

	writeTable(cmd.OutOrStdout(), sessions)
	return nil
}

func (c *sessionsCommander) remove(ctx context.Context, cmd *cobra.Command, ids []string) error {
	store, err := c.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	var missing []error
	for _, id := range ids {
		err := store.Delete(ctx, id)
		var notFound storage.ErrNotFound
		switch {
		case errors.As(err, &notFound):
			missing = append(missing, err)
			continue
		case err != nil:
			return fmt.Errorf("could not remove session %s: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed session %s\n", storage.SanitizeID(id))
	}

	return errors.Join(missing...)
}

func writeTable(w io.Writer, sessions []llm.SessionMeta) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, noSessionMsg)
		return
	}

	fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top,
		headerStyle.Width(idWidth).Render("ID"),
		headerStyle.Width(titleWidth).Render("TITLE"),
		headerStyle.Width(countWidth).Render("MESSAGES"),
		headerStyle.Render("UPDATED"),
	))

	for _, s := range sessions {
		fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top,
			idStyle.Width(idWidth).Render(s.ID),
			lipgloss.NewStyle().Width(titleWidth).MaxHeight(1).Render(s.Title),
			lipgloss.NewStyle().Width(countWidth).Render(fmt.Sprint(s.MessageCount)),
			dimStyle.Render(formatTime(s.UpdatedAt)),
		))
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}
