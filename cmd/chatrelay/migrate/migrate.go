package migratecmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/cmd/chatrelay/cmdconfig"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/storage/drivers"
)

const migrateLongDesc string = `Copy every session from one store into another.

Stores are given as driver:target where driver is one of file, sqlite,
redis or memory. Sessions that already hold messages in the target are
skipped unless --overwrite is set. Models and update times are carried
over.

Examples:
  chatrelay migrate --from file:./data --to sqlite:./chat.db
  chatrelay migrate --from sqlite:./chat.db --to redis:redis://localhost:6379/0 --overwrite`

const migrateShortDesc string = "Copy sessions between stores"

type migrateCommander struct {
	from      string
	to        string
	overwrite bool
}

func NewMigrateCmd() *cobra.Command {
	cmder := &migrateCommander{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: migrateShortDesc,
		Long:  migrateLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVar(&cmder.from, "from", "", "Source store as driver:target")
	cmd.Flags().StringVar(&cmder.to, "to", "", "Target store as driver:target")
	cmd.Flags().BoolVar(&cmder.overwrite, "overwrite", false, "Replace sessions that already exist in the target")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func (c *migrateCommander) run(ctx context.Context, cmd *cobra.Command) error {
	fromSpec, err := drivers.ParseSpec(c.from)
	if err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	toSpec, err := drivers.ParseSpec(c.to)
	if err != nil {
		return fmt.Errorf("invalid --to: %w", err)
	}
	if fromSpec == toSpec {
		return fmt.Errorf("source and target are the same store: %s", fromSpec)
	}

	debug, _ := cmd.Flags().GetBool(cmdconfig.DebugFlag)
	log := logger.New(cmd.ErrOrStderr(), debug)
	defer log.Sync()

	source, err := drivers.Open(ctx, fromSpec, log)
	if err != nil {
		return fmt.Errorf("could not open source store %s: %w", fromSpec, err)
	}
	defer source.Close()

	target, err := drivers.Open(ctx, toSpec, log)
	if err != nil {
		return fmt.Errorf("could not open target store %s: %w", toSpec, err)
	}
	defer target.Close()

	copied, skipped, err := Migrate(ctx, source, target, c.overwrite, func(meta llm.SessionMeta, copied bool) {
		if copied {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d messages\n", meta.ID, meta.MessageCount)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s: already exists, skipped\n", meta.ID)
		}
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d sessions from %s to %s (%d skipped)\n",
		copied, fromSpec, toSpec, skipped)

	return nil
}

// Migrate copies every session of source into target. Sessions with messages
// in target are skipped unless overwrite is set. progress, when non-nil, is
// called once per session.
func Migrate(ctx context.Context, source, target storage.Store, overwrite bool, progress func(meta llm.SessionMeta, copied bool)) (copied, skipped int, err error) {
	sessions, err := source.List(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("could not list source sessions: %w", err)
	}

	for _, meta := range sessions {
		if !overwrite {
			existing, err := target.Load(ctx, meta.ID)
			if err != nil {
				return copied, skipped, fmt.Errorf("could not check target session %s: %w", meta.ID, err)
			}
			if len(existing) > 0 {
				skipped++
				if progress != nil {
					progress(meta, false)
				}
				continue
			}
		}

		messages, err := source.Load(ctx, meta.ID)
		if err != nil {
			return copied, skipped, fmt.Errorf("could not load session %s: %w", meta.ID, err)
		}

		err = target.Save(ctx, llm.Session{
			ID:        meta.ID,
			Title:     meta.Title,
			Model:     meta.Model,
			Messages:  messages,
			UpdatedAt: meta.UpdatedAt,
		})
		if err != nil {
			return copied, skipped, fmt.Errorf("could not save session %s: %w", meta.ID, err)
		}

		copied++
		if progress != nil {
			progress(meta, true)
		}
	}

	return copied, skipped, nil
}
