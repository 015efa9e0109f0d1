package main

import (
	"os"

	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/ask"
	"github.com/papercomputeco/chatrelay/cmd/chatrelay/cmdconfig"
	migratecmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/migrate"
	servecmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/serve"
	sessionscmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/sessions"
)

const rootLongDesc string = `chatrelay streams chat replies from a local mock or a remote
model provider and keeps each session's conversation on disk, in SQLite
or in Redis.

Configuration is read from the file given with --config, then .env,
then the environment (PORT, USE_REMOTE, GOOGLE_API_KEY, OPENAI_API_BASE,
OPENAI_MODEL, DATA_DIR, STORAGE_DRIVER, REDIS_URL, DEBUG).`

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "chatrelay",
		Short:        "Streaming chat relay",
		Long:         rootLongDesc,
		SilenceUsage: true,
	}

	cmdconfig.AddPersistentFlags(cmd)

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(sessionscmder.NewSessionsCmd())
	cmd.AddCommand(migratecmder.NewMigrateCmd())

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
