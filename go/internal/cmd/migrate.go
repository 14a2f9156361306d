package main

import (
	"github.com/spf13/cobra"

	"github.com/mcdev12/drawrelay/go/internal/dbconfig"
	"github.com/mcdev12/drawrelay/go/internal/store/postgres"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema migrations (DB_* env).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return postgres.Migrate(dbconfig.NewConfigFromEnv().DSN())
		},
	}
}
