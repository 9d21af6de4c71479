package main

import (
	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rigdev/repogov/internal/codehost"
	"github.com/rigdev/repogov/internal/config"
	"github.com/rigdev/repogov/internal/core"
	"github.com/rigdev/repogov/internal/directory"
	"github.com/rigdev/repogov/internal/storage"
	"github.com/rigdev/repogov/internal/web"
	"github.com/rigdev/repogov/internal/webhook"
)

func (c *cli) newServeCommand() *cobra.Command {
	var port int
	//nolint:exhaustruct
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the JSON API and the pull request webhook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.invoke(func(
				cfg *config.Config,
				svc *core.Service,
				dir *directory.Directory,
				db *storage.DB,
				cred codehost.Credential,
				log *logger.Logger,
			) error {
				defer db.Close()
				if port > 0 {
					cfg.Server.Port = port
				}
				if cfg.Server.Secret == "" {
					log.Warn("[serve] server.secret is empty, webhook deliveries will be rejected")
				}

				api := web.NewHandler(web.Deps{
					Service:        svc,
					Directory:      dir,
					History:        db,
					Token:          cred.Token,
					AllowedOrigins: cfg.Server.AllowedOrigins,
					Clock:          utcNow,
					Log:            log,
				})
				hooks := webhook.NewHandler(cfg.Server.Secret, db, log)
				return webhook.NewServer(cfg.Server, hooks, api).ListenAndServe(cmd.Context())
			})
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Override server port")
	return cmd
}
