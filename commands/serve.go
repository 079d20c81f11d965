package commands

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/zeu5/maternal-rl/server"
)

func ServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve environments over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			gin.SetMode(gin.ReleaseMode)
			s := server.NewServer(server.Config{
				MaxSessions: cfg.Server.MaxSessions,
				Logger:      logger,
			})

			ctx, stop := interruptContext(cmd.Context())
			defer stop()
			return s.Run(ctx, cfg.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Address to listen on")
	return cmd
}
