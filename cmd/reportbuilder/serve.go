package main

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/hyperifyio/reportbuilder/internal/server"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the report pipeline over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := g.setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			cfg := a.Config()
			if cmd.Flags().Changed("addr") {
				cfg.ListenAddr = addr
			}
			if !cfg.Verbose {
				gin.SetMode(gin.ReleaseMode)
			}
			s := &server.Server{Service: a, RequestTimeout: cfg.RequestTimeout}
			return server.ListenAndServe(cmd.Context(), cfg.ListenAddr, s.Router())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (LISTEN_ADDR, default :8000)")
	return cmd
}
