package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-chords/server"
	"github.com/RyanBlaney/sonido-chords/store"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the detection HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			params, err := cfg.DetectionParams()
			if err != nil {
				return err
			}
			address := cfg.Server.Bind
			if strings.TrimSpace(bind) != "" {
				address = strings.TrimSpace(bind)
			}

			return ctx.withStore(cmd.Context(), func(s *store.Store) error {
				srv, err := server.New(server.Options{
					Bind:           address,
					AllowedOrigins: cfg.Server.AllowedOrigins,
					Params:         params,
				}, s)
				if err != nil {
					return err
				}
				return srv.ListenAndServe(cmd.Context())
			})
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (overrides server.bind)")
	return cmd
}
