package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tsawler/metricate"
	"github.com/tsawler/metricate/session"
	"github.com/tsawler/metricate/transport"
)

const shutdownGrace = 5 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string
	var path string
	var outputPath string

	cmd := &cobra.Command{
		Use:   "serve <file>",
		Short: "Keep a document converted and accept control commands over WebSocket",
		Long: "Load a document, convert it according to the stored settings and serve the control channel.\n" +
			"Commands received over the channel (toggle, convert, append, ...) are applied to the live document.\n" +
			"With --output the final document is written when the server stops.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if path == "" {
				path = cfg.Server.Path
			}

			doc, err := metricate.Open(args[0]).Input()
			if err != nil {
				return err
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := cfg.OpenStore(sigCtx)
			if err != nil {
				return fmt.Errorf("open settings store: %w", err)
			}
			defer store.Close()

			sess := session.New(doc, store, session.WithLogger(logger))
			sessCtx, cancelSession := context.WithCancel(context.Background())
			defer cancelSession()
			sessDone := make(chan error, 1)
			go func() { sessDone <- sess.Run(sessCtx) }()

			srv := transport.NewServer(sess,
				transport.WithServerLogger(logger),
				transport.WithMaxFrameSize(cfg.Server.MaxFrameSize),
			)
			out := cmd.OutOrStdout()
			serveErr := srv.ListenAndServe(sigCtx, addr, path, func(a net.Addr) {
				fmt.Fprintf(out, "Listening on ws://%s%s (session %s)\n", a, path, sess.ID())
			})

			if outputPath != "" {
				if err := writeFinal(sess, outputPath, cmd, logger); err != nil {
					serveErr = errors.Join(serveErr, err)
				}
			}
			cancelSession()
			if err := <-sessDone; err != nil {
				serveErr = errors.Join(serveErr, err)
			}
			return serveErr
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to server.addr)")
	cmd.Flags().StringVar(&path, "path", "", "Control channel path (defaults to server.path)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the final document here on shutdown")
	return cmd
}

func writeFinal(sess *session.Session, outputPath string, cmd *cobra.Command, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	out, err := sess.HTML(ctx)
	if err != nil {
		return fmt.Errorf("render final document: %w", err)
	}
	if err := writeOutput(cmd, outputPath, out); err != nil {
		return err
	}
	logger.Info("wrote final document", slog.String("path", outputPath))
	return nil
}
