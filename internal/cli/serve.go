package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/witlink/pkg/fetch"
)

// serveCommand creates the serve command: an HTTP mirror over a local
// directory, the server side of --fetch-url.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		root string
		addr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a component mirror directory over HTTP",
		Long: `Serve a directory laid out as <namespace>/<name>/<version>.wasm so other
machines can fetch remote components with --fetch-url.`,
		Example: `  witlink serve --root ./mirror --addr :8080`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), root, addr)
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "mirror directory")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, root, addr string) error {
	logger := loggerFromContext(ctx)
	srv := &http.Server{
		Addr:              addr,
		Handler:           fetch.NewMirrorHandler(root, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	printInfo("Serving %s on %s", root, addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("mirror stopped")
	return nil
}
