package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	configfile "github.com/stashdrop-labs/stashdrop/internal/adapters/driven/config/file"
	"github.com/stashdrop-labs/stashdrop/internal/adapters/driving/api"
	"github.com/stashdrop-labs/stashdrop/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the capture engine",
	Long: `Runs the engine in the foreground: the enrichment workers, the
localhost API the overlay UI talks to, and (when configured) the
drop-folder watcher. Stop with Ctrl-C.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a.queue.Start(ctx)
	a.pingServices(ctx)
	a.startMaintenance(ctx)

	server := api.NewServer(a.cfg.GetInt(configfile.KeyAPIPort), a.engine)
	if err := server.Start(); err != nil {
		return err
	}
	defer server.Stop() //nolint:errcheck

	var w *watcher.Watcher
	if dir := a.cfg.GetString(configfile.KeyWatchDir); dir != "" {
		w = watcher.New(watcher.Config{
			Dir:               dir,
			RemoveAfterIngest: a.cfg.GetBool(configfile.KeyWatchRemove),
		}, a.engine)
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
	}

	cmd.Printf("stashdrop engine on 127.0.0.1:%d\n", server.Port())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}

	cmd.Println("shutting down")
	return nil
}
