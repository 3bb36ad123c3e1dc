package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"gallery/internal/config"
	"gallery/internal/httpserver"
	"gallery/internal/logging"
	"gallery/internal/oops"
	"gallery/internal/sniff"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "gallery",
		Short:        "A minimal self-hosted image gallery",
		SilenceUsage: true,
	}
	serve := serveCmd()
	root.AddCommand(serve, sniffCmd())
	// Running bare "gallery" serves with defaults.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	return root
}

func serveCmd() *cobra.Command {
	var (
		addr    string
		root    string
		cfgPath string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gallery web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if root != "" {
				cfg.Root = root
				if cfg, err = cfg.Normalize(); err != nil {
					return err
				}
			}
			logging.Setup(logging.NewConsoleWriter(os.Stderr), cfg.LogLevel)
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides GALLERY_ADDR)")
	cmd.Flags().StringVar(&root, "root", "", "upload directory (overrides UPLOAD_FOLDER)")
	cmd.Flags().StringVar(&cfgPath, "config", "", "path to a JSON or YAML config file")
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	if cfg.GateEnabled() {
		logging.Info().Str("ip", cfg.WhitelistedIP).Msg("IP whitelisting is ENABLED")
	} else {
		logging.Info().Msg("IP whitelisting is DISABLED, the gallery is publicly accessible")
	}
	if cfg.SecretKey == config.DefaultSecretKey {
		logging.Warn().Msg("SECRET_KEY is the built-in default; set it for anything but local use")
	}

	srv, err := httpserver.New(httpserver.Options{Config: cfg})
	if err != nil {
		return oops.New(err, "server init")
	}

	hs := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Info().Str("addr", cfg.Addr).Str("root", cfg.Root).Msg("gallery listening")
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return oops.New(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logging.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logging.Error().Err(err).Msg("server stopped")
		return err
	}
	return nil
}

func sniffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sniff FILE...",
		Short: "Report whether files would be accepted as uploads",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			rejected := 0
			for _, path := range args {
				verdict, err := sniffFile(path)
				if err != nil {
					return err
				}
				if verdict == "" {
					rejected++
					verdict = "rejected"
				}
				fmt.Fprintf(out, "%s\t%s\n", path, verdict)
			}
			if rejected > 0 {
				return fmt.Errorf("%d of %d files rejected", rejected, len(args))
			}
			return nil
		},
	}
}

// sniffFile returns "<mime> (.<ext>)" for accepted files and "" for rejected
// ones.
func sniffFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	kind, err := sniff.Image(f)
	if err != nil {
		if errors.Is(err, sniff.ErrRejected) {
			return "", nil
		}
		return "", err
	}
	return fmt.Sprintf("%s (.%s)", kind.MIME, kind.Extension), nil
}
