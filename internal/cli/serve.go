package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	prof "github.com/go-while/go-cpu-mem-profiler"
	"github.com/go-while/go-pugblog/internal/web"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var (
	serveSSL     bool
	serveCert    string
	serveKey     string
	pprofAddr    string
	memProfiling time.Duration
)

var Prof *prof.Profiler

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveSSL {
			cfg.Web.SSL = true
		}
		if serveCert != "" {
			cfg.Web.CertFile = serveCert
		}
		if serveKey != "" {
			cfg.Web.KeyFile = serveKey
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		log.Printf("Starting go-pugblog web server (version: %s)", cfg.AppVersion)

		if pprofAddr != "" {
			Prof = prof.NewProf()
			go Prof.PprofWeb(pprofAddr)
			if memProfiling > 0 {
				Prof.StartMemProfile(memProfiling, 30*time.Second)
			}
			log.Printf("[WEB]: pprof listening on %s", pprofAddr)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Shutdown(); err != nil {
				log.Printf("[WEB]: Failed to shutdown database: %v", err)
			} else {
				log.Printf("[WEB]: Database shutdown successfully")
			}
		}()

		server, err := web.NewServer(db, &cfg.Web)
		if err != nil {
			return fmt.Errorf("failed to create web server: %w", err)
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		errChan := make(chan error, 1)
		go func() {
			errChan <- server.Start()
		}()

		select {
		case sig := <-sigChan:
			log.Printf("[WEB]: Received %s, initiating graceful shutdown...", sig)
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("web server failed: %w", err)
			}
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("[WEB]: Graceful shutdown failed: %v", err)
		}
		return <-errChan
	},
}

func init() {
	serveCmd.Flags().IntVarP(&flags.Port, "port", "p", 0, "listen port (default 8000)")
	serveCmd.Flags().BoolVar(&flags.Debug, "debug", false, "debug mode: gin debug logging, insecure default secret key")
	serveCmd.Flags().StringVar(&flags.StaticDir, "static-dir", "", "serve static files from this directory instead of the embedded ones")
	serveCmd.Flags().BoolVar(&serveSSL, "ssl", false, "serve HTTPS directly")
	serveCmd.Flags().StringVar(&serveCert, "ssl-cert", "", "SSL certificate file (/path/to/fullchain.pem)")
	serveCmd.Flags().StringVar(&serveKey, "ssl-key", "", "SSL key file (/path/to/privkey.pem)")
	serveCmd.Flags().StringVar(&pprofAddr, "pprof", "", "expose pprof on this address, e.g. 127.0.0.1:51111")
	serveCmd.Flags().DurationVar(&memProfiling, "memprofile-every", 0, "with --pprof: write a heap profile at this interval")
}
