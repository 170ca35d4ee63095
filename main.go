package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gosuda.org/portal/sdk"

	"github.com/gosuda/notnon-video/catalog"
)

var rootCmd = &cobra.Command{
	Use:   "notnon-video",
	Short: "Searchable video list and player backed by a JSON manifest",
	RunE:  runVideo,
}

var (
	flagServerURLs    []string
	flagPort          int
	flagName          string
	flagDescription   string
	flagOwner         string
	flagTags          string
	flagHide          bool
	flagManifest      string
	flagDataPath      string
	flagMediaDir      string
	flagWatchInterval time.Duration
	flagTZ            string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringSliceVar(&flagServerURLs, "server-url", strings.Split(os.Getenv("RELAY"), ","), "relay websocket URL(s); repeat or comma-separated (from env RELAY if set)")
	flags.IntVar(&flagPort, "port", envInt("PORT", 3000), "local HTTP port (negative to disable)")
	flags.StringVar(&flagName, "name", "Notnon Video", "backend display name")
	flags.StringVar(&flagDescription, "description", "Searchable video list and player", "lease description")
	flags.StringVar(&flagOwner, "owner", "Notnon", "lease owner")
	flags.StringVar(&flagTags, "tags", "video", "comma-separated lease tags")
	flags.BoolVar(&flagHide, "hide", false, "hide this lease from portal listings")
	flags.StringVar(&flagManifest, "manifest", envString("MANIFEST", "data_upload.json"), "manifest file path or http(s) URL")
	flags.StringVar(&flagDataPath, "data-path", "", "optional directory for the Pebble play history")
	flags.StringVar(&flagMediaDir, "media-dir", "", "optional directory served for video URLs")
	flags.DurationVar(&flagWatchInterval, "watch-interval", 2*time.Second, "manifest polling interval when file events are unavailable")
	flags.StringVar(&flagTZ, "tz", "", "IANA time zone for date labels (default local)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute video command")
	}
}

func runVideo(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc := time.Local
	if flagTZ != "" {
		l, err := time.LoadLocation(flagTZ)
		if err != nil {
			return fmt.Errorf("load time zone: %w", err)
		}
		loc = l
	}

	history, err := openHistory(flagDataPath)
	if err != nil {
		log.Warn().Err(err).Msg("[video] open history failed; history disabled")
		history = nil
	}

	h := newHub(loc, history)
	watcher := catalog.NewWatcher(flagManifest, flagWatchInterval)
	watcher.Subscribe(h.publish)
	go func() {
		if err := watcher.Run(ctx); err != nil {
			log.Error().Err(err).Msg("[video] manifest watcher stopped")
		}
	}()
	go janitor(ctx, h, time.Hour, 24*time.Hour)

	handler := NewHandler(flagName, h, flagMediaDir)

	servers := make([]string, 0, len(flagServerURLs))
	for _, raw := range flagServerURLs {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			servers = append(servers, trimmed)
		}
	}

	var (
		ln     net.Listener
		client *sdk.RDClient
	)
	if len(servers) > 0 {
		c, err := sdk.NewClient(func(cfg *sdk.RDClientConfig) {
			cfg.BootstrapServers = servers
		})
		if err != nil {
			return fmt.Errorf("new client: %w", err)
		}
		cred := sdk.NewCredential()
		listener, err := c.Listen(cred, flagName, []string{"http/1.1"},
			sdk.WithDescription(flagDescription),
			sdk.WithHide(flagHide),
			sdk.WithOwner(flagOwner),
			sdk.WithTags(strings.Split(flagTags, ",")),
		)
		if err != nil {
			_ = c.Close()
			return fmt.Errorf("listen: %w", err)
		}
		client = c
		ln = listener
		log.Info().Msg("[video] relay listener enabled")
		go func() {
			if err := http.Serve(ln, handler); err != nil && err != http.ErrServerClosed && ctx.Err() == nil {
				log.Error().Err(err).Msg("[video] relay http error")
			}
		}()
	} else {
		log.Info().Msg("[video] relay disabled; running local mode only")
	}

	var httpSrv *http.Server
	if flagPort >= 0 {
		httpSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", flagPort),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		log.Info().Msgf("[video] serving locally at http://127.0.0.1:%d", flagPort)
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn().Err(err).Msg("[video] local http stopped")
			}
		}()
	}

	<-ctx.Done()
	log.Info().Msg("[video] shutting down...")
	if ln != nil {
		_ = ln.Close()
	}
	if client != nil {
		_ = client.Close()
	}
	if httpSrv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("[video] http server shutdown error")
		}
	}
	h.closeAll()
	h.wait()
	if err := history.Close(); err != nil {
		log.Warn().Err(err).Msg("[video] history close error")
	}
	log.Info().Msg("[video] shutdown complete")
	return nil
}

// janitor drops idle sessions until ctx is done.
func janitor(ctx context.Context, h *hub, every, maxIdle time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := h.sweep(maxIdle); n > 0 {
				log.Debug().Int("sessions", n).Msg("[video] dropped idle sessions")
			}
		}
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
