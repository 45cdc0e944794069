package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"drawflow/internal/config"
	"drawflow/internal/discovery"
	"drawflow/internal/relay"
	"drawflow/internal/store"
)

var (
	flagConfig  string
	flagListen  string
	flagRedis   string
	flagNoMDNS  bool
	flagVerbose bool
)

func main() {
	root := &cobra.Command{
		Use:   "drawflow",
		Short: "Collaborative vector drawing relay",
		Long: "drawflow relays shape edits between drawing clients in shared rooms,\n" +
			"persisting each room's scene so late joiners get the full picture.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to config file")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		RunE:  runServe,
	}
	serve.Flags().StringVar(&flagListen, "listen", "", "listen address (overrides config)")
	serve.Flags().StringVar(&flagRedis, "redis", "", "redis address (overrides config)")
	serve.Flags().BoolVar(&flagNoMDNS, "no-mdns", false, "do not advertise on the local network")
	root.AddCommand(serve)

	root.AddCommand(&cobra.Command{
		Use:   "discover",
		Short: "Find relays on the local network",
		RunE:  runDiscover,
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagListen != "" {
		cfg.Listen = flagListen
	}
	if flagRedis != "" {
		cfg.RedisAddr = flagRedis
	}
	if flagNoMDNS {
		cfg.MDNS = false
	}

	logger := newLogger(cfg.LogLevel)

	var rooms store.RoomStore
	if strings.HasPrefix(cfg.RedisAddr, "redis://") || strings.HasPrefix(cfg.RedisAddr, "rediss://") {
		rooms, err = store.NewRedisFromURL(cfg.RedisAddr)
		if err != nil {
			return err
		}
		logger.Info("using redis room store", "url", cfg.RedisAddr)
	} else if cfg.RedisAddr != "" {
		rooms = store.NewRedis(cfg.RedisAddr)
		logger.Info("using redis room store", "addr", cfg.RedisAddr)
	} else {
		rooms = store.NewMemory()
		logger.Warn("no redis configured, rooms are lost on restart")
	}
	defer rooms.Close()

	srv := relay.New(rooms, logger)

	port, hasPort := listenPort(cfg.Listen)
	if cfg.MDNS && hasPort {
		ad, err := discovery.Advertise(port)
		if err != nil {
			logger.Warn("mdns advertisement failed", "err", err)
		} else {
			defer ad.Shutdown()
		}
	}
	if hasPort {
		fmt.Printf("share this relay: ws://%s:%d/ws\n", discovery.OutboundIP(), port)
	}

	logger.Info("relay listening", "addr", cfg.Listen)
	return http.ListenAndServe(cfg.Listen, srv.Router())
}

func runDiscover(_ *cobra.Command, _ []string) error {
	found := false
	err := discovery.Lookup(func(wsURL string) {
		found = true
		fmt.Println(wsURL)
	})
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintln(os.Stderr, "no relays found")
	}
	return nil
}

func newLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if flagVerbose {
		level = "debug"
	}
	if lvl, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}

func listenPort(listen string) (int, bool) {
	_, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return 0, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, false
	}
	return port, true
}
