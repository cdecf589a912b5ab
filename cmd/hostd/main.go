package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"minihost/go-backend/internal/composition/hostserver"
	"minihost/go-backend/internal/platform/privacylog"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	rpcAddr := flag.String("rpc-addr", "127.0.0.1:8791", "JSON-RPC listen address")
	configPath := flag.String("config", "", "Path to hostd.yaml (optional)")
	dataDir := flag.String("data-dir", "", "Directory for encrypted host state (optional)")
	rpcToken := flag.String("rpc-token", "", "RPC token for Authorization/X-Minihost-RPC-Token (optional)")
	flag.Parse()
	if *showVersion {
		fmt.Printf("minihostd version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	slog.SetDefault(slog.New(privacylog.WrapHandler(slog.NewJSONHandler(os.Stderr, nil))))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *rpcToken != "" {
		_ = os.Setenv("MINIHOST_RPC_TOKEN", *rpcToken)
	}

	srv, err := hostserver.NewRPCServerWithOptions(*rpcAddr, *configPath, *dataDir)
	if err != nil {
		log.Fatalf("minihostd failed to initialize: %v", err)
	}

	log.Println("minihostd starting")
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("minihostd failed: %v", err)
	}
	log.Println("minihostd stopped")
}
