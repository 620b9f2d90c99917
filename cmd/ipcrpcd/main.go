// Command ipcrpcd is a host binary demonstrating the dispatch core: it
// opens a Unix domain socket, constructs one RPC core and one service
// actor (Echo), and accepts connections for the lifetime of the
// process.
//
// Configuration loading and signal-driven graceful shutdown follow the
// teacher's cmd/orchestrator entry point: an optional config file path
// on the command line, falling back to a built-in default, and a
// SIGINT/SIGTERM handler that cancels a context shared by every
// goroutine.
//
// Called by: operating system process execution
// Calls: internal/config, logging, transport, rpc, peer
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/corelane/ipcrpc/envelope"
	"github.com/corelane/ipcrpc/internal/config"
	"github.com/corelane/ipcrpc/logging"
	"github.com/corelane/ipcrpc/peer"
	"github.com/corelane/ipcrpc/rpc"
	"github.com/corelane/ipcrpc/transport"
)

type echoRequest struct {
	Text string `msgpack:"text"`
}

type echoResponse struct {
	Text string `msgpack:"text"`
}

func main() {
	cfg, source, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ipcrpcd: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(os.Stderr, cfg.Log.Level)
	if cfg.Log.Dir != "" {
		hook, err := logging.NewSessionHook(cfg.Log.Dir)
		if err != nil {
			log.Error("could not start session log", logging.Fields{"error": err.Error()})
		} else {
			log.AddHook(hook)
			defer hook.Close()
		}
	}
	log.Info("starting ipcrpcd", logging.Fields{"config_source": source, "socket": cfg.Socket.Path})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.Info("received shutdown signal", logging.Fields{"signal": s.String()})
		cancel()
	}()

	core := rpc.NewCore(log, matcher)
	rpc.RegisterService[echoRequest](core, "Echo", "echo-actor", rpc.HandlerFunc[echoRequest](handleEcho))

	listener, err := transport.ListenUnix(cfg.Socket.Path)
	if err != nil {
		log.Critical("could not open listener", logging.Fields{"error": err.Error()})
		return
	}
	defer listener.Close()

	log.Info("listening", logging.Fields{"socket": cfg.Socket.Path})
	if err := listener.Serve(ctx, log, func(conn net.Conn) {
		p := peer.New(conn, core, log)
		p.Run()
	}); err != nil {
		log.Error("listener stopped", logging.Fields{"error": err.Error()})
	}
}

func matcher(core *rpc.Core, env envelope.Envelope, reply rpc.PeerAddress) {
	switch env.Service {
	case "Echo":
		rpc.DeserializeInto[echoRequest](context.Background(), core, env, reply)
	default:
		rpc.RejectAll(core, env, reply)
	}
}

func handleEcho(ctx context.Context, req echoRequest) (envelope.Envelope, error) {
	return envelope.New("Echo", envelope.ConnID{}, envelope.Response, echoResponse{Text: req.Text})
}

func loadConfig() (*config.Config, string, error) {
	if len(os.Args) >= 2 {
		cfg, err := config.Load(os.Args[1])
		if err != nil {
			return nil, "", fmt.Errorf("load config from %s: %w", os.Args[1], err)
		}
		return cfg, fmt.Sprintf("config file: %s", os.Args[1]), nil
	}

	if _, err := os.Stat("config/ipcrpcd.yaml"); err == nil {
		cfg, err := config.Load("config/ipcrpcd.yaml")
		if err != nil {
			return nil, "", fmt.Errorf("load config/ipcrpcd.yaml: %w", err)
		}
		return cfg, "config file: config/ipcrpcd.yaml", nil
	}

	return &config.Config{
		AppName: "ipcrpcd",
		Socket:  config.SocketConfig{Path: "/tmp/ipcrpc.sock"},
		Log:     config.LogConfig{Level: "info"},
	}, "built-in defaults", nil
}
