package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmylchreest/hlsarchiver/internal/hlserr"
	"github.com/jmylchreest/hlsarchiver/internal/replay"
	"github.com/spf13/cobra"
)

var replayPort int

var replayCmd = &cobra.Command{
	Use:   "replay <PATH>",
	Short: "Replay a recorded HLS broadcast over HTTP",
	Long: `Replay serves the recording at PATH over a local HTTP server,
reproducing the original broadcast's timing relative to when each
client connects.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().IntVarP(&replayPort, "port", "p", 8080, "port to listen on")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	root := args[0]

	serverConfig := replay.DefaultServerConfig()
	serverConfig.Host = appConfig.Replay.Host
	serverConfig.Port = replayPort

	srv, err := replay.NewServer(root, serverConfig, appLogger)
	if err != nil {
		return fmt.Errorf("initializing replay server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		appLogger.Info("received interrupt, stopping replay server")
		cancel()
		<-sigCh
		os.Exit(1)
	}()

	appLogger.Info("replaying recording", "path", root, "port", replayPort)

	err = srv.ListenAndServe(ctx)
	if err != nil && !hlserr.Is(err, hlserr.KindCancelled) {
		return err
	}
	if ctx.Err() != nil {
		fmt.Println("Stopped replaying.")
	}
	return nil
}
