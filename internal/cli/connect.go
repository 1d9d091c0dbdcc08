package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xrmultiplayer/sessionflow/internal/model"
	"github.com/xrmultiplayer/sessionflow/internal/web"
)

func newConnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Sign in and join a session, then stay connected until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := buildApp(cfg.AutoJoin); err != nil {
				return err
			}
			return runSession(func(ctx context.Context) error {
				return app.Machine.Initialize(ctx)
			})
		},
	}
}

// runSession drives one connection attempt and stays up streaming events
// and serving the observer endpoint until SIGINT/SIGTERM
func runSession(start func(ctx context.Context) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app.Start(ctx)

	events := app.Bus.Subscribe()
	defer app.Bus.Unsubscribe(events)

	router := web.NewRouter(web.RouterConfig{
		Logger:  logger,
		Machine: app.Machine,
		Session: app.Session,
		Bus:     app.Bus,
	})
	serverCfg := web.DefaultServerConfig()
	serverCfg.Addr = cfg.ListenAddr
	server := web.NewServer(router, serverCfg, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	if err := start(ctx); err != nil {
		_ = server.Shutdown(context.Background())
		return err
	}

	for {
		select {
		case ev := <-events:
			printEvent(ev)

		case err := <-errCh:
			if err != nil {
				return err
			}

		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "shutting down")
			app.Machine.Disconnect(context.Background())
			return server.Shutdown(context.Background())
		}
	}
}

// printEvent renders one bus event as a human-readable line
func printEvent(ev model.Event) {
	switch p := ev.Payload.(type) {
	case model.StateChangedPayload:
		fmt.Printf("state: %s -> %s\n", p.Previous, p.Current)
		if p.Current == model.StateConnected {
			if desc := app.Machine.ConnectedSession(); desc != nil {
				fmt.Printf("session: %s (join code %s)\n", desc.DisplayName, desc.JoinCode())
			}
		}
	case model.StatusPayload:
		fmt.Println(p.Message)
	case model.ConnectionFailedPayload:
		fmt.Printf("connection failed: %s\n", p.Reason)
	case model.PlayerPayload:
		switch ev.Type {
		case model.EventPlayerJoined:
			fmt.Printf("player joined: %d\n", p.NetworkID)
		case model.EventPlayerLeft:
			fmt.Printf("player left: %d\n", p.NetworkID)
		}
	}
}
