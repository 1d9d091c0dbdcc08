package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xrmultiplayer/sessionflow/internal/model"
)

func newCreateCmd() *cobra.Command {
	var (
		name       string
		private    bool
		maxPlayers int
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Host a new session and stay connected until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := buildApp(false); err != nil {
				return err
			}
			return runSession(func(ctx context.Context) error {
				if err := authenticate(ctx); err != nil {
					return err
				}
				return app.Machine.Create(ctx, name, private, maxPlayers)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Session display name (default: \"<player>'s Room\")")
	cmd.Flags().BoolVar(&private, "private", false, "Hide the session from quick-join")
	cmd.Flags().IntVar(&maxPlayers, "max-players", 0, "Session capacity (default: configured maximum)")

	return cmd
}

func newJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <code>",
		Short: "Join the session published under a join code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := buildApp(false); err != nil {
				return err
			}
			code := args[0]
			return runSession(func(ctx context.Context) error {
				if err := authenticate(ctx); err != nil {
					return err
				}
				return app.Machine.JoinByCode(ctx, code)
			})
		},
	}
}

// authenticate runs initialization through to the authenticated state.
// Auto-join is off for explicit create/join commands, so initialization
// stops there.
func authenticate(ctx context.Context) error {
	sub := app.Bus.Subscribe()
	defer app.Bus.Unsubscribe(sub)

	if err := app.Machine.Initialize(ctx); err != nil {
		return err
	}

	for {
		select {
		case ev, open := <-sub:
			if !open {
				return fmt.Errorf("event bus closed during authentication")
			}
			switch p := ev.Payload.(type) {
			case model.StateChangedPayload:
				if p.Current == model.StateAuthenticated {
					waitIdle(ctx)
					return nil
				}
			case model.ConnectionFailedPayload:
				return fmt.Errorf("%s", p.Reason)
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// waitIdle blocks until the initialization command releases the command
// slot, so that the next command is not rejected as in flight
func waitIdle(ctx context.Context) {
	for !app.Machine.Idle() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}
