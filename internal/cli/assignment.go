package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xrmultiplayer/sessionflow/internal/model"
)

func newAssignmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assignment",
		Short: "Inspect or change the player's stored assignment",
	}

	cmd.AddCommand(newAssignmentGetCmd())
	cmd.AddCommand(newAssignmentSetCmd())

	return cmd
}

func newAssignmentGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the stored assignment",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := buildApp(false); err != nil {
				return err
			}
			ctx := cmd.Context()

			a, err := loadOwnAssignment(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("scene index: %d\n", a.SceneIndex)
			fmt.Printf("session code: %s\n", emptyAs(a.SessionCode, "(none)"))
			fmt.Printf("avatar id: %d\n", a.AvatarID)
			return nil
		},
	}
}

func newAssignmentSetCmd() *cobra.Command {
	var (
		scene  int
		avatar int
		room   string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Overwrite the stored assignment",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := buildApp(false); err != nil {
				return err
			}
			ctx := cmd.Context()

			if _, err := loadOwnAssignment(ctx); err != nil {
				return err
			}
			a := model.PlayerAssignment{SceneIndex: scene, SessionCode: room, AvatarID: avatar}
			if err := app.Machine.SetAssignment(ctx, a); err != nil {
				return err
			}
			fmt.Println("assignment saved")
			return nil
		},
	}

	cmd.Flags().IntVar(&scene, "scene", 0, "Scene index")
	cmd.Flags().IntVar(&avatar, "avatar", 0, "Avatar id")
	cmd.Flags().StringVar(&room, "room", "", "Session code")

	return cmd
}

// loadOwnAssignment authenticates and reads this player's assignment
func loadOwnAssignment(ctx context.Context) (model.PlayerAssignment, error) {
	app.Start(ctx)
	id, err := app.Identity.Authenticate(ctx)
	if err != nil {
		return model.PlayerAssignment{}, err
	}
	return app.Assignment.Load(ctx, model.PlayerID(id.RemoteUserID))
}

func emptyAs(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
