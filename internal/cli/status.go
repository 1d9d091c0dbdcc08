package cli

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query a running instance's observer endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(server + "/status")
			if err != nil {
				return fmt.Errorf("querying %s: %w", server, err)
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unexpected status %s from %s", resp.Status, server)
			}

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			fmt.Println(string(body))
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "http://localhost:8090", "Observer endpoint base URL")

	return cmd
}
