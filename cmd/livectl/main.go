// Package main implements livectl, a command-line client for reddit live
// threads.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"reddit-live/config"
	"reddit-live/pkg/reddit"
	"reddit-live/session"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	if err := newRootCmd(openSession).Execute(); err != nil {
		os.Exit(1)
	}
}

// opener returns the requester commands run against.
type opener func(ctx context.Context, configPath string, stderr io.Writer) (reddit.Requester, error)

func openSession(ctx context.Context, configPath string, stderr io.Writer) (reddit.Requester, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	httpClient, err := session.NewHTTPClient(ctx, cfg.Reddit.Credentials())
	if err != nil {
		return nil, fmt.Errorf("create reddit http client: %w", err)
	}
	return session.New(httpClient, cfg.Reddit.Session(), logger, nil), nil
}

type app struct {
	open       opener
	configPath string
	reddit     reddit.Requester
}

func newRootCmd(open opener) *cobra.Command {
	a := &app{open: open}

	root := &cobra.Command{
		Use:   "livectl",
		Short: "Manage reddit live threads",
		Long: `livectl reads and moderates reddit live threads through the reddit API.

Credentials come from a YAML config file and REDDIT_* environment variables
(REDDIT_CLIENT_ID, REDDIT_CLIENT_SECRET, REDDIT_USERNAME, REDDIT_PASSWORD).
A .env file in the working directory is loaded first.

Examples:
  # Show a thread
  livectl about ux4r1lk5c8ys

  # Post an update from stdin
  echo "Doors open" | livectl post ux4r1lk5c8ys -`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.open(cmd.Context(), a.configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a.reddit = r
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", os.Getenv("CONFIG_FILE"), "YAML config file")

	root.AddCommand(
		a.aboutCmd(),
		a.acceptInviteCmd(),
		a.closeCmd(),
		a.contributorsCmd(),
		a.deleteUpdateCmd(),
		a.discussionsCmd(),
		a.editCmd(),
		a.inviteCmd(),
		a.postCmd(),
		a.removeContributorCmd(),
		a.removeInviteCmd(),
		a.setPermissionsCmd(),
		a.strikeCmd(),
		a.updatesCmd(),
	)
	return root
}

func (a *app) thread(id string) (*reddit.LiveThread, error) {
	return reddit.NewLiveThread(a.reddit, id, nil)
}
