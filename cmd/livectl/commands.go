package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"reddit-live/pkg/reddit"
)

// threadAction builds a command that runs fn against the thread named by the
// first argument and prints its result.
func (a *app) threadAction(use, short string, extraArgs int, fn func(cmd *cobra.Command, t *reddit.LiveThread, args []string) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1 + extraArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.thread(args[0])
			if err != nil {
				return err
			}
			res, err := fn(cmd, t, args[1:])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
}

func (a *app) aboutCmd() *cobra.Command {
	return a.threadAction("about THREAD", "Show a thread's settings and state", 0,
		func(cmd *cobra.Command, t *reddit.LiveThread, _ []string) (any, error) {
			// Reading any unknown attribute loads the whole thread.
			if _, err := t.Title(cmd.Context()); err != nil {
				return nil, err
			}
			return t, nil
		})
}

func (a *app) acceptInviteCmd() *cobra.Command {
	return a.threadAction("accept-invite THREAD", "Accept a contributor invite", 0,
		func(cmd *cobra.Command, t *reddit.LiveThread, _ []string) (any, error) {
			return t.AcceptContributorInvite(cmd.Context())
		})
}

func (a *app) closeCmd() *cobra.Command {
	return a.threadAction("close THREAD", "Close a thread permanently", 0,
		func(cmd *cobra.Command, t *reddit.LiveThread, _ []string) (any, error) {
			return t.Close(cmd.Context())
		})
}

func (a *app) contributorsCmd() *cobra.Command {
	return a.threadAction("contributors THREAD", "List contributors", 0,
		func(cmd *cobra.Command, t *reddit.LiveThread, _ []string) (any, error) {
			return t.Contributors(cmd.Context())
		})
}

func (a *app) deleteUpdateCmd() *cobra.Command {
	return a.threadAction("delete-update THREAD UPDATE_ID", "Delete an update", 1,
		func(cmd *cobra.Command, t *reddit.LiveThread, args []string) (any, error) {
			return t.DeleteUpdate(cmd.Context(), args[0])
		})
}

func (a *app) strikeCmd() *cobra.Command {
	return a.threadAction("strike THREAD UPDATE_ID", "Strike an update", 1,
		func(cmd *cobra.Command, t *reddit.LiveThread, args []string) (any, error) {
			return t.StrikeUpdate(cmd.Context(), args[0])
		})
}

func (a *app) removeContributorCmd() *cobra.Command {
	return a.threadAction("remove-contributor THREAD REDDITOR_ID", "Remove a contributor (t2_ fullname)", 1,
		func(cmd *cobra.Command, t *reddit.LiveThread, args []string) (any, error) {
			return t.RemoveContributor(cmd.Context(), args[0])
		})
}

func (a *app) removeInviteCmd() *cobra.Command {
	return a.threadAction("remove-invite THREAD REDDITOR_ID", "Rescind a contributor invite (t2_ fullname)", 1,
		func(cmd *cobra.Command, t *reddit.LiveThread, args []string) (any, error) {
			return t.RemoveContributorInvite(cmd.Context(), args[0])
		})
}

func (a *app) postCmd() *cobra.Command {
	return a.threadAction("post THREAD BODY", "Post an update; BODY - reads stdin", 1,
		func(cmd *cobra.Command, t *reddit.LiveThread, args []string) (any, error) {
			body := args[0]
			if body == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return nil, fmt.Errorf("read stdin: %w", err)
				}
				body = strings.TrimRight(string(data), "\n")
			}
			if strings.TrimSpace(body) == "" {
				return nil, errors.New("empty update body")
			}
			return t.PostUpdate(cmd.Context(), body)
		})
}

func (a *app) editCmd() *cobra.Command {
	var description, resources, title string
	var nsfw bool

	cmd := a.threadAction("edit THREAD", "Replace a thread's settings", 0,
		func(cmd *cobra.Command, t *reddit.LiveThread, _ []string) (any, error) {
			return t.Edit(cmd.Context(), description, nsfw, resources, title)
		})
	cmd.Long = `Replace a thread's settings. Every setting is sent, so omitted flags clear
the corresponding field.`
	cmd.Flags().StringVar(&title, "title", "", "Thread title (required)")
	cmd.Flags().StringVar(&description, "description", "", "Thread description")
	cmd.Flags().StringVar(&resources, "resources", "", "Sidebar resources markdown")
	cmd.Flags().BoolVar(&nsfw, "nsfw", false, "Mark the thread NSFW")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func (a *app) inviteCmd() *cobra.Command {
	var permissions, typ string

	cmd := a.threadAction("invite THREAD USERNAME", "Invite a contributor", 1,
		func(cmd *cobra.Command, t *reddit.LiveThread, args []string) (any, error) {
			return t.InviteContributor(cmd.Context(), args[0], permissions, typ)
		})
	cmd.Flags().StringVar(&permissions, "permissions", "+all", "Permission string, e.g. +update,-edit")
	cmd.Flags().StringVar(&typ, "type", reddit.ContributorTypeInvite, "Contributor type")
	return cmd
}

func (a *app) setPermissionsCmd() *cobra.Command {
	var permissions, typ string

	cmd := a.threadAction("set-permissions THREAD USERNAME", "Change a contributor's permissions", 1,
		func(cmd *cobra.Command, t *reddit.LiveThread, args []string) (any, error) {
			return t.SetContributorPermissions(cmd.Context(), args[0], permissions, typ)
		})
	cmd.Flags().StringVar(&permissions, "permissions", "", "Permission string, e.g. +update,-edit (required)")
	cmd.Flags().StringVar(&typ, "type", reddit.ContributorTypeContributor, "liveupdate_contributor or liveupdate_contributor_invite")
	_ = cmd.MarkFlagRequired("permissions")
	return cmd
}

func (a *app) updatesCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "updates THREAD",
		Short: "List updates, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.thread(args[0])
			if err != nil {
				return err
			}
			return writeListing(cmd, t.Updates(reddit.WithLimit(limit)).All(cmd.Context()))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 25, "Maximum number of updates (0 for all)")
	return cmd
}

func (a *app) discussionsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "discussions THREAD",
		Short: "List submissions linking to a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.thread(args[0])
			if err != nil {
				return err
			}
			return writeListing(cmd, t.Discussions(reddit.WithLimit(limit)).All(cmd.Context()))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 25, "Maximum number of submissions (0 for all)")
	return cmd
}
