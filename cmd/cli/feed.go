package main

import (
	"fmt"

	"github.com/codeconnects/backend/internal/apiclient"
	"github.com/spf13/cobra"
)

var refresh bool

var feedCmd = &cobra.Command{
	Use:       "feed [global|following]",
	Short:     "View a feed",
	Long:      "View the global feed (default) or posts from people you follow. Feeds are cached per session; pass --refresh to refetch.",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"global", "following"},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := "global"
		if len(args) == 1 {
			kind = args[0]
		}

		var (
			c    *apiclient.Client
			page *apiclient.Page
			err  error
		)
		switch kind {
		case "global":
			c, _ = newClient(false)
			page, err = c.GlobalFeed(cmd.Context(), refresh)
		case "following":
			if c, err = newClient(true); err != nil {
				return err
			}
			page, err = c.FollowingFeed(cmd.Context(), refresh)
		default:
			return fmt.Errorf("unknown feed %q (want global or following)", kind)
		}
		if err != nil {
			return err
		}
		printPage(page)
		return nil
	},
}

var postsCmd = &cobra.Command{
	Use:   "posts <user-id>",
	Short: "View one user's posts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _ := newClient(false)
		page, err := c.UserPosts(cmd.Context(), args[0], refresh)
		if err != nil {
			return err
		}
		printPage(page)
		return nil
	},
}

var postCmd = &cobra.Command{
	Use:   "post <post-id>",
	Short: "View a single post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _ := newClient(false)
		post, err := c.Post(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if printJSON(post) {
			return nil
		}
		printPost(post)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{feedCmd, postsCmd} {
		cmd.Flags().BoolVar(&refresh, "refresh", false, "Refetch instead of reading the session cache")
	}
}
