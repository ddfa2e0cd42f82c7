package main

import (
	"github.com/spf13/cobra"
)

var followCmd = &cobra.Command{
	Use:   "follow <user-id>",
	Short: "Follow a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setFollowing(cmd, args[0], true)
	},
}

var unfollowCmd = &cobra.Command{
	Use:   "unfollow <user-id>",
	Short: "Stop following a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setFollowing(cmd, args[0], false)
	},
}

func setFollowing(cmd *cobra.Command, userID string, follow bool) error {
	c, err := newClient(true)
	if err != nil {
		return err
	}
	if err := c.SetFollowing(cmd.Context(), userID, follow); err != nil {
		return err
	}
	if printJSON(map[string]interface{}{"user_id": userID, "following": follow}) {
		return nil
	}
	if follow {
		printSuccess("Following %s", userID)
	} else {
		printSuccess("Unfollowed %s", userID)
	}
	return nil
}
