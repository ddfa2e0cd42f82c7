package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var registerAvatar string

var registerCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "Create a profile and print its token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _ := newClient(false)
		resp, err := c.Register(cmd.Context(), args[0], registerAvatar)
		if err != nil {
			return err
		}
		if printJSON(resp) {
			return nil
		}
		printSuccess("Registered @%s (%s)", resp.User.Username, resp.User.ID)
		printInfo("export CODECONNECTS_TOKEN=%s", resp.Token)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <user-id>",
	Short: "Issue a token for an existing profile (development servers only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _ := newClient(false)
		resp, err := c.Login(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if printJSON(resp) {
			return nil
		}
		printSuccess("Logged in as @%s", resp.User.Username)
		printInfo("export CODECONNECTS_TOKEN=%s", resp.Token)
		return nil
	},
}

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the profile behind the current token",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		me, err := c.Me(cmd.Context())
		if err != nil {
			return err
		}
		if printJSON(me) {
			return nil
		}
		boldColor.Printf("@%s\n", me.Username)
		fmt.Printf("  id: %s\n", me.ID)
		if me.AvatarURL != "" {
			fmt.Printf("  avatar: %s\n", me.AvatarURL)
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Drop the server-side feed cache for the current token",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		if err := c.Logout(cmd.Context()); err != nil {
			return err
		}
		printSuccess("Session dropped")
		printInfo("unset CODECONNECTS_TOKEN to forget the token locally")
		return nil
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerAvatar, "avatar", "", "Profile picture URL")
}
