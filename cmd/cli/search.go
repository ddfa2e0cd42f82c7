package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search posts or users",
}

var searchPostsCmd = &cobra.Command{
	Use:   "posts <query>",
	Short: "Search post descriptions and tags",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(false)
		if err != nil {
			return err
		}
		posts, err := c.SearchPosts(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if printJSON(posts) {
			return nil
		}
		if len(posts) == 0 {
			dimColor.Println("no matching posts")
			return nil
		}
		for i := range posts {
			printPost(&posts[i])
		}
		return nil
	},
}

var searchUsersCmd = &cobra.Command{
	Use:   "users <query>",
	Short: "Search usernames and bios",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(false)
		if err != nil {
			return err
		}
		users, err := c.SearchUsers(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if printJSON(users) {
			return nil
		}
		if len(users) == 0 {
			dimColor.Println("no matching users")
			return nil
		}
		for _, u := range users {
			boldColor.Printf("@%s", u.Username)
			dimColor.Printf("  %s\n", u.ID)
		}
		return nil
	},
}

func init() {
	searchCmd.AddCommand(searchPostsCmd, searchUsersCmd)
}
