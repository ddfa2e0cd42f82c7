package main

import (
	"os"

	"github.com/codeconnects/backend/internal/apiclient"
	"github.com/spf13/cobra"
)

var (
	postContent  string
	postCodeFile string
	postMedia    string
	postTags     []string
)

var createCmd = &cobra.Command{
	Use:   "create <description>",
	Short: "Share a new post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		in := apiclient.NewPost{Description: args[0], Content: postContent, Tags: postTags}
		if postCodeFile != "" {
			b, err := os.ReadFile(postCodeFile)
			if err != nil {
				return err
			}
			code := string(b)
			in.Code = &code
		}
		if postMedia != "" {
			in.Media = &postMedia
		}

		id, err := c.CreatePost(cmd.Context(), in)
		if err != nil {
			return err
		}
		if printJSON(map[string]string{"id": id}) {
			return nil
		}
		printSuccess("Post created (%s)", id)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <post-id>",
	Short: "Delete one of your posts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		if err := c.DeletePost(cmd.Context(), args[0]); err != nil {
			return err
		}
		printSuccess("Post deleted")
		return nil
	},
}

var likeCmd = &cobra.Command{
	Use:   "like <post-id>",
	Short: "Like a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setLike(cmd, args[0], false)
	},
}

var unlikeCmd = &cobra.Command{
	Use:   "unlike <post-id>",
	Short: "Remove your like from a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setLike(cmd, args[0], true)
	},
}

// setLike toggles from the given current state
func setLike(cmd *cobra.Command, postID string, currentLiked bool) error {
	c, err := newClient(true)
	if err != nil {
		return err
	}
	liked, err := c.ToggleLike(cmd.Context(), postID, currentLiked)
	if err != nil {
		return err
	}
	if printJSON(map[string]interface{}{"post_id": postID, "liked": liked}) {
		return nil
	}
	if liked {
		printSuccess("Liked %s", postID)
	} else {
		printSuccess("Unliked %s", postID)
	}
	return nil
}

var commentsCmd = &cobra.Command{
	Use:   "comments <post-id>",
	Short: "List comments on a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _ := newClient(false)
		comments, err := c.Comments(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printComments(comments)
		return nil
	},
}

var commentCmd = &cobra.Command{
	Use:   "comment <post-id> <text>",
	Short: "Comment on a post",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		comment, err := c.AddComment(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if printJSON(comment) {
			return nil
		}
		printSuccess("Comment added (%s)", comment.ID)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&postContent, "content", "", "Longer post body")
	createCmd.Flags().StringVar(&postCodeFile, "code-file", "", "Attach a code snippet read from this file")
	createCmd.Flags().StringVar(&postMedia, "media", "", "Media URL")
	createCmd.Flags().StringSliceVar(&postTags, "tag", nil, "Tag (repeatable)")
}
