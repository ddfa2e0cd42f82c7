package main

import (
	"fmt"
	"os"

	"github.com/codeconnects/backend/internal/apiclient"
	"github.com/codeconnects/backend/internal/logger"
	"github.com/spf13/cobra"
)

var (
	authToken string
	apiURL    = "http://localhost:8787"
	output    = "text" // "text" or "json"
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "codeconnects",
	Short: "CodeConnects CLI - Read and write the developer feed",
	Long: `CodeConnects CLI provides command-line access to the CodeConnects feed.
Browse feeds, share posts, like, comment, follow people and watch live notifications.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			if err := logger.Initialize("debug", os.ExpandEnv("$HOME/.codeconnects-cli.log")); err != nil {
				return err
			}
		}
		if authToken == "" {
			authToken = os.Getenv("CODECONNECTS_TOKEN")
		}
		if output != "text" && output != "json" {
			return fmt.Errorf("invalid output format %q (want text or json)", output)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "Authentication token (defaults to CODECONNECTS_TOKEN env var)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", apiURL, "API server URL")
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Output format: text or json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log HTTP traffic")

	rootCmd.AddCommand(registerCmd, loginCmd, meCmd, logoutCmd)
	rootCmd.AddCommand(feedCmd, postsCmd, postCmd)
	rootCmd.AddCommand(createCmd, deleteCmd, likeCmd, unlikeCmd, commentsCmd, commentCmd)
	rootCmd.AddCommand(followCmd, unfollowCmd, watchCmd)
	rootCmd.AddCommand(searchCmd, messagesCmd, sendCmd)
}

// newClient returns an API client, optionally requiring a token
func newClient(requireToken bool) (*apiclient.Client, error) {
	if requireToken && authToken == "" {
		return nil, fmt.Errorf("not logged in: set CODECONNECTS_TOKEN or pass --token")
	}
	c := apiclient.New(apiURL)
	if authToken != "" {
		c.SetToken(authToken)
	}
	return c, nil
}

func main() {
	defer logger.Close()
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}
