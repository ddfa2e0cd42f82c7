package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/codeconnects/backend/internal/apiclient"
	"github.com/codeconnects/backend/internal/feed"
	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	infoColor    = color.New(color.FgCyan)
	warnColor    = color.New(color.FgYellow)
	dimColor     = color.New(color.Faint)
	boldColor    = color.New(color.Bold)
)

// printJSON writes v indented to stdout. It returns true when the json format is selected.
func printJSON(v interface{}) bool {
	if output != "json" {
		return false
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		printError(err)
		return true
	}
	fmt.Println(string(b))
	return true
}

func printSuccess(msg string, args ...interface{}) {
	successColor.Printf("✓ "+msg+"\n", args...)
}

func printInfo(msg string, args ...interface{}) {
	infoColor.Printf(msg+"\n", args...)
}

func printWarning(msg string, args ...interface{}) {
	warnColor.Printf("Warning: "+msg+"\n", args...)
}

func printError(err error) {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Field != "" {
		errorColor.Fprintf(os.Stderr, "Error: %s (%s)\n", apiErr.Message, apiErr.Field)
		return
	}
	errorColor.Fprintf(os.Stderr, "Error: %v\n", err)
}

func printPage(page *apiclient.Page) {
	if printJSON(page) {
		return
	}
	header := page.View
	if page.FromCache {
		header += " (cached)"
	}
	boldColor.Println(header)
	if page.Stale {
		printWarning("showing cached posts, the last refresh failed")
	}
	if len(page.Posts) == 0 {
		dimColor.Println("  no posts yet")
		return
	}
	for i := range page.Posts {
		printPost(&page.Posts[i])
	}
}

func printPost(p *feed.PostView) {
	like := "♡"
	if p.IsLikedByViewer {
		like = "♥"
	}
	fmt.Println()
	boldColor.Printf("@%s", p.Author.Username)
	dimColor.Printf("  %s  %s\n", p.ID, ago(p.CreatedAt))
	fmt.Printf("  %s\n", p.Description)
	if p.Content != "" {
		fmt.Printf("  %s\n", p.Content)
	}
	if p.Code != nil && *p.Code != "" {
		for _, line := range strings.Split(*p.Code, "\n") {
			infoColor.Printf("    %s\n", line)
		}
	}
	if len(p.Tags) > 0 {
		infoColor.Printf("  #%s\n", strings.Join(p.Tags, " #"))
	}
	dimColor.Printf("  %s %d   💬 %d\n", like, p.LikesCount, p.CommentsCount)
}

func printComments(comments []feed.CommentView) {
	if printJSON(comments) {
		return
	}
	if len(comments) == 0 {
		dimColor.Println("no comments yet")
		return
	}
	for _, c := range comments {
		boldColor.Printf("@%s", c.Author.Username)
		dimColor.Printf("  %s\n", ago(c.CreatedAt))
		fmt.Printf("  %s\n", c.Content)
	}
}

func ago(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 2, 2006")
	}
}
