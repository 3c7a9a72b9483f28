package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "queue a new download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path, _ := cmd.Flags().GetString("path")
		format, _ := cmd.Flags().GetString("format")
		cookies, _ := cmd.Flags().GetString("cookies")

		req := map[string]string{
			"url":         args[0],
			"path":        path,
			"format_spec": format,
			"cookies":     cookies,
		}
		var resp struct {
			TaskID string `json:"task_id"`
		}
		if err := newAPIClient().do(http.MethodPost, "/v1/downloads", req, &resp); err != nil {
			fmt.Println("error:", err)
			return
		}
		fmt.Println("queued task:", resp.TaskID)
	},
}

func init() {
	addCmd.Flags().StringP("path", "p", "", "destination directory (defaults to the daemon's configured download_dir)")
	addCmd.Flags().StringP("format", "f", "", "format selector, or \"audio\" for audio-only")
	addCmd.Flags().String("cookies", "", "cookie file contents to pass through to the downloader")
}
