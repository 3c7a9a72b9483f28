package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var metadataCmd = &cobra.Command{
	Use:   "metadata [url]",
	Short: "fetch title/format/duration metadata without downloading",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		req := map[string]string{"url": args[0]}
		var md map[string]any
		if err := newAPIClient().do(http.MethodPost, "/v1/metadata", req, &md); err != nil {
			fmt.Println("error:", err)
			return
		}
		fmt.Printf("title:    %v\n", md["title"])
		fmt.Printf("duration: %vs\n", md["duration"])
		fmt.Printf("playlist: %v\n", md["is_playlist"])
	},
}
