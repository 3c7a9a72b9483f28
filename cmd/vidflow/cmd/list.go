package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

type downloadView struct {
	ID           string  `json:"ID"`
	URL          string  `json:"URL"`
	Title        string  `json:"Title"`
	Status       string  `json:"Status"`
	Progress     float64 `json:"Progress"`
	ErrorMessage string  `json:"ErrorMessage"`
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "list downloads",
	Run: func(cmd *cobra.Command, args []string) {
		includeHistory, _ := cmd.Flags().GetBool("history")

		path := "/v1/downloads"
		if includeHistory {
			path += "?include_history=true"
		}

		var views []downloadView
		if err := newAPIClient().do(http.MethodGet, path, nil, &views); err != nil {
			fmt.Println("error:", err)
			return
		}
		for _, v := range views {
			line := fmt.Sprintf("%s  %-12s %5.1f%%  %s", v.ID, v.Status, v.Progress, v.Title)
			if v.ErrorMessage != "" {
				line += "  (" + v.ErrorMessage + ")"
			}
			fmt.Println(line)
		}
	},
}

func init() {
	listCmd.Flags().Bool("history", false, "also include completed/failed downloads from history")
}
