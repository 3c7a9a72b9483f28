package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var pauseCmd = &cobra.Command{
	Use:   "pause [id]",
	Short: "pause a downloading task",
	Args:  cobra.ExactArgs(1),
	Run:   runControl(http.MethodPost, "/pause"),
}

var resumeCmd = &cobra.Command{
	Use:   "resume [id]",
	Short: "resume a paused task",
	Args:  cobra.ExactArgs(1),
	Run:   runControl(http.MethodPost, "/resume"),
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "cancel a download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := args[0]
		if err := newAPIClient().do(http.MethodDelete, "/v1/downloads/"+id, nil, nil); err != nil {
			fmt.Println("error:", err)
			return
		}
		fmt.Println("cancelled:", id)
	},
}

// runControl builds a Run func for the pause/resume verbs, which share the
// same request shape: POST /v1/downloads/{id}<suffix>.
func runControl(method, suffix string) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		id := args[0]
		if err := newAPIClient().do(method, "/v1/downloads/"+id+suffix, nil, nil); err != nil {
			fmt.Println("error:", err)
			return
		}
		fmt.Println("ok:", id)
	}
}
