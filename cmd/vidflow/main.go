// Command vidflow is the command-line client for the vidflowd download
// supervisor daemon.
package main

import "vidflow/cmd/vidflow/cmd"

func main() {
	cmd.Execute()
}
