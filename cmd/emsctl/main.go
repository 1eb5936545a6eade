// emsctl is a scriptable command-line client for the goems Event
// Management Server, exercising internal/client's request/response
// round trips one subcommand at a time.
package main

import "github.com/dantte-lp/goems/cmd/emsctl/commands"

func main() {
	commands.Execute()
}
