// Command agentgate runs the multi-tenant agent access gateway.
package main

import "github.com/cognefi/agentgate/cmd/agentgate/cmd"

func main() {
	cmd.Execute()
}
