package main

import (
	"github.com/nrfnet/nrfnet/cmd/nrfnet-cli/commands"
)

func main() {
	commands.Execute()
}
