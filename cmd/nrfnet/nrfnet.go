package main

import (
	"github.com/nrfnet/nrfnet/cmd/nrfnet/commands"
)

func main() {
	commands.Execute()
}
