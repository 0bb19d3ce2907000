package main

import (
	"github.com/habiliai/supportagent/cmd/supportagent/cmd"
)

func main() {
	cmd.Execute()
}
