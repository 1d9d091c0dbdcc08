package main

import (
	"github.com/xrmultiplayer/sessionflow/internal/cli"
)

func main() {
	cli.Execute()
}
