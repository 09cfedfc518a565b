package main

import (
	"os"

	"github.com/paulmbui20/asfa-deploy/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
