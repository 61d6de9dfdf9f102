package main

import (
	"os"

	"github.com/phambaophuc/image-optimizer/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
