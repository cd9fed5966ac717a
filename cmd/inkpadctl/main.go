package main

import (
	"os"

	"inkpad/api/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
