package main

import (
	"os"

	"github.com/chrisnesbitt427/steplotto/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
