package main

import (
	"os"

	"github.com/myezzsolution/MyEzz-Restaurants/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
