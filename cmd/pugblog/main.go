// Command pugblog runs the blog web server and its management commands
package main

import (
	"os"

	"github.com/go-while/go-pugblog/internal/cli"
)

var appVersion = "-unset-"

func main() {
	cli.SetVersion(appVersion)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
