package main

import (
	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/cmd"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/logging"
)

func main() {
	logging.Init()
	cmd.Execute()
}
