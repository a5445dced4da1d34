package version

// Version is the current version of the coderoom CLI.
// This value can be overridden at build time using:
//
//	go build -ldflags="-X 'github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/version.Version=v1.0.0'"
var Version = "dev"
