package cmd

// AppName is the name of the CLI application.
const AppName = "payinit"

// version is set at build time using -ldflags.
var version = "dev"

// Version returns the version of the application.
func Version() string {
	return version
}
