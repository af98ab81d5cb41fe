package main

import (
	"fmt"
	"os"

	"github.com/gonmt/nmtgw/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "start":
		cmdStart(os.Args[2:])
	case "stop":
		cmdStop()
	case "status":
		cmdStatus()
	case "setup":
		cmdSetup(os.Args[2:])
	case "token":
		cmdToken(os.Args[2:])
	case "init-config":
		cmdInitConfig()
	case "install-service":
		cmdInstallService()
	case "uninstall-service":
		cmdUninstallService()
	case "config-export":
		cmdConfigExport(os.Args[2:])
	case "config-import":
		cmdConfigImport(os.Args[2:])
	case "version":
		fmt.Println(version.String())
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: nmtgw <command> [options]

Commands:
  start              Start the translation gateway daemon
  stop               Stop the running daemon
  status             Show daemon status
  setup              Interactive setup wizard
  token              Manage the Hugging Face Hub token (show|set|delete)
  init-config        Generate default config file
  config-export      Export current config to a TOML file
  config-import      Import config from a TOML file
  install-service    Install as a launchd user agent (macOS)
  uninstall-service  Remove the launchd user agent
  version            Print version information
  help               Show this help message

Options:
  --foreground       Run in foreground (with 'start')
  --non-interactive  Skip interactive prompts (with 'setup')`)
}
