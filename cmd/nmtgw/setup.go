package main

import (
	"fmt"
	"os"

	"github.com/gonmt/nmtgw/internal/config"
	"github.com/gonmt/nmtgw/internal/daemon"
)

func cmdStart(args []string) {
	foreground := false
	for _, a := range args {
		if a == "--foreground" || a == "-f" {
			foreground = true
		}
	}

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := daemon.Run(cfg, foreground); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func cmdStop() {
	if err := daemon.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "error stopping daemon: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("nmtgw stopped")
}

func cmdStatus() {
	if err := daemon.Status(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func cmdSetup(args []string) {
	nonInteractive := false
	for _, a := range args {
		if a == "--non-interactive" {
			nonInteractive = true
		}
	}

	if nonInteractive {
		cmdInitConfig()
		fmt.Println("Setup complete. Run 'nmtgw start' to begin.")
		return
	}

	fmt.Println("nmtgw Setup Wizard")
	fmt.Println("==================")
	fmt.Println()

	cmdInitConfig()

	fmt.Println("\nIf you need access to gated model repos, run: nmtgw token set")
	fmt.Println()
	fmt.Println("Setup complete. Run 'nmtgw start' to begin.")
}

func cmdInitConfig() {
	if err := config.InitConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "error generating config: %v\n", err)
		os.Exit(1)
	}
}

func cmdInstallService() {
	if err := daemon.InstallService(); err != nil {
		fmt.Fprintf(os.Stderr, "error installing service: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Service installed successfully")
}

func cmdUninstallService() {
	if err := daemon.UninstallService(); err != nil {
		fmt.Fprintf(os.Stderr, "error uninstalling service: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Service uninstalled successfully")
}

func cmdConfigExport(args []string) {
	path := "nmtgw-export.toml"
	if len(args) > 0 {
		path = args[0]
	}
	config.Load("")
	if err := config.ExportConfig(path); err != nil {
		fmt.Fprintf(os.Stderr, "error exporting config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Config exported to %s\n", path)
}

func cmdConfigImport(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: nmtgw config-import <file>")
		os.Exit(1)
	}
	if err := config.ImportConfig(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "error importing config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Config imported from %s\n", args[0])
}
