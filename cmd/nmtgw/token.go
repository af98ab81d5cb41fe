package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/gonmt/nmtgw/internal/vault"
	"golang.org/x/term"
)

func cmdToken(args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: nmtgw token <show|set|delete>")
		os.Exit(1)
	}

	v := vault.New()

	switch args[0] {
	case "show":
		token, err := v.GetHFToken()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error reading token: %v\n", err)
			os.Exit(1)
		}
		if token == "" {
			fmt.Println("No Hugging Face Hub token configured")
			return
		}
		fmt.Println("Hugging Face Hub token: ****")

	case "set":
		fmt.Print("Enter Hugging Face Hub token: ")
		token, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error reading token: %v\n", err)
			os.Exit(1)
		}
		if err := v.SetHFToken(string(token)); err != nil {
			fmt.Fprintf(os.Stderr, "error storing token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Token stored successfully")

	case "delete":
		if err := v.DeleteHFToken(); err != nil {
			fmt.Fprintf(os.Stderr, "error deleting token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Token deleted")

	default:
		fmt.Fprintf(os.Stderr, "unknown token command: %s\n", args[0])
		os.Exit(1)
	}
}
