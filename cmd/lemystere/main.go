package main

import (
	"fmt"
	"os"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "seed":
		err = runSeed(os.Args[2:])
	case "useradd":
		err = runUserAdd(os.Args[2:])
	case "admin":
		err = runAdmin(os.Args[2:], os.Stdout)
	case "version":
		fmt.Printf("lemystere %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`lemystere - Le Mystere community events and member blog

Usage:
  lemystere <command> [arguments]

Commands:
  serve                     Run the API server
  seed                      Insert the example events and welcome post
  useradd -email E [-admin] Create or update a member account
  admin <area> <action>     Manage content on a running server
  version                   Print the lemystere version
  help                      Show this help message

Admin:
  admin events list
  admin events create -title T -start 2026-01-24T20:00 [-end ...] [-location ...]
  admin events delete <id>
  admin posts list
  admin posts create -title T [-slug S] -content-file post.md [-draft]
  admin posts edit <id> [-title T] [-slug S] [-content-file F] [-publish=false]
  admin posts delete <slug>
  admin posts preview <file.md>
  admin upload <image>

Configuration is read from the environment (and .env outside production):
  SESSION_SECRET, DATABASE_PATH, UPLOAD_DIR, ADDR, TZ, ADMIN_EMAIL,
  ADMIN_PASSWORD, SITE_URL, LOG_LEVEL, GO_ENV. The admin commands use
  LEMYSTERE_SERVER, LEMYSTERE_EMAIL and LEMYSTERE_PASSWORD.`)
}
