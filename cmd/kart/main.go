package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

// BuildDate can be set at build time via ldflags.
var (
	CurrentVersion = "0.1.0"
	BuildDate      = "unknown"
)

const appName = "kart"

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s [-config dir] <command> [args]

Commands:
  run <script.json>   run a scripted session headless
  export <runID>      write a stored ghost run to an export file
  upload <file>       upload an exported ghost file to the leaderboard
  records             print the best time per course
  version             print the version
`, appName)
}

func main() {
	configDir := flag.String("config", ".", "directory holding "+appName+".cfg.json")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	if strings.ToLower(args[0]) == "version" {
		fmt.Println(CurrentVersion, BuildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	err = a.dispatch(ctx, args)
	a.shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	switch strings.ToLower(args[0]) {
	case "run":
		if len(args) < 2 {
			return fmt.Errorf("run: no script file provided")
		}
		return a.runScript(ctx, args[1])
	case "export":
		if len(args) < 2 {
			return fmt.Errorf("export: no run ID provided")
		}
		return a.exportRuns(args[1:])
	case "upload":
		if len(args) < 2 {
			return fmt.Errorf("upload: no file provided")
		}
		return a.uploadFiles(args[1:])
	case "records":
		return a.printRecords()
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}
