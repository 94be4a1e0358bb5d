// Package main implements the rvatomic CLI tool.
//
// The tool drives the emulated atomic memory subsystem from the command line:
//
//	rvatomic demo                      # Replay the reference program
//	rvatomic stress --harts 8          # Check the memory-model properties
//	rvatomic version --require v0.1.0  # Print or check the library version
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	var err error
	switch command {
	case "demo":
		err = demoCommand(os.Args[2:])
	case "stress":
		err = stressCommand(os.Args[2:])
	case "version", "--version", "-v":
		err = versionCommand(os.Args[2:])
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`rvatomic - emulated RISC-V atomic memory operations

USAGE:
    rvatomic <command> [flags]

COMMANDS:
    demo       Run the reference sequence of AMOs, CAS, spinlock and semaphore
    stress     Run concurrent property checks and print a machine report
    version    Show version information
    help       Show this help message

EXAMPLES:
    # Replay the reference program and print each step
    rvatomic demo

    # 16 harts, 5000 iterations each, every 7th store-conditional fails
    rvatomic stress --harts 16 --iters 5000 --spurious 7

    # Fail unless the library is at least v0.1.0
    rvatomic version --require v0.1.0

`)
}
