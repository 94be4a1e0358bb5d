// version.go implements the 'rvatomic version' command.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/kolkov/rvatomic"
)

// versionCommand implements the 'rvatomic version' command.
//
// Example:
//
//	rvatomic version
//	rvatomic version --require v0.1.0
func versionCommand(args []string) error {
	fs := pflag.NewFlagSet("version", pflag.ContinueOnError)
	require := fs.String("require", "", "fail unless the library is at least this version")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return runVersion(os.Stdout, *require)
}

// runVersion prints version information and checks the requirement, if any.
func runVersion(w io.Writer, require string) error {
	info := rvatomic.GetInfo()
	fmt.Fprintf(w, "rvatomic version %s\n", info.Version)
	fmt.Fprintf(w, "isa: %s\n", info.ISA)
	fmt.Fprintf(w, "ops: %s\n", strings.Join(info.Ops, " "))

	if require == "" {
		return nil
	}
	ok, err := rvatomic.Compatible(require)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("rvatomic %s does not satisfy %s", info.Version, require)
	}
	return nil
}
