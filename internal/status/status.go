// Package status prints the console lines a scan produces while it runs:
// "[+]" progress lines on stdout and "[!] ERROR:" lines on stderr.
package status

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

var (
	mu     sync.Mutex
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
	quiet  bool

	green = color.New(color.FgGreen)
	red   = color.New(color.FgRed, color.Bold)
	cyan  = color.New(color.FgCyan, color.Bold)
)

// SetOutput redirects progress and error lines. Nil keeps the current writer.
func SetOutput(out, errOut io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if out != nil {
		stdout = out
	}
	if errOut != nil {
		stderr = errOut
	}
}

// SetQuiet suppresses progress lines; errors are still printed.
func SetQuiet(q bool) {
	mu.Lock()
	quiet = q
	mu.Unlock()
}

// Infof prints a "[+]" progress line.
func Infof(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if quiet {
		return
	}
	green.Fprint(stdout, "[+] ")
	fmt.Fprintf(stdout, format+"\n", args...)
}

// Errorf prints a "[!] ERROR:" line.
func Errorf(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	red.Fprint(stderr, "[!] ERROR: ")
	fmt.Fprintf(stderr, format+"\n", args...)
}

// Stage prints a stage banner such as "[Stage 2/5] Port Scan".
func Stage(n, total int, name string) {
	mu.Lock()
	defer mu.Unlock()
	if quiet {
		return
	}
	cyan.Fprintf(stdout, "\n[Stage %d/%d] %s\n", n, total, name)
	fmt.Fprintln(stdout, "─────────────────────────────────────────────────")
}

// Block writes a multi-line block, such as a summary table, to the progress
// writer without interleaving other lines. It is skipped in quiet mode.
func Block(fn func(w io.Writer)) {
	mu.Lock()
	defer mu.Unlock()
	if quiet {
		return
	}
	fn(stdout)
}
