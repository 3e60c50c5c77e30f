package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

const (
	ModeChat      = "chat"
	ModeLocations = "locations"
	ModeToken     = "token"
)

// isKnownMode checks if the provided mode name is known.
func isKnownMode(s string) (string, bool) {
	switch s {
	case ModeChat, "c":
		return ModeChat, true
	case ModeLocations, "loc", "l":
		return ModeLocations, true
	case ModeToken, "t":
		return ModeToken, true
	default:
		return "", false
	}
}

// ParseMode supports:
//
//	--mode=<value>
//	<value> (subcommand shorthand), e.g., `chat --ride=77`
func ParseMode(args []string) (string, []string, error) {
	var mode string
	var out []string

	for i := range args {
		arg := args[i]
		if after, ok := strings.CutPrefix(arg, "--mode="); ok {
			mode = after
			continue
		}

		if mode == "" {
			if m, ok := isKnownMode(arg); ok {
				mode = m
				continue
			}
		}
		out = append(out, arg)
	}

	if mode == "" {
		return "", out, errors.New("no mode specified: use --mode=<mode>")
	}

	if m, ok := isKnownMode(mode); ok {
		mode = m
	}

	return mode, out, nil
}

// PrintUsage prints the usage information with examples.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, "\033[36m") // cyan

	fmt.Fprintln(w, `Usage:
  ./ride-hail-mobile --mode=<mode> [flags]

Modes:
  chat         Interactive ride conversation on the terminal
  locations    Stream deduplicated location pings for a ride or delivery
  token        Mint a dev identity token (HS256)

Examples:
  ./ride-hail-mobile --mode=chat --ride=77
  ./ride-hail-mobile --mode=locations --ride=77
  ./ride-hail-mobile --mode=token --user-id=550e8400-... --role=PASSENGER`)

	fmt.Fprint(w, "\033[0m") // reset
}

// AttachUsage wires a concise per-mode usage to a FlagSet.
func AttachUsage(fs *flag.FlagSet, mode string) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ./ride-hail-mobile --mode=%s [flags]\n", mode)
		fs.PrintDefaults()
	}
}
