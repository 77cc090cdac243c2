// Command muxctl is the operator CLI for sonos-mux: validate a
// configuration file, print a sample starter configuration, push
// configuration to a running daemon, or print version info.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	flag "github.com/spf13/pflag"

	"github.com/ivugurura/sonos-mux/config"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		runValidate(os.Args[2:])
	case "scan":
		runScan(os.Args[2:])
	case "apply":
		runApply(os.Args[2:])
	case "reload":
		runReload(os.Args[2:])
	case "version":
		fmt.Printf("sonos-mux CLI v%s\n", config.Version)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: muxctl <validate|scan|apply|reload|version> [flags]")
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: muxctl validate <config-file>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	fmt.Printf("Validating configuration file: %s\n", path)
	if _, err := config.Load(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Configuration is valid!")
}

// runScan prints a starter configuration to stdout. There is no SSDP
// scan wired up yet; this produces the same shape of sample config a
// real scan would hand back, ready to redirect into a file and edit.
func runScan(args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	out := fs.StringP("output", "o", "", "write the scanned config to this file instead of stdout")
	fs.Parse(args)

	fmt.Fprintln(os.Stderr, "Scanning for Sonos devices...")
	cfg := sampleConfig()

	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *out == "" {
		fmt.Print(sb.String())
		return
	}
	if err := os.WriteFile(*out, []byte(sb.String()), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote sample configuration to %s\n", *out)
}

func sampleConfig() *config.Config {
	cfg := &config.Config{
		Inputs: []config.Input{
			{ID: "silence", Kind: config.InputSilence},
			{ID: "roon_main", Kind: config.InputAlsa, Device: "hw:Loopback,1"},
			{ID: "web_radio", Kind: config.InputHTTP, URL: "http://example.com/stream"},
			{ID: "alert_sound", Kind: config.InputFile, Path: "/path/to/alert.mp3"},
		},
	}

	rooms := []string{"Living Room", "Kitchen", "Bedroom", "Office"}
	for _, room := range rooms {
		id := strings.ToLower(strings.ReplaceAll(room, " ", "_"))
		cfg.Outputs = append(cfg.Outputs, config.Output{ID: id, Kind: config.OutputSonos, Room: room, BufferSec: 5})
		cfg.Routes = append(cfg.Routes, config.Route{Input: "silence", Outputs: []string{id}})
	}

	allOutputs := make([]string, len(cfg.Outputs))
	for i, o := range cfg.Outputs {
		allOutputs[i] = o.ID
	}
	cfg.Routes = append(cfg.Routes, config.Route{Input: "roon_main", Outputs: allOutputs})

	return cfg
}

func runApply(args []string) {
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	addr := fs.StringP("admin-addr", "a", "unix:/tmp/muxd-admin.sock", "admin socket to send to")
	fs.Parse(args)
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: muxctl apply <config-file> [--admin-addr addr]")
		os.Exit(1)
	}
	content, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	resp, err := sendCommand(*addr, "apply", string(content))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(resp)
}

func runReload(args []string) {
	fs := flag.NewFlagSet("reload", flag.ExitOnError)
	addr := fs.StringP("admin-addr", "a", "unix:/tmp/muxd-admin.sock", "admin socket to send to")
	fs.Parse(args)
	path := ""
	if fs.NArg() >= 1 {
		path = fs.Arg(0)
	}
	cmd := "reload"
	if path != "" {
		cmd = "reload " + path
	}
	resp, err := sendCommand(*addr, cmd, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(resp)
}
