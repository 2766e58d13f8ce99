// Command kdlab is a toolbox for the KDLAB protocol. It decodes packets
// captured from the game client into JSON, encodes JSON back into packets,
// checks game preset files, and races bot players against a running server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/Fenex/samogonki-srv/game/config"
	"github.com/Fenex/samogonki-srv/game/engine"
	"github.com/Fenex/samogonki-srv/game/kdlab"
)

const Version = "1.0.0"

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("Error loading .env file: %v", err)
	}

	if err := newApp(os.Stdin, os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "kdlab:", err)
		os.Exit(1)
	}
}

func newApp(stdin io.Reader, stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "kdlab",
		Usage:   "KDLAB packet and preset tools",
		Version: Version,
		Reader:  stdin,
		Writer:  stdout,
		Commands: []*cli.Command{
			{
				Name:      "decode",
				Usage:     "Decode a packet into JSON",
				ArgsUsage: "[packet|-]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "compact", Usage: "print JSON on one line"},
				},
				Action: decodeAction,
			},
			{
				Name:      "encode",
				Usage:     "Encode JSON into a packet",
				ArgsUsage: "[file|-]",
				Action:    encodeAction,
			},
			playCommand(),
			{
				Name:   "worlds",
				Usage:  "List world ids",
				Action: worldsAction,
			},
			{
				Name:  "presets",
				Usage: "Inspect game presets",
				Commands: []*cli.Command{
					{
						Name:      "validate",
						Usage:     "Validate preset files or directories",
						ArgsUsage: "path...",
						Action:    validatePresetsAction,
					},
					{
						Name:  "list",
						Usage: "List the presets of a directory",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:    "dir",
								Aliases: []string{"d"},
								Value:   "configs",
								Usage:   "preset directory",
								Sources: cli.EnvVars("CONFIG_DIR"),
							},
						},
						Action: listPresetsAction,
					},
				},
			},
		},
	}
}

// input returns the first argument, or stdin when it is absent or "-".
func input(cmd *cli.Command) (string, error) {
	arg := cmd.Args().First()
	if arg != "" && arg != "-" {
		return arg, nil
	}
	data, err := io.ReadAll(cmd.Root().Reader)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func decodeAction(ctx context.Context, cmd *cli.Command) error {
	raw, err := input(cmd)
	if err != nil {
		return err
	}

	p, ok := kdlab.Decode(raw)
	if !ok {
		return fmt.Errorf("malformed packet")
	}

	enc := json.NewEncoder(cmd.Root().Writer)
	if !cmd.Bool("compact") {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(p)
}

func encodeAction(ctx context.Context, cmd *cli.Command) error {
	var data []byte
	var err error
	if path := cmd.Args().First(); path != "" && path != "-" {
		data, err = os.ReadFile(path)
	} else {
		data, err = io.ReadAll(cmd.Root().Reader)
	}
	if err != nil {
		return err
	}

	var p kdlab.Packet
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("invalid packet JSON: %w", err)
	}
	if !p.Type.Valid() {
		return fmt.Errorf("invalid packet type %d", p.Type)
	}

	_, err = fmt.Fprintln(cmd.Root().Writer, kdlab.Encode(&p))
	return err
}

func worldsAction(ctx context.Context, cmd *cli.Command) error {
	w := tabwriter.NewWriter(cmd.Root().Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWORLD")
	for _, world := range engine.Worlds() {
		fmt.Fprintf(w, "%d\t%s\n", uint8(world), world)
	}
	return w.Flush()
}

func validatePresetsAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() == 0 {
		return fmt.Errorf("no preset files given")
	}

	var files []string
	for _, arg := range cmd.Args().Slice() {
		info, err := os.Stat(arg)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.json"))
		if err != nil {
			return err
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}

	out := cmd.Root().Writer
	failed := 0
	for _, file := range files {
		preset, err := engine.LoadPreset(file)
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s: %v\n", file, err)
			continue
		}
		fmt.Fprintf(out, "ok   %s (%s)\n", file, preset.Name)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d presets invalid", failed, len(files))
	}
	return nil
}

func listPresetsAction(ctx context.Context, cmd *cli.Command) error {
	manager, err := config.NewManager(cmd.String("dir"))
	if err != nil {
		return err
	}
	presets, err := manager.ListPresets()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.Root().Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tLOCATION\tPLAYERS\tEXPRESS")
	for _, p := range presets {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\n", p.PresetID, p.Name, p.Location, p.PlayersCnt, p.IsExpress)
	}
	return w.Flush()
}
