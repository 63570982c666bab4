package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/starford/nbserde/internal"
	"github.com/starford/nbserde/internal/index"
	"github.com/starford/nbserde/internal/models"
	"github.com/starford/nbserde/internal/notebook"
	"github.com/starford/nbserde/internal/storage"
	"github.com/starford/nbserde/pkg/json"
)

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Write to `FILE` instead of stdout",
	}
}

// readInput reads the file named by the first argument, or stdin for "-"
// or no argument.
func readInput(cmd *cli.Command) ([]byte, string, error) {
	name := cmd.Args().First()
	if name == "" || name == "-" {
		data, err := io.ReadAll(os.Stdin)
		return data, "stdin", err
	}
	data, err := os.ReadFile(name)
	return data, name, err
}

func writeOutput(cmd *cli.Command, data []byte) error {
	if out := cmd.String("output"); out != "" {
		return os.WriteFile(out, data, 0o644)
	}
	_, err := os.Stdout.Write(data)
	return err
}

func offlineCodec(cmd *cli.Command) (*notebook.Codec, error) {
	cfg, err := loadOptionalConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := internal.NewLogger(cfg.App.LogLevel, os.Stderr)
	return internal.NewCodec(cfg.Notebook, logger), nil
}

func convertCommand() *cli.Command {
	return &cli.Command{
		Name:  "convert",
		Usage: "Convert between ipynb bytes and the document model",
		Commands: []*cli.Command{
			{
				Name:      "decode",
				Usage:     "Print the document model of a notebook as JSON",
				ArgsUsage: "[notebook.ipynb]",
				Flags:     []cli.Flag{outputFlag()},
				Action:    decodeAction,
			},
			{
				Name:      "encode",
				Usage:     "Encode a document model JSON file as ipynb",
				ArgsUsage: "[model.json]",
				Flags:     []cli.Flag{outputFlag()},
				Action:    encodeAction,
			},
		},
	}
}

func decodeAction(ctx context.Context, cmd *cli.Command) error {
	codec, err := offlineCodec(cmd)
	if err != nil {
		return err
	}
	data, name, err := readInput(cmd)
	if err != nil {
		return err
	}
	nb, err := codec.Decode(ctx, data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	out, err := json.MarshalIndent(nb, "", "  ")
	if err != nil {
		return err
	}
	return writeOutput(cmd, append(out, '\n'))
}

func encodeAction(ctx context.Context, cmd *cli.Command) error {
	codec, err := offlineCodec(cmd)
	if err != nil {
		return err
	}
	data, name, err := readInput(cmd)
	if err != nil {
		return err
	}
	var nb models.Notebook
	if err := json.DecodeNumbers(data, &nb); err != nil {
		return fmt.Errorf("read model %s: %w", name, err)
	}
	out, err := codec.Encode(ctx, &nb)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return writeOutput(cmd, out)
}

func normalizeCommand() *cli.Command {
	return &cli.Command{
		Name:      "normalize",
		Usage:     "Rewrite notebooks in their canonical stored form",
		ArgsUsage: "notebook.ipynb...",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "check",
				Usage: "List notebooks that would change and fail instead of rewriting",
			},
		},
		Action: normalizeAction,
	}
}

func normalizeAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return cli.Exit("normalize: no notebooks given", 2)
	}
	codec, err := offlineCodec(cmd)
	if err != nil {
		return err
	}

	changed := 0
	for _, name := range cmd.Args().Slice() {
		dirty, err := normalizeFile(ctx, codec, name, cmd.Bool("check"))
		if err != nil {
			return fmt.Errorf("normalize %s: %w", name, err)
		}
		if dirty {
			changed++
			fmt.Fprintln(os.Stdout, name)
		}
	}
	if cmd.Bool("check") && changed > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

// normalizeFile reports whether name differs from its canonical form and
// rewrites it atomically unless checkOnly is set.
func normalizeFile(ctx context.Context, codec *notebook.Codec, name string, checkOnly bool) (bool, error) {
	store, err := storage.NewFS(filepath.Dir(name))
	if err != nil {
		return false, err
	}
	base := filepath.Base(name)
	data, err := store.Read(base)
	if err != nil {
		return false, err
	}
	nb, err := codec.Decode(ctx, data)
	if err != nil {
		return false, err
	}
	out, err := codec.Encode(ctx, nb)
	if err != nil {
		return false, err
	}
	if bytes.Equal(data, out) {
		return false, nil
	}
	if checkOnly {
		return true, nil
	}
	return true, store.Write(base, out)
}

// inspectSummary is the printed form of a notebook summary.
type inspectSummary struct {
	Path          string `json:"path"`
	Language      string `json:"language"`
	Kernel        string `json:"kernel,omitempty"`
	NBFormat      int    `json:"nbformat"`
	NBFormatMinor int    `json:"nbformat_minor"`
	Cells         int    `json:"cells"`
	CodeCells     int    `json:"code_cells"`
	MarkupCells   int    `json:"markup_cells"`
	Indent        string `json:"indent"`
	Checksum      string `json:"checksum"`
	Normalized    bool   `json:"normalized"`
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Print a summary of a notebook",
		ArgsUsage: "[notebook.ipynb]",
		Action:    inspectAction,
	}
}

func inspectAction(ctx context.Context, cmd *cli.Command) error {
	codec, err := offlineCodec(cmd)
	if err != nil {
		return err
	}
	data, name, err := readInput(cmd)
	if err != nil {
		return err
	}
	nb, err := codec.Decode(ctx, data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	canonical, err := codec.Encode(ctx, nb)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	row, _ := index.Summarize(name, data, nb)
	sv := codec.SchemaVersion(nb.Metadata)
	indent, _ := nb.Metadata.IndentUnit()
	summary := inspectSummary{
		Path:          row.Path,
		Language:      row.Language,
		Kernel:        row.Kernel,
		NBFormat:      sv.Major,
		NBFormatMinor: sv.Minor,
		Cells:         row.CellCount,
		CodeCells:     row.CodeCells,
		MarkupCells:   row.MarkupCells,
		Indent:        indent,
		Checksum:      row.Checksum,
		Normalized:    bytes.Equal(data, canonical),
	}
	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stdout, "%s\n", out)
	return err
}
