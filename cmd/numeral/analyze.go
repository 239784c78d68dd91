package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/urfave/cli/v3"

	"github.com/starford/numeral/internal"
	"github.com/starford/numeral/internal/chart"
	"github.com/starford/numeral/internal/harmony"
	pkgconfig "github.com/starford/numeral/pkg/config"
)

var (
	localKeyColor = color.New(color.FgYellow)
	unknownColor  = color.New(color.FgRed, color.Bold)
	chordColor    = color.New(color.FgCyan)
)

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Label chords with Roman numerals",
		ArgsUsage: "[chord ...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "key", Aliases: []string{"k"}, Usage: "Tonic such as C, Bb or F# (default: chart key or config)"},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Analyze a chart file instead of arguments"},
			&cli.BoolFlag{Name: "functions", Usage: "Functional labels such as V7/ii", Value: true},
			&cli.BoolFlag{Name: "original", Usage: "Prefix labels with their chord"},
			&cli.BoolFlag{Name: "top", Usage: "Show the runner-up function in parentheses"},
			&cli.BoolFlag{Name: "explain", Usage: "Print every candidate with its weight"},
			&cli.IntFlag{Name: "bars", Usage: "Bars per line for chart files (default: config)"},
			&cli.BoolFlag{Name: "no-color", Usage: "Disable colored output"},
			&cli.BoolFlag{Name: "debug", Usage: "Log candidate tables to stderr"},
		},
		Action: analyze,
	}
}

func analyze(_ context.Context, cmd *cli.Command) error {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if cmd.Bool("no-color") {
		color.NoColor = true
	}

	level := cfg.App.LogLevel
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	d := cfg.Analysis.Display
	if cmd.IsSet("functions") {
		d.ShowFunctions = cmd.Bool("functions")
	}
	if cmd.IsSet("original") {
		d.ShowOriginalChords = cmd.Bool("original")
	}
	if cmd.IsSet("top") {
		d.AllHarmonicFunctions = cmd.Bool("top")
	}
	a := internal.NewAnalyzer(cfg, logger)

	out := cmd.Root().Writer
	if out == nil {
		out = os.Stdout
	}

	var (
		chords []chart.ChordInBar
		key    = cmd.String("key")
	)
	if path := cmd.String("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read chart: %w", err)
		}
		c, err := chart.Parse(data)
		if err != nil {
			return err
		}
		chords = c.Chords
		if key == "" {
			key = c.Key
		}
	} else {
		for i, sym := range cmd.Args().Slice() {
			chords = append(chords, chart.ChordInBar{Symbol: sym, Bar: i})
		}
	}
	if len(chords) == 0 {
		return errors.New("no chords given")
	}
	if key == "" {
		key = cfg.Analysis.DefaultKey
	}

	symbols := make([]string, len(chords))
	for i, c := range chords {
		symbols[i] = c.Symbol
	}

	if cmd.Bool("explain") {
		reports, err := a.ExplainWith(symbols, key, d)
		if err != nil {
			return err
		}
		printExplain(out, reports)
		return nil
	}

	labels, err := a.AnalyzeWith(symbols, key, d)
	if err != nil {
		return err
	}

	if cmd.String("file") == "" {
		colored := make([]string, len(labels))
		for i, l := range labels {
			colored[i] = paint(l)
		}
		_, err = fmt.Fprintln(out, strings.Join(colored, " "))
		return err
	}

	perLine := int(cmd.Int("bars"))
	if perLine <= 0 {
		perLine = cfg.Analysis.BarsPerLine
	}
	bars, err := chart.PrintBars(chords, labels, perLine)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s:\n%s", key, paintBars(bars))
	return err
}

// paint highlights labels outside the tonic. Escape codes are added after
// layout so they never count towards a cell width.
func paint(label string) string {
	switch {
	case label == harmony.Unknown || strings.HasSuffix(label, ":"+harmony.Unknown):
		return unknownColor.Sprint(label)
	case strings.Contains(label, "/"):
		return localKeyColor.Sprint(label)
	}
	return label
}

func paintBars(bars string) string {
	if color.NoColor {
		return bars
	}
	words := strings.Split(bars, " ")
	for i, w := range words {
		if w != "" && !strings.HasPrefix(w, "|") {
			words[i] = paint(w)
		}
	}
	return strings.Join(words, " ")
}

func printExplain(out io.Writer, reports []harmony.SlotReport) {
	for _, r := range reports {
		fmt.Fprintf(out, "%s %s\n", chordColor.Sprint(r.Symbol), paint(r.Label))
		for _, c := range r.Candidates {
			fmt.Fprintf(out, "  %s %8.3f\n", runewidth.FillRight(c.Label, 12), c.Weight)
		}
	}
}
