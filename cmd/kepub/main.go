// Command kepub is the CLI tool for KepubForge.
// It converts EPUB books to Kobo's kepub flavor, annotates standalone
// XHTML documents with sentence-level spans, and carries a few small
// production helpers (style linting, roman numeral conversion).
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	"github.com/FocuswithJustin/KepubForge/core/annotate"
	"github.com/FocuswithJustin/KepubForge/core/epub"
	"github.com/FocuswithJustin/KepubForge/core/xhtml"
	"github.com/FocuswithJustin/KepubForge/internal/archive"
	"github.com/FocuswithJustin/KepubForge/internal/fileutil"
	"github.com/FocuswithJustin/KepubForge/internal/lint"
	"github.com/FocuswithJustin/KepubForge/internal/logging"
	"github.com/FocuswithJustin/KepubForge/internal/roman"
	"github.com/FocuswithJustin/KepubForge/internal/validation"
)

const version = "0.2.0"

// CLI defines the command-line interface for kepub.
var CLI struct {
	// Global flags
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)" enum:"debug,info,warn,error" default:"info"`
	LogFormat string `name:"log-format" help:"Log format (text, json)" enum:"text,json" default:"text"`

	// Command groups (noun-first organization)
	Epub     EpubGroup     `cmd:"" help:"EPUB conversion (kepub output)"`
	Document DocumentGroup `cmd:"" help:"Standalone XHTML document operations"`
	Lint     LintGroup     `cmd:"" help:"Style checks for content documents"`
	Tools    ToolsGroup    `cmd:"" help:"Small production helpers"`
	Version  VersionCmd    `cmd:"" help:"Print version information"`
}

// EpubGroup contains EPUB package operations.
type EpubGroup struct {
	Convert EpubConvertCmd `cmd:"" help:"Convert an EPUB to kepub"`
}

// DocumentGroup contains standalone document operations.
type DocumentGroup struct {
	Annotate AnnotateCmd `cmd:"" help:"Annotate XHTML documents with sentence spans"`
	Restore  RestoreCmd  `cmd:"" help:"Restore documents from a tar.xz backup"`
}

// LintGroup contains linting operations.
type LintGroup struct {
	Run LintRunCmd `cmd:"" help:"Lint XHTML files or directories"`
}

// ToolsGroup contains small helpers.
type ToolsGroup struct {
	Roman RomanCmd `cmd:"" help:"Convert between integers and roman numerals"`
}

// EpubConvertCmd converts an EPUB to kepub.
type EpubConvertCmd struct {
	Path string            `arg:"" help:"Path to EPUB file" type:"existingfile"`
	Out  string            `help:"Output kepub path (default: <input>.kepub.epub)" type:"path"`
	Meta map[string]string `help:"OPF metadata substitutions (e.g. title=...,creator=...)" mapsep:","`
}

func (c *EpubConvertCmd) Run() error {
	outputPath := c.Out
	if outputPath == "" {
		outputPath = strings.TrimSuffix(c.Path, ".epub") + ".kepub.epub"
	}
	if err := validation.ValidatePath(outputPath); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}

	ctx := logging.WithRunID(context.Background(), uuid.New().String())
	start := time.Now()

	result, err := epub.Convert(c.Path, outputPath, epub.Options{Substitutions: c.Meta})
	if err != nil {
		logging.ConversionError(ctx, c.Path, "convert", err)
		return err
	}

	for _, f := range result.Files {
		logging.DocumentAnnotated(ctx, f.Path, f.Spans, 0, "sha256", f.SHA256)
	}
	for _, name := range result.Skipped {
		logging.DocumentSkipped(ctx, name, "already annotated")
	}

	fmt.Printf("Converted: %s\n", c.Path)
	fmt.Printf("  Documents: %d annotated, %d skipped\n", len(result.Files), len(result.Skipped))
	fmt.Printf("  Spans:     %d\n", result.Spans())
	fmt.Printf("  Elapsed:   %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("Created: %s\n", outputPath)
	return nil
}

// AnnotateCmd annotates standalone XHTML documents.
type AnnotateCmd struct {
	Path    string `arg:"" help:"XHTML file or directory" type:"path"`
	Out     string `help:"Output path (single file only; default: in place)" type:"path"`
	Backup  string `help:"Back up the originals first (file copy or tar.xz for directories)" type:"path"`
	DryRun  bool   `help:"Report what would change without writing"`
}

func (c *AnnotateCmd) Run() error {
	if err := validation.ValidatePath(c.Path); err != nil {
		return fmt.Errorf("invalid input path: %w", err)
	}

	ctx := logging.WithRunID(context.Background(), uuid.New().String())

	info, err := os.Stat(c.Path)
	if err != nil {
		return fmt.Errorf("failed to stat input: %w", err)
	}

	if !info.IsDir() {
		if c.Backup != "" && !c.DryRun {
			if err := fileutil.CopyFile(c.Path, c.Backup); err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}
			logging.InfoContext(ctx, "backup_created", "path", c.Backup)
		}
		outputPath := c.Out
		if outputPath == "" {
			outputPath = c.Path
		}
		return annotateFile(ctx, c.Path, outputPath, c.DryRun)
	}

	if c.Out != "" {
		return fmt.Errorf("--out is only valid for single-file input")
	}

	if c.Backup != "" && !c.DryRun {
		if err := archive.CreateTarXz(c.Path, c.Backup); err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		logging.InfoContext(ctx, "backup_created", "path", c.Backup)
	}

	docs, err := fileutil.FindContentDocuments(c.Path)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Printf("No content documents found in %s\n", c.Path)
		return nil
	}

	for _, doc := range docs {
		if err := annotateFile(ctx, doc, doc, c.DryRun); err != nil {
			return err
		}
	}
	return nil
}

// annotateFile annotates one document and writes it to outputPath.
// Already-annotated documents are skipped so the command is idempotent.
func annotateFile(ctx context.Context, inputPath, outputPath string, dryRun bool) error {
	start := time.Now()

	doc, err := xhtml.ParseFile(inputPath)
	if err != nil {
		logging.ConversionError(ctx, inputPath, "parse", err)
		return err
	}

	if xhtml.Annotated(doc) {
		logging.DocumentSkipped(ctx, inputPath, "already annotated")
		fmt.Printf("Skipped (already annotated): %s\n", inputPath)
		return nil
	}

	a := annotate.New()
	if err := a.Document(doc); err != nil {
		logging.ConversionError(ctx, inputPath, "annotate", err)
		return err
	}

	if dryRun {
		fmt.Printf("Would annotate: %s (%d spans)\n", inputPath, a.Spans())
		return nil
	}

	xhtml.StripPrefixes(doc)
	if err := xhtml.WriteFile(doc, outputPath); err != nil {
		return err
	}

	logging.DocumentAnnotated(ctx, inputPath, a.Spans(), time.Since(start))
	fmt.Printf("Annotated: %s (%d spans)\n", outputPath, a.Spans())
	return nil
}

// RestoreCmd extracts a tar.xz backup created by AnnotateCmd.
type RestoreCmd struct {
	Archive string `arg:"" help:"Backup archive to restore" type:"existingfile"`
	To      string `help:"Target directory (default: current directory)" type:"path" default:"."`
}

func (c *RestoreCmd) Run() error {
	if err := validation.ValidatePath(c.To); err != nil {
		return fmt.Errorf("invalid target path: %w", err)
	}
	if err := archive.ExtractTarXz(c.Archive, c.To); err != nil {
		return err
	}
	fmt.Printf("Restored %s into %s\n", c.Archive, c.To)
	return nil
}

// LintRunCmd lints content documents.
type LintRunCmd struct {
	Paths []string `arg:"" help:"XHTML files or directories" type:"path"`
}

func (c *LintRunCmd) Run() error {
	var files []string
	for _, p := range c.Paths {
		if err := validation.ValidatePath(p); err != nil {
			return fmt.Errorf("invalid path %q: %w", p, err)
		}
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if info.IsDir() {
			docs, err := fileutil.FindContentDocuments(p)
			if err != nil {
				return err
			}
			files = append(files, docs...)
		} else {
			files = append(files, p)
		}
	}

	issues, err := lint.Run(files...)
	if err != nil {
		return err
	}

	for _, issue := range issues {
		fmt.Println(issue)
	}
	if len(issues) > 0 {
		return fmt.Errorf("%d issue(s) found", len(issues))
	}
	fmt.Printf("No issues in %d file(s)\n", len(files))
	return nil
}

// RomanCmd converts between integers and roman numerals.
type RomanCmd struct {
	Value string `arg:"" help:"Integer or roman numeral to convert"`
}

func (c *RomanCmd) Run() error {
	if n, err := strconv.Atoi(c.Value); err == nil {
		numeral, err := roman.Format(n)
		if err != nil {
			return err
		}
		fmt.Println(numeral)
		return nil
	}

	n, err := roman.Parse(c.Value)
	if err != nil {
		return err
	}
	fmt.Println(n)
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("kepub %s\n", version)
	return nil
}

func parseLevel(level string) logging.Level {
	switch level {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func parseFormat(format string) logging.Format {
	if format == "json" {
		return logging.FormatJSON
	}
	return logging.FormatText
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("kepub"),
		kong.Description("KepubForge - sentence-level span annotation for Kobo readers"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	logging.InitLogger(parseLevel(CLI.LogLevel), parseFormat(CLI.LogFormat))
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
