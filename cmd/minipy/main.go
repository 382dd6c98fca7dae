// Package main provides the minipy command, which runs the MiniPython front
// end up to a chosen stage and prints that stage's result.
//
// Usage:
//
//	minipy tokenize -f prog.mpy     # Output JSON tokens
//	minipy parse -f prog.mpy        # Dump the AST
//	minipy ir -f prog.mpy           # Print the lowered IR listing
//	minipy go -f prog.mpy           # Print the IR rendered as a Go program
//	minipy ir -s 'main with: ...'   # Read source from the command line
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sanity-io/litter"

	"github.com/chazu/minipy/pkg/codegen"
	"github.com/chazu/minipy/pkg/ir"
	"github.com/chazu/minipy/pkg/lexer"
	"github.com/chazu/minipy/pkg/parser"
)

const versionStr = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	command := args[0]
	switch command {
	case "tokenize", "parse", "ir", "go":
	case "-h", "--help", "help":
		printUsage(stdout)
		return 0
	case "version", "--version":
		fmt.Fprintf(stdout, "minipy version %s\n", versionStr)
		return 0
	default:
		fmt.Fprintf(stderr, "Error: unknown command '%s'\n", command)
		printUsage(stderr)
		return 1
	}

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("f", "", "read source from `file`")
	source := fs.String("s", "", "use `source` text directly")
	output := fs.String("o", "", "write the result to `file` instead of stdout")
	verbose := fs.Bool("v", false, "log stage summaries to stderr")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if fs.NArg() == 1 && *file == "" && *source == "" {
		*file = fs.Arg(0)
	}

	logger := newLogger(stderr, *verbose)

	src, err := readSource(*file, *source)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	out, err := runStage(command, src, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if *output != "" {
		if err := os.WriteFile(*output, []byte(out), 0o644); err != nil {
			fmt.Fprintf(stderr, "Error: writing output: %v\n", err)
			return 1
		}
		logger.Info("wrote output", "file", *output, "bytes", len(out))
		return 0
	}
	fmt.Fprint(stdout, out)
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `minipy - MiniPython compiler front end

Usage:
  minipy tokenize [-f file | -s source]   Output JSON tokens
  minipy parse [-f file | -s source]      Dump the AST
  minipy ir [-f file | -s source]         Print the lowered IR
  minipy go [-f file | -s source]         Print the IR as a Go program
  minipy version                          Print version and exit
  minipy help                             Show this help message

Options (after the command):
  -f file     read source from file (a lone argument is taken as the file)
  -s source   use source text directly
  -o file     write the result to file
  -v          log stage summaries to stderr

Examples:
  minipy tokenize -f testdata/programs/optimal.mpy
  minipy ir testdata/programs/simple_stack.mpy
  minipy go -f prog.mpy -o prog/main.go && go run ./prog`)
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func readSource(file, source string) (string, error) {
	switch {
	case file != "" && source != "":
		return "", errors.New("-f and -s are mutually exclusive")
	case file != "":
		content, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading file: %w", err)
		}
		return string(content), nil
	case source != "":
		return source, nil
	}
	return "", errors.New("no input: use -f file or -s source")
}

// runStage runs the pipeline through the named stage and renders its result.
func runStage(stage, src string, logger *slog.Logger) (string, error) {
	if stage == "tokenize" {
		lex := lexer.New(src)
		out, err := lex.TokenizeJSON()
		if err != nil {
			return "", fmt.Errorf("tokenizing: %w", err)
		}
		logger.Debug("tokenized", "tokens", lex.Scanned())
		return out + "\n", nil
	}

	prog, err := parser.Parse(src)
	if err != nil {
		return "", fmt.Errorf("parsing: %w", err)
	}
	logger.Debug("parsed", "classes", len(prog.Classes), "main_statements", len(prog.Main))
	if stage == "parse" {
		return litter.Sdump(prog) + "\n", nil
	}

	lowered, err := ir.Lower(prog)
	if err != nil {
		return "", fmt.Errorf("lowering: %w", err)
	}
	logger.Debug("lowered", "functions", len(lowered.Functions), "blocks", len(lowered.Blocks))
	if stage == "ir" {
		return lowered.String(), nil
	}

	result, err := codegen.Generate(lowered)
	if err != nil {
		return "", fmt.Errorf("generating: %w", err)
	}
	for _, w := range result.Warnings {
		logger.Warn(w)
	}
	logger.Debug("generated", "bytes", len(result.Code))
	return result.Code, nil
}
