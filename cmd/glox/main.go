// Command glox runs, compiles, and disassembles glox scripts.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/kristofer/glox/pkg/bytecode"
	"github.com/kristofer/glox/pkg/compiler"
	"github.com/kristofer/glox/pkg/config"
	"github.com/kristofer/glox/pkg/vm"
)

const version = "0.1.0"

const (
	exitOK           = 0
	exitCompileError = 65
	exitRuntimeError = 70
	exitIOError      = 74
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("glox", flag.ContinueOnError)
	fs.Usage = func() { printUsage(fs) }

	trace := fs.Bool("trace-execution", false, "print each instruction as it executes")
	configPath := fs.String("config", "glox.yaml", "path to an optional YAML config file")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitIOError
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "glox: %v\n", err)
		return exitIOError
	}
	if *trace {
		cfg.TraceExecution = true
	}

	rest := fs.Args()
	if len(rest) == 0 {
		runREPL(cfg)
		return exitOK
	}

	switch rest[0] {
	case "compile":
		if len(rest) < 2 {
			fmt.Fprintln(os.Stderr, "usage: glox compile <input.lox> [output.glc]")
			return exitIOError
		}
		return compileFile(rest[1], restOrDefault(rest, 2, ""))
	case "disasm":
		if len(rest) < 2 {
			fmt.Fprintln(os.Stderr, "usage: glox disasm <file.glc>")
			return exitIOError
		}
		return disasmFile(rest[1])
	case "version":
		fmt.Printf("glox version %s\n", version)
		return exitOK
	default:
		return runFile(rest[0], cfg)
	}
}

func vmConfig(cfg config.Config) vm.Config {
	return vm.Config{
		TraceExecution: cfg.TraceExecution,
		StackSlots:     cfg.StackSlots,
		FrameLimit:     cfg.FrameLimit,
	}
}

func restOrDefault(rest []string, idx int, def string) string {
	if idx < len(rest) {
		return rest[idx]
	}
	return def
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintln(os.Stderr, "glox - a Lox-family scripting language")
	fmt.Fprintln(os.Stderr, "\nUsage:")
	fmt.Fprintln(os.Stderr, "  glox                        start the interactive REPL")
	fmt.Fprintln(os.Stderr, "  glox <script.lox>           run a source file")
	fmt.Fprintln(os.Stderr, "  glox compile <in> [out.glc] compile a source file to bytecode")
	fmt.Fprintln(os.Stderr, "  glox disasm <file.glc>      disassemble a compiled bytecode file")
	fmt.Fprintln(os.Stderr, "  glox version                print the version")
	fmt.Fprintln(os.Stderr, "\nFlags:")
	fs.PrintDefaults()
}

// runFile reads, compiles, and executes a source file, translating
// compilation and runtime failures into the process exit codes a shell
// script can branch on.
func runFile(path string, cfg config.Config) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "glox: %v\n", err)
		return exitIOError
	}

	machine := vm.New(vmConfig(cfg))
	if err := machine.Interpret(string(data)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if _, ok := err.(compiler.CompileErrors); ok {
			return exitCompileError
		}
		return exitRuntimeError
	}
	return exitOK
}

// compileFile pre-compiles a source file to the .glc binary format without
// executing it, for later inspection with `glox disasm`. The VM does not
// execute .glc files.
func compileFile(inputPath, outputPath string) int {
	if outputPath == "" {
		outputPath = inputPath + ".glc"
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "glox: %v\n", err)
		return exitIOError
	}

	fn, err := compiler.Compile(string(data))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCompileError
	}

	out, err := os.Create(outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "glox: %v\n", err)
		return exitIOError
	}
	defer out.Close()

	if err := bytecode.Encode(fn.Chunk, out); err != nil {
		fmt.Fprintf(os.Stderr, "glox: %v\n", err)
		return exitIOError
	}

	fmt.Printf("Compiled %s -> %s\n", inputPath, outputPath)
	return exitOK
}

// disasmFile prints the human-readable disassembly of a compiled .glc file.
func disasmFile(path string) int {
	file, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "glox: %v\n", err)
		return exitIOError
	}
	defer file.Close()

	chunk, err := bytecode.Decode(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "glox: %v\n", err)
		return exitIOError
	}

	fmt.Print(bytecode.Disassemble(chunk, path))
	return exitOK
}

// runREPL evaluates one line at a time, each compiled and run as its own
// independent script: glox has no incremental/persistent compiler state, so
// a `var` declared on one line is a fresh global by the next line only if
// that line re-declares it — but globals themselves (the VM's table) do
// persist across lines within the session, same as running several scripts
// back to back against a long-lived VM.
func runREPL(cfg config.Config) {
	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	if interactive && !cfg.NoBanner {
		fmt.Printf("glox %s\n", version)
		fmt.Println("Ctrl-D to exit")
	}

	machine := vm.New(vmConfig(cfg))
	scanner := bufio.NewScanner(os.Stdin)

	for {
		if interactive {
			fmt.Print("> ")
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := machine.Interpret(line); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}
