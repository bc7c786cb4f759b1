// Command corevm drives the compiler and interpreter: compile a source
// file and run it, print its disassembly, or step through it one
// instruction at a time.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ktstephano/corevm/agent"
	"github.com/ktstephano/corevm/code"
	"github.com/ktstephano/corevm/compiler"
	"github.com/ktstephano/corevm/disasm"
	"github.com/ktstephano/corevm/interp"
	"github.com/ktstephano/corevm/opcode"
	"github.com/ktstephano/corevm/parser"
)

func main() {
	app := &cli.App{
		Name:  "corevm",
		Usage: "compile and run the toy bytecode language",
		Commands: []*cli.Command{
			runCommand(),
			disasmCommand(),
			debugCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func compileFile(path string) (*agent.Agent, *code.Object, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	ag := agent.New()
	stmts, err := parser.Parse(ag, string(src))
	if err != nil {
		return nil, nil, err
	}
	obj, err := compiler.Compile(ag, stmts)
	if err != nil {
		return nil, nil, err
	}
	return ag, obj, nil
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "compile and execute a source file",
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: corevm run <file>", 1)
			}
			ag, obj, err := compileFile(c.Args().Get(0))
			if err != nil {
				return cli.Exit(err, 1)
			}
			it := interp.New(ag)
			if _, err := it.Run(obj); err != nil {
				return cli.Exit(err, 1)
			}
			return nil
		},
	}
}

func disasmCommand() *cli.Command {
	return &cli.Command{
		Name:      "disasm",
		Usage:     "compile a source file and print its instruction listing",
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: corevm disasm <file>", 1)
			}
			ag, obj, err := compileFile(c.Args().Get(0))
			if err != nil {
				return cli.Exit(err, 1)
			}
			return disasm.Write(os.Stdout, ag, obj)
		},
	}
}

func debugCommand() *cli.Command {
	return &cli.Command{
		Name:      "debug",
		Usage:     "single-step a source file's execution",
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: corevm debug <file>", 1)
			}
			ag, obj, err := compileFile(c.Args().Get(0))
			if err != nil {
				return cli.Exit(err, 1)
			}
			it := interp.New(ag)
			it.StepHook = newStepper()
			if _, err := it.Run(obj); err != nil && err != interp.ErrDebugQuit {
				return cli.Exit(err, 1)
			}
			return nil
		},
	}
}

// newStepper builds the StepHook for the debug command: on each
// instruction it either prints the current offset/opcode and blocks for a
// command, or (once the user has typed "r"/"run") lets execution continue
// unattended until it lands on a breakpointed offset.
func newStepper() func(it *interp.Interpreter, ip int, op opcode.Code) error {
	fmt.Println("Commands:\n\tn or next: execute next instruction\n\tr or run: run to next breakpoint\n\tb or break <offset>: set/clear a breakpoint\n\tq or quit: stop")

	reader := bufio.NewReader(os.Stdin)
	running := false
	breakpoints := make(map[int]struct{})

	return func(it *interp.Interpreter, ip int, op opcode.Code) error {
		if running {
			if _, ok := breakpoints[ip]; ok {
				running = false
				fmt.Println("breakpoint")
			} else {
				return nil
			}
		}

		for {
			fmt.Printf("%08d  %-16s stack_depth=%d\n->", ip, op, it.StackDepth())
			line, _ := reader.ReadString('\n')
			line = strings.ToLower(strings.TrimSpace(line))

			switch {
			case line == "n" || line == "next" || line == "":
				return nil
			case line == "r" || line == "run":
				running = true
				return nil
			case line == "q" || line == "quit":
				return interp.ErrDebugQuit
			case strings.HasPrefix(line, "b"):
				arg := strings.TrimSpace(strings.TrimPrefix(line, "b"))
				arg = strings.TrimSpace(strings.TrimPrefix(arg, "reak"))
				off, err := strconv.Atoi(arg)
				if err != nil {
					fmt.Println("usage: b <offset>")
					continue
				}
				if _, ok := breakpoints[off]; ok {
					delete(breakpoints, off)
					fmt.Println("breakpoint removed:", off)
				} else {
					breakpoints[off] = struct{}{}
					fmt.Println("breakpoint set:", off)
				}
			default:
				fmt.Println("unrecognized command")
			}
		}
	}
}
