// Command lily is the embeddable-language driver: run a .lily file, run an
// inline -s string, or fall into an interactive REPL. Modeled on the
// teacher's flag-based cmd/probec/main.go driver, generalized from a
// single flag.FlagSet into a proper gopkg.in/urfave/cli.v1 app the way
// cmd/gprobe's config.go shows commands and flags being composed.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	"gopkg.in/urfave/cli.v1"

	"github.com/FascinatedBox/lily/coreinit"
	"github.com/FascinatedBox/lily/emitter"
	"github.com/FascinatedBox/lily/lexer"
	"github.com/FascinatedBox/lily/parser"
	"github.com/FascinatedBox/lily/vm"
)

const version = "0.1.0"

var (
	sourceFlag = cli.StringFlag{
		Name:  "s",
		Usage: "Run the given string as a Lily program instead of reading a file",
	}
	dumpGlobalsFlag = cli.BoolFlag{
		Name:  "dump-globals",
		Usage: "Print the global table after execution",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "lily"
	app.Usage = "run Lily programs"
	app.Version = version
	app.Flags = []cli.Flag{sourceFlag, dumpGlobalsFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	state := vm.NewState(vm.DefaultConfig())
	coreinit.InstallAll(state)

	if src := c.String("s"); src != "" {
		return runSource(state, "<string>", src, c.Bool("dump-globals"))
	}

	if c.NArg() > 0 {
		path := c.Args().Get(0)
		if !strings.HasSuffix(path, ".lily") {
			return cli.NewExitError(fmt.Sprintf("error: %s: file name must end in .lily", path), 1)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("error: %v", err), 1)
		}
		return runSource(state, path, string(data), c.Bool("dump-globals"))
	}

	repl(state)
	return nil
}

// runSource compiles and executes one complete program, returning a
// cli.ExitError so main's top-level handler reports a non-zero exit code
// on an unhandled exception the way a real script interpreter does.
func runSource(state *vm.State, filename, src string, dumpGlobals bool) error {
	fn, errs := compile(state, filename, src)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}
		return cli.NewExitError("", 1)
	}

	state.LoadString(fn)
	if lerr := state.Execute(); lerr != nil {
		fmt.Fprint(os.Stderr, state.ErrorMessage())
		return cli.NewExitError("", 1)
	}

	if dumpGlobals {
		state.DumpGlobals(os.Stdout)
	}
	return nil
}

func compile(state *vm.State, filename, src string) (*vm.Function, []error) {
	l := lexer.New(filename, src)
	p := parser.New(l)
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, errs
	}
	return emitter.Compile(state, prog)
}

// repl runs an accumulate-until-complete-form loop: input lines are
// buffered until parens/braces/brackets balance, then the accumulated
// source is compiled and run as one program sharing the same State (and
// therefore the same globals) across iterations, the way a REPL for an
// embeddable language is expected to persist state between entries.
func repl(state *vm.State) {
	useColor := isatty.IsTerminal(os.Stdout.Fd())
	prompt := color.New(color.FgCyan).SprintFunc()
	errColor := color.New(color.FgRed).SprintFunc()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyPath = home + "/.lily_history"
		if f, err := os.Open(historyPath); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}

	var buf strings.Builder
	depth := 0
	promptText := "lily> "

	for {
		text, err := line.Prompt(decorate(promptText, useColor, prompt))
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				break
			}
			fmt.Fprintln(os.Stderr, decorate(err.Error(), useColor, errColor))
			break
		}
		if strings.TrimSpace(text) == "exit" && depth == 0 {
			break
		}

		line.AppendHistory(text)
		depth += braceDelta(text)
		buf.WriteString(text)
		buf.WriteByte('\n')

		if depth > 0 {
			promptText = "   | "
			continue
		}
		promptText = "lily> "

		source := buf.String()
		buf.Reset()
		depth = 0

		fn, errs := compile(state, "<repl>", source)
		if len(errs) > 0 {
			for _, e := range errs {
				fmt.Fprintln(os.Stderr, decorate(e.Error(), useColor, errColor))
			}
			continue
		}
		state.LoadString(fn)
		if lerr := state.Execute(); lerr != nil {
			fmt.Fprint(os.Stderr, decorate(state.ErrorMessage(), useColor, errColor))
		}
	}

	if historyPath != "" {
		if f, err := os.Create(historyPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}
}

// braceDelta counts the net change in nesting depth a line contributes,
// a rough approximation good enough to decide when to keep reading
// REPL input rather than a full bracket-matching scanner.
func braceDelta(line string) int {
	delta := 0
	for _, r := range line {
		switch r {
		case '{', '(', '[':
			delta++
		case '}', ')', ']':
			delta--
		}
	}
	return delta
}

func decorate(s string, useColor bool, f func(a ...interface{}) string) string {
	if !useColor {
		return s
	}
	return f(s)
}
