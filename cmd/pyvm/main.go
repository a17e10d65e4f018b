// Command pyvm compiles and executes the pyvm scripting-language subset:
// source in, either a .pvm container or stdout, depending on the flags
// below.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pyvm/pyvm/internal/cache"
	"github.com/pyvm/pyvm/internal/compiler"
	"github.com/pyvm/pyvm/internal/container"
	"github.com/pyvm/pyvm/internal/disasm"
	"github.com/pyvm/pyvm/internal/lexer"
	"github.com/pyvm/pyvm/internal/parser"
	"github.com/pyvm/pyvm/internal/stats"
	"github.com/pyvm/pyvm/internal/vm"
	"github.com/pyvm/pyvm/internal/vmconfig"
	"github.com/pyvm/pyvm/internal/vmerr"
)

const usage = `Usage: pyvm [flags] <path>

Flags:
  --compile         produce a .pvm container next to the source instead of running it
  --debug           include the debug section (line table, build id) in a compiled container
  --show-bytecode   disassemble before running
  --info            print header and table summaries before running
  --performance     print execution statistics after running
  --cache PATH      sqlite cache file location (default .pyvm-cache.sqlite3 next to the source)
  --no-cache        disable the compiled-program cache
  --config PATH     explicit .pyvmrc.yaml path
  --build-id        print a compiled .pvm's build id and exit
`

type options struct {
	path         string
	compile      bool
	debug        bool
	showBytecode bool
	info         bool
	performance  bool
	cachePath    string
	noCache      bool
	configPath   string
	wantBuildID  bool
}

func parseArgs(args []string) (options, error) {
	var o options
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--compile":
			o.compile = true
		case a == "--debug":
			o.debug = true
		case a == "--show-bytecode":
			o.showBytecode = true
		case a == "--info":
			o.info = true
		case a == "--performance":
			o.performance = true
		case a == "--no-cache":
			o.noCache = true
		case a == "--build-id":
			o.wantBuildID = true
		case a == "--cache":
			i++
			if i >= len(args) {
				return o, fmt.Errorf("--cache requires a path")
			}
			o.cachePath = args[i]
		case a == "--config":
			i++
			if i >= len(args) {
				return o, fmt.Errorf("--config requires a path")
			}
			o.configPath = args[i]
		case strings.HasPrefix(a, "-"):
			return o, fmt.Errorf("unknown flag %q", a)
		default:
			if o.path != "" {
				return o, fmt.Errorf("unexpected extra argument %q", a)
			}
			o.path = a
		}
	}
	if o.path == "" {
		return o, fmt.Errorf("missing source/container path")
	}
	return o, nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseArgs(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, usage)
		return 4
	}

	data, err := os.ReadFile(opts.path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return 4
	}

	cfg := vmconfig.Default()
	cfgPath := opts.configPath
	if cfgPath == "" {
		if found, ferr := vmconfig.Find(opts.path); ferr == nil {
			cfgPath = found
		}
	}
	if cfgPath != "" {
		if loaded, lerr := vmconfig.Load(cfgPath); lerr == nil {
			cfg = loaded
		}
	}

	if isContainer(data) {
		return runContainer(opts, data, cfg)
	}
	return runSource(opts, data, cfg)
}

func isContainer(data []byte) bool {
	return len(data) >= 4 &&
		data[0] == container.Magic[0] && data[1] == container.Magic[1] &&
		data[2] == container.Magic[2] && data[3] == container.Magic[3]
}

func runContainer(opts options, data []byte, cfg vmconfig.Config) int {
	if opts.compile {
		fmt.Fprintln(os.Stderr, "Error: --compile given an already-compiled container")
		return 4
	}
	prog, err := container.Load(data)
	if err != nil {
		return reportError(err)
	}
	if opts.wantBuildID {
		fmt.Println(prog.BuildID)
		return 0
	}
	if opts.showBytecode {
		fmt.Print(disasm.Disassemble(prog))
	}
	if opts.info {
		printInfo(prog)
	}
	return execute(prog, opts, cfg)
}

func runSource(opts options, data []byte, cfg vmconfig.Config) int {
	var cachedPVM []byte
	var cacheKey string
	var ch *cache.Cache
	if !opts.noCache && !cfg.Cache.Disabled {
		cacheKey = cache.Key(data)
		path := opts.cachePath
		if path == "" {
			path = cfg.Cache.Path
		}
		if path == "" {
			path = filepath.Join(filepath.Dir(opts.path), ".pyvm-cache.sqlite3")
		}
		if c, err := cache.Open(path); err == nil {
			ch = c
			defer ch.Close()
			if hit, ok, err := ch.Lookup(cacheKey); err == nil && ok {
				cachedPVM = hit
			}
		}
	}

	var prog *container.Program
	var compileElapsed time.Duration

	if cachedPVM != nil {
		loaded, err := container.Load(cachedPVM)
		if err == nil {
			prog = loaded
		}
	}

	if prog == nil {
		start := time.Now()
		toks, err := lexer.Tokenize(string(data))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		astProg, err := parser.Parse(toks)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		res, err := compiler.Compile(astProg)
		if err != nil {
			return reportError(err)
		}
		compileElapsed = time.Since(start)

		var buildID *uuid.UUID
		if opts.debug {
			id := uuid.New()
			buildID = &id
		}
		prog = container.FromResult(res, opts.debug, buildID)

		if ch != nil {
			if encoded, err := container.Serialize(prog); err == nil {
				_ = ch.Store(cacheKey, encoded, time.Now().Unix())
			}
		}
	}

	if opts.compile {
		out, err := container.Serialize(prog)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		outPath := strings.TrimSuffix(opts.path, filepath.Ext(opts.path)) + ".pvm"
		if err := os.WriteFile(outPath, out, 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}

	if opts.wantBuildID {
		fmt.Println(prog.BuildID)
		return 0
	}
	if opts.showBytecode {
		fmt.Print(disasm.Disassemble(prog))
	}
	if opts.info {
		printInfo(prog)
	}

	return executeWithStats(prog, opts, cfg, len(data), compileElapsed)
}

func execute(prog *container.Program, opts options, cfg vmconfig.Config) int {
	return executeWithStats(prog, opts, cfg, 0, 0)
}

func executeWithStats(prog *container.Program, opts options, cfg vmconfig.Config, sourceBytes int, compileElapsed time.Duration) int {
	runID := uuid.New()
	start := time.Now()
	m := vm.New(prog, cfg.VMLimits(), os.Stdout, os.Stdin)
	err := m.Run()
	elapsed := time.Since(start)

	if opts.performance {
		report := stats.Report{
			BuildID:       prog.BuildID,
			RunID:         runID,
			SourceBytes:   sourceBytes,
			CompiledBytes: len(prog.Code),
			Instructions:  m.Executed,
			CompileTime:   compileElapsed,
			RunTime:       elapsed,
		}
		_ = report.Write(os.Stderr)
	}

	if err != nil {
		return reportError(err)
	}
	return 0
}

func printInfo(prog *container.Program) {
	fmt.Printf("version: 0x%04X\n", prog.Version)
	fmt.Printf("flags:   0x%04X\n", prog.Flags)
	fmt.Printf("constants: %d\n", len(prog.Constants))
	fmt.Printf("symbols:   %d\n", len(prog.Symbols))
	fmt.Printf("code bytes: %d\n", len(prog.Code))
	if prog.Flags&container.FlagDebugPresent != 0 {
		fmt.Printf("debug lines: %d\n", len(prog.Lines))
	}
}

func reportError(err error) int {
	fmt.Fprintln(os.Stderr, err)
	var compileErr *vmerr.CompileError
	var nameErr *vmerr.NameError
	var typeErr *vmerr.TypeError
	var loadErr *vmerr.LoadError
	switch {
	case errors.As(err, &typeErr):
		if typeErr.Runtime {
			return 3
		}
		return 1
	case errors.As(err, &compileErr), errors.As(err, &nameErr):
		return 1
	case errors.As(err, &loadErr):
		return 2
	default:
		return 3
	}
}
