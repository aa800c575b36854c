package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/native-addin/bridge"
	"github.com/wippyai/native-addin/config"
	"github.com/wippyai/native-addin/dispatch"
	"github.com/wippyai/native-addin/examples/calc"
	"github.com/wippyai/native-addin/hostmem"
	"github.com/wippyai/native-addin/registry"
	"github.com/wippyai/native-addin/script"
	"github.com/wippyai/native-addin/variant"
	"github.com/wippyai/native-addin/wire"
)

// listFlag collects every occurrence of a repeatable flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

type options struct {
	config      string
	scripts     listFlag
	class       string
	list        bool
	get         string
	set         string
	call        string
	args        listFlag
	interactive bool
	wasm        string
	entry       string
}

func main() {
	var opts options
	flag.StringVar(&opts.config, "config", "", "Path to CUE manifest")
	flag.Var(&opts.scripts, "script", "Starlark class script (repeatable)")
	flag.StringVar(&opts.class, "class", "", "Class to instantiate (default: manifest name or Calculator)")
	flag.BoolVar(&opts.list, "list", false, "List classes and members and exit")
	flag.StringVar(&opts.get, "get", "", "Property to read")
	flag.StringVar(&opts.set, "set", "", "Property assignment Prop=literal")
	flag.StringVar(&opts.call, "call", "", "Method to call")
	flag.Var(&opts.args, "arg", "Method argument literal, e.g. s64:5 or string:text (repeatable)")
	flag.BoolVar(&opts.interactive, "i", false, "Interactive mode with TUI")
	flag.StringVar(&opts.wasm, "wasm", "", "WebAssembly host guest to run against the addin module")
	flag.StringVar(&opts.entry, "entry", bridge.DefaultEntry, "Entry export of the -wasm guest")
	flag.Parse()

	if !opts.list && !opts.interactive && opts.wasm == "" && opts.get == "" && opts.set == "" && opts.call == "" {
		fmt.Fprintln(os.Stderr, "Usage: addin [-config addin.cue] [-script file.star] -list")
		fmt.Fprintln(os.Stderr, "       addin [-class Name] -get Prop | -set Prop=literal | -call Method [-arg literal ...]")
		fmt.Fprintln(os.Stderr, "       addin [-class Name] -i  (interactive mode)")
		fmt.Fprintln(os.Stderr, "       addin -wasm <host.wasm> [-entry run]")
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg := config.Default()
	if opts.config != "" {
		loaded, err := config.Load(opts.config)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	logger, err := cfg.Logger()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	dispatch.SetLogger(logger.Named("dispatch"))
	bridge.SetLogger(logger.Named("bridge"))
	script.SetLogger(logger.Named("script"))

	reg := registry.Default()
	defer reg.Close()
	if err := calc.Register(reg, dispatch.WithMessageCode(cfg.MessageCode)); err != nil {
		return fmt.Errorf("register calculator: %w", err)
	}
	for _, path := range append(cfg.ScriptPaths(), opts.scripts...) {
		s, err := script.Load(path, dispatch.WithMessageCode(cfg.MessageCode))
		if err != nil {
			return fmt.Errorf("load script: %w", err)
		}
		if err := reg.Register(s); err != nil {
			return fmt.Errorf("register %s: %w", path, err)
		}
		logger.Debug("registered script class", zap.String("class", s.Name()), zap.String("file", path))
	}

	if opts.wasm != "" {
		data, err := os.ReadFile(opts.wasm)
		if err != nil {
			return fmt.Errorf("read file: %w", err)
		}
		return bridge.New(reg).Run(context.Background(), data, opts.entry)
	}

	class := opts.class
	if class == "" {
		class = cfg.Name
	}
	if class == "" {
		class = calc.ClassName
	}

	if opts.list && opts.class == "" {
		return listClasses(reg)
	}

	h, obj, err := reg.Create(class)
	if err != nil {
		return err
	}
	defer reg.Destroy(h)

	mem := hostmem.New(hostmem.WithLimit(cfg.Memory.Limit))
	if !obj.Init(stderrConnection()) || !obj.SetMemManager(mem) {
		return fmt.Errorf("init %s failed", class)
	}
	obj.SetLocale(hostmem.Units(cfg.Locale))

	switch {
	case opts.list:
		describe(obj)
		return nil
	case opts.interactive:
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("interactive mode needs a terminal")
		}
		return runInteractive(obj)
	}

	if opts.set != "" {
		name, literal, ok := strings.Cut(opts.set, "=")
		if !ok {
			return fmt.Errorf("-set expects Prop=literal, got %q", opts.set)
		}
		if err := setProperty(obj, name, literal); err != nil {
			return err
		}
	}
	if opts.get != "" {
		v, err := getProperty(obj, opts.get)
		if err != nil {
			return err
		}
		fmt.Println(variant.Format(v))
	}
	if opts.call != "" {
		result, args, err := callMethod(obj, opts.call, opts.args)
		if err != nil {
			return err
		}
		fmt.Printf("Result: %s\n", variant.Format(result))
		for i := 0; i < args.Len(); i++ {
			if args.Dirty(i) {
				fmt.Printf("arg%d: %s\n", i, variant.Format(args.Get(i)))
			}
		}
	}
	return nil
}

func stderrConnection() dispatch.ConnectionFunc {
	return func(code uint16, source, descr string, scode int32) bool {
		fmt.Fprintf(os.Stderr, "[%d] %s: %s (%d)\n", code, source, descr, scode)
		return true
	}
}

func listClasses(reg *registry.Registry) error {
	fmt.Printf("Classes: %s\n", reg.ClassNames())
	for _, name := range reg.Classes() {
		h, obj, err := reg.Create(name)
		if err != nil {
			return err
		}
		obj.Init(stderrConnection())
		fmt.Println()
		describe(obj)
		reg.Destroy(h)
	}
	return nil
}

func describe(obj dispatch.Instance) {
	fmt.Printf("%s\n  Properties:\n", obj.ClassName())
	for i := 0; i < obj.PropertyCount(); i++ {
		fmt.Printf("    %s\n", formatProperty(obj, i))
	}
	fmt.Printf("  Methods:\n")
	for i := 0; i < obj.MethodCount(); i++ {
		fmt.Printf("    %s\n", formatMethod(obj, i))
	}
}

func formatProperty(obj dispatch.Instance, i int) string {
	name, _ := obj.PropertyName(i, 0)
	local, _ := obj.PropertyName(i, 1)
	mode := ""
	if obj.IsReadable(i) {
		mode += "r"
	}
	if obj.IsWritable(i) {
		mode += "w"
	}
	return fmt.Sprintf("%s (%s) [%s]", name, local, mode)
}

func formatMethod(obj dispatch.Instance, i int) string {
	name, _ := obj.MethodName(i, 0)
	local, _ := obj.MethodName(i, 1)
	params := make([]string, obj.MethodArity(i))
	for p := range params {
		params[p] = fmt.Sprintf("arg%d", p)
		if obj.HasOptionalDefault(i, p) {
			params[p] += "?"
		}
	}
	return fmt.Sprintf("%s (%s)(%s)", name, local, strings.Join(params, ", "))
}

func getProperty(obj dispatch.Instance, name string) (variant.Value, error) {
	i := obj.LookupProperty(name)
	if i < 0 {
		return nil, fmt.Errorf("%s has no property %q", obj.ClassName(), name)
	}
	v, ok := obj.GetProperty(i)
	if !ok {
		return nil, fmt.Errorf("get %s: %s", name, obj.Diagnostic())
	}
	return v, nil
}

func setProperty(obj dispatch.Instance, name, literal string) error {
	i := obj.LookupProperty(name)
	if i < 0 {
		return fmt.Errorf("%s has no property %q", obj.ClassName(), name)
	}
	v, err := variant.Parse(literal)
	if err != nil {
		return err
	}
	if !obj.SetProperty(i, v) {
		return fmt.Errorf("set %s: %s", name, obj.Diagnostic())
	}
	return nil
}

// callMethod parses literals and calls the method. Missing trailing
// optional arguments are passed as absent values.
func callMethod(obj dispatch.Instance, name string, literals []string) (variant.Value, *wire.ArgList, error) {
	m := obj.LookupMethod(name)
	if m < 0 {
		return nil, nil, fmt.Errorf("%s has no method %q", obj.ClassName(), name)
	}
	values := make([]variant.Value, 0, obj.MethodArity(m))
	for _, lit := range literals {
		v, err := variant.Parse(lit)
		if err != nil {
			return nil, nil, err
		}
		values = append(values, v)
	}
	for len(values) < obj.MethodArity(m) && obj.HasOptionalDefault(m, len(values)) {
		values = append(values, variant.Absent{})
	}

	args := wire.NewArgList(values...)
	result, ok := obj.Invoke(m, args)
	if !ok {
		return nil, nil, fmt.Errorf("call %s: %s", name, obj.Diagnostic())
	}
	return result, args, nil
}
