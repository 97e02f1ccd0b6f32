package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/kr/pretty"
	"go.uber.org/zap"

	"github.com/danderson/dbusgen"
	"github.com/danderson/dbusgen/internal/cgen"
	"github.com/danderson/dbusgen/marshal"
)

var globalArgs struct {
	Verbose bool `flag:"verbose,Log generator decisions to stderr"`
}

func main() {
	root := &command.C{
		Name:     "dbusgen",
		Usage:    "command args...",
		Help:     "Generate C code that marshals DBus messages with libdbus.",
		SetFlags: command.Flags(flax.MustBind, &globalArgs),
		Commands: []*command.C{
			{
				Name:  "marshal",
				Usage: "marshal signature name",
				Help: `Print the marshalling code for one value.

The signature must describe a single complete type. The generated code
is followed by the input variables the caller must provide and the
local variables the code needs declared.`,
				SetFlags: command.Flags(flax.MustBind, &marshalArgs),
				Run:      command.Adapt(runMarshal),
			},
			{
				Name:  "signature",
				Usage: "signature sig",
				Help:  "Describe a DBus type signature and its C representation.",
				Run:   command.Adapt(runSignature),
			},
			{
				Name:  "describe",
				Usage: "describe introspection.xml",
				Help: `List the interfaces in introspection data.

Interfaces are listed in the order generate visits them. Members that
generate would skip are noted below their interface.`,
				Run: command.Adapt(runDescribe),
			},
			{
				Name:  "generate",
				Usage: "generate introspection.xml",
				Help: `Generate a C source file from introspection data.

Every interface found in the document, including those of inline child
nodes, gets one function per method call, method reply and signal.
Properties, and members with variant arguments, are skipped.

Settings may be given in a YAML config file, see --config. Flags
override the config file.`,
				SetFlags: command.Flags(flax.MustBind, &generateArgs),
				Run:      command.Adapt(runGenerate),
			},
			command.HelpCommand(nil),
			command.VersionCommand(),
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	env := root.NewEnv(nil).SetContext(ctx)
	command.RunOrFail(env, os.Args[1:])
}

var marshalArgs struct {
	Iter string `flag:"iter,default=iter,Name of the message iterator to append to"`
	OOM  string `flag:"oom,default=return -1;,C statements to run when an append fails"`
}

// setupLogging installs a development logger when --verbose is set.
func setupLogging() error {
	if !globalArgs.Verbose {
		return nil
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	marshal.SetLogger(log)
	return nil
}

func runMarshal(env *command.Env, sig, name string) error {
	if err := setupLogging(); err != nil {
		return err
	}
	t, err := dbusgen.ParseType(sig)
	if err != nil {
		return err
	}
	if err := marshal.Check(t); err != nil {
		return err
	}
	if name == "" || marshalArgs.Iter == "" {
		return env.Usagef("variable and iterator names must not be empty")
	}

	var gen marshal.Generator
	res := gen.Marshal(t, marshalArgs.Iter, name, marshal.Recovery(marshalArgs.OOM))
	fmt.Print(marshal.Render(res.Code))
	fmt.Println()
	printVars("Inputs", &res.Inputs)
	printVars("Locals", &res.Locals)
	return nil
}

func printVars(title string, vs *marshal.VarList) {
	fmt.Printf("%s:\n", title)
	out := indenter{prefix: "  "}
	for _, v := range vs.Vars() {
		out.s(v.String())
	}
}

func runSignature(env *command.Env, sig string) error {
	t, err := dbusgen.ParseType(sig)
	if err != nil {
		return err
	}
	fmt.Printf("%# v\n", pretty.Formatter(t))
	fmt.Println("Canonical:", t)
	fmt.Println("Category: ", t.Category())
	fmt.Println("Fixed:    ", dbusgen.IsFixed(t))
	if err := marshal.Check(t); err != nil {
		fmt.Println("C type:    unsupported,", err)
		return nil
	}
	var m marshal.CMapper
	fmt.Println("C type:   ", m.TypeOf(t, marshal.Name("value")))
	return nil
}

var generateArgs struct {
	Config string `flag:"config,YAML config file"`
	Prefix string `flag:"prefix,Prefix for generated function and type names"`
	Out    string `flag:"out,Output file path (default stdout)"`
}

func runGenerate(env *command.Env, path string) error {
	if err := setupLogging(); err != nil {
		return err
	}
	defer marshal.Logger().Sync()
	cfg := defaultConfig()
	if generateArgs.Config != "" {
		var err error
		cfg, err = loadConfig(generateArgs.Config)
		if err != nil {
			return err
		}
	}
	if generateArgs.Prefix != "" {
		cfg.Prefix = generateArgs.Prefix
	}
	if generateArgs.Out != "" {
		cfg.Out = generateArgs.Out
	}

	desc, err := readIntrospection(path)
	if err != nil {
		return err
	}
	ifaces, err := cfg.filter(collectInterfaces(desc, marshal.Logger()))
	if err != nil {
		return err
	}
	if len(ifaces) == 0 {
		return fmt.Errorf("%s: no interfaces selected", path)
	}

	code, err := cgen.File(ifaces, cgen.Options{
		Prefix: cfg.Prefix,
		Logger: marshal.Logger(),
	})
	if err != nil {
		return err
	}
	if cfg.Out == "" {
		fmt.Print(code)
		return nil
	}
	if err := os.WriteFile(cfg.Out, []byte(code), 0o644); err != nil {
		return fmt.Errorf("writing generated code: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %d interfaces to %s\n", len(ifaces), cfg.Out)
	return nil
}

func readIntrospection(path string) (*dbusgen.ObjectDescription, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	desc, err := dbusgen.ParseIntrospection(bs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return desc, nil
}

func runDescribe(env *command.Env, path string) error {
	if err := setupLogging(); err != nil {
		return err
	}
	desc, err := readIntrospection(path)
	if err != nil {
		return err
	}
	for i, iface := range collectInterfaces(desc, marshal.Logger()) {
		if i > 0 {
			fmt.Println()
		}
		fmt.Println(iface)
		out := indenter{prefix: "  "}
		for _, msg := range skipped(iface) {
			out.s(msg)
		}
	}
	return nil
}
