package script

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
	"go.uber.org/zap"

	"github.com/wippyai/native-addin/dispatch"
	"github.com/wippyai/native-addin/errors"
	"github.com/wippyai/native-addin/member"
	"github.com/wippyai/native-addin/variant"
)

// MaxSteps bounds the Starlark execution steps of one member call.
const MaxSteps = 10_000_000

// Globals the script may define.
const (
	globalClassName = "class_name"
	globalInit      = "init"
	globalDone      = "done"
)

const objectKey = "addin.object"

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// Script is a class whose members are declared by a Starlark file. It is a
// registry.Factory.
type Script struct {
	class    *dispatch.Class[*Object]
	init     starlark.Callable
	done     starlark.Callable
	filename string
}

// Load reads and compiles a script file.
func Load(path string, opts ...dispatch.ClassOption) (*Script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseScript, errors.KindNotFound, err, "read script")
	}
	return Compile(path, src, opts...)
}

// Compile executes src once to collect its declarations. src may be a
// string, []byte or io.Reader.
//
// The script declares members with two builtins:
//
//	property(name, local="", get=None, set=None)
//	method(name, local, fn)
//
// Getters take self, setters take self and the value, methods take self
// and their arguments. Parameters with defaults are optional. The class is
// named by the class_name global, or the file name without extension.
func Compile(filename string, src any, opts ...dispatch.ClassOption) (*Script, error) {
	d := &declarations{}
	thread := &starlark.Thread{
		Name: filename,
		Print: func(_ *starlark.Thread, msg string) {
			Logger().Info(msg, zap.String("script", filename))
		},
	}
	predeclared := starlark.StringDict{
		"property": starlark.NewBuiltin("property", d.property),
		"method":   starlark.NewBuiltin("method", d.method),
		"message":  starlark.NewBuiltin("message", message),
	}

	globals, err := starlark.ExecFileOptions(fileOptions, thread, filename, src, predeclared)
	if err != nil {
		return nil, errors.ParseFailed(errors.PhaseScript, filename, err)
	}
	globals.Freeze()

	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if v, ok := globals[globalClassName]; ok {
		s, ok := starlark.AsString(v)
		if !ok {
			return nil, errors.InvalidInput(errors.PhaseScript, "class_name must be a string")
		}
		name = s
	}

	s := &Script{filename: filename}
	if s.init, err = optionalHook(globals, globalInit); err != nil {
		return nil, err
	}
	if s.done, err = optionalHook(globals, globalDone); err != nil {
		return nil, err
	}

	b := member.NewBuilder[*Object](name)
	for _, p := range d.props {
		b.AddProperty(p)
	}
	for _, m := range d.methods {
		b.AddMethod(m)
	}
	table, err := b.Build()
	if err != nil {
		return nil, err
	}
	s.class, err = dispatch.NewClass(table, s.newObject, opts...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func optionalHook(globals starlark.StringDict, name string) (starlark.Callable, error) {
	v, ok := globals[name]
	if !ok || v == starlark.None {
		return nil, nil
	}
	fn, ok := v.(*starlark.Function)
	if !ok || fn.NumParams() != 1 {
		return nil, errors.InvalidInput(errors.PhaseScript, name+" must be a function of self")
	}
	return fn, nil
}

// Name returns the class name.
func (s *Script) Name() string { return s.class.Name() }

// Filename returns the file the script was compiled from.
func (s *Script) Filename() string { return s.filename }

// Class returns the dispatch class for the script.
func (s *Script) Class() *dispatch.Class[*Object] { return s.class }

// New creates an adapter around a fresh object.
func (s *Script) New() dispatch.Instance { return s.class.New() }

func (s *Script) newObject() *Object {
	return &Object{script: s, self: starlark.NewDict(8)}
}

// Object is one instance of a script class. Its state is the mutable dict
// passed to every member as self.
type Object struct {
	script    *Script
	self      *starlark.Dict
	initErr   error
	messenger dispatch.Messenger
	once      sync.Once
	started   atomic.Bool
	mu        sync.Mutex
}

// Bind stores the messenger used by the message builtin.
func (o *Object) Bind(m dispatch.Messenger) { o.messenger = m }

// Self returns the object's state dict.
func (o *Object) Self() *starlark.Dict { return o.self }

// Done runs the script's done(self) hook for objects that were used.
func (o *Object) Done() {
	if o.script.done == nil || !o.started.Load() {
		return
	}
	if _, err := o.call("done", o.script.done); err != nil {
		Logger().Warn("done hook failed", zap.String("class", o.script.Name()), zap.Error(err))
	}
}

// call runs fn(self, args...). init(self) runs before the first member call
// so that it can already send messages.
func (o *Object) call(name string, fn starlark.Callable, args ...starlark.Value) (starlark.Value, error) {
	o.once.Do(func() {
		o.started.Store(true)
		if o.script.init != nil {
			_, o.initErr = o.callLocked(globalInit, o.script.init)
		}
	})
	if o.initErr != nil {
		return nil, o.initErr
	}
	return o.callLocked(name, fn, args...)
}

func (o *Object) callLocked(name string, fn starlark.Callable, args ...starlark.Value) (starlark.Value, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	thread := &starlark.Thread{
		Name: o.script.Name() + "." + name,
		Print: func(_ *starlark.Thread, msg string) {
			Logger().Info(msg, zap.String("class", o.script.Name()), zap.String("member", name))
		},
	}
	thread.SetLocal(objectKey, o)
	thread.SetMaxExecutionSteps(MaxSteps)

	v, err := starlark.Call(thread, fn, append(starlark.Tuple{o.self}, args...), nil)
	if err != nil {
		return nil, scriptError(err)
	}
	return v, nil
}

// scriptError turns a Starlark failure into a diagnostic. fail("x")
// yields "x".
func scriptError(err error) error {
	var ee *starlark.EvalError
	if stderrors.As(err, &ee) {
		return dispatch.Diagnostic(strings.TrimPrefix(ee.Msg, "fail: "))
	}
	return err
}

// message(text, code=0) forwards text to the host connection of the
// object running the current call.
func message(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var text string
	var code int
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "text", &text, "code?", &code); err != nil {
		return nil, err
	}
	if o, ok := thread.Local(objectKey).(*Object); ok && o.messenger != nil {
		o.messenger.Message(text, int32(code))
	}
	return starlark.None, nil
}

type declarations struct {
	props   []member.Property[*Object]
	methods []member.Method[*Object]
}

func (d *declarations) property(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, local string
	var get, set starlark.Value = starlark.None, starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "local?", &local, "get?", &get, "set?", &set); err != nil {
		return nil, err
	}

	p := member.Property[*Object]{Name: name, LocalName: local}
	if get != starlark.None {
		fn, err := function(b.Name(), "get", get, 1)
		if err != nil {
			return nil, err
		}
		p.Get = func(o *Object) (variant.Value, error) {
			v, err := o.call(name, fn)
			if err != nil {
				return nil, err
			}
			return FromStarlark(v, name)
		}
	}
	if set != starlark.None {
		fn, err := function(b.Name(), "set", set, 2)
		if err != nil {
			return nil, err
		}
		p.Set = func(o *Object, v variant.Value) error {
			_, err := o.call(name, fn, ToStarlark(v))
			return err
		}
	}
	d.props = append(d.props, p)
	return starlark.None, nil
}

func (d *declarations) method(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, local string
	var v starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "local", &local, "fn", &v); err != nil {
		return nil, err
	}
	fn, err := function(b.Name(), "fn", v, -1)
	if err != nil {
		return nil, err
	}

	arity := fn.NumParams() - 1
	optional := 0
	for i := 1; i < fn.NumParams(); i++ {
		if fn.ParamDefault(i) != nil {
			optional++
		}
	}
	required := arity - optional

	call := func(o *Object, args member.Args) (variant.Value, error) {
		// Trailing absent optional arguments are dropped so the script's
		// defaults apply.
		n := args.Len()
		for n > required && variant.IsAbsent(args.Get(n-1)) {
			n--
		}
		in := make([]starlark.Value, n)
		for i := range in {
			in[i] = ToStarlark(args.Get(i))
		}
		res, err := o.call(name, fn, in...)
		if err != nil {
			return nil, err
		}
		return FromStarlark(res, name)
	}

	d.methods = append(d.methods, member.Method[*Object]{
		Name:      name,
		LocalName: local,
		Arity:     arity,
		Optional:  optional,
		Call:      call,
	})
	return starlark.None, nil
}

// function checks that v is a script function taking self plus a fixed
// number of parameters. params < 0 accepts any count of ordinary
// parameters.
func function(builtin, arg string, v starlark.Value, params int) (*starlark.Function, error) {
	fn, ok := v.(*starlark.Function)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseScript, []string{builtin, arg}, "function", v.Type())
	}
	if fn.HasVarargs() || fn.HasKwargs() || fn.NumKwonlyParams() > 0 {
		return nil, errors.InvalidInput(errors.PhaseScript, fn.Name()+": *args, **kwargs and keyword-only parameters are not supported")
	}
	if fn.NumParams() < 1 {
		return nil, errors.InvalidInput(errors.PhaseScript, fn.Name()+" must take self")
	}
	if params >= 0 && fn.NumParams() != params {
		return nil, errors.ArityMismatch(fn.Name(), params, fn.NumParams())
	}
	return fn, nil
}
