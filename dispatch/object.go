package dispatch

import (
	"golang.org/x/text/language"

	addin "github.com/wippyai/native-addin"
	"github.com/wippyai/native-addin/variant"
	"github.com/wippyai/native-addin/wire"
)

// InterfaceVersion is returned by GetInfo.
const InterfaceVersion = 2000

// DefaultMessageCode is the code attached to failures reported to the host.
const DefaultMessageCode = 11

// Severity codes accepted by Connection.AddError.
const (
	SeverityNone          uint16 = 1000
	SeverityOrdinary      uint16 = 1001
	SeverityAttention     uint16 = 1002
	SeverityImportant     uint16 = 1003
	SeverityVeryImportant uint16 = 1004
	SeverityInfo          uint16 = 1005
	SeverityFail          uint16 = 1006
)

// Connection is the host's error-reporting channel passed to Init.
type Connection interface {
	AddError(code uint16, source, descr string, scode int32) bool
}

// ConnectionFunc adapts a function to Connection.
type ConnectionFunc func(code uint16, source, descr string, scode int32) bool

func (f ConnectionFunc) AddError(code uint16, source, descr string, scode int32) bool {
	return f(code, source, descr, scode)
}

// Object is the component interface the host drives. Names are UTF-16,
// values are wire records addressed in the memory set by SetMemManager,
// and returned names are buffers allocated there (0 means null).
type Object interface {
	Init(conn Connection) bool
	SetMemManager(mm addin.MemoryManager) bool
	GetInfo() int32
	Done()
	RegisterExtensionAs() (uint32, bool)

	GetNProps() int32
	FindProp(name []uint16) int32
	GetPropName(num, alias int32) uint32
	GetPropVal(num int32, out uint32) bool
	SetPropVal(num int32, in uint32) bool
	IsPropReadable(num int32) bool
	IsPropWritable(num int32) bool

	GetNMethods() int32
	FindMethod(name []uint16) int32
	GetMethodName(num, alias int32) uint32
	GetNParams(num int32) int32
	GetParamDefValue(method, param int32, out uint32) bool
	HasRetVal(method int32) bool
	CallAsProc(method int32, params uint32, count int32) bool
	CallAsFunc(method int32, ret, params uint32, count int32) bool

	SetLocale(loc []uint16)
}

// Instance is an Object that can also be driven in process with Go
// values. Every Adapter is an Instance.
type Instance interface {
	Object

	ClassName() string
	Ready() bool
	Diagnostic() string
	Locale() language.Tag

	PropertyCount() int
	MethodCount() int
	LookupProperty(name string) int
	LookupMethod(name string) int
	PropertyName(i, alias int) (string, bool)
	MethodName(i, alias int) (string, bool)
	IsReadable(i int) bool
	IsWritable(i int) bool
	GetProperty(i int) (variant.Value, bool)
	SetProperty(i int, v variant.Value) bool
	MethodArity(i int) int
	HasOptionalDefault(method, param int) bool
	Invoke(method int, args *wire.ArgList) (variant.Value, bool)
}

// Messenger sends informational messages to the host connection.
type Messenger interface {
	Message(msg string, code int32)
}

// Binder is implemented by objects that want a Messenger for the adapter
// wrapping them. Bind is called once, right after construction.
type Binder interface {
	Bind(m Messenger)
}

// Finalizer is implemented by objects that release resources when the
// host tears the connection down.
type Finalizer interface {
	Done()
}
