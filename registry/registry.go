package registry

import (
	stderrors "errors"
	"strings"
	"sync"

	"github.com/wippyai/native-addin/dispatch"
	"github.com/wippyai/native-addin/errors"
	"github.com/wippyai/native-addin/member"
)

var ErrClosed = stderrors.New("registry closed")

// Handle identifies a live object. Zero is never a valid handle.
type Handle uint32

// Factory creates objects of one class. *dispatch.Class[T] is a Factory.
type Factory interface {
	Name() string
	New() dispatch.Instance
}

// Registry maps class names to factories and handles to live objects.
type Registry struct {
	classes  map[string]Factory
	order    []string
	entries  []entry
	freeList []Handle
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	obj   dispatch.Instance
	class string
	valid bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		classes:  make(map[string]Factory),
		entries:  make([]entry, 0, 16),
		freeList: make([]Handle, 0, 4),
	}
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = New()
	})
	return defaultRegistry
}

// Register adds f to the process-wide registry.
func Register(f Factory) error {
	return Default().Register(f)
}

// MustRegister is Register for init functions.
func MustRegister(f Factory) {
	if err := Register(f); err != nil {
		panic(err)
	}
}

// Register adds a class. Names are unique ignoring case.
func (r *Registry) Register(f Factory) error {
	if f == nil {
		return errors.InvalidInput(errors.PhaseRegistry, "nil factory")
	}
	name := f.Name()
	if name == "" || strings.Contains(name, "|") {
		return errors.Registration(errors.PhaseRegistry, name,
			errors.InvalidInput(errors.PhaseRegistry, "class name must be non-empty and must not contain '|'"))
	}

	key := member.Fold(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if _, dup := r.classes[key]; dup {
		return errors.Registration(errors.PhaseRegistry, name,
			errors.InvalidInput(errors.PhaseRegistry, "class already registered"))
	}
	r.classes[key] = f
	r.order = append(r.order, name)
	return nil
}

// Classes returns the registered class names in registration order.
func (r *Registry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ClassNames returns the class names joined with '|', the list format the
// host expects from a component library.
func (r *Registry) ClassNames() string {
	return strings.Join(r.Classes(), "|")
}

// Lookup returns the factory registered under name, ignoring case.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.classes[member.Fold(name)]
	return f, ok
}

// Create constructs an object of the named class and returns its handle.
func (r *Registry) Create(name string) (Handle, dispatch.Instance, error) {
	f, ok := r.Lookup(name)
	if !ok {
		return 0, nil, errors.NotFound(errors.PhaseRegistry, "class", name)
	}
	obj := f.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, nil, ErrClosed
	}

	e := entry{obj: obj, class: f.Name(), valid: true}
	if len(r.freeList) > 0 {
		h := r.freeList[len(r.freeList)-1]
		r.freeList = r.freeList[:len(r.freeList)-1]
		r.entries[h-1] = e
		return h, obj, nil
	}
	r.entries = append(r.entries, e)
	return Handle(len(r.entries)), obj, nil
}

// Get returns the live object for h.
func (r *Registry) Get(h Handle) (dispatch.Instance, bool) {
	if h == 0 {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := h - 1
	if int(idx) >= len(r.entries) {
		return nil, false
	}
	e := r.entries[idx]
	if !e.valid {
		return nil, false
	}
	return e.obj, true
}

// Destroy tears the object down and releases its handle.
func (r *Registry) Destroy(h Handle) bool {
	if h == 0 {
		return false
	}

	r.mu.Lock()
	idx := h - 1
	if int(idx) >= len(r.entries) || !r.entries[idx].valid {
		r.mu.Unlock()
		return false
	}
	obj := r.entries[idx].obj
	r.entries[idx] = entry{}
	r.freeList = append(r.freeList, h)
	r.mu.Unlock()

	obj.Done()
	return true
}

// Len returns the number of live objects.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, e := range r.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over live objects until fn returns false.
func (r *Registry) Each(fn func(Handle, string, dispatch.Instance) bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i, e := range r.entries {
		if e.valid {
			if !fn(Handle(i+1), e.class, e.obj) {
				break
			}
		}
	}
}

// Close tears down every live object. Further Register and Create calls
// fail with ErrClosed.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	live := make([]dispatch.Instance, 0, len(r.entries))
	for _, e := range r.entries {
		if e.valid {
			live = append(live, e.obj)
		}
	}
	r.entries = nil
	r.freeList = nil
	r.mu.Unlock()

	for _, obj := range live {
		obj.Done()
	}
	return nil
}
