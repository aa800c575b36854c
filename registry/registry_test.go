package registry

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/native-addin/dispatch"
	"github.com/wippyai/native-addin/errors"
	"github.com/wippyai/native-addin/member"
	"github.com/wippyai/native-addin/variant"
	"github.com/wippyai/native-addin/wire"
)

type echo struct {
	done bool
}

func (e *echo) Done() { e.done = true }

func echoClass(t testing.TB, name string) *dispatch.Class[*echo] {
	t.Helper()
	table, err := member.NewBuilder[*echo](name).
		Method("Echo", "Эхо", 1, func(_ *echo, args member.Args) (variant.Value, error) {
			return args.Get(0), nil
		}).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	class, err := dispatch.NewClass(table, func() *echo { return &echo{} })
	if err != nil {
		t.Fatal(err)
	}
	return class
}

func TestRegisterAndNames(t *testing.T) {
	r := New()
	for _, name := range []string{"Alpha", "Beta"} {
		if err := r.Register(echoClass(t, name)); err != nil {
			t.Fatal(err)
		}
	}
	if got := r.ClassNames(); got != "Alpha|Beta" {
		t.Errorf("ClassNames() = %q", got)
	}
	if diff := cmp.Diff([]string{"Alpha", "Beta"}, r.Classes()); diff != "" {
		t.Errorf("Classes() mismatch (-want +got):\n%s", diff)
	}

	err := r.Register(echoClass(t, "ALPHA"))
	if !errors.IsKind(err, errors.KindRegistration) {
		t.Errorf("duplicate registration error = %v", err)
	}
	if err := r.Register(nil); err == nil {
		t.Error("nil factory accepted")
	}
	if err := r.Register(echoClass(t, "A|B")); err == nil {
		t.Error("name containing '|' accepted")
	}
	if f, ok := r.Lookup("beta"); !ok || f.Name() != "Beta" {
		t.Errorf("Lookup(beta) = %v, %v", f, ok)
	}
}

func TestCreateGetDestroy(t *testing.T) {
	r := New()
	if err := r.Register(echoClass(t, "Echo")); err != nil {
		t.Fatal(err)
	}

	h, obj, err := r.Create("echo")
	if err != nil {
		t.Fatal(err)
	}
	if h == 0 {
		t.Fatal("handle 0 issued")
	}
	got, ok := r.Get(h)
	if !ok || got != obj {
		t.Fatal("Get returned a different object")
	}
	if obj.ClassName() != "Echo" {
		t.Errorf("ClassName() = %q", obj.ClassName())
	}

	obj.Init(dispatch.ConnectionFunc(func(uint16, string, string, int32) bool { return true }))
	v, ok := obj.Invoke(obj.LookupMethod("эхо"), wire.NewArgList(variant.Int(4)))
	if !ok || v != variant.Int(4) {
		t.Errorf("Echo = %v, %v", v, ok)
	}

	if !r.Destroy(h) {
		t.Fatal("Destroy failed")
	}
	if obj.Ready() {
		t.Error("object still ready after Destroy")
	}
	if obj.(*dispatch.Adapter[*echo]).Object().done != true {
		t.Error("Done not propagated")
	}
	if r.Destroy(h) {
		t.Error("second Destroy succeeded")
	}
	if _, ok := r.Get(h); ok {
		t.Error("Get after Destroy succeeded")
	}
	if _, ok := r.Get(0); ok {
		t.Error("handle 0 resolved")
	}

	h2, _, _ := r.Create("Echo")
	if h2 != h {
		t.Errorf("handle not reused: %d, want %d", h2, h)
	}
}

func TestCreateUnknown(t *testing.T) {
	r := New()
	_, _, err := r.Create("Nope")
	if !errors.IsKind(err, errors.KindNotFound) {
		t.Errorf("error = %v, want not_found", err)
	}
}

func TestClose(t *testing.T) {
	r := New()
	_ = r.Register(echoClass(t, "Echo"))
	_, a, _ := r.Create("Echo")
	_, b, _ := r.Create("Echo")
	a.Init(dispatch.ConnectionFunc(func(uint16, string, string, int32) bool { return true }))
	b.Init(dispatch.ConnectionFunc(func(uint16, string, string, int32) bool { return true }))

	if r.Len() != 2 {
		t.Fatalf("Len() = %d", r.Len())
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if a.Ready() || b.Ready() {
		t.Error("objects still ready after Close")
	}
	if _, _, err := r.Create("Echo"); !stderrors.Is(err, ErrClosed) {
		t.Errorf("Create after Close = %v", err)
	}
	if err := r.Register(echoClass(t, "Other")); !stderrors.Is(err, ErrClosed) {
		t.Errorf("Register after Close = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestEach(t *testing.T) {
	r := New()
	_ = r.Register(echoClass(t, "Echo"))
	for range 3 {
		_, _, _ = r.Create("Echo")
	}
	seen := 0
	r.Each(func(h Handle, class string, _ dispatch.Instance) bool {
		seen++
		return seen < 2
	})
	if seen != 2 {
		t.Errorf("Each visited %d, want 2", seen)
	}
}

func TestConcurrentUse(t *testing.T) {
	r := New()
	var g errgroup.Group
	for i := range 8 {
		g.Go(func() error {
			name := fmt.Sprintf("Class%d", i)
			if err := r.Register(echoClass(t, name)); err != nil {
				return err
			}
			for range 20 {
				h, obj, err := r.Create(name)
				if err != nil {
					return err
				}
				if got, ok := r.Get(h); !ok || got != obj {
					return fmt.Errorf("handle %d resolved to a different object", h)
				}
				if !r.Destroy(h) {
					return fmt.Errorf("destroy %d failed", h)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if len(r.Classes()) != 8 || r.Len() != 0 {
		t.Errorf("classes = %d, live = %d", len(r.Classes()), r.Len())
	}
}

func TestDefault(t *testing.T) {
	if Default() != Default() {
		t.Fatal("Default() not stable")
	}
	name := "DefaultEchoForTest"
	if err := Register(echoClass(t, name)); err != nil {
		t.Fatal(err)
	}
	if _, ok := Default().Lookup(name); !ok {
		t.Error("class missing from default registry")
	}
}
