package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:    PhaseEncode,
				Kind:     KindOverflow,
				Path:     []string{"Calc", "Total"},
				GoType:   "int64",
				WireType: "I4",
				Detail:   "does not fit",
			},
			contains: []string{"[encode]", "overflow", "Calc.Total", "int64", "I4", "does not fit"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseDecode,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[decode]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseInvoke,
				Kind:   KindCallable,
				Detail: "method failed",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[invoke]", "callable", "method failed", "caused by", "underlying error"},
		},
		{
			name:     "wire type only",
			err:      UnsupportedWireType(PhaseDecode, []string{"arg0"}, 7, "TM"),
			contains: []string{"[decode]", "unsupported", "arg0", "wire type TM", "unsupported wire type 7"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseEncode,
		Kind:  KindInvalidData,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseDispatch,
		Kind:  KindArityMismatch,
		Path:  []string{"Add"},
	}

	if !err.Is(&Error{Phase: PhaseDispatch, Kind: KindArityMismatch}) {
		t.Error("Is should match same phase and kind")
	}

	if err.Is(&Error{Phase: PhaseDecode, Kind: KindArityMismatch}) {
		t.Error("Is should not match different phase")
	}

	if err.Is(&Error{Phase: PhaseDispatch, Kind: KindOutOfBounds}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhaseDispatch, Kind: KindArityMismatch}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestIsKind(t *testing.T) {
	inner := AllocationFailed(PhaseEncode, 16, 8)
	outer := Callable("Greet", inner)
	wrapped := fmt.Errorf("call: %w", outer)

	if !IsKind(wrapped, KindCallable) {
		t.Error("IsKind should find outer kind through fmt wrapping")
	}
	if !IsKind(wrapped, KindAllocation) {
		t.Error("IsKind should find kind in cause chain")
	}
	if IsKind(wrapped, KindOverflow) {
		t.Error("IsKind should not match absent kind")
	}
	if IsKind(errors.New("plain"), KindCallable) {
		t.Error("IsKind should not match plain errors")
	}
	if IsKind(nil, KindCallable) {
		t.Error("IsKind(nil) should be false")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseEncode, KindOverflow).
		Path("Calc", "Total").
		GoType("int64").
		WireType("I4").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "i4", "i8").
		Build()

	if err.Phase != PhaseEncode {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseEncode)
	}
	if err.Kind != KindOverflow {
		t.Errorf("Kind = %v, want %v", err.Kind, KindOverflow)
	}
	if len(err.Path) != 2 || err.Path[0] != "Calc" || err.Path[1] != "Total" {
		t.Errorf("Path = %v, want [Calc Total]", err.Path)
	}
	if err.GoType != "int64" {
		t.Errorf("GoType = %v, want 'int64'", err.GoType)
	}
	if err.WireType != "I4" {
		t.Errorf("WireType = %v, want 'I4'", err.WireType)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected i4, got i8" {
		t.Errorf("Detail = %v, want 'expected i4, got i8'", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("UnsupportedWireType", func(t *testing.T) {
		err := UnsupportedWireType(PhaseDecode, nil, 24, "CLSID")
		if err.Kind != KindUnsupported {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUnsupported)
		}
		if err.Value != uint16(24) {
			t.Errorf("Value = %v, want 24", err.Value)
		}
	})

	t.Run("AllocationFailed", func(t *testing.T) {
		err := AllocationFailed(PhaseEncode, 1024, 8)
		if err.Kind != KindAllocation {
			t.Errorf("Kind = %v, want %v", err.Kind, KindAllocation)
		}
		if !strings.Contains(err.Detail, "1024") {
			t.Errorf("Detail = %v, should contain size", err.Detail)
		}
	})

	t.Run("ArityMismatch", func(t *testing.T) {
		err := ArityMismatch("Add", 2, 1)
		if err.Kind != KindArityMismatch || err.Phase != PhaseDispatch {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
		if !strings.Contains(err.Error(), "expected 2 arguments, got 1") {
			t.Errorf("Error() = %q", err.Error())
		}
	})

	t.Run("NotWritable", func(t *testing.T) {
		err := NotWritable("Name")
		if err.Kind != KindNotWritable {
			t.Errorf("Kind = %v, want %v", err.Kind, KindNotWritable)
		}
		if err.Error() == "" {
			t.Error("Error() should not be empty")
		}
	})

	t.Run("NotReadable", func(t *testing.T) {
		err := NotReadable("Secret")
		if err.Kind != KindNotReadable {
			t.Errorf("Kind = %v, want %v", err.Kind, KindNotReadable)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseDispatch, []string{"params"}, 10, 5)
		if err.Kind != KindOutOfBounds {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfBounds)
		}
		if err.Value != 10 {
			t.Errorf("Value = %v, want 10", err.Value)
		}
	})

	t.Run("Overflow", func(t *testing.T) {
		err := Overflow(PhaseEncode, []string{"val"}, int64(1)<<40, "I4")
		if err.Kind != KindOverflow {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOverflow)
		}
		if err.Value != int64(1)<<40 {
			t.Errorf("Value = %v", err.Value)
		}
	})

	t.Run("Registration", func(t *testing.T) {
		cause := errors.New("duplicate")
		err := Registration(PhaseRegistry, "Calc", cause)
		if !errors.Is(err, cause) {
			t.Error("Registration should wrap cause")
		}
	})
}

func TestMissingExportsError(t *testing.T) {
	t.Run("lists exports", func(t *testing.T) {
		err := NewMissingExportsError("host", []string{"memory", "alloc"})
		msg := err.Error()
		for _, s := range []string{"missing_export", "host", "2", "memory", "alloc"} {
			if !strings.Contains(msg, s) {
				t.Errorf("error %q should contain %q", msg, s)
			}
		}
	})

	t.Run("anonymous module", func(t *testing.T) {
		err := NewMissingExportsError("", []string{"alloc"})
		if !strings.Contains(err.Error(), "<anonymous>") {
			t.Errorf("got %q", err.Error())
		}
	})

	t.Run("empty exports", func(t *testing.T) {
		err := NewMissingExportsError("host", nil)
		if !strings.Contains(err.Error(), "no exports specified") {
			t.Errorf("empty error should have specific message, got: %s", err.Error())
		}
	})

	t.Run("errors.Is", func(t *testing.T) {
		err := NewMissingExportsError("host", []string{"alloc"})
		if !errors.Is(err, &MissingExportsError{}) {
			t.Error("errors.Is should match MissingExportsError")
		}
	})
}
