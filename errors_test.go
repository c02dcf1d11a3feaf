package casm

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"testing"
)

func ExampleError() {
	fmt.Println(&Error{
		Inner:   nil,
		Kind:    ErrBadInput,
		Message: "test",
		Op:      "ExampleError",
	})

	fmt.Println(&Error{
		Inner:   io.ErrUnexpectedEOF,
		Kind:    ErrTransient,
		Message: "response cut short",
		Op:      "Fetch",
	})
	err := &Error{
		Inner: &Error{
			Inner:   io.ErrUnexpectedEOF,
			Kind:    ErrTransient,
			Message: "response cut short",
			Op:      "Fetch",
		},
		Kind: ErrStoreTransient,
	}
	fmt.Println(err)
	fmt.Println(fmt.Errorf("somepackage: oops: %w", &Error{
		Inner:   io.ErrUnexpectedEOF,
		Kind:    ErrTransient,
		Message: "response cut short",
		Op:      "Fetch",
	}))

	// Output:
	// ExampleError [BadInput]: test
	// Fetch [TransientNetwork]: response cut short: unexpected EOF
	// Fetch [TransientNetwork]: response cut short: unexpected EOF
	// somepackage: oops: Fetch [TransientNetwork]: response cut short: unexpected EOF
}

type kindTestcase struct {
	Err       error
	BadInput  bool
	Transient bool
	Tool      bool
}

func (tc kindTestcase) Run(t *testing.T) {
	t.Log(tc.Err)
	if got, want := errors.Is(tc.Err, ErrBadInput), tc.BadInput; got != want {
		t.Errorf("%v: got: %v, want: %v", ErrBadInput, got, want)
	}
	if got, want := errors.Is(tc.Err, ErrTransient), tc.Transient; got != want {
		t.Errorf("%v: got: %v, want: %v", ErrTransient, got, want)
	}
	if got, want := errors.Is(tc.Err, ErrTool), tc.Tool; got != want {
		t.Errorf("%v: got: %v, want: %v", ErrTool, got, want)
	}
}

func TestErrorKinds(t *testing.T) {
	tt := []kindTestcase{
		// 0: BadInput
		{
			Err: &Error{
				Inner: errors.New("rejected"),
				Kind:  ErrBadInput,
			},
			BadInput: true,
		},
		// 1: Transient
		{
			Err: &Error{
				Inner: errors.New("flaky"),
				Kind:  ErrTransient,
			},
			Transient: true,
		},
		// 2: Tool, via constructor
		{
			Err:  ToolError("nmap", 1, "oops\n"),
			Tool: true,
		},
		// 3: Wrapped, both kinds visible
		{
			Err: &Error{
				Kind: ErrTransient,
				Inner: &Error{
					Inner: errors.New("rejected"),
					Kind:  ErrBadInput,
				},
			},
			BadInput:  true,
			Transient: true,
		},
	}

	for i, tc := range tt {
		t.Run(strconv.Itoa(i), tc.Run)
	}
}

func TestToolError(t *testing.T) {
	err := ToolError("subfinder", 2, "  panic: boom \n")
	if got, want := err.Error(), "subfinder [EnumerationToolError]: exit status 2: panic: boom"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
}
