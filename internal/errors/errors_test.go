package errors

import (
	"fmt"
	"io"
	"syscall"
	"testing"
)

func TestTransportError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  TransportError
		want string
	}{
		{
			name: "retryable",
			err:  TransportError{Op: "write", Addr: "10.0.0.7:51234", Err: syscall.EAGAIN, Retryable: true},
			want: "write 10.0.0.7:51234: resource temporarily unavailable (retryable)",
		},
		{
			name: "non-retryable",
			err:  TransportError{Op: "read", Addr: "10.0.0.7:51234", Err: io.EOF},
			want: "read 10.0.0.7:51234: EOF",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	err := &TransportError{Op: "read", Addr: "x", Err: io.EOF}
	if !Is(err, io.EOF) {
		t.Error("should unwrap to io.EOF")
	}
}

func TestWrap(t *testing.T) {
	err := Wrap("write", "10.0.0.1:4000", syscall.EAGAIN)
	if err.Op != "write" || err.Addr != "10.0.0.1:4000" {
		t.Errorf("wrong fields: Op=%q Addr=%q", err.Op, err.Addr)
	}
	if !err.Retryable {
		t.Error("EAGAIN should be retryable")
	}
	if Wrap("read", "x", syscall.ECONNRESET).Retryable {
		t.Error("ECONNRESET should not be retryable")
	}
}

func TestPersistenceError(t *testing.T) {
	nf := NotFound("load", "Rin")
	if nf.Error() != "load Rin: not found" {
		t.Errorf("got %q", nf.Error())
	}
	if !Is(nf, ErrNotFound) || Is(nf, ErrCorrupt) {
		t.Error("NotFound should match only ErrNotFound")
	}

	c := Corrupt("load", "Rin", "unexpected %q", "Colour")
	if !Is(c, ErrCorrupt) {
		t.Error("Corrupt should match ErrCorrupt")
	}
	want := `load Rin: corrupt record: unexpected "Colour"`
	if c.Error() != want {
		t.Errorf("got %q, want %q", c.Error(), want)
	}
}

func TestOverflowError_Format(t *testing.T) {
	err := &OverflowError{Dir: "input", Limit: 1024}
	if got := err.Error(); got != "input overflow (limit 1024 bytes)" {
		t.Errorf("got %q", got)
	}
}

func TestCopyoverError(t *testing.T) {
	inner := fmt.Errorf("exec format error")
	err := &CopyoverError{Stage: "exec", Err: inner}
	if err.Error() != "copyover exec: exec format error" {
		t.Errorf("got %q", err.Error())
	}
	if !Is(err, inner) {
		t.Error("should unwrap to inner error")
	}
}

func TestConfigError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  ConfigError
		want string
	}{
		{
			name: "with value and hint",
			err: ConfigError{
				Field:   "port",
				Value:   99999,
				Message: "out of range 1-65535",
				Hint:    "use a port between 1 and 65535",
			},
			want: "config: --port=99999: out of range 1-65535\n  hint: use a port between 1 and 65535",
		},
		{
			name: "missing value no hint",
			err: ConfigError{
				Field:   "data-dir",
				Message: "required",
			},
			want: "config: --data-dir: required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"retryable transport", &TransportError{Op: "write", Addr: "x", Err: io.EOF, Retryable: true}, true},
		{"non-retryable transport", &TransportError{Op: "write", Addr: "x", Err: io.EOF}, false},
		{"wrapped EAGAIN", fmt.Errorf("write: %w", syscall.EAGAIN), true},
		{"EINTR", syscall.EINTR, true},
		{"plain error", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsWouldBlock(t *testing.T) {
	if !IsWouldBlock(fmt.Errorf("read: %w", syscall.EAGAIN)) {
		t.Error("wrapped EAGAIN should be would-block")
	}
	if IsWouldBlock(io.EOF) {
		t.Error("EOF is not would-block")
	}
}

func TestSentinels(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrCorrupt, ErrPoolExhausted, ErrShutdown, ErrNoCopyover,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && Is(a, b) {
				t.Errorf("sentinel %d and %d should not match", i, j)
			}
		}
	}
}
