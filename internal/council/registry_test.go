package council

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"
)

func testLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestRegistryUnknownToolRejected(t *testing.T) {
	r := NewRegistry(time.Second, testLogger())
	res := r.Invoke(context.Background(), "no_such_tool", nil)
	if res.Success {
		t.Fatal("unknown tool must not succeed")
	}
	if res.ErrKind != ErrKindRejected {
		t.Fatalf("err kind = %q, want rejected", res.ErrKind)
	}
}

func TestRegistryTimeout(t *testing.T) {
	r := NewRegistry(30*time.Millisecond, testLogger())
	r.Register("slow", func(ctx context.Context, _ []any) (string, error) {
		select {
		case <-time.After(time.Second):
			return "too late", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	start := time.Now()
	res := r.Invoke(context.Background(), "slow", nil)
	if res.Success {
		t.Fatal("slow tool must time out")
	}
	if res.ErrKind != ErrKindTimeout {
		t.Fatalf("err kind = %q, want timeout", res.ErrKind)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("invoke blocked for %s, deadline not enforced", elapsed)
	}
}

func TestRegistryPanicRecovered(t *testing.T) {
	r := NewRegistry(time.Second, testLogger())
	r.Register("boom", func(context.Context, []any) (string, error) {
		panic("unexpected state")
	})
	res := r.Invoke(context.Background(), "boom", nil)
	if res.Success {
		t.Fatal("panicking tool must report failure")
	}
	if !strings.Contains(res.Payload, "boom") {
		t.Fatalf("payload %q should name the tool", res.Payload)
	}
}

func TestRegistryExplicitKind(t *testing.T) {
	r := NewRegistry(time.Second, testLogger())
	r.Register("lookup", func(context.Context, []any) (string, error) {
		return "", &ToolError{Kind: ErrKindNotFound, Err: errors.New("verse 2:999 does not exist")}
	})
	res := r.Invoke(context.Background(), "lookup", nil)
	if res.ErrKind != ErrKindNotFound {
		t.Fatalf("err kind = %q, want not_found", res.ErrKind)
	}
}

func TestRegistrySuccessPayload(t *testing.T) {
	r := NewRegistry(time.Second, testLogger())
	r.Register("echo", func(_ context.Context, args []any) (string, error) {
		if len(args) != 1 {
			return "", errors.New("want one arg")
		}
		return args[0].(string), nil
	})
	res := r.Invoke(context.Background(), "echo", []any{"as-salamu alaykum"})
	if !res.Success || res.Payload != "as-salamu alaykum" {
		t.Fatalf("got %+v", res)
	}
}
