package grpccas

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"xdao.co/keyaudit/cidutil"
	"xdao.co/keyaudit/storage"
	"xdao.co/keyaudit/storage/localfs"
	"xdao.co/keyaudit/storage/testkit"
)

func serveCAS(t *testing.T, cas storage.CAS) *Client {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterBlockStoreServer(srv, &Server{CAS: cas})
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close() })

	c := NewFromConn(cc)
	c.Timeout = 2 * time.Second
	return c
}

func TestGRPCCAS_LocalFSConformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		cas, err := localfs.New(t.TempDir())
		if err != nil {
			t.Fatalf("localfs.New: %v", err)
		}
		return serveCAS(t, cas)
	})
}

// lyingCAS hands back bytes that do not match the requested CID.
type lyingCAS struct{ storage.CAS }

func (lyingCAS) Get(cid.Cid) ([]byte, error) { return []byte("forged"), nil }
func (lyingCAS) Has(cid.Cid) bool           { return true }

func TestGRPCCAS_ServerRejectsForgedBlock(t *testing.T) {
	client := serveCAS(t, lyingCAS{})
	id, err := cidutil.Sum([]byte("genuine"))
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	if _, err := client.Get(id); !errors.Is(err, storage.ErrCIDMismatch) {
		t.Fatalf("Get forged: got %v, want ErrCIDMismatch", err)
	}
}

func TestGRPCCAS_MissingBackend(t *testing.T) {
	client := serveCAS(t, nil)
	if _, err := client.Put([]byte("x")); err == nil {
		t.Fatalf("Put without backend succeeded")
	}
}

func TestIsRemoteAndDial(t *testing.T) {
	if !IsRemote("grpc://127.0.0.1:7777") {
		t.Fatalf("IsRemote(grpc://...) = false")
	}
	if IsRemote("/tmp/snapshots") {
		t.Fatalf("IsRemote(path) = true")
	}
	if _, err := Dial("grpc://", DialOptions{}); err == nil {
		t.Fatalf("Dial(empty target) succeeded")
	}
	c, err := Dial("grpc://127.0.0.1:7777/", DialOptions{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
