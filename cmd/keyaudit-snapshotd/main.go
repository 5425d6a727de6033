package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"

	"google.golang.org/grpc"

	"xdao.co/keyaudit/config"
	"xdao.co/keyaudit/storage/grpccas"
	"xdao.co/keyaudit/storage/localfs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// run serves a snapshot directory until ctx is done.
func run(ctx context.Context, args []string, errOut io.Writer) int {
	fs := flag.NewFlagSet("keyaudit-snapshotd", flag.ContinueOnError)
	fs.SetOutput(errOut)
	listen := fs.String("listen", "127.0.0.1:7777", "listen address")
	dir := fs.String("dir", "", "snapshot directory to serve")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *dir == "" {
		fmt.Fprintln(errOut, "missing --dir")
		return 2
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 2
	}
	logger := cfg.Logger(errOut)

	cas, err := localfs.New(*dir)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer lis.Close()

	s := grpc.NewServer()
	grpccas.RegisterBlockStoreServer(s, &grpccas.Server{CAS: cas, Logger: logger})

	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	fmt.Fprintf(errOut, "keyaudit-snapshotd listening on %s (dir=%s)\n", lis.Addr().String(), cas.Root())
	if err := s.Serve(lis); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}
