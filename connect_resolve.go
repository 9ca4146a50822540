package rpcsocket

import (
	"context"
	"net"
	"net/netip"
)

// ResolveOp resolves a host:port pair to a set of candidate addresses.
type ResolveOp struct{}

// Run resolves host and port, composing ctx's cancellation with hook so an
// external Cancel aborts an in-flight lookup with the error it was given.
func (ResolveOp) Run(ctx context.Context, hook *CancelHook, host, port string) ([]netip.AddrPort, error) {
	return resolveEndpoints(ctx, hook, host, port)
}

func resolveEndpoints(ctx context.Context, hook *CancelHook, host, port string) ([]netip.AddrPort, error) {
	lookupCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	myErr := ErrOperationAborted
	hook.Install(func(err error) {
		myErr = err
		cancel()
	})
	defer hook.Clear()

	portNum, err := net.DefaultResolver.LookupPort(lookupCtx, "tcp", port)
	if err != nil {
		if lookupCtx.Err() != nil {
			return nil, myErr
		}
		return nil, NewTransportError(err)
	}

	ips, err := net.DefaultResolver.LookupIPAddr(lookupCtx, host)
	if err != nil {
		if lookupCtx.Err() != nil {
			return nil, myErr
		}
		return nil, NewTransportError(err)
	}

	out := make([]netip.AddrPort, 0, len(ips))
	for _, ip := range ips {
		addr, ok := netip.AddrFromSlice(ip.IP)
		if !ok {
			continue
		}
		out = append(out, netip.AddrPortFrom(addr.Unmap(), uint16(portNum)))
	}
	if len(out) == 0 {
		return nil, NewTransportError(&net.DNSError{Err: "no usable addresses", Name: host})
	}
	return out, nil
}
