package receipt

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"
)

// Printer sends a rendered receipt to hardware.
type Printer interface {
	Print(ctx context.Context, data []byte) error
	Name() string
}

type networkPrinter struct {
	address      string
	dialTimeout  time.Duration
	writeTimeout time.Duration
}

// NewNetworkPrinter targets a raw TCP printer, normally on port 9100.
func NewNetworkPrinter(address string) Printer {
	return &networkPrinter{
		address:      address,
		dialTimeout:  5 * time.Second,
		writeTimeout: 10 * time.Second,
	}
}

func (p *networkPrinter) Name() string { return "network " + p.address }

func (p *networkPrinter) Print(ctx context.Context, data []byte) error {
	dialer := net.Dialer{Timeout: p.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return fmt.Errorf("printer: connect %s: %w", p.address, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(p.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("printer: write %s: %w", p.address, err)
	}
	return nil
}

type devicePrinter struct {
	path string
}

// NewDevicePrinter writes to a character device such as /dev/usb/lp0.
func NewDevicePrinter(path string) Printer {
	return &devicePrinter{path: path}
}

func (p *devicePrinter) Name() string { return "device " + p.path }

func (p *devicePrinter) Print(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.OpenFile(p.path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("printer: open %s: %w", p.path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("printer: write %s: %w", p.path, err)
	}
	return nil
}

type noopPrinter struct{}

// NewNoopPrinter accepts every job and discards it.
func NewNoopPrinter() Printer {
	return noopPrinter{}
}

func (noopPrinter) Name() string { return "none" }

func (noopPrinter) Print(context.Context, []byte) error { return nil }

// NewPrinter picks a transport: a network address wins over a device path,
// and with neither configured receipts are only rendered.
func NewPrinter(address string, device string) Printer {
	switch {
	case address != "":
		return NewNetworkPrinter(address)
	case device != "":
		return NewDevicePrinter(device)
	default:
		return NewNoopPrinter()
	}
}
