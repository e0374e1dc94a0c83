package transport

import (
	"context"
	"os"
)

// usbTransport writes to a USB printer class device file (/dev/usb/lp0 and
// friends). The kernel driver handles framing; the file just takes bytes.
type usbTransport struct {
	device string
}

type usbConn struct {
	file   *os.File
	device string
}

func (t *usbTransport) Open(_ context.Context) (Conn, error) {
	f, err := os.OpenFile(t.device, os.O_WRONLY, 0)
	if err != nil {
		retryable := !os.IsNotExist(err) // a missing device will not appear on retry
		return nil, &Error{Op: "open", Target: t.device, Err: err, Retryable: retryable}
	}
	return &usbConn{file: f, device: t.device}, nil
}

func (c *usbConn) Send(ctx context.Context, data []byte) error {
	written := 0
	for written < len(data) {
		if err := ctx.Err(); err != nil {
			return &Error{Op: "send", Target: c.device, Err: err, Retryable: false}
		}
		n, err := c.file.Write(data[written:])
		if err != nil {
			return &Error{Op: "send", Target: c.device, Err: err, Retryable: true}
		}
		written += n
	}
	return nil
}

func (c *usbConn) Close() error {
	// Sync before close so the device buffer is handed off completely.
	if err := c.file.Sync(); err != nil {
		_ = c.file.Close()
		return &Error{Op: "close", Target: c.device, Err: err, Retryable: false}
	}
	if err := c.file.Close(); err != nil {
		return &Error{Op: "close", Target: c.device, Err: err, Retryable: false}
	}
	return nil
}

func (t *usbTransport) Probe(_ context.Context) Health {
	info, err := os.Stat(t.device)
	if err != nil {
		return HealthOffline
	}
	if info.Mode()&os.ModeDevice == 0 {
		return HealthUnknown
	}
	return HealthOnline
}
