package main

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// openSerialPort opens path as a raw, non-canonical tty at baud,
// satisfying driverrt.SerialPort. Grounded on kiss.go's use of termios
// to put a serial line into 8N1 raw mode before framing KISS packets
// over it, generalized from AX.25 framing to this package's
// newline-delimited command/event protocol.
func openSerialPort(path string, baud int) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}

	rate, ok := baudRates[baud]
	if !ok {
		f.Close()
		return nil, fmt.Errorf("serial port %s: unsupported baud rate %d", path, baud)
	}

	termios, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("serial port %s: get termios: %w", path, err)
	}

	cfmakeraw(termios)
	termios.Ispeed = rate
	termios.Ospeed = rate

	if err := unix.IoctlSetTermios(int(f.Fd()), unix.TCSETS, termios); err != nil {
		f.Close()
		return nil, fmt.Errorf("serial port %s: set termios: %w", path, err)
	}

	return f, nil
}

var baudRates = map[int]uint32{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
}

// cfmakeraw mirrors glibc's cfmakeraw(3): disables canonical mode,
// echo, signal generation and input/output processing so every byte
// the device writes is delivered to Poll unmodified.
func cfmakeraw(t *unix.Termios) {
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 1
}
