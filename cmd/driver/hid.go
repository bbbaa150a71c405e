package main

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// hidrawDevice implements driverrt.HIDDevice over a Linux /dev/hidrawN
// node, issuing the kernel's HIDIOCSFEATURE/HIDIOCGFEATURE ioctls
// directly since no HID report library is present anywhere in the
// retrieved corpus - jochenvg/go-udev (already wired in
// internal/driverrt for device discovery) stops at enumerating the
// device node, not talking its wire protocol.
type hidrawDevice struct {
	file       *os.File
	reportSize int
}

// openHIDRawDevice opens path as a hidraw device node. reportSize
// bounds the feature report buffer, including the leading report-ID
// byte.
func openHIDRawDevice(path string, reportSize int) (*hidrawDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open hidraw device %s: %w", path, err)
	}
	return &hidrawDevice{file: f, reportSize: reportSize}, nil
}

func (d *hidrawDevice) WriteFeatureReport(report []byte) error {
	buf := make([]byte, len(report))
	copy(buf, report)
	return hidIoctl(d.file.Fd(), hidiocSFeature(len(buf)), buf)
}

func (d *hidrawDevice) ReadFeatureReport(reportID byte) ([]byte, error) {
	buf := make([]byte, d.reportSize)
	buf[0] = reportID
	if err := hidIoctl(d.file.Fd(), hidiocGFeature(len(buf)), buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *hidrawDevice) Close() error {
	return d.file.Close()
}

// The constants and shift widths below mirror Linux's
// include/uapi/asm-generic/ioctl.h _IOC encoding, which hidraw's
// HIDIOCSFEATURE(len)/HIDIOCGFEATURE(len) macros are built from.
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocWrite = 1
	iocRead  = 2

	hidIOCType = 'H'
)

func ioc(dir, nr, size uintptr) uintptr {
	return (dir << iocDirShift) | (hidIOCType << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift)
}

func hidiocSFeature(len int) uintptr {
	return ioc(iocWrite|iocRead, 0x06, uintptr(len))
}

func hidiocGFeature(len int) uintptr {
	return ioc(iocWrite|iocRead, 0x07, uintptr(len))
}

func hidIoctl(fd uintptr, op uintptr, buf []byte) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, op, uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return errno
	}
	return nil
}
