package driverrt

import (
	"context"
	"io"

	"github.com/brutella/dnssd"

	"github.com/charmbracelet/log"
)

// ServiceType is the DNS-SD service type a Driver Runtime advertises
// itself under, so a domain server can discover networked drivers
// without configuration - grounded on dns_sd.go's KISS-over-TCP
// announcement, generalized from "_kiss-tnc._tcp" to this domain's
// driver runtime service.
const ServiceType = "_audiocloud-driver._tcp"

// Advertise announces a Driver Runtime's presence on the local network
// via mDNS/DNS-SD, grounded verbatim on dns_sd.go's
// Config/NewService/NewResponder/Add/Respond sequence - the same
// pure-Go github.com/brutella/dnssd package, generalized from
// announcing a KISS TNC to announcing this package's driver runtime.
func Advertise(ctx context.Context, name string, port int, logger *log.Logger) error {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	cfg := dnssd.Config{
		Name: name,
		Type: ServiceType,
		Port: port,
	}

	svc, err := dnssd.NewService(cfg)
	if err != nil {
		return err
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		return err
	}

	if _, err := responder.Add(svc); err != nil {
		return err
	}

	logger.Info("announcing driver runtime", "name", name, "port", port, "type", ServiceType)

	go func() {
		if err := responder.Respond(ctx); err != nil {
			logger.Warn("dns-sd responder stopped", "error", err)
		}
	}()

	return nil
}
