// Package announce advertises the controller on the local network so
// clients can find it without knowing its address.
package announce

import (
	"context"
	"net"
	"os"
	"strconv"

	"github.com/brutella/dnssd"
	dnslog "github.com/brutella/dnssd/log"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

const (
	ServiceType = "_pacball._tcp"
	Domain      = "local"
)

type Announcer struct {
	Name    string
	Port    int
	Version string
	Debug   bool

	logger *log.Logger
}

// New builds an announcer for a listen address such as "0.0.0.0:80".
func New(name, listenAddr, version string) (*Announcer, error) {
	_, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid listen address %s", listenAddr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return nil, errors.Errorf("cannot announce port %q", portStr)
	}

	return &Announcer{
		Name:    name,
		Port:    port,
		Version: version,
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "mDNS: ",
			Level:  log.GetLevel(),
		}),
	}, nil
}

func (a *Announcer) config() dnssd.Config {
	text := map[string]string{"path": "/"}
	if a.Version != "" {
		text["version"] = a.Version
	}
	return dnssd.Config{
		Name:   a.Name,
		Type:   ServiceType,
		Domain: Domain,
		Port:   a.Port,
		Text:   text,
	}
}

// Run responds to mDNS queries until ctx is done.
func (a *Announcer) Run(ctx context.Context) error {
	if a.Debug {
		dnslog.Debug.Enable()
	}

	sv, err := dnssd.NewService(a.config())
	if err != nil {
		return errors.Wrap(err, "failed to create dnssd service")
	}
	rp, err := dnssd.NewResponder()
	if err != nil {
		return errors.Wrap(err, "failed to create dnssd responder")
	}
	_, err = rp.Add(sv)
	if err != nil {
		return errors.Wrap(err, "failed to add dnssd service")
	}

	a.logger.Info("announcing", "name", a.Name, "type", ServiceType, "port", a.Port)
	err = rp.Respond(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return errors.Wrap(err, "dnssd responder stopped")
}
