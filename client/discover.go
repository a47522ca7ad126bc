package client

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/pkg/errors"

	"github.com/hubertat/pacball/announce"
)

const DefaultDiscoverTimeout = 3 * time.Second

type Controller struct {
	Instance string
	HostName string
	IP       string
	Port     int
	Path     string
	Version  string
}

// URL is the WebSocket endpoint of the controller.
func (c Controller) URL() string {
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(c.IP, strconv.Itoa(c.Port)), c.Path)
}

// Discover browses the local network for announced controllers until
// timeout.
func Discover(ctx context.Context, timeout time.Duration) ([]Controller, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create mDNS resolver")
	}

	var lock sync.Mutex
	controllers := []Controller{}

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for entry := range entries {
			if c, ok := parseEntry(entry); ok {
				lock.Lock()
				controllers = append(controllers, c)
				lock.Unlock()
			}
		}
	}()

	err = resolver.Browse(ctx, announce.ServiceType, announce.Domain, entries)
	if err != nil {
		return nil, errors.Wrap(err, "failed to browse for mDNS services")
	}

	<-ctx.Done()

	lock.Lock()
	defer lock.Unlock()
	return append([]Controller(nil), controllers...), nil
}

func parseEntry(entry *zeroconf.ServiceEntry) (c Controller, ok bool) {
	switch {
	case len(entry.AddrIPv4) > 0:
		c.IP = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		c.IP = entry.AddrIPv6[0].String()
	default:
		return
	}
	if entry.Port == 0 {
		return
	}

	c.Instance = entry.Instance
	c.HostName = strings.TrimSuffix(entry.HostName, ".")
	c.Port = entry.Port
	c.Path = "/"
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		switch key {
		case "path":
			c.Path = value
		case "version":
			c.Version = value
		}
	}

	ok = true
	return
}
