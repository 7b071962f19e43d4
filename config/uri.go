package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	errURIScheme     = errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	errURIWhitespace = errors.New("URI must not contain whitespace")
)

var schemePorts = map[string]int{
	"amqp":  5672,
	"amqps": 5671,
}

var defaultURI = URI{
	Scheme:   "amqp",
	Host:     "localhost",
	Port:     5672,
	Username: "guest",
	Password: "guest",
	Vhost:    "/",
}

// URI represents a parsed AMQP URI string. Query parameters that tune the
// connection are kept separately; zero means "not given".
type URI struct {
	Scheme   string
	Host     string
	Port     int
	Username string
	Password string
	Vhost    string

	Heartbeat   time.Duration
	FrameMax    uint32
	ChannelMax  uint16
	ConfirmMode string
}

// Address returns host:port for dialing.
func (u URI) Address() string {
	return net.JoinHostPort(u.Host, strconv.Itoa(u.Port))
}

// TLS reports whether the scheme asks for a TLS transport.
func (u URI) TLS() bool {
	return u.Scheme == "amqps"
}

// ParseURI attempts to parse the given AMQP URI.
// See http://www.rabbitmq.com/uri-spec.html.
//
// Default values for the fields are:
//
//	Scheme: amqp
//	Host: localhost
//	Port: 5672 (5671 for amqps)
//	Username: guest
//	Password: guest
//	Vhost: /
//
// The query parameters heartbeat (seconds), frame_max, channel_max and
// confirm are understood.
func ParseURI(uri string) (URI, error) {
	builder := defaultURI

	if strings.Contains(uri, " ") {
		return builder, errURIWhitespace
	}

	u, err := url.Parse(uri)
	if err != nil {
		return builder, err
	}

	defaultPort, okScheme := schemePorts[u.Scheme]
	if !okScheme {
		return builder, errURIScheme
	}
	builder.Scheme = u.Scheme

	if host := u.Hostname(); host != "" {
		builder.Host = host
	}

	if port := u.Port(); port != "" {
		port32, err := strconv.ParseInt(port, 10, 32)
		if err != nil {
			return builder, err
		}
		builder.Port = int(port32)
	} else {
		builder.Port = defaultPort
	}

	if u.User != nil {
		builder.Username = u.User.Username()
		if password, ok := u.User.Password(); ok {
			builder.Password = password
		}
	}

	if u.Path != "" {
		if strings.HasPrefix(u.Path, "/") {
			if u.Host == "" && strings.HasPrefix(u.Path, "///") {
				// amqp:/// means the default host with whatever vhost follows
				if len(u.Path) > 3 {
					builder.Vhost = u.Path[3:]
				}
			} else if len(u.Path) > 1 {
				builder.Vhost = u.Path[1:]
			}
		} else {
			builder.Vhost = u.Path
		}
	}

	query := u.Query()
	if v := query.Get("heartbeat"); v != "" {
		secs, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return builder, fmt.Errorf("invalid heartbeat %q: %w", v, err)
		}
		builder.Heartbeat = time.Duration(secs) * time.Second
	}
	if v := query.Get("frame_max"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return builder, fmt.Errorf("invalid frame_max %q: %w", v, err)
		}
		builder.FrameMax = uint32(n)
	}
	if v := query.Get("channel_max"); v != "" {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return builder, fmt.Errorf("invalid channel_max %q: %w", v, err)
		}
		builder.ChannelMax = uint16(n)
	}
	if v := query.Get("confirm"); v != "" {
		switch v {
		case ConfirmAuto, ConfirmNative, ConfirmEmulated:
			builder.ConfirmMode = v
		default:
			return builder, fmt.Errorf("invalid confirm mode %q", v)
		}
	}

	return builder, nil
}

// ExtractWithoutPassword returns the URI with the password removed, for logs.
func ExtractWithoutPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid-url>"
	}

	if u.User != nil {
		u.User = url.User(u.User.Username())
	}

	return u.String()
}
