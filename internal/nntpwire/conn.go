// Package nntpwire is the NNTP wire protocol client: connect, authenticate,
// and fetch article bodies, with pipelining of multiple outstanding BODY
// commands on one connection. Spec §1 treats this as a library boundary;
// the rest of the engine only ever sees domain.Provider.
package nntpwire

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strings"
	"time"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

// ConnectTimeout bounds the TCP/TLS dial and the initial greeting/auth
// handshake, per spec §5 ("NNTP connect/auth 30s").
const ConnectTimeout = 30 * time.Second

// ErrNotFound is returned when the server answers 430 to a BODY request.
var ErrNotFound = domain.ErrArticleNotFound

// Conn is one authenticated NNTP connection.
type Conn struct {
	cfg  domain.ServerConfig
	conn *textproto.Conn
	raw  net.Conn
}

// Dial opens a TCP (or TLS) connection to cfg's server, reads the greeting,
// and authenticates if credentials are configured.
func Dial(cfg domain.ServerConfig) (*Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	dialer := &net.Dialer{Timeout: ConnectTimeout}
	var raw net.Conn
	var err error
	if cfg.TLS {
		raw, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{
			ServerName: cfg.Host,
			MinVersion: tls.VersionTLS12,
		})
	} else {
		raw, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrConnectFailed, cfg.ID, err)
	}

	c := &Conn{cfg: cfg, raw: raw, conn: textproto.NewConn(raw)}
	_ = c.raw.SetDeadline(time.Now().Add(ConnectTimeout))
	if _, _, err := c.conn.ReadCodeLine(200); err != nil {
		if _, _, err2 := c.conn.ReadCodeLine(201); err2 != nil {
			c.conn.Close()
			return nil, fmt.Errorf("%w: %s: no greeting: %v", domain.ErrConnectFailed, cfg.ID, err)
		}
	}

	if err := c.authenticate(); err != nil {
		c.conn.Close()
		return nil, err
	}
	_ = c.raw.SetDeadline(time.Time{})
	return c, nil
}

func (c *Conn) authenticate() error {
	if c.cfg.Username == "" {
		return nil
	}
	if _, err := c.conn.Cmd("AUTHINFO USER %s", c.cfg.Username); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAuthFailed, err)
	}
	if _, _, err := c.conn.ReadCodeLine(381); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAuthFailed, err)
	}
	if _, err := c.conn.Cmd("AUTHINFO PASS %s", c.cfg.Password); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAuthFailed, err)
	}
	if _, _, err := c.conn.ReadCodeLine(281); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAuthFailed, err)
	}
	return nil
}

func formatID(messageID string) string {
	if strings.HasPrefix(messageID, "<") {
		return messageID
	}
	return "<" + messageID + ">"
}

// Body issues a single BODY command and returns the article body, with
// dot-stuffing already removed, as a reader. Returns ErrNotFound on a 430
// response.
func (c *Conn) Body(messageID string) (io.Reader, error) {
	id, err := c.conn.Cmd("BODY %s", formatID(messageID))
	if err != nil {
		return nil, err
	}
	c.conn.StartResponse(id)
	defer c.conn.EndResponse(id)

	code, _, err := c.conn.ReadCodeLine(222)
	if err != nil {
		if code == 430 {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c.conn.DotReader(), nil
}

// PipelineBodies issues n BODY commands back-to-back without waiting for
// responses, then reads them in order, matching spec §4.4's pipelining
// requirement that responses arrive in request order on a connection.
// Each body is read in full before the next response is read.
func (c *Conn) PipelineBodies(messageIDs []string) ([]io.Reader, []error) {
	ids := make([]uint, len(messageIDs))
	for i, mid := range messageIDs {
		id, err := c.conn.Cmd("BODY %s", formatID(mid))
		if err != nil {
			ids[i] = 0
		} else {
			ids[i] = id
		}
	}

	readers := make([]io.Reader, len(messageIDs))
	errs := make([]error, len(messageIDs))
	for i, id := range ids {
		c.conn.StartResponse(id)
		code, _, err := c.conn.ReadCodeLine(222)
		if err != nil {
			if code == 430 {
				errs[i] = ErrNotFound
			} else {
				errs[i] = err
			}
		} else {
			data, rerr := io.ReadAll(c.conn.DotReader())
			if rerr != nil {
				errs[i] = rerr
			} else {
				readers[i] = bytes.NewReader(data)
			}
		}
		c.conn.EndResponse(id)
	}
	return readers, errs
}

// SetDeadline applies a read/write deadline to the underlying socket for
// the duration of the next operation (per-article fetch timeout, §5).
func (c *Conn) SetDeadline(t time.Time) error {
	return c.raw.SetDeadline(t)
}

// Close sends QUIT and closes the underlying connection.
func (c *Conn) Close() error {
	_, _ = c.conn.Cmd("QUIT")
	return c.conn.Close()
}
