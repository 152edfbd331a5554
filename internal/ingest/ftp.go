package ingest

import (
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const ftpTimeout = 30 * time.Second

// downloadFTP retrieves an ftp:// URL into a temp file and returns the
// local path plus a cleanup func. Credentials come from the URL userinfo;
// anonymous otherwise.
func downloadFTP(ctx context.Context, rawURL string) (string, func(), error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, eris.Wrap(err, "ingest: parse ftp url")
	}
	if u.Path == "" {
		return "", nil, eris.New("ingest: empty path in ftp url")
	}

	host := u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	user, pass := "anonymous", "anonymous@"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}

	zap.L().Debug("ingest: ftp download", zap.String("host", host), zap.String("path", u.Path))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(ftpTimeout), ftp.DialWithContext(ctx))
	if err != nil {
		return "", nil, eris.Wrap(err, "ingest: ftp dial")
	}
	defer conn.Quit()

	if err := conn.Login(user, pass); err != nil {
		return "", nil, eris.Wrap(err, "ingest: ftp login")
	}

	resp, err := conn.Retr(u.Path)
	if err != nil {
		return "", nil, eris.Wrap(err, "ingest: ftp retrieve")
	}
	defer drainClose(resp)

	tmp, err := os.CreateTemp("", "prospect-*"+filepath.Ext(u.Path))
	if err != nil {
		return "", nil, eris.Wrap(err, "ingest: create temp file")
	}
	if _, err := io.Copy(tmp, resp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, eris.Wrap(err, "ingest: write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, eris.Wrap(err, "ingest: close temp file")
	}

	cleanup := func() { os.Remove(tmp.Name()) }
	return tmp.Name(), cleanup, nil
}
