package analyzer

import (
	"crypto/tls"
	"net"
	"time"
)

// certInfo is the outcome of the certificate probe. Valid=false with a
// non-empty Err covers both handshake failures and unreachable hosts.
type certInfo struct {
	Valid    bool
	Issuer   string
	Expires  time.Time
	DaysLeft int
	Err      string
}

// inspectCertificate dials hostname:443 and reads the leaf certificate.
// Any failure yields Valid=false rather than an error; the security pass
// treats that as a scoring fact.
func inspectCertificate(hostname string, timeout time.Duration) certInfo {
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", net.JoinHostPort(hostname, "443"), &tls.Config{
		ServerName: hostname,
	})
	if err != nil {
		return certInfo{Err: err.Error()}
	}
	defer conn.Close()

	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return certInfo{Err: "no peer certificates"}
	}

	leaf := certs[0]
	daysLeft := int(time.Until(leaf.NotAfter).Hours() / 24)

	return certInfo{
		Valid:    true,
		Issuer:   leaf.Issuer.CommonName,
		Expires:  leaf.NotAfter,
		DaysLeft: daysLeft,
	}
}
