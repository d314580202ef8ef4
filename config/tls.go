package config

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/pkg/errors"
)

// TLS configures an HTTPS client, e.g. for a self-hosted webhook endpoint behind a private CA
// or requiring a client certificate. Use [TLS.MakeConfig] to obtain a [*tls.Config].
type TLS struct {
	// Enable switches the settings below on. Public HTTPS endpoints work without it.
	Enable bool `yaml:"tls" env:"TLS"`

	// Cert and Key are the paths of the client certificate and its private key. Both or neither must be set.
	Cert string `yaml:"cert" env:"CERT"`
	Key  string `yaml:"key" env:"KEY"`

	// Ca is the path of a PEM bundle used instead of the system roots.
	Ca string `yaml:"ca" env:"CA"`

	// Insecure skips verification of the server certificate chain and host name.
	Insecure bool `yaml:"insecure" env:"INSECURE"`
}

// MakeConfig assembles a [*tls.Config] for connecting to serverName.
// It returns nil without an error if TLS is not enabled.
func (t *TLS) MakeConfig(serverName string) (*tls.Config, error) {
	if !t.Enable {
		return nil, nil
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12, ServerName: serverName}

	switch {
	case t.Cert == "" && t.Key != "":
		return nil, errors.New("private key given, but client certificate missing")
	case t.Cert != "" && t.Key == "":
		return nil, errors.New("client certificate given, but private key missing")
	case t.Cert != "":
		crt, err := tls.LoadX509KeyPair(t.Cert, t.Key)
		if err != nil {
			return nil, errors.Wrap(err, "can't load X.509 key pair")
		}

		tlsConfig.Certificates = []tls.Certificate{crt}
	}

	if t.Insecure {
		tlsConfig.InsecureSkipVerify = true

		return tlsConfig, nil
	}

	if t.Ca != "" {
		raw, err := os.ReadFile(t.Ca)
		if err != nil {
			return nil, errors.Wrap(err, "can't read CA file")
		}

		tlsConfig.RootCAs = x509.NewCertPool()
		if !tlsConfig.RootCAs.AppendCertsFromPEM(raw) {
			return nil, errors.New("can't parse CA file")
		}
	}

	return tlsConfig, nil
}
