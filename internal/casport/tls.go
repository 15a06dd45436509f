package casport

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/youmark/pkcs8"
)

var tlsVersions = map[string]uint16{
	"1.0": tls.VersionTLS10,
	"1.1": tls.VersionTLS11,
	"1.2": tls.VersionTLS12,
	"1.3": tls.VersionTLS13,
}

// parseTLSVersion accepts "1.2", "TLS1.2" and "TLSv1.2" forms. Empty means 1.2.
func parseTLSVersion(s string) (uint16, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "tlsv")
	v = strings.TrimPrefix(v, "tls")
	if v == "" {
		return tls.VersionTLS12, nil
	}

	version, ok := tlsVersions[v]
	if !ok {
		return 0, fmt.Errorf("unsupported TLS version %q: must be one of 1.0, 1.1, 1.2, 1.3", s)
	}
	return version, nil
}

// BuildTLSConfig creates the client TLS configuration for the directory connection.
func BuildTLSConfig(config TLSConfig) (*tls.Config, error) {
	minVersion, err := parseTLSVersion(config.MinVersion)
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{
		MinVersion:         minVersion,
		ServerName:         config.ServerName,
		InsecureSkipVerify: config.SkipVerify, //nolint:gosec // operator opt-in
	}

	pool, err := buildCertPool(config)
	if err != nil {
		return nil, err
	}
	tlsConfig.RootCAs = pool

	if config.ClientCertFile != "" {
		cert, err := loadClientCertificate(config)
		if err != nil {
			return nil, err
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if !config.SkipVerify {
		tlsConfig.VerifyPeerCertificate = verifyChainDepth(config.VerifyDepth)
	}

	return tlsConfig, nil
}

// buildCertPool returns nil (system roots) when no CA bundle is configured.
func buildCertPool(config TLSConfig) (*x509.CertPool, error) {
	var caPEM []byte

	switch {
	case config.CACertFile != "":
		data, err := os.ReadFile(config.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate file %s: %w", config.CACertFile, err)
		}
		caPEM = data
	case config.CACert != "":
		caPEM = []byte(config.CACert)
	default:
		return nil, nil
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, errors.New("no valid CA certificates found in CA bundle")
	}

	return pool, nil
}

// loadClientCertificate loads the client certificate and key. The key is read from the
// certificate file when no separate key file is configured.
func loadClientCertificate(config TLSConfig) (tls.Certificate, error) {
	certPEM, err := os.ReadFile(config.ClientCertFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to read client certificate %s: %w", config.ClientCertFile, err)
	}

	keyPEM := certPEM
	if config.ClientKeyFile != "" {
		keyPEM, err = os.ReadFile(config.ClientKeyFile)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("failed to read client key %s: %w", config.ClientKeyFile, err)
		}
	}

	keyPEM, err = decryptPrivateKey(keyPEM, config.ClientKeyPassphrase)
	if err != nil {
		return tls.Certificate{}, err
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to load client key pair: %w", err)
	}

	return cert, nil
}

// decryptPrivateKey replaces encrypted private keys (legacy PEM or PKCS#8) with their decrypted form.
// Other blocks are kept as they are.
func decryptPrivateKey(data []byte, passphrase string) ([]byte, error) {
	var out []byte
	rest := data

	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}

		if block.Type == "ENCRYPTED PRIVATE KEY" {
			decrypted, err := decryptPKCS8(block, passphrase)
			if err != nil {
				return nil, err
			}
			out = append(out, pem.EncodeToMemory(decrypted)...)
			continue
		}

		//nolint:staticcheck // legacy PEM encryption is what client certificates are issued with
		if strings.HasSuffix(block.Type, "PRIVATE KEY") && x509.IsEncryptedPEMBlock(block) {
			if passphrase == "" {
				return nil, errors.New("client private key is encrypted but no passphrase was provided")
			}
			//nolint:staticcheck
			der, err := x509.DecryptPEMBlock(block, []byte(passphrase))
			if err != nil {
				return nil, fmt.Errorf("failed to decrypt client private key: %w", err)
			}
			block = &pem.Block{Type: block.Type, Bytes: der}
		}

		out = append(out, pem.EncodeToMemory(block)...)
	}

	if len(out) == 0 {
		return data, nil
	}
	return out, nil
}

// decryptPKCS8 decrypts an ENCRYPTED PRIVATE KEY block into an unencrypted PKCS#8 block.
func decryptPKCS8(block *pem.Block, passphrase string) (*pem.Block, error) {
	if passphrase == "" {
		return nil, errors.New("client private key is encrypted but no passphrase was provided")
	}

	key, err := pkcs8.ParsePKCS8PrivateKey(block.Bytes, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt client private key: %w", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to encode client private key: %w", err)
	}

	return &pem.Block{Type: "PRIVATE KEY", Bytes: der}, nil
}

// verifyChainDepth rejects chains with more than depth intermediate certificates.
func verifyChainDepth(depth int) func([][]byte, [][]*x509.Certificate) error {
	return func(_ [][]byte, verifiedChains [][]*x509.Certificate) error {
		if len(verifiedChains) == 0 {
			return nil
		}
		for _, chain := range verifiedChains {
			if len(chain)-2 <= depth {
				return nil
			}
		}
		return fmt.Errorf("certificate chain exceeds verify depth %d", depth)
	}
}

// ClientCertificateSubject returns the subject DN of the configured client certificate.
func ClientCertificateSubject(config TLSConfig) (string, error) {
	if config.ClientCertFile == "" {
		return "", errors.New("no client certificate configured")
	}

	data, err := os.ReadFile(config.ClientCertFile)
	if err != nil {
		return "", fmt.Errorf("failed to read client certificate %s: %w", config.ClientCertFile, err)
	}

	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return "", fmt.Errorf("failed to parse client certificate: %w", err)
		}
		return cert.Subject.String(), nil
	}

	return "", errors.New("no certificate found in client certificate file")
}
