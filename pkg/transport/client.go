package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/bastionrun/bastion/pkg/security"
)

// Client wraps a mTLS gRPC connection to a node's CredentialShip server.
// Grounded on the teacher's pkg/client.connectWithMTLS dial sequence.
type Client struct {
	conn *grpc.ClientConn
	ship CredentialShipClient
}

// Dial loads the scheduler-side certificate from certDir and connects to
// the node daemon at addr.
func Dial(addr, certDir string) (*Client, error) {
	if !security.CertExists(certDir) {
		return nil, fmt.Errorf("transport: scheduler certificate not found at %s", certDir)
	}

	cert, err := security.LoadCertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("transport: load scheduler certificate: %w", err)
	}

	caCert, err := security.LoadCACertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("transport: load CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(caCert)

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{*cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
	}

	creds := credentials.NewTLS(tlsConfig)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}

	return &Client{conn: conn, ship: NewCredentialShipClient(conn)}, nil
}

// Ship sends req to the connected node daemon.
func (c *Client) Ship(ctx context.Context, req *ShipRequest) (*ShipResponse, error) {
	return c.ship.Ship(ctx, req)
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
