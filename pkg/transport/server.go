package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/bastionrun/bastion/pkg/log"
	"github.com/bastionrun/bastion/pkg/security"
)

// Server hosts CredentialShip on an mTLS-secured gRPC listener. Grounded
// on the teacher's pkg/api.Server: load a node certificate and the CA pool
// from disk, require and verify client certificates, serve until Stop.
type Server struct {
	grpc *grpc.Server
}

// NewServer builds a CredentialShip server for nodeID, loading its
// certificate material from certDir (see pkg/security.GetCertDir).
func NewServer(nodeID, certDir string, impl CredentialShipServer) (*Server, error) {
	if !security.CertExists(certDir) {
		return nil, fmt.Errorf("transport: node certificate not found at %s", certDir)
	}

	cert, err := security.LoadCertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("transport: load node certificate: %w", err)
	}

	caCert, err := security.LoadCACertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("transport: load CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(caCert)

	tlsConfig := &tls.Config{
		ClientAuth:   tls.RequireAndVerifyClientCert,
		Certificates: []tls.Certificate{*cert},
		ClientCAs:    pool,
		MinVersion:   tls.VersionTLS13,
	}

	grpcServer := grpc.NewServer(grpc.Creds(credentials.NewTLS(tlsConfig)))
	RegisterCredentialShipServer(grpcServer, impl)

	return &Server{grpc: grpcServer}, nil
}

// Start listens on addr and serves until Stop is called or Serve errors.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	log.Logger.Info().Str("addr", addr).Msg("credential ship server listening")
	return s.grpc.Serve(lis)
}

// Stop gracefully stops the gRPC server.
func (s *Server) Stop() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
}
