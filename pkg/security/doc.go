/*
Package security provisions the mutual-TLS certificate material that
secures pkg/transport's gRPC channel, independently of pkg/credential's
payload signing.

# Components

CertAuthority:
  - Generates a 4096-bit RSA root CA, valid 10 years.
  - Issues 2048-bit RSA node certificates (90-day validity, both
    ClientAuth and ServerAuth extended key usage) for a node daemon's
    CredentialShip server identity.
  - Issues client-only certificates for the scheduler side of the
    channel.
  - Caches issued certificates in memory for inspection/rotation checks.

Certificate file management (certs.go):
  - SaveCertToFile/LoadCertFromFile and SaveCACertToFile/LoadCACertFromFile
    persist PEM-encoded material under a per-node directory
    (~/.bastion/certs/<role>-<id>).
  - CertNeedsRotation flags certificates within 30 days of expiry.
  - ValidateCertChain/GetCertInfo check and describe a certificate; no
    bastiond subcommand calls them.

# Usage

	ca := security.NewCertAuthority()
	if err := ca.Initialize(); err != nil {
		log.Fatal(err)
	}
	cert, err := ca.IssueNodeCertificate("node-07", []string{"node-07.cluster.local"}, nil)
	dir, _ := security.GetCertDir("node", "node-07")
	security.SaveCertToFile(cert, dir)

# See Also

  - pkg/transport for the gRPC channel this package secures
  - pkg/credential for the job-credential payload the channel carries
*/
package security
