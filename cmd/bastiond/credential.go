package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bastionrun/bastion/pkg/credential"
	"github.com/bastionrun/bastion/pkg/signer"
	"github.com/bastionrun/bastion/pkg/signer/devsign"
	"github.com/bastionrun/bastion/pkg/transport"
	"github.com/bastionrun/bastion/pkg/types"
)

const credentialWireVersion = 1

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Issue, verify, and inspect job-launch credentials",
}

var credentialIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Build and sign a job-launch credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureSigner(cmd); err != nil {
			return err
		}

		jobID, _ := cmd.Flags().GetUint32("job")
		stepID, _ := cmd.Flags().GetUint32("step")
		uid, _ := cmd.Flags().GetUint32("uid")
		gid, _ := cmd.Flags().GetUint32("gid")
		username, _ := cmd.Flags().GetString("username")
		jobHosts, _ := cmd.Flags().GetString("job-hosts")
		jobNHosts, _ := cmd.Flags().GetUint32("job-nhosts")
		out, _ := cmd.Flags().GetString("out")

		arg := &credential.Arg{
			Step:      types.StepID{JobID: jobID, StepID: stepID},
			Identity:  types.Identity{UID: uid, GID: gid, UserName: username},
			JobNHosts: jobNHosts,
			JobHosts:  jobHosts,
		}

		jc, err := credential.Build(arg, true, credentialWireVersion)
		if err != nil {
			return fmt.Errorf("issue credential: %w", err)
		}

		body, sig := jc.Parts()
		req := &transport.ShipRequest{Version: credentialWireVersion, Body: body, Sig: sig}
		blob, err := req.Marshal()
		if err != nil {
			return fmt.Errorf("encode credential envelope: %w", err)
		}

		return writeEnvelope(blob, out)
	},
}

var credentialVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a previously issued credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureSigner(cmd); err != nil {
			return err
		}

		req, err := readEnvelope(cmd)
		if err != nil {
			return err
		}

		if _, err := credential.Unpack(req.Body, req.Sig, req.Version); err != nil {
			fmt.Printf("INVALID: %v\n", err)
			return err
		}
		fmt.Println("VALID")
		return nil
	},
}

var credentialInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Decode a credential and print its fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureSigner(cmd); err != nil {
			return err
		}

		req, err := readEnvelope(cmd)
		if err != nil {
			return err
		}

		jc, err := credential.Unpack(req.Body, req.Sig, req.Version)
		if err != nil {
			return fmt.Errorf("inspect credential: %w", err)
		}

		arg, release, err := jc.Verify()
		if err != nil {
			release()
			return fmt.Errorf("inspect credential: %w", err)
		}
		defer release()

		fmt.Printf("Step:      %s\n", arg.Step)
		fmt.Printf("UID/GID:   %d/%d\n", arg.Identity.UID, arg.Identity.GID)
		if arg.Identity.UserName != "" {
			fmt.Printf("User:      %s\n", arg.Identity.UserName)
		}
		fmt.Printf("JobHosts:  %s\n", arg.JobHosts)
		fmt.Printf("JobNHosts: %d\n", arg.JobNHosts)
		return nil
	},
}

func init() {
	credentialCmd.AddCommand(credentialIssueCmd)
	credentialCmd.AddCommand(credentialVerifyCmd)
	credentialCmd.AddCommand(credentialInspectCmd)

	credentialIssueCmd.Flags().Uint32("job", 0, "Job ID")
	credentialIssueCmd.Flags().Uint32("step", 0, "Step ID")
	credentialIssueCmd.Flags().Uint32("uid", 0, "Principal UID")
	credentialIssueCmd.Flags().Uint32("gid", 0, "Principal GID")
	credentialIssueCmd.Flags().String("username", "", "Resolved user name (optional)")
	credentialIssueCmd.Flags().String("job-hosts", "", "Compressed job host-range expression")
	credentialIssueCmd.Flags().Uint32("job-nhosts", 1, "Number of hosts allocated to the job")
	credentialIssueCmd.Flags().String("out", "", "Write the credential envelope here (stdout hex if unset)")
	credentialIssueCmd.MarkFlagRequired("job")

	for _, cmd := range []*cobra.Command{credentialVerifyCmd, credentialInspectCmd} {
		cmd.Flags().String("in", "", "Read the credential envelope from here (stdin hex if unset)")
	}
}

// ensureSigner initializes the signer façade with the devsign provider
// using the configured credential expiry window. Idempotent across
// commands in the same process via signer.Init's sync.Once guard.
func ensureSigner(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	provider, err := devsign.New()
	if err != nil {
		return fmt.Errorf("init devsign provider: %w", err)
	}
	signer.InitWithExpiry(provider, cfg.AuthInfo.CredExpire)
	return nil
}

func writeEnvelope(blob []byte, out string) error {
	if out == "" {
		fmt.Println(hex.EncodeToString(blob))
		return nil
	}
	return os.WriteFile(out, blob, 0o600)
}

func readEnvelope(cmd *cobra.Command) (*transport.ShipRequest, error) {
	in, _ := cmd.Flags().GetString("in")

	var raw []byte
	var err error
	if in == "" {
		var hexLine string
		if _, scanErr := fmt.Scanln(&hexLine); scanErr != nil {
			return nil, fmt.Errorf("read credential envelope from stdin: %w", scanErr)
		}
		raw, err = hex.DecodeString(hexLine)
	} else {
		raw, err = os.ReadFile(in)
	}
	if err != nil {
		return nil, fmt.Errorf("read credential envelope: %w", err)
	}

	req := new(transport.ShipRequest)
	if err := req.Unmarshal(raw); err != nil {
		return nil, fmt.Errorf("decode credential envelope: %w", err)
	}
	return req, nil
}
