package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bastionrun/bastion/pkg/nsengine"
	"github.com/bastionrun/bastion/pkg/storage"
)

var namespaceCmd = &cobra.Command{
	Use:   "namespace",
	Short: "Create, join, and delete per-job mount namespaces",
}

var namespaceCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a job's private mount namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, ledger, err := newEngine(cmd, true)
		if err != nil {
			return err
		}
		if ledger != nil {
			defer ledger.Close()
		}
		defer eng.Shutdown()

		jobID, _ := cmd.Flags().GetUint32("job")

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		if err := eng.Create(ctx, jobID); err != nil {
			return fmt.Errorf("create namespace: %w", err)
		}
		fmt.Printf("namespace ready for job %d\n", jobID)
		return nil
	},
}

var namespaceJoinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join the calling process into a job's namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, ledger, err := newEngine(cmd, false)
		if err != nil {
			return err
		}
		if ledger != nil {
			defer ledger.Close()
		}

		jobID, _ := cmd.Flags().GetUint32("job")
		uid, _ := cmd.Flags().GetUint32("uid")

		if err := eng.Join(jobID, uid); err != nil {
			return fmt.Errorf("join namespace: %w", err)
		}
		fmt.Printf("joined namespace for job %d\n", jobID)
		return nil
	},
}

var namespaceDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Tear down a job's private mount namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, ledger, err := newEngine(cmd, false)
		if err != nil {
			return err
		}
		if ledger != nil {
			defer ledger.Close()
		}
		defer eng.Shutdown()

		jobID, _ := cmd.Flags().GetUint32("job")

		if err := eng.Delete(jobID); err != nil {
			return fmt.Errorf("delete namespace: %w", err)
		}
		fmt.Printf("namespace deleted for job %d\n", jobID)
		return nil
	},
}

// nsinitCmd is the hidden re-exec target the namespace engine forks into.
// It is never invoked directly by an operator: the engine spawns
// "/proc/self/exe __nsinit <src_bind> <basepath>" itself with the
// handshake socket passed as the process's first extra file descriptor
// (fd 3, since ExtraFiles starts immediately after stdin/stdout/stderr).
var nsinitCmd = &cobra.Command{
	Use:    nsengine.HiddenReexecCommand + " SRC_BIND BASEPATH",
	Hidden: true,
	Args:   cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		const handshakeFD = 3
		return nsengine.RunChild(args[0], args[1], handshakeFD)
	},
}

func init() {
	namespaceCmd.AddCommand(namespaceCreateCmd)
	namespaceCmd.AddCommand(namespaceJoinCmd)
	namespaceCmd.AddCommand(namespaceDeleteCmd)

	for _, cmd := range []*cobra.Command{namespaceCreateCmd, namespaceJoinCmd, namespaceDeleteCmd} {
		cmd.Flags().Uint32("job", 0, "Job ID")
		cmd.MarkFlagRequired("job")
	}
	namespaceJoinCmd.Flags().Uint32("uid", 0, "UID to chown the job's bind-mount source to before joining")
}

// newEngine prepares the base mount (when prepareBase is true) and returns
// an Engine wired to the crash-recovery ledger at the configured basepath.
// The ledger is returned separately so callers can defer its Close. If the
// ledger cannot be opened, the Engine is returned without one and the
// returned ledger is nil.
func newEngine(cmd *cobra.Command, prepareBase bool) (*nsengine.Engine, storage.Ledger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if prepareBase {
		if err := nsengine.PrepareBase(cfg.Namespace.Basepath, cfg.Namespace.AutoBasepath); err != nil {
			return nil, nil, fmt.Errorf("prepare namespace base: %w", err)
		}
	}

	eng := nsengine.New(cfg.Namespace.Basepath, cfg.Namespace.InitScript)

	store, err := storage.NewBoltStore(cfg.Namespace.Basepath)
	if err != nil {
		return eng, nil, nil
	}
	eng.SetLedger(store)
	return eng, store, nil
}
