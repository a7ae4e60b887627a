package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dukerupert/freshmate/internal/backup"
)

func backupError(message string, err error) error {
	if errors.Is(err, backup.ErrWeakPassphrase) || errors.Is(err, backup.ErrBadPassphrase) {
		return WrapExitError(ExitFailure, message, err)
	}
	return WrapExitError(ExitCommandError, message, err)
}

// NewBackupCommand creates the backup command.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	var passphrase string
	var keep int

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Upload an encrypted snapshot of the data file",
		Long: `Snapshot the data file, encrypt it with a key derived from the passphrase
(Argon2id, AES-256-GCM) and upload it to the configured S3 bucket.
The passphrase defaults to backup_passphrase from the config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if passphrase == "" {
				passphrase = a.cfg.BackupPassphrase
			}
			m := a.backups()
			obj, err := m.Run(cmd.Context(), passphrase)
			if err != nil {
				return backupError("backup", err)
			}

			removed := 0
			if keep > 0 {
				if removed, err = m.Cleanup(cmd.Context(), keep); err != nil {
					return backupError("cleanup", err)
				}
			}

			p := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
			if p.format == "json" {
				return p.json(map[string]any{"backup": obj, "removed": removed})
			}
			fmt.Fprintf(p.w, "uploaded %s (%d bytes)\n", obj.Key, obj.Size)
			if removed > 0 {
				fmt.Fprintf(p.w, "removed %d old backup(s)\n", removed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&passphrase, "passphrase", "", "encryption passphrase")
	cmd.Flags().IntVar(&keep, "keep", 0, "delete all but the newest N backups after uploading (0 keeps all)")
	cmd.AddCommand(newBackupListCommand(rootOpts))
	return cmd
}

func newBackupListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			objects, err := a.backups().List(cmd.Context())
			if err != nil {
				return backupError("list backups", err)
			}
			p := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
			if p.format == "json" {
				return p.json(objects)
			}
			tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tSIZE\tMODIFIED")
			for _, o := range objects {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", o.Key, o.Size, o.LastModified.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	var key, passphrase string

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Replace the data file with a stored backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if passphrase == "" {
				passphrase = a.cfg.BackupPassphrase
			}
			obj, err := a.backups().Restore(cmd.Context(), key, passphrase)
			if err != nil {
				return backupError("restore", err)
			}

			p := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
			if p.format == "json" {
				return p.json(obj)
			}
			fmt.Fprintf(p.w, "restored %s\n", obj.Key)
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", backup.Latest, "backup object key, or \"latest\"")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "encryption passphrase")
	return cmd
}
