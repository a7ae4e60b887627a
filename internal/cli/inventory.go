package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dukerupert/freshmate/internal/inventory"
	"github.com/dukerupert/freshmate/internal/model"
)

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate an owner's items and send due notifications",
		Long: `Run one evaluation pass for an owner, exactly as a page view would:
reminders and expiry alerts that are due and not yet sent are delivered,
and their flags are saved. Exits 1 when a notification could not be
delivered, so the next run retries it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ownerSession(owner)
			if err != nil {
				return err
			}
			a, err := newApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			svc := a.service()
			pass, err := svc.View(cmd.Context(), sess)
			if err != nil {
				return serviceError("check", err)
			}
			p := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
			if err := p.pass(newPassOutput(pass, svc.Today(), svc.Window())); err != nil {
				return err
			}
			return passError(pass)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner email address")
	return cmd
}

// NewListCommand creates the list command. Listing reads the data file only
// and sends nothing.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored items without evaluating them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := listItems(cmd.Context(), a.backend, owner)
			if err != nil {
				return WrapExitError(ExitCommandError, "load inventory", err)
			}
			p := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
			return p.items(itemRows(items, model.Day(a.now()), a.cfg.ReminderWindowDays))
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "only list this owner's items")
	return cmd
}

// ownerLister is implemented by backends that can filter by owner themselves.
type ownerLister interface {
	ListByOwner(ctx context.Context, owner string) ([]model.Item, error)
}

// listItems returns every item, or only owner's items when owner is set.
func listItems(ctx context.Context, backend inventory.Backend, owner string) ([]model.Item, error) {
	if owner == "" {
		return backend.Load(ctx)
	}
	if ol, ok := backend.(ownerLister); ok {
		return ol.ListByOwner(ctx, owner)
	}

	items, err := backend.Load(ctx)
	if err != nil {
		return nil, err
	}
	mine := make([]model.Item, 0, len(items))
	for _, it := range items {
		if it.Owner == owner {
			mine = append(mine, it)
		}
	}
	return mine, nil
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	var owner string
	var in inventory.ItemInput

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an item and evaluate it immediately",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ownerSession(owner)
			if err != nil {
				return err
			}
			a, err := newApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			svc := a.service()
			pass, err := svc.Add(cmd.Context(), sess, in)
			if err != nil {
				return serviceError("add item", err)
			}
			p := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
			if err := p.pass(newPassOutput(pass, svc.Today(), svc.Window())); err != nil {
				return err
			}
			return passError(pass)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner email address")
	cmd.Flags().StringVar(&in.Name, "name", "", "item name")
	cmd.Flags().Float64Var(&in.Quantity, "quantity", 1, "quantity")
	cmd.Flags().StringVar(&in.Unit, "unit", "", "unit (kg, g, litre, ml, pack, piece)")
	cmd.Flags().StringVar(&in.Expiry, "expiry", "", "expiry date (YYYY-MM-DD)")
	return cmd
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	var owner, name string

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove every item of an owner with the given name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ownerSession(owner)
			if err != nil {
				return err
			}
			if name == "" {
				return NewExitError(ExitCommandError, "--name is required")
			}
			a, err := newApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			svc := a.service()
			pass, err := svc.Remove(cmd.Context(), sess, name)
			if err != nil {
				return serviceError("remove item", err)
			}
			p := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
			if err := p.pass(newPassOutput(pass, svc.Today(), svc.Window())); err != nil {
				return err
			}
			return passError(pass)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner email address")
	cmd.Flags().StringVar(&name, "name", "", "item name (exact match)")
	return cmd
}
