package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/timgst1/adminguard/internal/ability"
	"github.com/timgst1/adminguard/internal/app"
	"github.com/timgst1/adminguard/internal/authn"
	"github.com/timgst1/adminguard/internal/authz"
	"github.com/timgst1/adminguard/internal/model"
)

type checkOptions struct {
	user   string
	kind   string
	action string
	model  string
	id     string
}

func NewCheckCmd() *cobra.Command {
	var opts checkOptions
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether a user may perform an admin action",
		Long: `Runs the same authorization the admin API runs for a request by the given
user. Without --model the action is checked as a dashboard entry.

  adminguard check --user alice --action destroy --model Post --id 3`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, _, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return runCheck(cmd.Context(), cmd.OutOrStdout(), a, opts)
		},
	}
	cmd.Flags().StringVar(&opts.user, "user", "", "user id, empty for anonymous")
	cmd.Flags().StringVar(&opts.kind, "kind", "user", "user kind")
	cmd.Flags().StringVar(&opts.action, "action", "", "admin action, e.g. index or destroy")
	cmd.Flags().StringVar(&opts.model, "model", "", "model name or table")
	cmd.Flags().StringVar(&opts.id, "id", "", "record id")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}

func runCheck(ctx context.Context, out io.Writer, a *app.App, opts checkOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var u *authn.User
	if opts.user != "" {
		u = &authn.User{Kind: opts.kind, ID: opts.user}
	}
	ctx = authn.WithUser(ctx, u)

	ad, err := a.Builder.Adapter(ctx)
	if err != nil {
		if isDenied(err) {
			fmt.Fprintln(out, "denied: no admin access")
			return nil
		}
		return err
	}

	action := model.Action(opts.action)
	var (
		d   *model.Descriptor
		row *model.Row
	)
	if opts.model != "" {
		var ok bool
		d, ok = a.Models.Lookup(opts.model)
		if !ok {
			return fmt.Errorf("unknown model %q", opts.model)
		}
		if opts.id != "" {
			row, err = a.Records.Find(ctx, d.Model(), parseID(opts.id))
			if err != nil {
				return err
			}
		}
	}

	verdict := "denied"
	if ad.Authorized(action, d, row) {
		verdict = "allowed"
	}
	if reason := explain(ad, action, d, row); reason != "" {
		fmt.Fprintf(out, "%s: %s\n", verdict, reason)
		return nil
	}
	fmt.Fprintln(out, verdict)
	return nil
}

// explain names the rule behind a decision of the shipped policy ability.
func explain(ad *authz.Adapter, action model.Action, d *model.Descriptor, row *model.Row) string {
	ab, err := ad.RequestContext().CurrentAbility()
	if err != nil {
		return ""
	}
	pa, ok := ab.(*ability.PolicyAbility)
	if !ok {
		return ""
	}
	act, subject := authz.Resolve(action, d, row)
	return pa.Explain(act, subject).Reason
}

func isDenied(err error) bool {
	return errors.Is(err, ability.ErrAccessDenied)
}

func parseID(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	return s
}
