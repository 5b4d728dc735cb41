package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	auditdomain "github.com/railzwaylabs/interviewledger/internal/audit/domain"
	"github.com/railzwaylabs/interviewledger/internal/clock"
	invoicedomain "github.com/railzwaylabs/interviewledger/internal/invoice/domain"
	ledgerdomain "github.com/railzwaylabs/interviewledger/internal/ledger/domain"
	pricechangedomain "github.com/railzwaylabs/interviewledger/internal/pricechange/domain"
	pricingdomain "github.com/railzwaylabs/interviewledger/internal/pricing/domain"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// runOneShot starts the core graph, fills targets, runs fn and stops.
func runOneShot(cmd *cobra.Command, fn func(ctx context.Context) error, targets ...any) error {
	app := fx.New(
		coreModules(),
		fx.NopLogger,
		fx.Populate(targets...),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		_ = app.Stop(context.Background())
	}()

	return fn(commandContext(cmd))
}

func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if flag := cmd.Flag("actor"); flag != nil {
		if actor := strings.TrimSpace(flag.Value.String()); actor != "" {
			ctx = auditdomain.WithActor(ctx, auditdomain.Actor{Type: auditdomain.ActorTypeOperator, ID: actor})
		}
	}
	return ctx
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseTime accepts RFC3339 or a bare date, which is read as midnight UTC.
func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC3339 or YYYY-MM-DD", raw)
	}
	return t.UTC(), nil
}

func newTickCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Apply every price change due now (or at --at)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				svc pricechangedomain.Service
				clk clock.Clock
			)
			return runOneShot(cmd, func(ctx context.Context) error {
				if at != "" {
					parsed, err := parseTime(at)
					if err != nil {
						return err
					}
					ctx = clock.WithSimulatedTime(ctx, parsed)
				}
				result, err := svc.Tick(ctx, clk.Now(ctx))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			}, &svc, &clk)
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate as of this instant")
	return cmd
}

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <institution_id>",
		Short: "Show the effective rates and per-minute price for an institution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resolver pricingdomain.Resolver
			return runOneShot(cmd, func(ctx context.Context) error {
				res, err := resolver.Resolve(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			}, &resolver)
		},
	}
}

type priceChangeFlags struct {
	scope       string
	institution string
	field       string
	value       string
}

func (f *priceChangeFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.scope, "scope", string(pricingdomain.ScopeGlobal), "global or institution")
	cmd.Flags().StringVar(&f.institution, "institution", "", "institution id for institution scope")
	cmd.Flags().StringVar(&f.field, "field", "", "cost_per_minute, markup_percent or annual_license_cost")
	cmd.Flags().StringVar(&f.value, "value", "", "new decimal value")
	_ = cmd.MarkFlagRequired("field")
	_ = cmd.MarkFlagRequired("value")
}

func (f *priceChangeFlags) request() (pricechangedomain.ScheduleRequest, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(f.value))
	if err != nil {
		return pricechangedomain.ScheduleRequest{}, fmt.Errorf("invalid --value %q", f.value)
	}
	return pricechangedomain.ScheduleRequest{
		Scope:         pricingdomain.Scope(f.scope),
		InstitutionID: f.institution,
		Field:         pricingdomain.Field(f.field),
		NewValue:      value,
	}, nil
}

func newPriceChangeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price-change",
		Short: "Schedule, apply and inspect rate changes",
	}

	var schedule priceChangeFlags
	var effective string
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Schedule a rate change for a future date",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := schedule.request()
			if err != nil {
				return err
			}
			at, err := parseTime(effective)
			if err != nil {
				return err
			}
			req.EffectiveDate = &at

			var svc pricechangedomain.Service
			return runOneShot(cmd, func(ctx context.Context) error {
				change, err := svc.Schedule(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), change)
			}, &svc)
		},
	}
	schedule.bind(scheduleCmd)
	scheduleCmd.Flags().StringVar(&effective, "effective", "", "effective date, RFC3339 or YYYY-MM-DD")
	_ = scheduleCmd.MarkFlagRequired("effective")

	var apply priceChangeFlags
	applyCmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a rate change immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := apply.request()
			if err != nil {
				return err
			}
			var svc pricechangedomain.Service
			return runOneShot(cmd, func(ctx context.Context) error {
				if _, err := svc.Schedule(ctx, req); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]bool{"applied": true})
			}, &svc)
		},
	}
	apply.bind(applyCmd)

	cancelCmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a scheduled rate change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc pricechangedomain.Service
			return runOneShot(cmd, func(ctx context.Context) error {
				change, err := svc.Cancel(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), change)
			}, &svc)
		},
	}

	var list pricechangedomain.ListRequest
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List rate changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc pricechangedomain.Service
			return runOneShot(cmd, func(ctx context.Context) error {
				changes, err := svc.List(ctx, list)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), changes)
			}, &svc)
		},
	}
	listCmd.Flags().StringVar(&list.Status, "status", "", "filter by status")
	listCmd.Flags().StringVar(&list.Scope, "scope", "", "filter by scope")
	listCmd.Flags().StringVar(&list.InstitutionID, "institution", "", "filter by institution")
	listCmd.Flags().StringVar(&list.Field, "field", "", "filter by field")
	listCmd.Flags().IntVar(&list.Limit, "limit", 0, "maximum rows")

	cmd.AddCommand(scheduleCmd, applyCmd, cancelCmd, listCmd)
	return cmd
}

func newOverrideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Toggle institution rate overrides",
	}

	toggle := func(use, short string, enable bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <institution_id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var svc pricingdomain.Service
				return runOneShot(cmd, func(ctx context.Context) error {
					var (
						override *pricingdomain.Override
						err      error
					)
					if enable {
						override, err = svc.EnableOverride(ctx, args[0])
					} else {
						override, err = svc.DisableOverride(ctx, args[0])
					}
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), override)
				}, &svc)
			},
		}
	}

	cmd.AddCommand(
		toggle("enable", "Resolve the institution from its override rates", true),
		toggle("disable", "Resolve the institution from global rates", false),
	)
	return cmd
}

func newPurchaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purchase",
		Short: "Record and settle session purchases",
	}

	var (
		institution string
		quantity    int64
		price       string
		reference   string
		date        string
	)
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Record a pending purchase",
		RunE: func(cmd *cobra.Command, args []string) error {
			perSession, err := decimal.NewFromString(strings.TrimSpace(price))
			if err != nil {
				return fmt.Errorf("invalid --price %q", price)
			}
			req := ledgerdomain.CreatePurchaseRequest{
				InstitutionID:    institution,
				Quantity:         quantity,
				PricePerSession:  perSession,
				PaymentReference: reference,
			}
			if date != "" {
				at, err := parseTime(date)
				if err != nil {
					return err
				}
				req.PurchaseDate = &at
			}

			var svc ledgerdomain.Service
			return runOneShot(cmd, func(ctx context.Context) error {
				purchase, err := svc.CreatePurchase(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), purchase)
			}, &svc)
		},
	}
	createCmd.Flags().StringVar(&institution, "institution", "", "institution id")
	createCmd.Flags().Int64Var(&quantity, "quantity", 0, "number of sessions")
	createCmd.Flags().StringVar(&price, "price", "", "price per session")
	createCmd.Flags().StringVar(&reference, "reference", "", "payment reference")
	createCmd.Flags().StringVar(&date, "date", "", "purchase date, defaults to now")
	_ = createCmd.MarkFlagRequired("institution")
	_ = createCmd.MarkFlagRequired("quantity")
	_ = createCmd.MarkFlagRequired("price")

	transition := func(use, short string, op func(ledgerdomain.Service, context.Context, string) (*ledgerdomain.Purchase, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <purchase_id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var svc ledgerdomain.Service
				return runOneShot(cmd, func(ctx context.Context) error {
					purchase, err := op(svc, ctx, args[0])
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), purchase)
				}, &svc)
			},
		}
	}

	importCmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Import one upstream purchase record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var svc ledgerdomain.Service
			return runOneShot(cmd, func(ctx context.Context) error {
				result, err := svc.ImportPurchase(ctx, raw)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			}, &svc)
		},
	}

	cmd.AddCommand(
		createCmd,
		transition("complete", "Complete a pending purchase and credit its sessions", ledgerdomain.Service.CompletePurchase),
		transition("cancel", "Cancel a purchase, debiting credited sessions", ledgerdomain.Service.CancelPurchase),
		importCmd,
	)
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Consume and inspect session balances",
	}

	var count int64
	consumeCmd := &cobra.Command{
		Use:   "consume <institution_id>",
		Short: "Consume sessions from an institution's pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc ledgerdomain.Service
			return runOneShot(cmd, func(ctx context.Context) error {
				balance, err := svc.ConsumeSession(ctx, ledgerdomain.ConsumeRequest{
					InstitutionID: args[0],
					Count:         count,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), balance)
			}, &svc)
		},
	}
	consumeCmd.Flags().Int64Var(&count, "count", 1, "sessions to consume")

	balanceCmd := &cobra.Command{
		Use:   "balance <institution_id>",
		Short: "Show an institution's session balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc ledgerdomain.Service
			return runOneShot(cmd, func(ctx context.Context) error {
				balance, err := svc.GetBalance(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), balance)
			}, &svc)
		},
	}

	cmd.AddCommand(consumeCmd, balanceCmd)
	return cmd
}

func newInvoiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoice",
		Short: "Render purchase invoices",
	}

	var (
		format string
		out    string
		payer  invoicedomain.Party
	)
	renderCmd := &cobra.Command{
		Use:   "render <purchase_id>",
		Short: "Render an invoice as text, json or pdf",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := invoicedomain.RenderRequest{PurchaseID: args[0], Payer: payer}

			var svc invoicedomain.Service
			return runOneShot(cmd, func(ctx context.Context) error {
				switch strings.ToLower(format) {
				case "pdf":
					rendered, err := svc.RenderPDF(ctx, req)
					if err != nil {
						return err
					}
					path := out
					if path == "" {
						path = rendered.FileName
					}
					if err := os.WriteFile(path, rendered.PDF, 0o644); err != nil {
						return err
					}
					_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
					return err
				case "json":
					doc, err := svc.Render(ctx, req)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), doc)
				case "", "text":
					doc, err := svc.Render(ctx, req)
					if err != nil {
						return err
					}
					_, err = io.WriteString(cmd.OutOrStdout(), doc.Text())
					return err
				default:
					return fmt.Errorf("unsupported --format %q", format)
				}
			}, &svc)
		},
	}
	renderCmd.Flags().StringVar(&format, "format", "text", "text, json or pdf")
	renderCmd.Flags().StringVar(&out, "out", "", "pdf output path, defaults to the invoice file name")
	renderCmd.Flags().StringVar(&payer.Name, "payer-name", "", "payer name when it differs from the institution")
	renderCmd.Flags().StringVar(&payer.Address, "payer-address", "", "payer address")
	renderCmd.Flags().StringVar(&payer.Email, "payer-email", "", "payer email")

	cmd.AddCommand(renderCmd)
	return cmd
}

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit trail",
	}

	var (
		institution string
		from        string
		to          string
		format      string
		actions     []string
		out         string
	)
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export audit entries in a date window",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseTime(from)
			if err != nil {
				return err
			}
			end, err := parseTime(to)
			if err != nil {
				return err
			}
			req := auditdomain.ExportRequest{
				StartDate: start,
				EndDate:   end,
				Format:    auditdomain.ExportFormat(strings.ToLower(format)),
				Actions:   actions,
			}
			if institution != "" {
				req.InstitutionID = &institution
			}

			var svc auditdomain.ExportService
			return runOneShot(cmd, func(ctx context.Context) error {
				result, err := svc.Export(ctx, req)
				if err != nil {
					return err
				}
				if out == "" {
					_, err = cmd.OutOrStdout().Write(result.Data)
					return err
				}
				if err := os.WriteFile(out, result.Data, 0o644); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %d entries sha256=%s\n", out, result.Count, result.Checksum)
				return err
			}, &svc)
		},
	}
	exportCmd.Flags().StringVar(&institution, "institution", "", "limit to one institution")
	exportCmd.Flags().StringVar(&from, "from", "", "window start")
	exportCmd.Flags().StringVar(&to, "to", "", "window end")
	exportCmd.Flags().StringVar(&format, "format", string(auditdomain.ExportFormatCSV), "csv or json")
	exportCmd.Flags().StringSliceVar(&actions, "action", nil, "limit to these actions")
	exportCmd.Flags().StringVar(&out, "out", "", "write to this file instead of stdout")
	_ = exportCmd.MarkFlagRequired("from")
	_ = exportCmd.MarkFlagRequired("to")

	cmd.AddCommand(exportCmd)
	return cmd
}
