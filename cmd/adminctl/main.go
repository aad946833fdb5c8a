// adminctl is a one-shot command line client for the review backend. It
// shares state (endpoint, session tokens) with the console gateway, so a
// login performed here is visible to the gateway and vice versa.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"github.com/refplatform/adminconsole/internal/apiclient"
	"github.com/refplatform/adminconsole/internal/config"
	"github.com/refplatform/adminconsole/internal/endpoint"
	"github.com/refplatform/adminconsole/internal/review"
	"github.com/refplatform/adminconsole/internal/session"
	"github.com/refplatform/adminconsole/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg := config.LoadConfigOrDefault(*configPath)
	engine, err := buildEngine(cfg)
	if err != nil {
		log.Fatalf("adminctl: %v", err)
	}

	if err := run(context.Background(), engine, args); err != nil {
		if errors.Is(err, apiclient.ErrAuthExpired) {
			fmt.Fprintln(os.Stderr, "session expired; you have been logged out, run `adminctl login` again")
		}
		log.Fatalf("adminctl: %v", err)
	}
	engine.WaitCascades()
}

func buildEngine(cfg *config.Config) (*review.Engine, error) {
	state, err := storage.NewFileStore(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	resolver, err := endpoint.NewResolver(endpoint.Config{
		State:         state,
		Candidates:    cfg.Endpoints,
		ProbeInterval: cfg.ProbeInterval,
	})
	if err != nil {
		return nil, err
	}
	sess, err := session.NewStore(state)
	if err != nil {
		return nil, err
	}
	client, err := apiclient.New(apiclient.Config{
		Resolver: resolver,
		Session:  sess,
		Timeout:  cfg.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}
	return review.NewEngine(client)
}

func run(ctx context.Context, engine *review.Engine, args []string) error {
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "login":
		return cmdLogin(ctx, engine, rest)
	case "logout":
		if err := engine.Client().Logout(); err != nil {
			return err
		}
		fmt.Println("logged out")
		return nil
	case "endpoint":
		return cmdEndpoint(ctx, engine, rest)
	case "list":
		return cmdList(ctx, engine, rest)
	case "users":
		return cmdUsers(ctx, engine, rest)
	case "act":
		return cmdAct(ctx, engine, rest)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdLogin(ctx context.Context, engine *review.Engine, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	user := fs.String("u", "", "username")
	pass := fs.String("p", "", "password (prompted when omitted)")
	fs.Parse(args)

	if *user == "" {
		return fmt.Errorf("usage: adminctl login -u USER [-p PASS]")
	}
	password := *pass
	if password == "" {
		fmt.Fprint(os.Stderr, "password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimSpace(line)
	}

	if err := engine.Client().Login(ctx, *user, password); err != nil {
		return err
	}
	fmt.Printf("logged in as %s\n", *user)
	return nil
}

func cmdEndpoint(ctx context.Context, engine *review.Engine, args []string) error {
	resolver := engine.Client().Resolver()
	if len(args) == 1 {
		base, err := resolver.Override(args[0])
		if err != nil {
			return err
		}
		fmt.Println(base)
		return nil
	}
	base, err := resolver.Resolve(ctx)
	if err != nil {
		return err
	}
	fmt.Println(base)
	return nil
}

func cmdList(ctx context.Context, engine *review.Engine, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: adminctl list <kind>")
	}
	kind, err := review.ParseKind(args[0])
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	switch kind {
	case review.KindUserSignup:
		items, err := engine.PendingUsers(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tTX\tSUBMITTED")
		for _, u := range items {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, u.SignupTxID, u.SubmittedAt)
		}
	case review.KindDeposit:
		items, err := engine.PendingDeposits(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "ID\tUSER\tUSD\tPKR\tTX\tSTATUS")
		for _, d := range items {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", d.ID, d.User.Username, d.AmountUSD, d.AmountPKR, d.TxID, d.Status)
		}
	case review.KindWithdrawal:
		items, err := engine.PendingWithdrawals(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "ID\tUSER\tUSD\tNET\tMETHOD\tSTATUS")
		for _, w := range items {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", w.ID, w.User.Username, w.AmountUSD, w.NetUSD, w.Method, w.Status)
		}
	case review.KindSignupProof:
		items, err := engine.PendingProofs(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "ID\tUSER\tSTATUS\tCREATED")
		for _, p := range items {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.ID, p.User.Username, p.Status, p.CreatedAt)
		}
	case review.KindProduct:
		items, err := engine.Products(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "ID\tTITLE\tUSD\tACTIVE")
		for _, p := range items {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%t\n", p.ID, p.Title, p.PriceUSD, p.IsActive)
		}
	case review.KindOrder:
		items, err := engine.Orders(ctx, "")
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "ID\tPRODUCT\tQTY\tTOTAL\tSTATUS")
		for _, o := range items {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\n", o.ID, o.Product, o.Quantity, o.TotalUSD, o.Status)
		}
	}
	return nil
}

func cmdUsers(ctx context.Context, engine *review.Engine, args []string) error {
	fs := flag.NewFlagSet("users", flag.ExitOnError)
	q := fs.String("q", "", "search username/email")
	page := fs.Int("page", 1, "page number")
	pageSize := fs.Int("page-size", 20, "page size")
	asJSON := fs.Bool("json", false, "print the raw page as JSON")
	fs.Parse(args)

	result, err := engine.Users(ctx, review.UserFilter{
		Q:        *q,
		Page:     *page,
		PageSize: *pageSize,
	})
	if err != nil {
		return err
	}

	if *asJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tAPPROVED\tACTIVE\tREWARDS\tREFERRALS")
	for _, u := range result.Results {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%t\t%s\t%d\n",
			u.ID, u.Username, u.Email, u.IsApproved, u.IsActive, u.RewardsUSD, u.ReferralsCount)
	}
	tw.Flush()
	fmt.Printf("%d of %d users (page %d)\n", len(result.Results), result.Count, *page)
	return nil
}

func cmdAct(ctx context.Context, engine *review.Engine, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: adminctl act <kind> <id> <verb> [status]")
	}
	kind, err := review.ParseKind(args[0])
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", args[1])
	}
	verb, err := review.ParseVerb(args[2])
	if err != nil {
		return err
	}
	var opts review.ActionOptions
	if len(args) > 3 {
		opts.Status = args[3]
	}
	if err := engine.Act(ctx, kind, id, verb, opts); err != nil {
		return err
	}
	fmt.Printf("%s %d: %s applied\n", kind, id, verb)
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: adminctl [-config path] <command>

Commands:
  login -u USER [-p PASS]        authenticate and store tokens
  logout                         clear stored tokens
  endpoint [url]                 show or override the API base URL
  list <kind>                    list a queue (users, deposits, withdrawals,
                                 proofs, orders, products)
  users [-q ..] [-page ..]       search the paginated user directory
  act <kind> <id> <verb> [status]
                                 apply a review action, e.g.
                                 act deposits 12 APPROVE
                                 act orders 3 SET_STATUS PAID
`)
}
