// Command studyshare is a CLI client for the StudyShare resource
// sharing service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/studyshare/internal/client"
	"github.com/and161185/studyshare/internal/collection"
	"github.com/and161185/studyshare/internal/config"
	"github.com/and161185/studyshare/internal/errs"
	"github.com/and161185/studyshare/internal/model"
	"github.com/and161185/studyshare/internal/session"
	"github.com/and161185/studyshare/internal/token"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `studyshare CLI
Usage:
  studyshare [-server URL] [-v] <cmd> [args]

Commands:
  version
  register   -name <name> -email <email> -p <password>   (saves token)
  login      -email <email> -p <password>                (saves token)
  logout
  whoami
  list       [-q <text>] [-subject <subject>] [-sem <semester>] [-ratings]
  rate       -id <resource> -value <1..5>
  download   -id <resource> [-o <file>]
  rm         -id <resource> -yes
  upload     -title <t> -desc <d> -subject <s> -sem <n> -file <path>
  dashboard
  watch
`)
	os.Exit(2)
}

// app bundles the wiring every authenticated command needs.
type app struct {
	cfg   *config.Config
	log   *zap.Logger
	store *token.Store
	api   *client.Client
	sess  *session.Deriver
}

func newApp(serverOverride string, verbose bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if serverOverride != "" {
		cfg.Server.URL = serverOverride
	}

	zcfg := zap.NewProductionConfig()
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}

	store := token.New(cfg.Token.Path, logger)
	api := client.New(cfg.Server.URL, cfg.Server.Timeout, store, logger)
	return &app{
		cfg:   cfg,
		log:   logger,
		store: store,
		api:   api,
		sess:  session.New(store, api, logger),
	}, nil
}

// requireAuth exits with a login hint when no valid session exists.
func (a *app) requireAuth() {
	if !a.sess.IsAuthenticated() {
		fmt.Fprintln(os.Stderr, "not logged in (run: studyshare login)")
		os.Exit(1)
	}
}

func main() {
	server := flag.String("server", "", "server base URL (overrides config)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	if cmd == "version" {
		fmt.Printf("studyshare %s (%s)\n", version, buildDate)
		return
	}

	a, err := newApp(*server, *verbose)
	if err != nil {
		fail(err)
	}
	defer func() { _ = a.log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch cmd {

	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		name := fs.String("name", "", "display name")
		email := fs.String("email", "", "email")
		p := fs.String("p", "", "password")
		_ = fs.Parse(flag.Args()[1:])
		if *name == "" || *email == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -name, -email and -p")
			os.Exit(1)
		}
		tok, err := a.api.Register(ctx, *name, *email, *p)
		if err != nil {
			fail(err)
		}
		if err := a.store.Set(tok); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		email := fs.String("email", "", "email")
		p := fs.String("p", "", "password")
		_ = fs.Parse(flag.Args()[1:])
		if *email == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -email and -p")
			os.Exit(1)
		}
		tok, err := a.api.Login(ctx, *email, *p)
		if err != nil {
			fail(err)
		}
		if err := a.store.Set(tok); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "logout":
		if err := a.store.Clear(); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "whoami":
		sess := a.sess.Current(ctx)
		if !sess.Authenticated {
			fmt.Println("anonymous")
			return
		}
		printJSON(sess.User)

	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		q := fs.String("q", "", "search text")
		subject := fs.String("subject", "", "exact subject")
		sem := fs.String("sem", "", "semester 1..8")
		withRatings := fs.Bool("ratings", false, "include own ratings")
		_ = fs.Parse(flag.Args()[1:])
		a.requireAuth()

		ctl := collection.New(a.api, nil, a.log)
		if err := ctl.Load(ctx); err != nil {
			fail(err)
		}
		ctl.SetFilter(model.Filter{Search: *q, Subject: *subject, Semester: *sem})
		if *withRatings {
			ctl.RefreshOwnRatings(ctx)
		}

		type row struct {
			ID        string  `json:"id"`
			Title     string  `json:"title"`
			Subject   string  `json:"subject"`
			Semester  string  `json:"semester"`
			Rating    float64 `json:"rating"`
			Count     int     `json:"ratingCount"`
			Downloads int     `json:"downloads"`
			Mine      int     `json:"myRating,omitempty"`
			By        string  `json:"by,omitempty"`
		}
		rows := []row{}
		for _, r := range ctl.Visible() {
			mine, _ := ctl.OwnRating(r.ID)
			rows = append(rows, row{
				ID: r.ID, Title: r.Title, Subject: r.Subject, Semester: r.Semester,
				Rating: r.AverageRating, Count: r.RatingCount, Downloads: r.Downloads,
				Mine: mine, By: r.UploadedBy.Name,
			})
		}
		printJSON(rows)

	case "rate":
		fs := flag.NewFlagSet("rate", flag.ExitOnError)
		id := fs.String("id", "", "resource id")
		value := fs.Int("value", 0, "rating 1..5")
		_ = fs.Parse(flag.Args()[1:])
		if *id == "" {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}
		a.requireAuth()

		ctl := collection.New(a.api, nil, a.log)
		if err := ctl.Load(ctx); err != nil {
			fail(err)
		}
		if err := ctl.Rate(ctx, *id, *value); err != nil {
			fail(err)
		}
		if r, ok := ctl.Resource(*id); ok {
			fmt.Printf("ok avg=%.1f (%d)\n", r.AverageRating, r.RatingCount)
		} else {
			fmt.Println("ok")
		}

	case "download":
		fs := flag.NewFlagSet("download", flag.ExitOnError)
		id := fs.String("id", "", "resource id")
		out := fs.String("o", "", "output file (default: server-suggested name)")
		_ = fs.Parse(flag.Args()[1:])
		if *id == "" {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}
		a.requireAuth()

		ctl := collection.New(a.api, nil, a.log)
		if err := ctl.Load(ctx); err != nil {
			fail(err)
		}

		// Same directory as the destination so the final rename cannot
		// cross filesystems.
		tmp, err := os.CreateTemp(".", ".studyshare-*")
		if err != nil {
			fail(err)
		}
		name, err := ctl.Download(ctx, *id, tmp)
		if cerr := tmp.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(tmp.Name())
			fail(err)
		}
		dst := *out
		if dst == "" {
			if name == "" {
				name = *id
			}
			dst = filepath.Base(name)
		}
		if err := os.Rename(tmp.Name(), dst); err != nil {
			fail(err)
		}
		fmt.Println(dst)

	case "rm":
		fs := flag.NewFlagSet("rm", flag.ExitOnError)
		id := fs.String("id", "", "resource id")
		yes := fs.Bool("yes", false, "confirm deletion")
		_ = fs.Parse(flag.Args()[1:])
		if *id == "" {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}
		if !*yes {
			fmt.Fprintln(os.Stderr, "deletion is permanent; re-run with -yes")
			os.Exit(1)
		}
		a.requireAuth()

		ctl := collection.New(a.api, nil, a.log)
		if err := ctl.Load(ctx); err != nil {
			fail(err)
		}
		if err := ctl.Remove(ctx, a.sess.Resolve(ctx), *id); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "upload":
		fs := flag.NewFlagSet("upload", flag.ExitOnError)
		title := fs.String("title", "", "title")
		desc := fs.String("desc", "", "description")
		subject := fs.String("subject", "", "subject (see catalog)")
		sem := fs.String("sem", "", "semester 1..8")
		file := fs.String("file", "", "document file (pdf/doc/docx/txt)")
		_ = fs.Parse(flag.Args()[1:])
		if *file == "" {
			fmt.Fprintln(os.Stderr, "need -file")
			os.Exit(1)
		}
		a.requireAuth()

		f, err := os.Open(*file)
		if err != nil {
			fail(err)
		}
		defer f.Close()

		res, err := a.api.Upload(ctx, client.UploadRequest{
			Title:       *title,
			Description: *desc,
			Subject:     *subject,
			Semester:    *sem,
			FileName:    filepath.Base(*file),
			File:        f,
		})
		if err != nil {
			fail(err)
		}
		printJSON(res)

	case "dashboard":
		a.requireAuth()
		d, err := a.api.Dashboard(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(d)

	case "watch":
		// Follow session changes (login/logout in another process using
		// the same config dir) until interrupted.
		wctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		report := func() {
			sess := a.sess.Current(wctx)
			if sess.Authenticated && sess.User != nil {
				fmt.Printf("session: %s (%s)\n", sess.User.Name, sess.User.Role)
			} else {
				fmt.Println("session: anonymous")
			}
		}
		a.store.Subscribe(report)
		report()
		if err := a.store.Watch(wctx); err != nil && !errors.Is(err, context.Canceled) {
			fail(err)
		}

	default:
		usage()
	}
}

// ---- helpers ----

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		fmt.Fprintln(os.Stderr, "session expired or rejected; log in again")
	case errors.Is(err, errs.ErrForbidden):
		fmt.Fprintln(os.Stderr, "you do not have permission for that")
	case errors.Is(err, errs.ErrNotFound):
		fmt.Fprintln(os.Stderr, "no such resource")
	case errors.Is(err, errs.ErrBusy):
		fmt.Fprintln(os.Stderr, "that operation is already running")
	case errors.Is(err, errs.ErrUnavailable):
		fmt.Fprintf(os.Stderr, "service unavailable, try again: %v\n", err)
	default:
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(1)
}
