package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/docassist/docassist-go/internal/apiclient"
	"github.com/docassist/docassist-go/internal/model"
	"github.com/docassist/docassist-go/internal/session"
)

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "signup":
		err = commandSignup(args)
	case "login":
		err = commandLogin(args)
	case "logout":
		err = commandLogout(args)
	case "status":
		err = commandStatus(args)
	case "profile":
		err = commandProfile(args)
	case "update-profile":
		err = commandUpdateProfile(args)
	case "change-password":
		err = commandChangePassword(args)
	case "save-history":
		err = commandSaveHistory(args)
	case "version", "--version", "-v":
		fmt.Println(strings.TrimSpace(buildVersion))
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// common holds the flags every command accepts.
type common struct {
	api     *string
	session *string
	verbose *bool
}

func commonFlags(fs *flag.FlagSet) common {
	defaultAPI := os.Getenv("DOCASSIST_API")
	if defaultAPI == "" {
		defaultAPI = apiclient.DefaultBaseURL
	}
	return common{
		api:     fs.String("api", defaultAPI, "Auth API base URL (env DOCASSIST_API)"),
		session: fs.String("session", "", "Session database (default <user config dir>/docassist/session.db)"),
		verbose: fs.Bool("v", false, "Log restore and logout failures"),
	}
}

// open restores the persisted session. The returned func releases it.
func (c common) open(ctx context.Context) (*session.Session, func(), error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if *c.verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	path := strings.TrimSpace(*c.session)
	if path == "" {
		var err error
		if path, err = sessionPath(); err != nil {
			return nil, nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, err
	}

	store, err := session.OpenSQLiteStore(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	api, err := apiclient.New(*c.api, apiclient.WithTokenSource(session.TokenSource(store)))
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	s := session.New(api, store, session.WithLogger(logger))
	result := s.Restore(ctx)
	logger.Debug("session restored", "result", result.String())
	return s, func() { store.Close() }, nil
}

func commandSignup(args []string) error {
	fs := flag.NewFlagSet("signup", flag.ExitOnError)
	c := commonFlags(fs)
	name := fs.String("name", "", "Full name")
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	fs.Parse(args)

	if strings.TrimSpace(*name) == "" || strings.TrimSpace(*email) == "" {
		return errors.New("--name and --email are required")
	}
	secret, err := promptIfEmpty(*password, "Password: ")
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()
	s, done, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := s.Signup(ctx, model.SignupRequest{Name: *name, Email: *email, Password: secret}); err != nil {
		return err
	}
	fmt.Println("registration successful, run `docassist login` to sign in")
	return nil
}

func commandLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	c := commonFlags(fs)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	fs.Parse(args)

	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	secret, err := promptIfEmpty(*password, "Password: ")
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()
	s, done, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := s.Login(ctx, *email, secret); err != nil {
		return err
	}
	fmt.Printf("logged in as %s\n", s.State().User.Email)
	return nil
}

func commandLogout(args []string) error {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	c := commonFlags(fs)
	fs.Parse(args)

	ctx, cancel := commandContext()
	defer cancel()
	s, done, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer done()

	s.Logout(ctx)
	fmt.Println("logged out")
	return nil
}

func commandStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	c := commonFlags(fs)
	fs.Parse(args)

	ctx, cancel := commandContext()
	defer cancel()
	s, done, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer done()

	st := s.State()
	if st.User == nil {
		fmt.Println("not logged in")
		return nil
	}
	fmt.Printf("logged in as %s <%s>\n", st.User.Name, st.User.Email)
	return nil
}

func commandProfile(args []string) error {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	c := commonFlags(fs)
	fs.Parse(args)

	ctx, cancel := commandContext()
	defer cancel()
	s, done, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer done()

	st := s.State()
	if st.User == nil {
		return apiclient.ErrNotAuthenticated
	}
	printProfile(*st.User)
	return nil
}

func commandUpdateProfile(args []string) error {
	fs := flag.NewFlagSet("update-profile", flag.ExitOnError)
	c := commonFlags(fs)
	var upd model.ProfileUpdate
	fs.StringVar(&upd.Name, "name", "", "New name")
	fs.StringVar(&upd.Email, "email", "", "New email address")
	fs.StringVar(&upd.Phone, "phone", "", "New phone number")
	fs.StringVar(&upd.Bio, "bio", "", "New bio")
	fs.Parse(args)

	if upd.IsEmpty() {
		return errors.New("nothing to update, pass at least one of --name --email --phone --bio")
	}

	ctx, cancel := commandContext()
	defer cancel()
	s, done, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := s.UpdateUserProfile(ctx, upd); err != nil {
		return err
	}
	fmt.Println("Profile updated successfully")
	printProfile(*s.State().User)
	return nil
}

func commandChangePassword(args []string) error {
	fs := flag.NewFlagSet("change-password", flag.ExitOnError)
	c := commonFlags(fs)
	current := fs.String("current", "", "Current password (supply to avoid prompt)")
	next := fs.String("new", "", "New password (supply to avoid prompt)")
	fs.Parse(args)

	cur, err := promptIfEmpty(*current, "Current password: ")
	if err != nil {
		return err
	}
	nw, err := promptIfEmpty(*next, "New password: ")
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()
	s, done, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := s.ChangePassword(ctx, cur, nw); err != nil {
		return err
	}
	fmt.Println("Password changed successfully")
	return nil
}

func commandSaveHistory(args []string) error {
	fs := flag.NewFlagSet("save-history", flag.ExitOnError)
	c := commonFlags(fs)
	filename := fs.String("file", "", "Processed file name")
	fs.Parse(args)

	if strings.TrimSpace(*filename) == "" && fs.NArg() > 0 {
		*filename = fs.Arg(0)
	}

	ctx, cancel := commandContext()
	defer cancel()
	s, done, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := s.SaveHistory(ctx, *filename); err != nil {
		return err
	}
	fmt.Println("History saved successfully")
	return nil
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func promptIfEmpty(value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Print("\n")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func printProfile(p model.Profile) {
	fmt.Printf("id:    %s\nname:  %s\nemail: %s\n", p.ID, p.Name, p.Email)
	if p.Phone != "" {
		fmt.Printf("phone: %s\n", p.Phone)
	}
	if p.Bio != "" {
		fmt.Printf("bio:   %s\n", p.Bio)
	}
	if len(p.History) > 0 {
		fmt.Println("history:")
		for _, h := range p.History {
			fmt.Printf("  %s  %s\n", h.CreatedAt.Local().Format(time.DateTime), h.Filename)
		}
	}
}

func sessionPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "docassist", "session.db"), nil
}

func printUsage() {
	fmt.Printf("docassist CLI %s\n\n", buildVersion)
	fmt.Print(`Usage:
	docassist signup --name "Jane Doe" --email user@example.com [--password secret]
	docassist login --email user@example.com [--password secret]
	docassist logout
	docassist status
	docassist profile
	docassist update-profile [--name N] [--email E] [--phone P] [--bio B]
	docassist change-password [--current secret] [--new secret]
	docassist save-history --file report.pdf
	docassist version

Every command accepts --api <url> (env DOCASSIST_API) and --session <path>.
`)
}
