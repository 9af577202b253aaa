package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/tflic/internal/client/api"
	"github.com/dmitrijs2005/tflic/internal/client/config"
	"google.golang.org/grpc"
)

// API is the part of api.Client the commands use.
type API interface {
	Authorize(ctx context.Context, login, password string) (*api.AuthResult, error)
	Register(ctx context.Context, login, name, password string) (*api.AuthResult, error)
	Refresh(ctx context.Context, tokens api.TokenPair) (*api.TokenPair, error)
	GetAccount(ctx context.Context, accessToken, ref string) (*api.AccountView, error)
	UpdateName(ctx context.Context, accessToken, id, name string) (*api.AccountView, error)
}

type healthFunc func(ctx context.Context, addr, service string, opts ...grpc.DialOption) (string, error)

type App struct {
	config      *config.Config
	api         API
	checkHealth healthFunc
	sessions    *SessionStore
	reader      *bufio.Reader
	out         io.Writer
}

func NewApp(c *config.Config) (*App, error) {
	path := c.SessionFile
	if path == "" {
		p, err := DefaultSessionPath()
		if err != nil {
			return nil, fmt.Errorf("session file: %w", err)
		}
		path = p
	}

	return &App{
		config:      c,
		api:         api.New(c.ServerURL, c.Timeout),
		checkHealth: api.CheckHealth,
		sessions:    NewSessionStore(path),
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
	}, nil
}

const usage = `usage: tflicctl [-s url] [-g addr] [-t seconds] [-f session] [-c config] <command>

commands:
  register    create an account and sign in
  authorize   sign in with login and password
  refresh     exchange the saved token pair for a new one
  whoami      show the signed-in account
  rename      change the display name of the signed-in account
  logout      forget the saved session
  health      query the gRPC health endpoint`

// Run executes the command named by args[0].
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, usage)
		return nil
	}

	switch args[0] {
	case "register":
		return a.Register(ctx)
	case "authorize", "login":
		return a.Authorize(ctx)
	case "refresh":
		return a.Refresh(ctx)
	case "whoami":
		return a.Whoami(ctx)
	case "rename":
		return a.Rename(ctx)
	case "logout":
		return a.Logout()
	case "health":
		return a.Health(ctx)
	case "help":
		fmt.Fprintln(a.out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q, see tflicctl help", args[0])
	}
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
