// Command qr is a command-line client for the QuoteReality API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/quotereality/internal/client"
	"github.com/and161185/quotereality/internal/money"
	"github.com/and161185/quotereality/internal/state"
	"github.com/and161185/quotereality/internal/timerstore"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const defaultAPIURL = "http://localhost:8080"

// app carries per-invocation dependencies shared by the commands.
type app struct {
	apiURL  string
	token   string
	verbose bool
	now     func() time.Time
	out     io.Writer
}

// apiBase resolves the server URL: flag, then QR_API_URL, then the login file.
func (a *app) apiBase(tf tokenFile) string {
	switch {
	case a.apiURL != "":
		return a.apiURL
	case os.Getenv("QR_API_URL") != "":
		return os.Getenv("QR_API_URL")
	case tf.APIURL != "":
		return tf.APIURL
	}
	return defaultAPIURL
}

func (a *app) client() (*client.Client, error) {
	tok := a.token
	if tok == "" {
		tok = os.Getenv("QR_TOKEN")
	}
	var tf tokenFile
	if tok == "" {
		var err error
		if tf, err = loadToken(); err != nil {
			return nil, err
		}
		tok = tf.AccessToken
	} else {
		tf, _ = loadToken()
	}

	var opts []client.Option
	if a.verbose {
		if l, err := zap.NewDevelopment(); err == nil {
			opts = append(opts, client.WithLogger(l))
		}
	}
	return client.New(a.apiBase(tf), tok, opts...), nil
}

func (a *app) store() (*state.Store, *client.Client, error) {
	c, err := a.client()
	if err != nil {
		return nil, nil, err
	}
	return state.New(c), c, nil
}

func (a *app) timers() (*timerstore.Store, error) {
	return timerstore.Open(timerDBPath())
}

// currency returns the user's display currency, falling back to the default.
func (a *app) currency(ctx context.Context, st *state.Store) money.Code {
	if err := st.FetchSettings(ctx); err == nil {
		if s := st.Snapshot().Settings; s != nil {
			if c, err := money.Parse(s.CurrencyCode); err == nil {
				return c
			}
		}
	}
	return money.Default
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "qr",
		Short:         "Track time against fixed-price quotes",
		Long:          "qr manages QuoteReality projects, runs a stopwatch across invocations and exports your data.",
		Version:       fmt.Sprintf("%s (%s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.out = cmd.OutOrStdout()
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.apiURL, "api", "", "API base URL (default $QR_API_URL or "+defaultAPIURL+")")
	pf.StringVar(&a.token, "token", "", "bearer token (default $QR_TOKEN or saved login)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log API requests")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(),
		newProjectsCmd(a),
		newProjectCmd(a),
		newTimerCmd(a),
		newSessionCmd(a),
		newSettingsCmd(a),
		newExportCmd(a),
	)
	return root
}

func main() {
	a := &app{now: time.Now, out: os.Stdout}
	ctx, cancel := context.WithTimeout(context.Background(), 2*client.DefaultTimeout)
	defer cancel()

	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		fail(err)
	}
}

// ---- helpers ----

func fail(err error) {
	var ae *client.APIError
	if errors.As(err, &ae) {
		fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("api error: status=%d msg=%s", ae.Status, ae.Message)))
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
	os.Exit(1)
}
