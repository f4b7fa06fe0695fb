package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/whookdev/composer/internal/auth"
	"github.com/whookdev/composer/internal/config"
	"github.com/whookdev/composer/internal/connectivity"
	"github.com/whookdev/composer/internal/dispatcher"
	"github.com/whookdev/composer/internal/lifecycle"
	"github.com/whookdev/composer/internal/log"
	"github.com/whookdev/composer/internal/models"
	"github.com/whookdev/composer/internal/redis"
	"github.com/whookdev/composer/internal/store"
	"github.com/whookdev/composer/internal/tunnel"
)

type sendOptions struct {
	url         string
	method      string
	headers     []string
	body        string
	contentType string
	authType    string
	authParams  []string
	wait        time.Duration
}

func newSendCmd() *cobra.Command {
	opts := &sendOptions{}

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a request through the executor and print the response",
		Example: `  composer send --url https://example.com/api --method POST \
    --header "accept: application/json" --body '{"foo": "bar"}' \
    --auth wsse --auth-param key=me --auth-param secret=s3cr3t`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.url, "url", "u", "", "request url")
	cmd.Flags().StringVarP(&opts.method, "method", "X", "GET", "http method")
	cmd.Flags().StringArrayVarP(&opts.headers, "header", "H", nil, `request header as "name: value", repeatable`)
	cmd.Flags().StringVarP(&opts.body, "body", "d", "", "request body")
	cmd.Flags().StringVar(&opts.contentType, "content-type", string(store.Custom), "content type, one of: custom, json, xml, form, text")
	cmd.Flags().StringVar(&opts.authType, "auth", string(auth.None), "authentication type")
	cmd.Flags().StringArrayVar(&opts.authParams, "auth-param", nil, "authentication parameter as key=value, repeatable")
	cmd.Flags().DurationVar(&opts.wait, "wait", 65*time.Second, "how long to wait for the reply")

	_ = cmd.MarkFlagRequired("url")

	return cmd
}

func newAuthTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth-types",
		Short: "List the supported authentication types",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, e := range auth.Types() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", e.ID, e.Label)
			}
			return nil
		},
	}
}

func runSend(cmd *cobra.Command, opts *sendOptions) error {
	cfg, err := config.NewClientConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := log.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("configuring logger: %w", err)
	}
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	conn, err := tunnel.Dial(ctx, cfg.ExecutorURL, logger)
	if err != nil {
		return err
	}
	defer conn.Close()
	go conn.Handle()

	d, err := dispatcher.New(store.New(), conn, logger)
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	if cfg.RedisURL != "" && cfg.ServerID != "" {
		stop, err := watchConnectivity(ctx, cfg, d, logger)
		if err != nil {
			logger.Warn("connectivity monitor disabled", "error", err)
		} else {
			defer stop()
		}
	}

	if err := compose(d, opts); err != nil {
		return err
	}

	go d.Listen(ctx, conn.Messages())

	if err := d.SendRequest(ctx); err != nil {
		return err
	}

	select {
	case <-d.Updates():
	case <-conn.Done():
		return fmt.Errorf("executor closed the channel before replying")
	case <-time.After(opts.wait):
		return fmt.Errorf("no reply within %s", opts.wait)
	}

	return printResult(cmd, d.State())
}

// compose applies the command line to the dispatcher, one transition per
// setting.
func compose(d *dispatcher.Dispatcher, opts *sendOptions) error {
	d.SetURL(opts.url)

	if err := d.SelectHTTPMethod(opts.method); err != nil {
		return err
	}

	if err := d.SelectAuthType(opts.authType); err != nil {
		return err
	}
	params, err := parseParams(opts.authParams)
	if err != nil {
		return err
	}
	d.SetAuthParams(params)

	for _, raw := range opts.headers {
		h, err := parseHeader(raw)
		if err != nil {
			return err
		}
		if err := d.SetHeader(h); err != nil {
			return err
		}
	}

	if err := d.SelectContentType(store.ContentType(opts.contentType)); err != nil {
		return err
	}

	d.SetRequestBody(opts.body)
	return nil
}

func watchConnectivity(ctx context.Context, cfg *config.ClientConfig, d *dispatcher.Dispatcher, logger *slog.Logger) (func(), error) {
	rdb, err := redis.New(cfg.RedisURL, logger)
	if err != nil {
		return nil, err
	}
	if err := rdb.Start(ctx); err != nil {
		rdb.Stop()
		return nil, err
	}

	staleAfter := time.Duration(cfg.HealthCheckInterval) * time.Second
	monitor := connectivity.New(lifecycle.NewRegistry(rdb.Client), d, cfg.ServerID, staleAfter, logger)
	monitor.Check(ctx)

	monitorCtx, cancel := context.WithCancel(ctx)
	go monitor.Run(monitorCtx)

	return func() {
		cancel()
		rdb.Stop()
	}, nil
}

type result struct {
	NetworkStatus      store.NetworkStatus `json:"networkStatus"`
	Response           *models.Response    `json:"response,omitempty"`
	SentRequestHeaders map[string]string   `json:"sentRequestHeaders,omitempty"`
	Error              *models.ReplyError  `json:"error,omitempty"`
}

func printResult(cmd *cobra.Command, state store.State) error {
	out := result{
		NetworkStatus:      state.NetworkStatus,
		SentRequestHeaders: state.SentRequestHeaders,
		Error:              state.LastError,
	}
	if state.LastError == nil {
		out.Response = &state.Response
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}

	if state.LastError != nil {
		return state.LastError
	}
	return nil
}

var errMalformed = errors.New("malformed flag value")

// parseHeader reads "name: value". The header is sent.
func parseHeader(raw string) (store.Header, error) {
	name, value, ok := strings.Cut(raw, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return store.Header{}, fmt.Errorf("%w: header %q, expected \"name: value\"", errMalformed, raw)
	}
	return store.Header{Name: name, Value: strings.TrimSpace(value), SendingStatus: true}, nil
}

func parseParams(raw []string) (auth.Params, error) {
	params := auth.Params{}
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: auth param %q, expected key=value", errMalformed, kv)
		}
		params[k] = v
	}
	return params, nil
}
