package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type rootOptions struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	asJSON  bool
}

// newEnv reads flag defaults from GATEWAY_URL and API_KEY.
func newEnv() *viper.Viper {
	env := viper.New()
	env.SetDefault("gateway_url", "http://localhost:3000")
	_ = env.BindEnv("gateway_url", "GATEWAY_URL")
	_ = env.BindEnv("api_key", "API_KEY")
	return env
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	env := newEnv()
	rootCmd := &cobra.Command{
		Use:           "sessionctl",
		Short:         "Manage sessions on a running gateway",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", env.GetString("gateway_url"), "gateway base URL")
	rootCmd.PersistentFlags().StringVar(&opts.apiKey, "api-key", env.GetString("api_key"), "value sent as x-api-key")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "request timeout")
	rootCmd.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print the raw JSON response")

	rootCmd.AddCommand(
		newSessionCmd(opts, "start", "Start a session", "start"),
		newSessionCmd(opts, "status", "Show whether a session is connected", "status"),
		newSessionCmd(opts, "restart", "Restart a session keeping its credentials", "restart"),
		newSessionCmd(opts, "terminate", "Log a session out and delete its folder", "terminate"),
		newSessionCmd(opts, "qr", "Print the pairing QR code of a session", "qr"),
		newFlushCmd(opts),
		newListCmd(opts),
	)
	return rootCmd
}

func (o *rootOptions) client() *GatewayClient {
	return NewGatewayClient(o.baseURL, o.apiKey, o.timeout)
}

func (o *rootOptions) call(cmd *cobra.Command, path string) (*APIResponse, error) {
	res, code, err := o.client().Get(cmd.Context(), path)
	if err != nil {
		return nil, err
	}
	if o.asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return nil, err
		}
	}
	if code >= 300 {
		msg := res.Message
		if res.Error != nil && res.Error.Code != "" {
			msg = fmt.Sprintf("%s (%s)", msg, res.Error.Code)
		}
		return res, fmt.Errorf("gateway returned %d: %s", code, msg)
	}
	return res, nil
}

func newSessionCmd(opts *rootOptions, use, short, action string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <sessionId>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := opts.call(cmd, sessionPath(action, args[0]))
			if err != nil {
				return err
			}
			if opts.asJSON {
				return nil
			}
			switch action {
			case "status":
				if !res.Success {
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %s\n", args[0], res.Message, res.State)
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], res.State)
				return err
			case "qr":
				var data struct {
					QR string `json:"qr"`
				}
				if err := json.Unmarshal(res.Data, &data); err != nil || data.QR == "" {
					return errors.New(res.Message)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), data.QR)
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], res.Message)
			return err
		},
	}
}

func newFlushCmd(opts *rootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Terminate inactive sessions, or every session with --all",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/session/terminateInactive"
			if all {
				path = "/session/terminateAll"
			}
			res, err := opts.call(cmd, path)
			if err != nil || opts.asJSON {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return err
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "terminate connected sessions too")
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List live sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := opts.call(cmd, "/session/list")
			if err != nil || opts.asJSON {
				return err
			}
			var data struct {
				Sessions []string `json:"sessions"`
			}
			if err := json.Unmarshal(res.Data, &data); err != nil {
				return fmt.Errorf("decode sessions: %w", err)
			}
			for _, id := range data.Sessions {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
