package main

import (
	"auth_service/internal/domain"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// ProviderSource opens a provider for one command run.
type ProviderSource func(ctx context.Context) (domain.AuthStateProvider, func(), error)

type actionOutput struct {
	Result domain.Result    `json:"result"`
	State  domain.AuthState `json:"state"`
}

func printOutput(out io.Writer, provider domain.AuthStateProvider, res domain.Result) error {
	payload, err := json.MarshalIndent(actionOutput{Result: res, State: provider.State()}, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding output: %w", err)
	}
	fmt.Fprintln(out, string(payload))
	if !res.Success {
		return fmt.Errorf("action failed: %s", res.Error)
	}
	return nil
}

func newRootCmd(open ProviderSource) *cobra.Command {
	var email, password string

	rootCmd := &cobra.Command{
		Use:           "authctl",
		Short:         "Drive the auth state provider against the configured backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&email, "email", "e", "", "Account email")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "p", "", "Account password")
	rootCmd.MarkPersistentFlagRequired("email")
	rootCmd.MarkPersistentFlagRequired("password")

	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and print the resulting state",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			return printOutput(cmd.OutOrStdout(), provider, provider.Login(cmd.Context(), email, password))
		},
	}

	var username string
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and its profile row",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			return printOutput(cmd.OutOrStdout(), provider, provider.Register(cmd.Context(), email, password, username))
		},
	}
	registerCmd.Flags().StringVarP(&username, "username", "u", "", "Username stored on the profile")

	var fields map[string]string
	updateCmd := &cobra.Command{
		Use:   "update-profile",
		Short: "Sign in, then apply --set field=value pairs to the profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := make(map[string]any, len(fields))
			for k, v := range fields {
				raw[k] = v
			}
			patch, rejected := domain.PatchFromMap(raw)
			if len(rejected) > 0 {
				sort.Strings(rejected)
				return fmt.Errorf("unsupported fields: %s", strings.Join(rejected, ", "))
			}
			if patch.IsEmpty() {
				return fmt.Errorf("nothing to update, pass at least one --set field=value")
			}

			provider, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			if res := provider.Login(cmd.Context(), email, password); !res.Success {
				return printOutput(cmd.OutOrStdout(), provider, res)
			}
			return printOutput(cmd.OutOrStdout(), provider, provider.UpdateProfile(cmd.Context(), patch))
		},
	}
	updateCmd.Flags().StringToStringVar(&fields, "set", nil, "Profile field to change, e.g. --set bio=hello")

	rootCmd.AddCommand(loginCmd, registerCmd, updateCmd)
	return rootCmd
}
