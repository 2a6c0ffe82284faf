package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:     "login EMAIL",
	GroupID: "server",
	Short:   "Sign in with a magic link and print an API token",
	Long: `Request a magic link for EMAIL. Servers without SMTP return the link
directly, in which case it is exchanged for a token right away; otherwise
pass the token from the emailed link with --link-token.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		httpClient := &http.Client{Timeout: cfg.RemoteTimeout}
		base := strings.TrimRight(cfg.ServerURL, "/")

		linkToken, _ := cmd.Flags().GetString("link-token")
		if linkToken == "" {
			body, _ := json.Marshal(map[string]string{"email": args[0]})
			resp, err := httpClient.Post(base+"/api/auth/login", "application/json", bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("failed to request magic link: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("failed to request magic link: %s", resp.Status)
			}

			var login struct {
				MagicLink string `json:"magicLink"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
				return fmt.Errorf("failed to decode login response: %w", err)
			}
			_, query, ok := strings.Cut(login.MagicLink, "token=")
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Magic link sent; rerun with --link-token once it arrives")
				return nil
			}
			linkToken = query
		}

		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, base+"/api/auth/magic-link?token="+linkToken, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		resp, err := httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to exchange magic link: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("failed to exchange magic link: %s", resp.Status)
		}

		var verified struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&verified); err != nil {
			return fmt.Errorf("failed to decode token response: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), verified.Token)
		return nil
	},
}

func init() {
	loginCmd.Flags().String("link-token", "", "token from an emailed magic link")

	rootCmd.AddCommand(loginCmd)
}
