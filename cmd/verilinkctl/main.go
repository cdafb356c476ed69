package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/ss14tools/verilink/internal/security/apitoken"
	"github.com/ss14tools/verilink/internal/security/secretbox"
)

type client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	var v any
	if json.Unmarshal(body, &v) == nil {
		p, _ := json.MarshalIndent(v, "", "  ")
		fmt.Println(string(p))
		return
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func main() {
	var (
		baseURL = envOr("VERILINK_URL", "http://localhost:8080")
		apiKey  = envOr("VERILINK_API_KEY", "")
	)

	root := &cobra.Command{
		Use:   "verilinkctl",
		Short: "Admin CLI for the verilink verification service",
	}
	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "service base URL (env VERILINK_URL)")
	root.PersistentFlags().StringVar(&apiKey, "api-key", apiKey, "write API key (env VERILINK_API_KEY)")

	cl := &client{BaseURL: baseURL, APIKey: apiKey, HTTP: &http.Client{Timeout: 30 * time.Second}}

	root.AddCommand(&cobra.Command{
		Use:   "ping",
		Short: "Check service liveness",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/healthz", nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			if status != http.StatusOK {
				return fmt.Errorf("unhealthy: status %d", status)
			}
			return nil
		},
	})

	membersCmd := &cobra.Command{
		Use:   "members",
		Short: "Manage the verified-member list",
	}

	membersCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List verified members",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/verified", nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	})

	membersCmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one verified member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/verified/"+args[0], nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	})

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a verified member (links a game account to a Discord identity)",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]string{
				"game_user_id":   cmd.Flag("game-id").Value.String(),
				"game_user_name": cmd.Flag("game-name").Value.String(),
				"discord_id":     cmd.Flag("discord-id").Value.String(),
				"discord_name":   cmd.Flag("discord-name").Value.String(),
			}
			b, _ := json.Marshal(payload)
			status, body, err := cl.do("POST", "/verified", b)
			if err != nil {
				return err
			}
			cl.print(status, body)
			if status >= 400 {
				return fmt.Errorf("add failed: status %d", status)
			}
			return nil
		},
	}
	addCmd.Flags().String("game-id", "", "game account user ID (required)")
	addCmd.Flags().String("game-name", "", "game account display name")
	addCmd.Flags().String("discord-id", "", "Discord snowflake ID (required)")
	addCmd.Flags().String("discord-name", "", "Discord display name")
	_ = addCmd.MarkFlagRequired("game-id")
	_ = addCmd.MarkFlagRequired("discord-id")
	membersCmd.AddCommand(addCmd)

	membersCmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a verified member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("DELETE", "/verified/"+args[0], nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			if status >= 400 {
				return fmt.Errorf("remove failed: status %d", status)
			}
			return nil
		},
	})
	root.AddCommand(membersCmd)

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a members:write JWT (requires VERILINK_JWT_SECRET)",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := strings.TrimSpace(os.Getenv("VERILINK_JWT_SECRET"))
			if secret == "" {
				return fmt.Errorf("VERILINK_JWT_SECRET is not set")
			}
			ttl, err := cmd.Flags().GetDuration("ttl")
			if err != nil {
				return err
			}
			now := time.Now()
			tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{
				"sub":   "verilinkctl",
				"scope": apitoken.ScopeMembersWrite,
				"iat":   now.Unix(),
				"exp":   now.Add(ttl).Unix(),
			})
			signed, err := tk.SignedString([]byte(secret))
			if err != nil {
				return err
			}
			fmt.Println(signed)
			return nil
		},
	}
	tokenCmd.Flags().Duration("ttl", time.Hour, "token lifetime")
	root.AddCommand(tokenCmd)

	root.AddCommand(&cobra.Command{
		Use:   "encrypt-secret <plaintext>",
		Short: "Secretbox-encrypt a client secret for the config file (requires SECRETBOX_MASTER_KEY)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !secretbox.Ready() {
				return fmt.Errorf("SECRETBOX_MASTER_KEY is not set or invalid")
			}
			enc, err := secretbox.Encrypt(args[0])
			if err != nil {
				return err
			}
			fmt.Println(enc)
			return nil
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
