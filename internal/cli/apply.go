package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/project-kessel/orgaud/internal/config"
	"github.com/project-kessel/orgaud/internal/service"
	"github.com/project-kessel/orgaud/internal/token"
)

type applyOptions struct {
	subject     string
	username    string
	clientID    string
	scope       string
	sessionID   string
	tokenFile   string
	event       string
	lightweight bool
	output      string
}

// NewApplyCmd creates the apply command
func NewApplyCmd() *cobra.Command {
	opts := &applyOptions{}

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply the configured mappers to a token",
		Long: `Apply every configured mapper model to a token and print the result.

The token is read as JSON claims or as a compact JWT from --token (use - for
stdin). Without --token a fresh access token is minted for the session.

Examples:
  # Mint an access token for alice
  orgaud apply --subject alice --config ./orgaud.yaml

  # Enrich an existing introspection response
  orgaud apply --subject alice --event introspection --token response.json

  # Lightweight access token, printed as YAML
  orgaud apply --subject alice --lightweight --output yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.subject, "subject", "", "Subject id (required)")
	cmd.Flags().StringVar(&opts.username, "username", "", "Subject username")
	cmd.Flags().StringVar(&opts.clientID, "client-id", "", "Client the token is issued to")
	cmd.Flags().StringVar(&opts.scope, "scope", "openid", "Granted scope")
	cmd.Flags().StringVar(&opts.sessionID, "session-id", "", "Session id")
	cmd.Flags().StringVar(&opts.tokenFile, "token", "", "Token file, or - for stdin")
	cmd.Flags().StringVar(&opts.event, "event", "access", "Token event (access, introspection)")
	cmd.Flags().BoolVar(&opts.lightweight, "lightweight", false, "Use a lightweight access token for this session")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "json", "Output format (json, yaml)")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

func runApply(cmd *cobra.Command, opts *applyOptions) error {
	if opts.event != "access" && opts.event != "introspection" {
		return fmt.Errorf("unknown event: %s (supported: access, introspection)", opts.event)
	}

	provider, _, err := loadProvider(cmd)
	if err != nil {
		return err
	}
	defer provider.Close()

	ctx := cmd.Context()
	runtime, err := provider.Runtime(ctx)
	if err != nil {
		return err
	}

	session := &service.Session{
		ID:                      opts.sessionID,
		Subject:                 service.Subject{ID: opts.subject, Username: opts.username},
		ClientID:                opts.clientID,
		Scope:                   opts.scope,
		LightweightAccessTokens: opts.lightweight,
	}

	tok, err := readToken(cmd, provider, opts, session)
	if err != nil {
		return err
	}

	var result service.Token
	if opts.event == "introspection" {
		result, err = runtime.ApplyIntrospection(ctx, session, tok)
	} else {
		result, err = runtime.ApplyAccessToken(ctx, session, tok)
	}
	if err != nil {
		return fmt.Errorf("failed to apply mappers: %w", err)
	}

	return writeToken(cmd.OutOrStdout(), result, opts.output)
}

// readToken reads the token named by --token, or mints one for the session
func readToken(cmd *cobra.Command, provider *config.Provider, opts *applyOptions, session *service.Session) (service.Token, error) {
	if opts.tokenFile == "" {
		lifespan, err := provider.AccessTokenLifespan()
		if err != nil {
			return nil, err
		}
		access := token.NewAccessToken(provider.Realm().Issuer, session, time.Now(), lifespan)
		if opts.event == "introspection" {
			return token.IntrospectionFor(access, opts.username), nil
		}
		return access, nil
	}

	var (
		data []byte
		err  error
	)
	if opts.tokenFile == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(opts.tokenFile)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	data = bytes.TrimSpace(data)
	if !bytes.HasPrefix(data, []byte("{")) {
		return token.ParseJWT(data)
	}

	if opts.event == "introspection" {
		var resp token.IntrospectionResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode introspection response: %w", err)
		}
		return &resp, nil
	}

	var access token.AccessToken
	if err := json.Unmarshal(data, &access); err != nil {
		return nil, fmt.Errorf("failed to decode access token: %w", err)
	}
	return &access, nil
}

// writeToken prints the token claims in the requested format
func writeToken(w io.Writer, tok service.Token, format string) error {
	var claims any = tok
	if j, ok := tok.(*token.JWT); ok {
		if err := j.Err(); err != nil {
			return err
		}
		claims = j.Token()
	}

	data, err := json.MarshalIndent(claims, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	switch format {
	case "json", "":
	case "yaml":
		data, err = yaml.JSONToYAML(data)
		if err != nil {
			return fmt.Errorf("failed to encode token: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s (supported: json, yaml)", format)
	}

	_, err = fmt.Fprintln(w, string(bytes.TrimSpace(data)))
	return err
}
