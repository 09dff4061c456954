// authctl manages channels, client applications and key material of the
// wallet auth service.
//
//	authctl migrate
//	authctl create-client --client-id bink --name Bink
//	authctl create-channel --bundle-id com.bink.wallet --client-id bink --trusted
//	authctl gen-secret --kid k2 --encrypt
//	authctl gen-b2b-key --kid partner-1 --channel com.bink.wallet --out partner.pem
//	authctl token --url http://localhost:8080 --bundle-id com.bink.wallet --secret ... --username alice
//
// Database settings come from the same WALLET_AUTH_* environment as the
// server and can be overridden with --db-driver and --db-dsn.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aussiebroadwan/walletauth/internal/auth/app"
	"github.com/aussiebroadwan/walletauth/internal/auth/domain"
	"github.com/aussiebroadwan/walletauth/internal/auth/store"
	"github.com/aussiebroadwan/walletauth/pkg/authsdk"
	"github.com/aussiebroadwan/walletauth/pkg/cryptox"
	"github.com/aussiebroadwan/walletauth/pkg/jwtx"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

var errUsage = errors.New("usage")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: authctl <command> [flags]

Commands:
  migrate         apply database migrations
  create-client   create a client application and print its secret
  create-channel  create a channel for an existing client application
  gen-secret      generate an HS512 access secret entry for the secrets file
  gen-b2b-key     generate a partner keypair and its secrets file entry
  token           request a token pair from a running server

Run "authctl <command> --help" for command flags.
`)
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "migrate":
		return runMigrate(ctx, rest, out)
	case "create-client":
		return runCreateClient(ctx, rest, out)
	case "create-channel":
		return runCreateChannel(ctx, rest, out)
	case "gen-secret":
		return runGenSecret(rest, out)
	case "gen-b2b-key":
		return runGenB2BKey(rest, out)
	case "token":
		return runToken(ctx, rest, out)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

// dbFlags are shared by the commands that open the store.
type dbFlags struct {
	cfg app.Config
}

func (d *dbFlags) add(fs *pflag.FlagSet) {
	d.cfg = app.LoadConfig()
	fs.StringVar(&d.cfg.DatabaseDriver, "db-driver", d.cfg.DatabaseDriver, "sqlite or postgres")
	fs.StringVar(&d.cfg.DatabaseDSN, "db-dsn", d.cfg.DatabaseDSN, "SQLite file or PostgreSQL connection string")
	fs.StringVar(&d.cfg.PepperFile, "pepper-file", d.cfg.PepperFile, "pepper mixed into client secret hashes")
}

func (d *dbFlags) open(ctx context.Context) (store.Store, error) {
	return app.OpenStore(ctx, d.cfg)
}

func runMigrate(ctx context.Context, args []string, out io.Writer) error {
	var db dbFlags
	fs := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	db.add(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := db.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	fmt.Fprintf(out, "migrations applied (%s)\n", db.cfg.DatabaseDriver)
	return nil
}

func runCreateClient(ctx context.Context, args []string, out io.Writer) error {
	var (
		db       dbFlags
		clientID string
		name     string
	)
	fs := pflag.NewFlagSet("create-client", pflag.ContinueOnError)
	db.add(fs)
	fs.StringVar(&clientID, "client-id", "", "client application id (required)")
	fs.StringVar(&name, "name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if clientID == "" {
		return fmt.Errorf("%w: --client-id is required", errUsage)
	}
	if name == "" {
		name = clientID
	}

	pepper, err := app.LoadPepper(db.cfg)
	if err != nil {
		return err
	}
	secret, err := cryptox.GenerateToken(32)
	if err != nil {
		return err
	}
	hash, err := cryptox.HashSecret(secret, pepper)
	if err != nil {
		return err
	}

	st, err := db.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	err = st.Channels().CreateClientApplication(ctx, domain.ClientApplication{
		ClientID:   clientID,
		Name:       name,
		SecretHash: hash,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	fmt.Fprintf(out, "client_id: %s\nsecret: %s\n", clientID, secret)
	return nil
}

func runCreateChannel(ctx context.Context, args []string, out io.Writer) error {
	var (
		db dbFlags
		ch domain.Channel
	)
	fs := pflag.NewFlagSet("create-channel", pflag.ContinueOnError)
	db.add(fs)
	fs.StringVar(&ch.BundleID, "bundle-id", "", "channel bundle id (required)")
	fs.StringVar(&ch.ClientID, "client-id", "", "owning client application (required)")
	fs.BoolVar(&ch.IsTrusted, "trusted", false, "tokens for this channel carry is_trusted_channel=true")
	fs.BoolVar(&ch.EmailRequired, "email-required", false, "b2b tokens must carry a valid email claim")
	fs.IntVar(&ch.AccessTokenLifetimeMinutes, "access-minutes", 0, "access token lifetime, 0 for the service default")
	fs.IntVar(&ch.RefreshTokenLifetimeMinutes, "refresh-minutes", 0, "refresh token lifetime, 0 for the service default")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if ch.BundleID == "" || ch.ClientID == "" {
		return fmt.Errorf("%w: --bundle-id and --client-id are required", errUsage)
	}

	st, err := db.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if _, err := st.Channels().GetClientApplication(ctx, ch.ClientID); err != nil {
		return fmt.Errorf("client %s: %w", ch.ClientID, err)
	}

	ch.CreatedAt = time.Now().UTC()
	if err := st.Channels().CreateChannel(ctx, ch); err != nil {
		return fmt.Errorf("create channel: %w", err)
	}

	fmt.Fprintf(out, "channel %s created for client %s\n", ch.BundleID, ch.ClientID)
	return nil
}

// secretEntry and b2bEntry mirror the secrets file layout read by keys.File.
type secretEntry struct {
	Kid       string `yaml:"kid"`
	Secret    string `yaml:"secret"`
	Encrypted bool   `yaml:"encrypted,omitempty"`
}

type b2bEntry struct {
	Kid       string     `yaml:"kid"`
	Channel   string     `yaml:"channel"`
	PublicKey string     `yaml:"public_key"`
	ExpiresAt *time.Time `yaml:"expires_at,omitempty"`
}

func runGenSecret(args []string, out io.Writer) error {
	var (
		kid       string
		encrypt   bool
		masterKey string
	)
	fs := pflag.NewFlagSet("gen-secret", pflag.ContinueOnError)
	fs.StringVar(&kid, "kid", "", "key id (required)")
	fs.BoolVar(&encrypt, "encrypt", false, "seal the secret with the master key")
	fs.StringVar(&masterKey, "master-key-file", os.Getenv("WALLET_AUTH_MASTER_KEY_FILE"), "master key used with --encrypt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if kid == "" {
		return fmt.Errorf("%w: --kid is required", errUsage)
	}

	tok, err := cryptox.GenerateToken(64)
	if err != nil {
		return err
	}
	secret := []byte(tok)

	entry := secretEntry{Kid: kid}
	if encrypt {
		sealer, err := loadSealer(masterKey)
		if err != nil {
			return err
		}
		if secret, err = sealer.Seal(secret); err != nil {
			return err
		}
		entry.Encrypted = true
	}
	entry.Secret = base64.StdEncoding.EncodeToString(secret)

	return writeYAML(out, []secretEntry{entry})
}

func loadSealer(path string) (*cryptox.Sealer, error) {
	if path == "" {
		return nil, errors.New("--encrypt needs --master-key-file")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return cryptox.NewSealer([]byte(strings.TrimSpace(string(raw))))
}

func runGenB2BKey(args []string, out io.Writer) error {
	var (
		kid     string
		channel string
		alg     string
		bits    int
		keyOut  string
		format  string
		expires time.Duration
	)
	fs := pflag.NewFlagSet("gen-b2b-key", pflag.ContinueOnError)
	fs.StringVar(&kid, "kid", "", "key id the partner puts in its JWT header (required)")
	fs.StringVar(&channel, "channel", "", "channel bundle id the key is bound to (required)")
	fs.StringVar(&alg, "alg", "EdDSA", "EdDSA or RS512")
	fs.IntVar(&bits, "bits", 2048, "RSA key size")
	fs.StringVar(&keyOut, "out", "", "write the partner's private key PEM here (required)")
	fs.StringVar(&format, "format", "pem", "public key encoding in the entry: pem or jwk")
	fs.DurationVar(&expires, "expires-in", 0, "key expiry, 0 for none")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if kid == "" || channel == "" || keyOut == "" {
		return fmt.Errorf("%w: --kid, --channel and --out are required", errUsage)
	}
	if format != "pem" && format != "jwk" {
		return fmt.Errorf("%w: unknown --format %q", errUsage, format)
	}

	var (
		pair cryptox.KeyPair
		err  error
	)
	switch alg {
	case "EdDSA", "eddsa", "ed25519":
		pair, err = cryptox.GenerateEd25519Key()
	case "RS512", "rs512", "rsa":
		pair, err = cryptox.GenerateRSAKey(bits)
	default:
		return fmt.Errorf("%w: unknown --alg %q", errUsage, alg)
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(keyOut, pair.Private, 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}

	entry := b2bEntry{Kid: kid, Channel: channel, PublicKey: string(pair.Public)}
	if format == "jwk" {
		pub, err := jwtx.ParsePublicKey(pair.Public)
		if err != nil {
			return err
		}
		j, err := jwtx.NewJWK(kid, pub)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(j)
		if err != nil {
			return err
		}
		entry.PublicKey = string(raw)
	}
	if expires > 0 {
		at := time.Now().Add(expires).UTC().Truncate(time.Second)
		entry.ExpiresAt = &at
	}
	return writeYAML(out, []b2bEntry{entry})
}

func writeYAML(out io.Writer, v any) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func runToken(ctx context.Context, args []string, out io.Writer) error {
	var (
		baseURL  string
		wallet   bool
		bundleID string
		secret   string
		username string
		jwt      string
		refresh  string
	)
	fs := pflag.NewFlagSet("token", pflag.ContinueOnError)
	fs.StringVar(&baseURL, "url", "http://localhost:8080", "service base URL")
	fs.BoolVar(&wallet, "wallet", false, "use /v2/wallet_token")
	fs.StringVar(&bundleID, "bundle-id", "", "client_credentials: channel bundle id")
	fs.StringVar(&secret, "secret", "", "client_credentials: client secret")
	fs.StringVar(&username, "username", "", "client_credentials: external user id")
	fs.StringVar(&jwt, "jwt", "", "b2b: partner signed JWT")
	fs.StringVar(&refresh, "refresh", "", "refresh_token: refresh token")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := authsdk.NewSDKClient(baseURL)
	client.Wallet = wallet

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var (
		pair *authsdk.TokenResponse
		err  error
	)
	switch {
	case jwt != "":
		pair, err = client.B2B(ctx, jwt)
	case refresh != "":
		pair, err = client.Refresh(ctx, refresh)
	case bundleID != "" && secret != "" && username != "":
		pair, err = client.ClientCredentials(ctx, bundleID, secret, username)
	default:
		return fmt.Errorf("%w: pass --jwt, --refresh or --bundle-id/--secret/--username", errUsage)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(pair)
}
