// Package config builds runtime settings from defaults, GALLERY_* environment
// variables and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Server holds the settings of the gallery server.
type Server struct {
	Addr            string
	DBPath          string
	AdminUser       string
	LogPath         string
	ShutdownTimeout time.Duration

	// Local blob storage, used when S3Bucket is empty.
	BlobDir         string
	PublicImageBase string
	// LegacyImageBase is where images referenced by old /images/ paths live.
	LegacyImageBase string

	S3Bucket     string
	S3Region     string
	S3Endpoint   string
	S3PublicBase string
	S3AccessKey  string
	S3SecretKey  string

	MailFrom     string
	MailTo       []string
	SESRegion    string
	SESAccessKey string
	SESSecretKey string
}

// DefaultServer returns the settings used when nothing is configured.
func DefaultServer() Server {
	return Server{
		Addr:            ":8080",
		DBPath:          "galerija.sqlite3",
		AdminUser:       "Admin",
		ShutdownTimeout: 5 * time.Second,
		BlobDir:         "images",
		PublicImageBase: "/images",
		S3Region:        "us-east-1",
		SESRegion:       "eu-central-1",
	}
}

// UseS3 reports whether uploads go to S3 instead of the local directory.
func (s Server) UseS3() bool { return s.S3Bucket != "" }

// UseSES reports whether contact messages are delivered by email.
func (s Server) UseSES() bool { return s.MailFrom != "" && len(s.MailTo) > 0 }

// Validate checks settings that cannot be defaulted.
func (s Server) Validate() error {
	if s.Addr == "" {
		return errors.New("listen address is required")
	}
	if s.DBPath == "" {
		return errors.New("database path is required")
	}
	if (s.MailFrom == "") != (len(s.MailTo) == 0) {
		return errors.New("mail from and mail to must be set together")
	}
	if !s.UseS3() && s.BlobDir == "" {
		return errors.New("either an S3 bucket or a blob directory is required")
	}
	return nil
}

// LoadServer parses args (without the program name) on top of the
// environment. It returns flag.ErrHelp when help was requested.
func LoadServer(args []string, getenv func(string) string, usage io.Writer) (Server, error) {
	cfg := DefaultServer()
	if err := cfg.applyEnv(getenv); err != nil {
		return cfg, err
	}

	fs := flag.NewFlagSet("gallery", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "")
	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "")
	fs.StringVar(&cfg.AdminUser, "user", cfg.AdminUser, "")
	fs.StringVar(&cfg.AdminUser, "u", cfg.AdminUser, "")
	fs.StringVar(&cfg.LogPath, "log", cfg.LogPath, "")
	fs.StringVar(&cfg.LogPath, "l", cfg.LogPath, "")
	fs.StringVar(&cfg.BlobDir, "images", cfg.BlobDir, "")
	fs.StringVar(&cfg.BlobDir, "i", cfg.BlobDir, "")
	fs.StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "")
	fs.StringVar(&cfg.S3Endpoint, "s3-endpoint", cfg.S3Endpoint, "")
	fs.StringVar(&cfg.LegacyImageBase, "legacy-images", cfg.LegacyImageBase, "")
	mailTo := fs.String("mail-to", strings.Join(cfg.MailTo, ","), "")

	fs.Usage = func() {
		fmt.Fprint(usage, `Usage: gallery [flags]

Flags:
  -d, -db <path>            SQLite database path (default: galerija.sqlite3)
  -a, -addr <host:port>     listen address (default: :8080)
  -u, -user <name>          admin username on first run (default: Admin)
  -l, -log <path>           log file path (default: no file, stdout/stderr only)
  -i, -images <dir>         directory for uploaded images (default: images)
  -s3-bucket <name>         store uploads in this S3 bucket instead
  -s3-endpoint <url>        S3 compatible endpoint (MinIO etc.)
  -legacy-images <url>      base URL for images referenced by old /images/ paths
  -mail-to <a,b>            deliver contact messages to these addresses
  -h, -help                 show this help and exit

Secrets are read from the environment only: GALLERY_S3_ACCESS_KEY,
GALLERY_S3_SECRET_KEY, GALLERY_SES_ACCESS_KEY, GALLERY_SES_SECRET_KEY.
`)
	}

	// The flag package prints usage itself on -h and on parse errors.
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	cfg.MailTo = splitList(*mailTo)

	return cfg, cfg.Validate()
}

func (s *Server) applyEnv(getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}

	str("GALLERY_ADDR", &s.Addr)
	str("GALLERY_DB", &s.DBPath)
	str("GALLERY_ADMIN_USER", &s.AdminUser)
	str("GALLERY_LOG", &s.LogPath)
	str("GALLERY_BLOB_DIR", &s.BlobDir)
	str("GALLERY_PUBLIC_IMAGE_BASE", &s.PublicImageBase)
	str("GALLERY_LEGACY_IMAGE_BASE", &s.LegacyImageBase)
	str("GALLERY_S3_BUCKET", &s.S3Bucket)
	str("GALLERY_S3_REGION", &s.S3Region)
	str("GALLERY_S3_ENDPOINT", &s.S3Endpoint)
	str("GALLERY_S3_PUBLIC_BASE", &s.S3PublicBase)
	str("GALLERY_S3_ACCESS_KEY", &s.S3AccessKey)
	str("GALLERY_S3_SECRET_KEY", &s.S3SecretKey)
	str("GALLERY_MAIL_FROM", &s.MailFrom)
	str("GALLERY_SES_REGION", &s.SESRegion)
	str("GALLERY_SES_ACCESS_KEY", &s.SESAccessKey)
	str("GALLERY_SES_SECRET_KEY", &s.SESSecretKey)

	if v := getenv("GALLERY_MAIL_TO"); v != "" {
		s.MailTo = splitList(v)
	}
	if v := getenv("GALLERY_SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing GALLERY_SHUTDOWN_TIMEOUT: %w", err)
		}
		s.ShutdownTimeout = d
	}
	return nil
}

// Client holds the settings of the galleryctl command.
type Client struct {
	ServerURL     string
	TokenFile     string
	FavoritesFile string
	Timeout       time.Duration
}

// DefaultClient returns the client settings used when nothing is configured.
func DefaultClient() Client {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	dir = filepath.Join(dir, "galerija")
	return Client{
		ServerURL:     "http://localhost:8080",
		TokenFile:     filepath.Join(dir, "token"),
		FavoritesFile: filepath.Join(dir, "favorites.json"),
		Timeout:       10 * time.Second,
	}
}

// Keys of the galleryctl settings. Each is also a global flag and, upper
// cased with a GALLERY_ prefix, an environment variable.
const (
	KeyServer    = "server"
	KeyTokenFile = "token-file"
	KeyFavorites = "favorites"
	KeyTimeout   = "timeout"
)

// NewClientViper returns a viper instance holding the galleryctl defaults
// and reading GALLERY_* environment variables. GALLERY_URL is accepted for
// the server as well as GALLERY_SERVER.
func NewClientViper() *viper.Viper {
	d := DefaultClient()
	v := viper.New()
	v.SetDefault(KeyServer, d.ServerURL)
	v.SetDefault(KeyTokenFile, d.TokenFile)
	v.SetDefault(KeyFavorites, d.FavoritesFile)
	v.SetDefault(KeyTimeout, d.Timeout.String())

	v.SetEnvPrefix("GALLERY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(KeyServer, "GALLERY_URL", "GALLERY_SERVER")
	return v
}

// BindClientFlags registers the global galleryctl flags on fs and binds
// them to v, so a flag given on the command line wins over the environment.
func BindClientFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	d := DefaultClient()
	fs.StringP(KeyServer, "s", d.ServerURL, "gallery server URL")
	fs.String(KeyTokenFile, d.TokenFile, "where the session token is kept")
	fs.String(KeyFavorites, d.FavoritesFile, "where favorite paintings are kept")
	fs.DurationP(KeyTimeout, "t", d.Timeout, "request timeout")
	if err := v.BindPFlags(fs); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// ClientFrom reads the galleryctl settings out of v and validates them.
func ClientFrom(v *viper.Viper) (Client, error) {
	cfg := Client{
		ServerURL:     v.GetString(KeyServer),
		TokenFile:     v.GetString(KeyTokenFile),
		FavoritesFile: v.GetString(KeyFavorites),
	}
	timeout, err := time.ParseDuration(v.GetString(KeyTimeout))
	if err != nil {
		return cfg, fmt.Errorf("parsing timeout: %w", err)
	}
	cfg.Timeout = timeout
	return cfg, cfg.Validate()
}

// Validate checks the client settings after flags are parsed.
func (c Client) Validate() error {
	if c.ServerURL == "" {
		return errors.New("server URL is required")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
