package config

import (
	"errors"
	"flag"
	"net"
	"strconv"
	"strings"
	"time"
)

// NetAddress holds structured network address data for host and port.
// It implements the flag.Value interface.
type NetAddress struct {
	Host string
	Port int
}

// parseFlags parses all configuration flags from args.
//
// Flags:
//
//	-a HTTP API address in format [host]:[port]
//	-l local store DSN (SQLite file or "memory")
//	-log log file path
//	-d remote store DSN (PostgreSQL or "memory")
//	-c/-config json file path with configs
//	-pepper key derivation pepper
//	-kdf key derivation function (pbkdf2|sha256)
//	-token-sign-key sign-in token verification key
//	-token-issuer sign-in token issuer
//	-request-timeout inbound request timeout (e.g., "30s")
//	-probe-url connectivity probe URL
//	-blob-bucket photo bucket name
//	-blob-region photo bucket region
//	-blob-endpoint S3-compatible endpoint
//	-sync-interval safety sync interval (e.g., "1m")
func parseFlags(args []string) (*StructuredConfig, error) {
	fs := flag.NewFlagSet("fishlog", flag.ContinueOnError)

	var serverAddress NetAddress
	var localDSN, logFile, remoteDSN string
	var jsonConfigPath string
	var pepper, kdf string
	var tokenSignKey, tokenIssuer string
	var requestTimeout time.Duration
	var probeURL string
	var blobBucket, blobRegion, blobEndpoint string
	var syncInterval time.Duration

	fs.Var(&serverAddress, "a", "Net address host:port")
	fs.StringVar(&localDSN, "l", "", "Local store DSN")
	fs.StringVar(&logFile, "log", "", "Log file path")
	fs.StringVar(&remoteDSN, "d", "", "Remote store DSN")
	fs.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	fs.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	fs.StringVar(&pepper, "pepper", "", "Key derivation pepper")
	fs.StringVar(&kdf, "kdf", "", "Key derivation function (pbkdf2|sha256)")
	fs.StringVar(&tokenSignKey, "token-sign-key", "", "Token signing key")
	fs.StringVar(&tokenIssuer, "token-issuer", "", "Token issuer")
	fs.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 30s, 1m)")
	fs.StringVar(&probeURL, "probe-url", "", "Connectivity probe URL")
	fs.StringVar(&blobBucket, "blob-bucket", "", "Photo bucket")
	fs.StringVar(&blobRegion, "blob-region", "", "Photo bucket region")
	fs.StringVar(&blobEndpoint, "blob-endpoint", "", "S3-compatible endpoint")
	fs.DurationVar(&syncInterval, "sync-interval", 0, "Safety sync interval (e.g., 1m)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return &StructuredConfig{
		App: App{
			Pepper:       pepper,
			KDF:          kdf,
			TokenSignKey: tokenSignKey,
			TokenIssuer:  tokenIssuer,
		},
		Storage: Storage{
			Local:  Local{DSN: localDSN, LogFile: logFile},
			Remote: Remote{DSN: remoteDSN},
			Blob: Blob{
				Bucket:   blobBucket,
				Region:   blobRegion,
				Endpoint: blobEndpoint,
			},
		},
		Server: Server{
			HTTPAddress:    serverAddress.String(),
			RequestTimeout: requestTimeout,
		},
		Adapter: Adapter{ProbeURL: probeURL},
		Workers: Workers{SyncInterval: syncInterval},

		JSONFilePath: jsonConfigPath,
	}, nil
}

// String returns a canonical host:port string for a NetAddress.
// If neither Host nor Port are set, it returns an empty string.
func (a *NetAddress) String() string {
	if a.Host == "" && a.Port == 0 {
		return ""
	}

	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Set parses the input string of form host:port and populates the NetAddress.
// It validates the port range, checks IP correctness unless host is "localhost",
// and returns an error if the format or values are invalid.
func (a *NetAddress) Set(s string) error {
	hostAndPort := strings.Split(s, ":")
	if len(hostAndPort) != 2 {
		return errors.New("need address in a form `host:port`")
	}

	host := hostAndPort[0]
	port, err := strconv.Atoi(hostAndPort[1])
	if err != nil {
		return err
	}

	if port < 1 {
		return errors.New("port number is a positive integer")
	}

	if host != "localhost" {
		ip := net.ParseIP(hostAndPort[0])
		if ip == nil {
			return errors.New("incorrect IP-address provided")
		}
	}

	a.Host = host
	a.Port = port
	return nil
}
