package util

import (
	"context"
	"fmt"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fentonlabs/daxc/client"
	"github.com/fentonlabs/daxc/signer"
	"github.com/fentonlabs/daxc/wire/common"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupClientFlags adds common cluster connection flags to a command
func SetupClientFlags(cmd *cobra.Command) {
	key := "endpoints"
	cmd.PersistentFlags().String(key, "dax://localhost:8111", WrapString("Cluster endpoints as a comma-separated list of dax:// or daxs:// URLs"))

	key = "region"
	cmd.PersistentFlags().String(key, "us-east-1", WrapString("Region used for request signing"))

	key = "connect-timeout"
	cmd.PersistentFlags().Int(key, 1000, WrapString("Socket connect timeout in milliseconds"))

	key = "request-timeout"
	cmd.PersistentFlags().Int(key, 60000, WrapString("Per-request I/O timeout in milliseconds"))

	key = "idle-timeout"
	cmd.PersistentFlags().Int(key, 30000, WrapString("Connection idle threshold in milliseconds"))

	key = "max-conns-per-host"
	cmd.PersistentFlags().Int(key, 10, WrapString("Maximum live sockets per cluster endpoint"))

	key = "skip-hostname-verification"
	cmd.PersistentFlags().Bool(key, false, WrapString("Skip TLS hostname verification (daxs:// endpoints only)"))

	key = "access-key"
	cmd.PersistentFlags().String(key, "", WrapString("Static access key; leave empty to use the default AWS credential chain"))

	key = "secret-key"
	cmd.PersistentFlags().String(key, "", WrapString("Static secret key, paired with --access-key"))

	key = "debug"
	cmd.PersistentFlags().Bool(key, false, WrapString("Enable debug logging"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("daxc")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		Endpoints:                    strings.Split(viper.GetString("endpoints"), ","),
		Region:                       viper.GetString("region"),
		ConnectTimeout:               time.Duration(viper.GetInt("connect-timeout")) * time.Millisecond,
		RequestTimeout:               time.Duration(viper.GetInt("request-timeout")) * time.Millisecond,
		IdleTimeout:                  time.Duration(viper.GetInt("idle-timeout")) * time.Millisecond,
		MaxPendingConnectionsPerHost: viper.GetInt("max-conns-per-host"),
		SkipHostnameVerification:     viper.GetBool("skip-hostname-verification"),
		DebugLogging:                 viper.GetBool("debug"),
	}
}

// GetSigner builds the request signer: static keys when provided, the
// default AWS credential chain otherwise
func GetSigner(region string) (signer.Signer, error) {
	access := viper.GetString("access-key")
	secret := viper.GetString("secret-key")
	if access != "" && secret != "" {
		return signer.NewSigV4(region, credentials.NewStaticCredentialsProvider(access, secret, "")), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws credentials: %w", err)
	}
	return signer.NewSigV4(region, awsCfg.Credentials), nil
}

// NewClient builds a client from the bound configuration
func NewClient() (*client.Client, error) {
	conf := GetClientConfig()
	s, err := GetSigner(conf.Region)
	if err != nil {
		return nil, err
	}
	return client.New(*conf, s)
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
