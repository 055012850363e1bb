package util

import (
	"strings"

	"github.com/ValentinKolb/csIPC/rpc/common"
	"github.com/ValentinKolb/csIPC/rpc/transport/pipe"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables read by csipc
	EnvPrefix = "csipc"
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

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and makes viper read CSIPC_* environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// SetupClientFlags adds the connection flags of a dialing peer to a command
func SetupClientFlags(cmd *cobra.Command) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, "main", WrapString("The endpoint to connect to. A plain name like 'main' or 'service' is mapped to the platform's default pipe path"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds for connecting and for each call"))

	key = "retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to try connecting before giving up"))

	key = "read-buffer"
	cmd.PersistentFlags().Int(key, common.DefaultReadBufferSize/1024, WrapString("The number of KB requested per read"))

	key = "max-content-length"
	cmd.PersistentFlags().Uint32(key, common.DefaultMaxContentLength, WrapString("The largest accepted payload of a single frame in bytes"))
}

// GetClientConfig reads the client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		Endpoint:         ResolveEndpoint(viper.GetString("endpoint")),
		TimeoutSecond:    viper.GetInt("timeout"),
		RetryCount:       viper.GetInt("retries"),
		ReadBufferSize:   viper.GetInt("read-buffer") * 1024,
		MaxContentLength: viper.GetUint32("max-content-length"),
	}
}

// ResolveEndpoint maps a plain endpoint name to the platform's default path.
// Values that already look like paths are returned unchanged.
func ResolveEndpoint(value string) string {
	if value == "" || strings.ContainsAny(value, `/\`) {
		return value
	}
	return pipe.DefaultEndpoint(value)
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// InitLogging configures all csIPC loggers from the log-level setting
func InitLogging() error {
	return common.InitLoggers(viper.GetString("log-level"))
}
