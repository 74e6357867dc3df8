package common

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// --------------------------------------------------------------------------
// Environment based configuration
// --------------------------------------------------------------------------

// InitEnv loads .env files and initializes viper so that every config
// option can be supplied as an environment variable with the GOFDFS_
// prefix (e.g. GOFDFS_TRACKERS, GOFDFS_CONNECT_TIMEOUT).
func InitEnv() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("gofdfs")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	setEnvDefaults()
}

// setEnvDefaults registers defaults so viper lookups fall back to the
// same values as Config.WithDefaults. TCP no-delay is the exception: it
// defaults to on here, while WithDefaults leaves TCPNoDelay as given,
// so a Config built in code without it connects with no-delay off.
func setEnvDefaults() {
	viper.SetDefault("charset", DefaultCharset)
	viper.SetDefault("connect-timeout", DefaultConnectTimeout)
	viper.SetDefault("read-timeout", DefaultReadTimeout)
	viper.SetDefault("write-timeout", DefaultWriteTimeout)
	viper.SetDefault("acquire-timeout", DefaultAcquireTimeout)
	viper.SetDefault("idle-timeout", DefaultIdleTimeout)
	viper.SetDefault("max-idle-per-pool", DefaultMaxIdlePerPool)
	viper.SetDefault("max-total-per-pool", DefaultMaxTotalPerPool)
	viper.SetDefault("enable-reconnect", false)
	viper.SetDefault("max-reconnect", DefaultMaxReconnect)
	viper.SetDefault("reconnect-interval", DefaultReconnectInterval)
	viper.SetDefault("tcp-nodelay", true)
	viper.SetDefault("tcp-keepalive", time.Duration(0))
	viper.SetDefault("read-buffer", DefaultReadBufferSize)
	viper.SetDefault("write-buffer", DefaultWriteBufferSize)
	viper.SetDefault("log-level", "info")
}

// ConfigFromEnv reads the client configuration from viper. InitEnv
// must have been called first.
func ConfigFromEnv() Config {
	return Config{
		Trackers:           strings.Split(viper.GetString("trackers"), ","),
		Charset:            viper.GetString("charset"),
		ConnectTimeout:     viper.GetDuration("connect-timeout"),
		ReadTimeout:        viper.GetDuration("read-timeout"),
		WriteTimeout:       viper.GetDuration("write-timeout"),
		AcquireTimeout:     viper.GetDuration("acquire-timeout"),
		IdleTimeout:        viper.GetDuration("idle-timeout"),
		MaxIdlePerPool:     viper.GetInt("max-idle-per-pool"),
		MaxTotalPerPool:    viper.GetInt("max-total-per-pool"),
		EnableReconnect:    viper.GetBool("enable-reconnect"),
		MaxReconnect:       viper.GetInt("max-reconnect"),
		ReconnectInterval:  viper.GetDuration("reconnect-interval"),
		TCPNoDelay:         viper.GetBool("tcp-nodelay"),
		TCPKeepAlivePeriod: viper.GetDuration("tcp-keepalive"),
		ReadBufferSize:     viper.GetInt("read-buffer"),
		WriteBufferSize:    viper.GetInt("write-buffer"),
		LogLevel:           viper.GetString("log-level"),
	}
}
