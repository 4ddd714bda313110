package mongo

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/influx6/mgoquery/db/pool"
	"github.com/influx6/mgoquery/utils"
	"github.com/spf13/viper"
	"gopkg.in/mgo.v2"
)

//==============================================================================

// Defaults applied to a Config.
const (
	DefaultHost        = "127.0.0.1"
	DefaultPort        = 27017
	DefaultPageSize    = 10
	DefaultDialTimeout = 10 * time.Second
)

// maskedPassword replaces the password in logged connection strings.
const maskedPassword = "xxxxxx"

// Config provides configuration for connecting to a db. Host and Port accept
// a scalar or a list when decoded through viper.
type Config struct {
	Host                 []string               `mapstructure:"host" json:"host"`
	Port                 []int                  `mapstructure:"port" json:"port"`
	User                 string                 `mapstructure:"user" json:"user,omitempty"`
	Password             string                 `mapstructure:"password" json:"-"`
	Database             string                 `mapstructure:"database" json:"database"`
	Prefix               string                 `mapstructure:"prefix" json:"prefix,omitempty"`
	PageSize             int                    `mapstructure:"pagesize" json:"pagesize,omitempty"`
	ConnectionLimit      int                    `mapstructure:"connectionLimit" json:"connectionLimit,omitempty"`
	Options              map[string]interface{} `mapstructure:"options" json:"options,omitempty"`
	AcquireTimeoutMillis int                    `mapstructure:"acquireTimeoutMillis" json:"acquireTimeoutMillis,omitempty"`
	DialTimeoutMillis    int                    `mapstructure:"dialTimeoutMillis" json:"dialTimeoutMillis,omitempty"`
	LogConnect           *bool                  `mapstructure:"logConnect" json:"logConnect,omitempty"`
	LogLevel             string                 `mapstructure:"logLevel" json:"logLevel,omitempty"`
	ValidateOnRelease    bool                   `mapstructure:"validateOnRelease" json:"validateOnRelease,omitempty"`
}

// LoadConfig decodes a Config from the giving viper instance, optionally
// below key. Settings are read through AllSettings so environment overrides
// bound on v apply. Comma separated strings decode into Host and Port lists.
func LoadConfig(v *viper.Viper, key string) (Config, error) {
	var c Config

	var raw interface{} = v.AllSettings()
	if key != "" {
		raw = v.AllSettings()[strings.ToLower(key)]
		if raw == nil {
			return c, fmt.Errorf("config : missing %q section", key)
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &c,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return c, err
	}

	if err := dec.Decode(raw); err != nil {
		return c, fmt.Errorf("config : %w", err)
	}

	return c, nil
}

//==============================================================================

// Option returns the driver option stored under name. Names are matched
// case-insensitively since viper lowercases keys.
func (c Config) Option(name string) (interface{}, bool) {
	if v, ok := c.Options[name]; ok {
		return v, true
	}

	for key, v := range c.Options {
		if strings.EqualFold(key, name) {
			return v, true
		}
	}

	return nil, false
}

// optionString returns the driver option under name as a string.
func (c Config) optionString(name string) string {
	v, ok := c.Option(name)
	if !ok || v == nil {
		return ""
	}

	return fmt.Sprint(v)
}

// MaxPoolSize returns the pool size. options.poolSize wins over
// options.maxPoolSize, which wins over ConnectionLimit, defaulting to 5.
func (c Config) MaxPoolSize() int {
	poolSize, _ := c.Option("poolSize")
	maxPoolSize, _ := c.Option("maxPoolSize")

	return pool.MaxSize(utils.ToInt(poolSize), utils.ToInt(maxPoolSize), c.ConnectionLimit)
}

// AcquireTimeout returns the pool acquire wait.
func (c Config) AcquireTimeout() time.Duration {
	if c.AcquireTimeoutMillis > 0 {
		return time.Duration(c.AcquireTimeoutMillis) * time.Millisecond
	}

	return pool.DefaultAcquireTimeout
}

// DialTimeout returns the wait for establishing the master session.
func (c Config) DialTimeout() time.Duration {
	if c.DialTimeoutMillis > 0 {
		return time.Duration(c.DialTimeoutMillis) * time.Millisecond
	}

	return DefaultDialTimeout
}

// ShouldLogConnect returns true unless logConnect was explicitly disabled.
func (c Config) ShouldLogConnect() bool {
	return c.LogConnect == nil || *c.LogConnect
}

// PageSizeOrDefault returns the page size used by paginated reads.
func (c Config) PageSizeOrDefault() int {
	if c.PageSize > 0 {
		return c.PageSize
	}

	return DefaultPageSize
}

// Table returns the collection name for the giving base name.
func (c Config) Table(name string) string {
	return c.Prefix + name
}

//==============================================================================

// Addrs returns the host:port list. Hosts without a matching port use the
// first port.
func (c Config) Addrs() []string {
	hosts := c.Host
	if len(hosts) == 0 {
		hosts = []string{DefaultHost}
	}

	ports := c.Port
	if len(ports) == 0 {
		ports = []int{DefaultPort}
	}

	addrs := make([]string, len(hosts))
	for i, host := range hosts {
		port := ports[0]
		if i < len(ports) && ports[i] > 0 {
			port = ports[i]
		}

		addrs[i] = host + ":" + strconv.Itoa(port)
	}

	return addrs
}

// ConnectionString returns the mongodb:// address for this config. When mask
// is true the password is replaced so the result can be logged.
func (c Config) ConnectionString(mask bool) string {
	var auth string
	if c.User != "" {
		password := c.Password
		if mask && password != "" {
			password = maskedPassword
		}

		auth = url.UserPassword(c.User, password).String() + "@"
	}

	var query string
	if len(c.Options) != 0 {
		values := url.Values{}
		for key, value := range c.Options {
			values.Set(key, fmt.Sprint(value))
		}
		query = "?" + values.Encode()
	}

	return "mongodb://" + auth + strings.Join(c.Addrs(), ",") + "/" + c.Database + query
}

// DialInfo returns the mgo dial information for this config.
func (c Config) DialInfo() *mgo.DialInfo {
	info := mgo.DialInfo{
		Addrs:          c.Addrs(),
		Timeout:        c.DialTimeout(),
		Database:       c.Database,
		Username:       c.User,
		Password:       c.Password,
		Source:         c.optionString("authSource"),
		Mechanism:      c.optionString("authMechanism"),
		Service:        c.optionString("gssapiServiceName"),
		ReplicaSetName: c.optionString("replicaSet"),
		Direct:         c.optionString("connect") == "direct",
		PoolLimit:      c.MaxPoolSize(),
	}

	return &info
}

// Fingerprint returns a stable identity for this config. Configs that would
// dial the same server the same way share a fingerprint.
func (c Config) Fingerprint() string {
	keys := make([]string, 0, len(c.Options))
	for key := range c.Options {
		keys = append(keys, strings.ToLower(key))
	}
	sort.Strings(keys)

	options := make([]string, len(keys))
	for i, key := range keys {
		options[i] = key + "=" + c.optionString(key)
	}

	ident := struct {
		Addrs    []string `json:"addrs"`
		User     string   `json:"user"`
		Password string   `json:"password"`
		Database string   `json:"database"`
		Options  []string `json:"options"`
		Max      int      `json:"max"`
		Acquire  int64    `json:"acquire"`
		Validate bool     `json:"validate"`
	}{
		Addrs:    c.Addrs(),
		User:     c.User,
		Password: c.Password,
		Database: c.Database,
		Options:  options,
		Max:      c.MaxPoolSize(),
		Acquire:  int64(c.AcquireTimeout()),
		Validate: c.ValidateOnRelease,
	}

	sum := sha256.Sum256([]byte(utils.Query.Query(ident)))
	return hex.EncodeToString(sum[:])
}
