// Copyright 2022 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package config loads the immutable development server configuration.

Configuration values come from (in increasing precedence) built-in defaults,
an optional ".env" file, SPADEV_-prefixed environment variables, and
command-line flags. For instance, the log level can be set using the
SPADEV_LOG_LEVEL environment variable or the --log-level flag.
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/thediveo/spadev/internal/logger"
)

// EnvPrefix prefixes all environment variable names of configuration keys.
const EnvPrefix = "SPADEV"

// Config is the development server configuration. It is created once at
// startup and must not be modified afterwards.
type Config struct {
	// Port to listen on, on all interfaces; 0 picks an ephemeral port.
	Port int `mapstructure:"port" default:"3000" validate:"gte=0,lte=65535"`
	// Root directory to serve the SPA from. A relative default is relative to
	// the server executable, while an explicitly specified relative root is
	// relative to the working directory.
	Root string `mapstructure:"root" default:"build" validate:"required"`
	// Index document name inside the root directory.
	Index string `mapstructure:"index" default:"index.html" validate:"required"`
	// StaticPrefix is the request path prefix never routed to the index.
	StaticPrefix string `mapstructure:"static_prefix" default:"/static/" validate:"startswith=/,endswith=/"`
	// RewriteBase enables rewriting the index document's <base href>.
	RewriteBase bool `mapstructure:"rewrite_base" default:"false"`
	// Log holds the logging configuration.
	Log logger.Config `mapstructure:"log"`

	// RootExplicit is true when Root has been set by environment or flag.
	RootExplicit bool `mapstructure:"-"`
}

// flagKeys maps command-line flag names to their configuration keys.
var flagKeys = map[string]string{
	"port":          "port",
	"root":          "root",
	"index":         "index",
	"static-prefix": "static_prefix",
	"rewrite-base":  "rewrite_base",
	"log-level":     "log.level",
	"log-format":    "log.format",
}

var validate = validator.New()

// RegisterFlags registers the command-line flags for all configuration keys
// with the specified flag set. The flag defaults are only informational, as
// the real defaults come from Config's struct tags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.IntP("port", "p", 3000, "TCP port to listen on (all interfaces)")
	flags.StringP("root", "r", "build", "directory to serve the SPA from")
	flags.String("index", "index.html", "index document served for client routes")
	flags.String("static-prefix", "/static/", "request path prefix never routed to the index document")
	flags.Bool("rewrite-base", false, "rewrite the index document's <base href> from forwarding proxy headers")
	flags.String("log-level", "info", "log level: debug, info, warn, or error")
	flags.String("log-format", "console", "log format: console or json")
}

// Load loads the configuration from the ".env" file in dir, if any, the
// environment, and the specified flags (which may be nil), and then validates
// it.
func Load(dir string, flags *pflag.FlagSet) (*Config, error) {
	// A missing .env is fine; variables already in the environment win.
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("cannot load .env file: %w", err)
	}

	v := viper.New()
	bindValues(v, Config{}, "")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("cannot bind flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot decode configuration: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	_, cfg.RootExplicit = os.LookupEnv(EnvPrefix + "_ROOT")
	if flags != nil && flags.Changed("root") {
		cfg.RootExplicit = true
	}
	return &cfg, nil
}

// bindValues walks the (nested) configuration struct and registers the
// "default" tag values with viper; registering every key is also necessary
// for AutomaticEnv to pick up environment variables when unmarshalling.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}
		v.SetDefault(key, field.Tag.Get("default"))
	}
}

// ResolveRoot returns the absolute root directory to serve from. Absolute
// roots are taken as-is; relative roots are relative to the current working
// directory if explicitly specified, and otherwise to exeDir.
func (c *Config) ResolveRoot(exeDir string) (string, error) {
	if filepath.IsAbs(c.Root) {
		return filepath.Clean(c.Root), nil
	}
	if c.RootExplicit {
		return filepath.Abs(c.Root)
	}
	return filepath.Join(exeDir, c.Root), nil
}

// ExecutableDir returns the directory containing the running executable,
// with symbolic links resolved.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("cannot determine executable: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("cannot resolve executable: %w", err)
	}
	return filepath.Dir(exe), nil
}
