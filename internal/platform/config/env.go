package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Option customises Load and EnvironmentValues.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

// WithEnvFile reads local overrides from path instead of .env; "" disables the file.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap supplies values that win over both the process environment and the file.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv ignores the process environment. Tests use it for isolation.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver resolves secret:// and sm:// values.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// WithRequiredSecrets names secret fields, such as "Storage.SignerKey", that
// must resolve to a non-empty value.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) { o.requiredSecrets = append(o.requiredSecrets, names...) }
}

// layers holds every configuration source in precedence order, highest first.
type layers []map[string]string

func (o loaderOptions) layers() (layers, error) {
	dotEnv, err := readDotEnv(o.envFile)
	if err != nil {
		return nil, err
	}
	stack := layers{o.envMap}
	if o.useSystemEnv {
		stack = append(stack, systemEnv())
	}
	return append(stack, dotEnv), nil
}

func (l layers) get(key string) (string, bool) {
	for _, values := range l {
		if value, ok := values[key]; ok {
			return value, true
		}
	}
	return "", false
}

// merged flattens the layers into a single map.
func (l layers) merged() map[string]string {
	out := make(map[string]string)
	for i := len(l) - 1; i >= 0; i-- {
		for key, value := range l[i] {
			out[key] = value
		}
	}
	return out
}

// EnvironmentValues returns the merged environment (.env < OS env < WithEnvMap)
// so callers can build dependencies, such as the secret fetcher, before Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	stack, err := newLoaderOptions(opts).layers()
	if err != nil {
		return nil, err
	}
	return stack.merged(), nil
}

func systemEnv() map[string]string {
	values := make(map[string]string)
	for _, entry := range os.Environ() {
		if key, value, ok := strings.Cut(entry, "="); ok && key != "" {
			values[key] = value
		}
	}
	return values
}

func readDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer file.Close()

	values, err := parseDotEnv(file)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return values, nil
}

// parseDotEnv accepts KEY=value lines, optional "export " prefixes, # comments
// and single or double quoted values.
func parseDotEnv(r io.Reader) (map[string]string, error) {
	values := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		key, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		values[key] = unquote(strings.TrimSpace(value))
	}
	return values, scanner.Err()
}

func unquote(value string) string {
	if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
		return value[1 : len(value)-1]
	}
	return value
}

// reader looks up BRAILLE_-prefixed keys and records those whose values do
// not parse, so Load can report them instead of silently using defaults.
type reader struct {
	layers    layers
	malformed []string
}

func (r *reader) raw(key string) (string, bool) {
	value, ok := r.layers.get(envPrefix + key)
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

func (r *reader) str(key, fallback string) string {
	if value, ok := r.raw(key); ok {
		return value
	}
	return fallback
}

func (r *reader) duration(key string, fallback time.Duration) time.Duration {
	value, ok := r.raw(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		r.malformed = append(r.malformed, envPrefix+key)
		return fallback
	}
	return d
}

func (r *reader) integer(key string, fallback int) int {
	value, ok := r.raw(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		r.malformed = append(r.malformed, envPrefix+key)
		return fallback
	}
	return n
}
