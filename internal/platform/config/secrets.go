package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// SecretResolver turns a secret://project/name[#version] reference into its value.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts a function to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError lists config fields, or BRAILLE_ variables, that were
// missing, inconsistent or unparseable.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return "config: invalid or missing " + strings.Join(e.fields, ", ")
}

// Fields returns the offending names in the order they were found.
func (e *ValidationError) Fields() []string {
	return slices.Clone(e.fields)
}

// SecretError wraps a failed lookup of Ref.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("config: resolve %s: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError names required secrets that resolved to nothing. Its
// message only carries hashed names so it can be logged as is.
type MissingSecretsError struct {
	names []string
}

func (e *MissingSecretsError) Error() string {
	return "config: missing required secrets " + strings.Join(e.RedactedNames(), ", ")
}

// Names returns the sorted config field names.
func (e *MissingSecretsError) Names() []string {
	if e == nil {
		return nil
	}
	names := slices.Clone(e.names)
	slices.Sort(names)
	return names
}

// RedactedNames returns the sorted hashes of Names.
func (e *MissingSecretsError) RedactedNames() []string {
	if e == nil {
		return nil
	}
	out := make([]string, len(e.names))
	for i, name := range e.names {
		out[i] = redactSecretName(name)
	}
	slices.Sort(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// secretField is a config field whose value may be a secret reference.
type secretField struct {
	name  string
	value *string
}

// resolveSecrets replaces references in fields with their values and then
// checks that every required name ended up non-empty.
func resolveSecrets(ctx context.Context, resolver SecretResolver, required []string, fields ...secretField) error {
	resolved := make(map[string]bool, len(fields))
	for _, field := range fields {
		if ref, ok := secretReference(*field.value); ok {
			if resolver == nil {
				return &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
			}
			value, err := resolver.ResolveSecret(ctx, ref)
			if err != nil {
				return &SecretError{Ref: ref, Err: err}
			}
			*field.value = value
		}
		resolved[field.name] = strings.TrimSpace(*field.value) != ""
	}

	var missing []string
	for _, name := range required {
		name = strings.TrimSpace(name)
		if name != "" && !resolved[name] && !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &MissingSecretsError{names: missing}
	}
	return nil
}

// secretReference reports whether value names a secret. The older sm://
// scheme is rewritten to secret://.
func secretReference(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if rest, ok := strings.CutPrefix(value, "sm://"); ok {
		return "secret://" + rest, true
	}
	return value, strings.HasPrefix(value, "secret://")
}

func redactSecretName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}
