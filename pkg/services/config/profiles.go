package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/ini.v1"
)

const (
	DefaultProfile      = "default"
	defaultProfilesFile = ".secboardcfg"
)

// Profile is one section of the profiles file.
type Profile struct {
	Name        string
	Host        string
	Timeout     time.Duration
	LongTimeout time.Duration
}

type Registry interface {
	GetProfiles(ctx context.Context) ([]string, error)
	GetProfile(ctx context.Context, name string) (*Profile, error)
}

type cfgRegistry struct {
	cfg *ini.File
}

func NewRegistry(path string) (Registry, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	return &cfgRegistry{cfg: cfg}, nil
}

// DefaultProfilesPath is ~/.secboardcfg.
func DefaultProfilesPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, defaultProfilesFile), nil
}

func (cr *cfgRegistry) GetProfiles(_ context.Context) ([]string, error) {
	var profiles []string
	for _, section := range cr.cfg.Sections() {
		if len(section.Keys()) > 0 {
			profiles = append(profiles, section.Name())
		}
	}
	return profiles, nil
}

func (cr *cfgRegistry) GetProfile(_ context.Context, name string) (*Profile, error) {
	section, err := cr.cfg.GetSection(name)
	if err != nil {
		return nil, fmt.Errorf("profile %s not found", name)
	}

	profile := &Profile{
		Name: name,
		Host: section.Key("host").String(),
	}
	if profile.Host == "" {
		return nil, fmt.Errorf("profile %s has no host", name)
	}

	if section.HasKey("timeout") {
		if profile.Timeout, err = section.Key("timeout").Duration(); err != nil {
			return nil, fmt.Errorf("profile %s: invalid timeout: %w", name, err)
		}
	}
	if section.HasKey("long_timeout") {
		if profile.LongTimeout, err = section.Key("long_timeout").Duration(); err != nil {
			return nil, fmt.Errorf("profile %s: invalid long_timeout: %w", name, err)
		}
	}
	return profile, nil
}

// ResolveProfile reads profile name from the profiles file at path, or from
// ~/.secboardcfg when path is empty. Unless explicit is set, a missing file or
// profile yields a nil profile instead of an error.
func ResolveProfile(ctx context.Context, path, name string, explicit bool) (*Profile, error) {
	if path == "" {
		var err error
		if path, err = DefaultProfilesPath(); err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(path); err != nil {
		if explicit {
			return nil, fmt.Errorf("profiles file %s: %w", path, err)
		}
		return nil, nil
	}

	registry, err := NewRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file: %w", err)
	}
	profile, err := registry.GetProfile(ctx, name)
	if err != nil {
		if explicit {
			return nil, err
		}
		zerolog.Ctx(ctx).Debug().Err(err).Str("profile", name).Msg("ignoring profile")
		return nil, nil
	}
	return profile, nil
}
