package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/launchbynttdata/launch-build-stamper/internal/config"
)

type flagBase struct {
	fs      *pflag.FlagSet
	setting string
	name    string
	envKey  string
}

func newFlagBase(fs *pflag.FlagSet, setting, name, envKey string) flagBase {
	return flagBase{fs: fs, setting: setting, name: name, envKey: envKey}
}

func (b flagBase) changed() bool {
	if b.fs == nil || b.name == "" {
		return false
	}
	return b.fs.Changed(b.name)
}

func describeUsage(usage, envKey string) string {
	trimmed := strings.TrimSpace(usage)
	if envKey == "" {
		return trimmed
	}
	if trimmed == "" {
		return fmt.Sprintf("env: %s", envKey)
	}
	return fmt.Sprintf("%s (env: %s)", trimmed, envKey)
}

type stringFlag struct {
	base       flagBase
	defaultVal string
	value      string
}

func bindStringFlag(fs *pflag.FlagSet, setting, name, short, envKey, defaultVal, usage string) *stringFlag {
	f := &stringFlag{
		base:       newFlagBase(fs, setting, name, envKey),
		defaultVal: defaultVal,
		value:      defaultVal,
	}
	if fs == nil {
		return f
	}
	if short != "" {
		fs.StringVarP(&f.value, name, short, defaultVal, describeUsage(usage, envKey))
	} else {
		fs.StringVar(&f.value, name, defaultVal, describeUsage(usage, envKey))
	}
	return f
}

func (f *stringFlag) Value(resolver config.Resolver) string {
	cliVal := strings.TrimSpace(f.value)
	return strings.TrimSpace(resolver.String(f.base.setting, f.base.envKey, cliVal, f.base.changed(), f.defaultVal))
}

type boolFlag struct {
	base       flagBase
	defaultVal bool
	value      bool
}

func bindBoolFlag(fs *pflag.FlagSet, setting, name, short, envKey string, defaultVal bool, usage string) *boolFlag {
	f := &boolFlag{
		base:       newFlagBase(fs, setting, name, envKey),
		defaultVal: defaultVal,
		value:      defaultVal,
	}
	if fs == nil {
		return f
	}
	if short != "" {
		fs.BoolVarP(&f.value, name, short, defaultVal, describeUsage(usage, envKey))
	} else {
		fs.BoolVar(&f.value, name, defaultVal, describeUsage(usage, envKey))
	}
	return f
}

func (f *boolFlag) Value(resolver config.Resolver) (bool, error) {
	return resolver.Bool(f.base.setting, f.base.envKey, f.value, f.base.changed(), f.defaultVal)
}

type durationFlag struct {
	base       flagBase
	defaultVal time.Duration
	value      time.Duration
}

func bindDurationFlag(fs *pflag.FlagSet, setting, name, short, envKey string, defaultVal time.Duration, usage string) *durationFlag {
	f := &durationFlag{
		base:       newFlagBase(fs, setting, name, envKey),
		defaultVal: defaultVal,
		value:      defaultVal,
	}
	if fs == nil {
		return f
	}
	if short != "" {
		fs.DurationVarP(&f.value, name, short, defaultVal, describeUsage(usage, envKey))
	} else {
		fs.DurationVar(&f.value, name, defaultVal, describeUsage(usage, envKey))
	}
	return f
}

func (f *durationFlag) Value(resolver config.Resolver) (time.Duration, error) {
	d, err := resolver.Duration(f.base.setting, f.base.envKey, f.value, f.base.changed(), f.defaultVal)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero", f.base.setting)
	}
	return d, nil
}
