// Package strategy assembles the worker arguments derived from user settings:
// active WinDivert filter fragments, the list mode and the strategy itself.
package strategy

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/maxdollinger/zapret.io/internal/manifest"
)

type ListMode string

const (
	ListModeIPSet   ListMode = "ipset"
	ListModeExclude ListMode = "exclude"
)

// ListModeToken in a strategy argument is replaced by the list mode argument.
const ListModeToken = "<LIST_MODE>"

func (m ListMode) Valid() bool {
	return m == ListModeIPSet || m == ListModeExclude
}

type Filter struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Filename string `mapstructure:"filename" yaml:"filename"`
	Active   bool   `mapstructure:"active" yaml:"active"`
}

func DefaultFilters() []Filter {
	return []Filter{
		{Name: "Discord Media", Filename: "windivert_part.discord_media.txt", Active: true},
		{Name: "STUN", Filename: "windivert_part.stun.txt", Active: true},
		{Name: "WireGuard", Filename: "windivert_part.wireguard.txt"},
		{Name: "QUIC Initial IETF", Filename: "windivert_part.quic_initial_ietf.txt"},
		{Name: "DHT", Filename: "windivert_part.dht.txt"},
	}
}

// FilterArgs returns one --wf-raw-part per active filter.
func FilterArgs(filters []Filter, filtersDir string) []string {
	var args []string
	for _, f := range filters {
		if !f.Active {
			continue
		}
		args = append(args, "--wf-raw-part=@"+filepath.Join(filtersDir, f.Filename))
	}
	return args
}

func ListModeArg(mode ListMode, listsDir string) (string, error) {
	switch mode {
	case ListModeExclude:
		return "--hostlist-exclude=" + filepath.Join(listsDir, manifest.ListHostsUserExclude), nil
	case ListModeIPSet:
		return "--ipset=" + filepath.Join(listsDir, manifest.ListIPUser), nil
	}
	return "", fmt.Errorf("unknown list mode %q", mode)
}

type Options struct {
	Filters    []Filter
	FiltersDir string
	ListMode   ListMode
	ListsDir   string
	// Strategy holds raw worker arguments.
	Strategy []string
}

// Build returns filter args, then the list mode arg, then the strategy.
// When the strategy contains ListModeToken the list mode arg is substituted
// there instead of being added up front.
func Build(opts Options) ([]string, error) {
	listArg, err := ListModeArg(opts.ListMode, opts.ListsDir)
	if err != nil {
		return nil, err
	}

	args := FilterArgs(opts.Filters, opts.FiltersDir)

	substituted := false
	strategy := make([]string, 0, len(opts.Strategy))
	for _, a := range opts.Strategy {
		if strings.Contains(a, ListModeToken) {
			a = strings.ReplaceAll(a, ListModeToken, listArg)
			substituted = true
		}
		strategy = append(strategy, a)
	}

	if !substituted {
		args = append(args, listArg)
	}
	return append(args, strategy...), nil
}
