// Package patterns loads the vendor fingerprint rule files into immutable,
// pre-compiled structures. A malformed entry fails at load time so a bad
// rule file can never surface as a silent no-match during a run.
package patterns

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// PMSSet holds strong and weak fingerprints per practice-management vendor.
type PMSSet struct {
	Strong map[string][]*regexp.Regexp
	Weak   map[string][]*regexp.Regexp
	// Vendors is the fixed scoring order: every vendor named in either map,
	// ascending by name. Arg-max ties resolve to the first vendor in this
	// order.
	Vendors []string
}

// ThirdPartySet holds keyword rules for patient-facing service categories.
type ThirdPartySet struct {
	Booking  []*regexp.Regexp
	Forms    []*regexp.Regexp
	Payments []*regexp.Regexp
	All      []*regexp.Regexp
}

// PhoneSet holds provider-name rules for phone systems.
type PhoneSet struct {
	Providers []*regexp.Regexp
}

// Store is the full immutable rule set used by the signal extractor.
type Store struct {
	PMS        PMSSet
	ThirdParty ThirdPartySet
	Phone      PhoneSet
}

type pmsFile struct {
	Strong map[string][]string `yaml:"strong"`
	Weak   map[string][]string `yaml:"weak"`
}

type thirdPartyFile struct {
	Booking  []string `yaml:"booking"`
	Forms    []string `yaml:"forms"`
	Payments []string `yaml:"payments"`
	All      []string `yaml:"all"`
}

type phoneFile struct {
	Providers []string `yaml:"providers"`
}

// Load reads and validates the three rule files.
func Load(pmsPath, thirdPartyPath, phonePath string) (*Store, error) {
	pms, err := loadPMS(pmsPath)
	if err != nil {
		return nil, fmt.Errorf("load pms patterns: %w", err)
	}
	tp, err := loadThirdParty(thirdPartyPath)
	if err != nil {
		return nil, fmt.Errorf("load third-party patterns: %w", err)
	}
	phone, err := loadPhone(phonePath)
	if err != nil {
		return nil, fmt.Errorf("load phone patterns: %w", err)
	}
	return &Store{PMS: pms, ThirdParty: tp, Phone: phone}, nil
}

func loadPMS(path string) (PMSSet, error) {
	var raw pmsFile
	if err := readYAML(path, &raw); err != nil {
		return PMSSet{}, err
	}
	if len(raw.Strong) == 0 && len(raw.Weak) == 0 {
		return PMSSet{}, fmt.Errorf("%s: no vendors defined", path)
	}

	set := PMSSet{
		Strong: make(map[string][]*regexp.Regexp, len(raw.Strong)),
		Weak:   make(map[string][]*regexp.Regexp, len(raw.Weak)),
	}
	vendors := make(map[string]struct{})
	for vendor, pats := range raw.Strong {
		compiled, err := compileAll(path, "strong."+vendor, pats)
		if err != nil {
			return PMSSet{}, err
		}
		set.Strong[vendor] = compiled
		vendors[vendor] = struct{}{}
	}
	for vendor, pats := range raw.Weak {
		compiled, err := compileAll(path, "weak."+vendor, pats)
		if err != nil {
			return PMSSet{}, err
		}
		set.Weak[vendor] = compiled
		vendors[vendor] = struct{}{}
	}

	set.Vendors = make([]string, 0, len(vendors))
	for v := range vendors {
		set.Vendors = append(set.Vendors, v)
	}
	sort.Strings(set.Vendors)
	return set, nil
}

func loadThirdParty(path string) (ThirdPartySet, error) {
	var raw thirdPartyFile
	if err := readYAML(path, &raw); err != nil {
		return ThirdPartySet{}, err
	}
	var set ThirdPartySet
	var err error
	if set.Booking, err = compileAll(path, "booking", raw.Booking); err != nil {
		return ThirdPartySet{}, err
	}
	if set.Forms, err = compileAll(path, "forms", raw.Forms); err != nil {
		return ThirdPartySet{}, err
	}
	if set.Payments, err = compileAll(path, "payments", raw.Payments); err != nil {
		return ThirdPartySet{}, err
	}
	if set.All, err = compileAll(path, "all", raw.All); err != nil {
		return ThirdPartySet{}, err
	}
	if len(set.Booking) == 0 || len(set.Forms) == 0 || len(set.Payments) == 0 {
		return ThirdPartySet{}, fmt.Errorf("%s: booking, forms, and payments lists must be non-empty", path)
	}
	return set, nil
}

func loadPhone(path string) (PhoneSet, error) {
	var raw phoneFile
	if err := readYAML(path, &raw); err != nil {
		return PhoneSet{}, err
	}
	providers, err := compileAll(path, "providers", raw.Providers)
	if err != nil {
		return PhoneSet{}, err
	}
	if len(providers) == 0 {
		return PhoneSet{}, fmt.Errorf("%s: providers list must be non-empty", path)
	}
	return PhoneSet{Providers: providers}, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func compileAll(path, section string, raw []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(raw))
	for _, pat := range raw {
		if pat == "" {
			return nil, fmt.Errorf("%s: empty pattern in %s", path, section)
		}
		re, err := regexp.Compile("(?i)" + pat)
		if err != nil {
			return nil, fmt.Errorf("%s: bad pattern %q in %s: %w", path, pat, section, err)
		}
		out = append(out, re)
	}
	return out, nil
}
