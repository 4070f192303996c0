package dbtclickhouse

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is one profile entry of a dbt-style profiles file: a default
// target name and a set of named credential mappings.
//
//	my_project:
//	  target: dev
//	  outputs:
//	    dev:
//	      type: clickhouse
//	      host: db1
//	      schema: analytics
type Profile struct {
	// Target names the output used when the caller does not pick one.
	Target string `yaml:"target"`
	// Outputs maps target names to credential mappings.
	Outputs map[string]*Credentials `yaml:"outputs"`
}

// LoadProfiles reads and parses a profiles file. Credential validation
// happens later, when a target is resolved with Profile.Credentials.
func LoadProfiles(path string) (map[string]*Profile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided path is the point of a profiles file
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read profiles file: %s", ErrConfiguration, err)
	}
	return ParseProfiles(data)
}

// ParseProfiles parses profiles file content.
func ParseProfiles(data []byte) (map[string]*Profile, error) {
	var profiles map[string]*Profile
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("%w: malformed profiles file: %s", ErrConfiguration, err)
	}
	return profiles, nil
}

// Credentials resolves and validates the credentials of the named target. An
// empty target selects the profile's default. The returned credentials have
// defaults applied and invariants enforced, ready for NewConnection.
func (p *Profile) Credentials(target string) (*Credentials, error) {
	if target == "" {
		target = p.Target
	}
	creds, ok := p.Outputs[target]
	if !ok {
		return nil, fmt.Errorf("%w: no output named %q in profile", ErrConfiguration, target)
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return creds, nil
}
