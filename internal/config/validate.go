package config

import "fmt"

var validServices = map[string]bool{
	"geph4":      true,
	"geph5":      true,
	"earendil":   true,
	"geph5_exit": true,
}

var validProviderTypes = map[string]bool{
	"hetzner":   true,
	"vultr":     true,
	"scaleway":  true,
	"lightsail": true,
}

// Validate checks the configuration document for the invariants spec.md §6
// requires: an invalid document must abort the process before any loop
// starts.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required")
	}
	if c.BridgeSecret == "" {
		return fmt.Errorf("bridge_secret is required")
	}
	if len(c.Groups) == 0 {
		return fmt.Errorf("at least one allocation group is required")
	}
	for name, g := range c.Groups {
		if err := g.validate(); err != nil {
			return fmt.Errorf("group %s: %w", name, err)
		}
	}
	return nil
}

func (g *GroupConfig) validate() error {
	if g.Frontline < 0 {
		return fmt.Errorf("frontline must be >= 0")
	}
	if g.Reserve < 0 {
		return fmt.Errorf("reserve must be >= 0")
	}
	if g.MaxFrontline != nil && *g.MaxFrontline < g.Frontline {
		return fmt.Errorf("max_frontline must be >= frontline")
	}
	if g.TargetMbps < 0 {
		return fmt.Errorf("target_mbps must be >= 0")
	}
	if g.AvgLifetimeHr <= 0 {
		return fmt.Errorf("avg_lifetime_hr must be > 0")
	}
	if len(g.Services) == 0 {
		return fmt.Errorf("services must name at least one service")
	}
	for _, s := range g.Services {
		if !validServices[s] {
			return fmt.Errorf("unrecognized service %q", s)
		}
	}
	if err := g.Provider.validate(); err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	return nil
}

// AgroupFor returns the AGROUP value passed to deploy scripts: the
// override group if set, else the allocation group's own name.
func (g *GroupConfig) AgroupFor(allocGroup string) string {
	if g.OverrideGroup != "" {
		return g.OverrideGroup
	}
	return allocGroup
}

func (p *ProviderConfig) validate() error {
	if !validProviderTypes[p.Type] {
		return fmt.Errorf("unrecognized provider type %q", p.Type)
	}
	switch p.Type {
	case "hetzner":
		if p.Hetzner == nil {
			return fmt.Errorf("provider type hetzner requires a hetzner: block")
		}
		if p.Hetzner.APIToken == "" || p.Hetzner.ServerType == "" || p.Hetzner.Location == "" || p.Hetzner.Image == "" {
			return fmt.Errorf("hetzner config missing required fields")
		}
	case "vultr":
		if p.Vultr == nil {
			return fmt.Errorf("provider type vultr requires a vultr: block")
		}
		if p.Vultr.APIKey == "" || p.Vultr.Region == "" || p.Vultr.Plan == "" {
			return fmt.Errorf("vultr config missing required fields")
		}
	case "scaleway":
		if p.Scaleway == nil {
			return fmt.Errorf("provider type scaleway requires a scaleway: block")
		}
		if p.Scaleway.SecretKey == "" || p.Scaleway.ProjectID == "" || p.Scaleway.Zone == "" {
			return fmt.Errorf("scaleway config missing required fields")
		}
	case "lightsail":
		if p.Lightsail == nil {
			return fmt.Errorf("provider type lightsail requires a lightsail: block")
		}
		if p.Lightsail.AccessKeyID == "" || p.Lightsail.SecretAccessKey == "" || p.Lightsail.Region == "" {
			return fmt.Errorf("lightsail config missing required fields")
		}
	}
	return nil
}
