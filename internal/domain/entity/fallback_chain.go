package entity

// ChainCondition narrows when a fallback chain applies.
type ChainCondition struct {
	FreeOnly           bool   `json:"free_only,omitempty" yaml:"free_only"`
	PremiumFirst       bool   `json:"premium_first,omitempty" yaml:"premium_first"`
	RequiredCapability string `json:"required_capability,omitempty" yaml:"required_capability"`
}

// FallbackChain is a named, ordered default provider list for a service type.
// Chains are seeded once and read-only at request time.
type FallbackChain struct {
	ID          int64
	ServiceType ServiceType
	ChainName   string
	Providers   []string // attempted in order by the caller
	Condition   *ChainCondition
	IsDefault   bool
}

// Validate checks the chain shape.
func (c *FallbackChain) Validate() error {
	if c.ChainName == "" {
		return &ValidationError{Field: "chainName", Message: "is required"}
	}
	if !ValidServiceType(c.ServiceType) {
		return &ValidationError{Field: "serviceType", Message: "unknown service type"}
	}
	if len(c.Providers) == 0 {
		return &ValidationError{Field: "providers", Message: "must not be empty"}
	}
	return nil
}
