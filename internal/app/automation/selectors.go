package automation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wallybot/wally-agent/internal/domain"
)

// Selector is one logical UI element with its fallback locator strategies.
// Locators are tried UiAutomator first (most reliable on Android), then
// XPath, then resource id.
type Selector struct {
	UIAutomator string `yaml:"uiselector"`
	XPath       string `yaml:"xpath"`
	ResourceID  string `yaml:"resource_id"`
}

type locator struct {
	strategy domain.LocatorStrategy
	value    string
}

func (s Selector) locators() []locator {
	var out []locator
	if s.UIAutomator != "" {
		out = append(out, locator{domain.ByUIAutomator, s.UIAutomator})
	}
	if s.XPath != "" {
		out = append(out, locator{domain.ByXPath, s.XPath})
	}
	if s.ResourceID != "" {
		out = append(out, locator{domain.ByResourceID, s.ResourceID})
	}
	return out
}

func (s Selector) empty() bool {
	return s.UIAutomator == "" && s.XPath == "" && s.ResourceID == ""
}

// Selectors is the static element map for the target app. It is supplied as
// external configuration, never computed.
type Selectors struct {
	SearchBar      Selector `yaml:"search_bar"`
	ProductList    Selector `yaml:"product_list"`
	AddToCart      Selector `yaml:"add_to_cart_button"`
	CartPlusButton Selector `yaml:"cart_plus_button"`
}

// LoadSelectors reads the selector map from a YAML file.
func LoadSelectors(path string) (*Selectors, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading selectors file: %w", err)
	}

	var sel Selectors
	if err := yaml.Unmarshal(data, &sel); err != nil {
		return nil, fmt.Errorf("parsing selectors file %s: %w", path, err)
	}

	for name, s := range map[string]Selector{
		"search_bar":         sel.SearchBar,
		"product_list":       sel.ProductList,
		"add_to_cart_button": sel.AddToCart,
		"cart_plus_button":   sel.CartPlusButton,
	} {
		if s.empty() {
			return nil, fmt.Errorf("selector %q has no locators", name)
		}
	}

	return &sel, nil
}
