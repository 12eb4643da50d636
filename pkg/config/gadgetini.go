package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Section/key names of the per-gadget INI file (SPEC_FULL.md §6), matching
// _examples/original_source/src/agt/alexa_gadget.py's constants byte-exactly
// so existing .ini files from the original samples load unmodified.
const (
	sectionGadgetSettings     = "GadgetSettings"
	sectionGadgetCapabilities = "GadgetCapabilities"

	keyAmazonID            = "amazonId"
	keyAmazonIDLegacy      = "deviceType"
	keyGadgetSecret        = "alexaGadgetSecret"
	keyGadgetSecretLegacy  = "deviceTypeSecret"
	keyFriendlyName        = "friendlyName"
	keyModelName           = "modelName"
	keyTokenEncryptionType = "deviceTokenEncryptionType"
	keyFirmwareVersion     = "firmwareVersion"
	keyEndpointID          = "endpointID"
	keyManufacturerName    = "manufacturerName"
	keyDescription         = "description"
	keyVendorID            = "bluetoothVendorID"
	keyProductID           = "bluetoothProductID"
)

// Capability is one [GadgetCapabilities] entry: an interface name with its
// version and, optionally, a comma-separated list of supported sub-types
// (SPEC_FULL.md §6: "<version>" or "<version> - <comma-separated types>").
type Capability struct {
	Interface      string
	Version        string
	SupportedTypes []string
}

// GadgetSettings is the raw [GadgetSettings] section, keyed exactly as read
// from the file (legacy deviceType/deviceTypeSecret keys are folded into
// AmazonID/GadgetSecret by LoadGadgetConfig, not here).
type GadgetSettings struct {
	AmazonID            string
	GadgetSecret        string
	EndpointID          string
	FriendlyName        string
	ModelName           string
	TokenEncryptionType string
	FirmwareVersion     string
	ManufacturerName    string
	Description         string
	VendorID            string
	ProductID           string
}

// GadgetConfig is the parsed per-gadget INI file.
type GadgetConfig struct {
	Settings     GadgetSettings
	Capabilities []Capability
}

// LoadGadgetConfig reads and parses the per-gadget INI file at path. Key
// lookups are case-sensitive per SPEC_FULL.md §6.
func LoadGadgetConfig(path string) (*GadgetConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open gadget config %s: %w", path, err)
	}
	defer f.Close()

	sections, err := scanINI(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse gadget config %s: %w", path, err)
	}

	settings := sections[sectionGadgetSettings]
	s := GadgetSettings{
		AmazonID:            firstNonEmpty(settings[keyAmazonID], settings[keyAmazonIDLegacy]),
		GadgetSecret:        firstNonEmpty(settings[keyGadgetSecret], settings[keyGadgetSecretLegacy]),
		EndpointID:          settings[keyEndpointID],
		FriendlyName:        settings[keyFriendlyName],
		ModelName:           settings[keyModelName],
		TokenEncryptionType: settings[keyTokenEncryptionType],
		FirmwareVersion:     settings[keyFirmwareVersion],
		ManufacturerName:    settings[keyManufacturerName],
		Description:         settings[keyDescription],
		VendorID:            settings[keyVendorID],
		ProductID:           settings[keyProductID],
	}

	var caps []Capability
	for k, v := range sections[sectionGadgetCapabilities] {
		caps = append(caps, parseCapability(k, v))
	}

	return &GadgetConfig{Settings: s, Capabilities: caps}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseCapability splits a "<version> - <comma, separated, types>" value,
// matching alexa_gadget.py's on_alexa_discovery_discover capability parsing.
func parseCapability(iface, value string) Capability {
	c := Capability{Interface: iface}
	parts := strings.SplitN(value, "-", 2)
	c.Version = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		for _, t := range strings.Split(parts[1], ",") {
			if t = strings.TrimSpace(t); t != "" {
				c.SupportedTypes = append(c.SupportedTypes, t)
			}
		}
	}
	return c
}

// scanINI is a minimal case-sensitive-key INI reader: "[Section]" headers,
// "key = value" or "key=value" lines, ';' and '#' comments, blank lines
// ignored. No third-party INI library appears anywhere in the retrieved
// example pack (see DESIGN.md), so this is a direct bufio.Scanner reader in
// the same spirit as the teacher's own line-oriented parsing elsewhere.
func scanINI(f *os.File) (map[string]map[string]string, error) {
	sections := map[string]map[string]string{}
	current := ""

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			current = strings.TrimSpace(line[1 : len(line)-1])
			if _, ok := sections[current]; !ok {
				sections[current] = map[string]string{}
			}
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 || current == "" {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.TrimSpace(line[eq+1:])
		sections[current][key] = val
	}
	return sections, scanner.Err()
}
