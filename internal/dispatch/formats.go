package dispatch

import (
	"fmt"
	"strings"
	"time"

	"drafter/internal/config"
	"drafter/internal/services"
)

// formatClass separates heavyweight authoring models from lightweight
// exchange geometry. Authoring formats carry full property sets and get
// longer translation ceilings.
type formatClass string

const (
	classAuthoring formatClass = "authoring"
	classExchange  formatClass = "exchange"
)

type formatProfile struct {
	Class formatClass
	Views []string
	// ExtractionOptions tunes the provider's property extraction for
	// the category.
	ExtractionOptions map[string]string
}

var authoringProfile = formatProfile{
	Class: classAuthoring,
	Views: []string{"2d", "3d"},
	ExtractionOptions: map[string]string{
		"extractProperties":   "full",
		"generateMasterViews": "true",
	},
}

var exchangeProfile = formatProfile{
	Class: classExchange,
	Views: []string{"3d"},
}

var formatProfiles = map[string]formatProfile{
	// CAD authoring formats.
	"rvt":     authoringProfile,
	"rfa":     authoringProfile,
	"ifc":     authoringProfile,
	"dwg":     authoringProfile,
	"dxf":     authoringProfile,
	"dwf":     authoringProfile,
	"nwd":     authoringProfile,
	"nwc":     authoringProfile,
	"sldprt":  authoringProfile,
	"sldasm":  authoringProfile,
	"ipt":     authoringProfile,
	"iam":     authoringProfile,
	"step":    authoringProfile,
	"stp":     authoringProfile,
	"catpart": authoringProfile,

	// Lightweight exchange formats.
	"obj":  exchangeProfile,
	"stl":  exchangeProfile,
	"fbx":  exchangeProfile,
	"dae":  exchangeProfile,
	"3ds":  exchangeProfile,
	"gltf": exchangeProfile,
	"glb":  exchangeProfile,
	"skp":  exchangeProfile,
}

func normalizeCategory(category string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(category)), ".")
}

func profileFor(category string) (formatProfile, error) {
	profile, ok := formatProfiles[normalizeCategory(category)]
	if !ok {
		return formatProfile{}, services.Wrap(services.ErrUnsupportedFormat, "dispatch", "profile",
			fmt.Sprintf("category %q", category), nil)
	}
	return profile, nil
}

func (p formatProfile) timeoutSeconds(cfg *config.Config) int {
	if p.Class == classAuthoring {
		return cfg.Translation.AuthoringTimeout
	}
	return cfg.Translation.ExchangeTimeout
}

// TimeoutFor reports the per-category maximum translation duration. Jobs
// still running past this ceiling are moved to timeout by the poller.
func TimeoutFor(cfg *config.Config, category string) (time.Duration, error) {
	profile, err := profileFor(category)
	if err != nil {
		return 0, err
	}
	return time.Duration(profile.timeoutSeconds(cfg)) * time.Second, nil
}
