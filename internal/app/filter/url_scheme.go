package filter

import (
	"context"
	"net/url"
	"slices"
	"strings"

	"github.com/osa030/upnext/internal/domain/track"
)

// URLSchemeConfig represents the configuration for URLSchemeFilter.
type URLSchemeConfig struct {
	Schemes []string `mapstructure:"schemes" default:"[\"file\",\"http\",\"https\"]" validate:"min=1,dive,required"`
}

// URLSchemeFilter only admits tracks whose URL uses an allowed scheme.
type URLSchemeFilter struct {
	schemes []string
}

// NewURLSchemeFilter creates a filter allowing schemes. No schemes means
// everything is allowed until ValidateConfig runs.
func NewURLSchemeFilter(schemes ...string) *URLSchemeFilter {
	return &URLSchemeFilter{schemes: schemes}
}

func (f *URLSchemeFilter) Name() string {
	return "url_scheme_filter"
}

func (f *URLSchemeFilter) Description() string {
	return "Checks that the track URL uses one of the allowed schemes"
}

func (f *URLSchemeFilter) ReturnCodes() []string {
	return []string{"unsupported_scheme"}
}

func (f *URLSchemeFilter) ValidateConfig(settings map[string]any) error {
	var config URLSchemeConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.schemes = make([]string, len(config.Schemes))
	for i, s := range config.Schemes {
		f.schemes[i] = strings.ToLower(s)
	}
	return nil
}

func (f *URLSchemeFilter) Check(ctx context.Context, t track.Track) Result {
	if len(f.schemes) == 0 {
		return Accept()
	}

	u, err := url.Parse(t.URL)
	if err != nil || u.Scheme == "" {
		return Reject("unsupported_scheme")
	}
	if !slices.Contains(f.schemes, strings.ToLower(u.Scheme)) {
		return Reject("unsupported_scheme")
	}
	return Accept()
}

func init() {
	Register("url_scheme_filter", func(QueueView) Filter {
		return NewURLSchemeFilter()
	})
}
