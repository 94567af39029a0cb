package timer

import "time"

// Timer is a merchant-configured countdown, read-only in this engine.
// Configuration CRUD lives in the admin app; we only ever list and
// deliver published records.
type Timer struct {
	ID    string
	Shop  string
	Name  string
	Kind  Kind
	Title string

	Subheading string

	IsPublished bool
	IsActive    bool

	// Timing. Exactly one of EndAt / SessionMinutes is meaningful,
	// selected by Mode.
	Mode           Mode
	EndAt          *time.Time
	SessionMinutes int

	// Unit labels shown under the digit groups.
	DaysLabel    string
	HoursLabel   string
	MinutesLabel string
	SecondsLabel string

	StartsAt *time.Time
	OnExpiry ExpiryPolicy

	CTAType    CTAType
	ButtonText string
	ButtonLink string

	Style Style

	// Targeting. Exclusion lists always win over inclusion lists.
	ProductSelection    ProductSelection
	SelectedProducts    []string
	SelectedCollections []string
	ExcludedProducts    []string
	ProductTags         []string

	PageSelection PageSelection
	SpecificPages []string

	Geolocation Geolocation
	Countries   []string

	CreatedAt time.Time
}

// Style carries the design parameters the client applies at render time.
// Colors are CSS color strings, sizes are pixels.
type Style struct {
	Positioning string `json:"positioning,omitempty"` // "top" | "bottom", bar kind only

	BackgroundColor string `json:"backgroundColor,omitempty"`

	BorderRadius int    `json:"borderRadius,omitempty"`
	BorderSize   int    `json:"borderSize,omitempty"`
	BorderColor  string `json:"borderColor,omitempty"`

	PaddingTop    int `json:"paddingTop,omitempty"`
	PaddingBottom int `json:"paddingBottom,omitempty"`
	MarginTop     int `json:"marginTop,omitempty"`
	MarginBottom  int `json:"marginBottom,omitempty"`

	TitleSize  int    `json:"titleSize,omitempty"`
	TitleColor string `json:"titleColor,omitempty"`

	SubheadingSize  int    `json:"subheadingSize,omitempty"`
	SubheadingColor string `json:"subheadingColor,omitempty"`

	TimerSize  int    `json:"timerSize,omitempty"`
	TimerColor string `json:"timerColor,omitempty"`

	LegendSize  int    `json:"legendSize,omitempty"`
	LegendColor string `json:"legendColor,omitempty"`

	ButtonColor           string `json:"buttonColor,omitempty"`
	ButtonBackgroundColor string `json:"buttonBackgroundColor,omitempty"`
	ButtonCornerRadius    int    `json:"buttonCornerRadius,omitempty"`
}

// VisitorContext is the anonymous storefront context a delivery request
// carries. Built once per request or render cycle, never mutated.
type VisitorContext struct {
	Shop          string
	PageType      string // "product" | "collection" | "home" | "cart" | "page"
	ProductID     string
	CollectionIDs []string
	ProductTags   []string // lower-cased
	PageURL       string
	Country       string // upper-cased ISO code, may be empty
}

// View is one telemetry record: a timer was delivered and mounted for a
// visitor. Written once, never updated here.
type View struct {
	ID        string
	TimerID   string
	Shop      string
	VisitorID string
	IPAddress string
	UserAgent string
	Country   string
	PageURL   string
	PageType  string
	ProductID string
	CreatedAt time.Time
}

// Payload is the storefront-facing projection of a Timer. It carries
// everything the client needs to render and to defensively re-check
// product/page eligibility, and nothing else.
type Payload struct {
	ID    string `json:"id"`
	Kind  string `json:"type"`
	Name  string `json:"name"`
	Title string `json:"title"`

	Subheading string `json:"subheading,omitempty"`

	Mode           string     `json:"timerMode"`
	EndAt          *time.Time `json:"endAt,omitempty"`
	SessionMinutes int        `json:"sessionMinutes,omitempty"`

	DaysLabel    string `json:"daysLabel"`
	HoursLabel   string `json:"hoursLabel"`
	MinutesLabel string `json:"minutesLabel"`
	SecondsLabel string `json:"secondsLabel"`

	StartsAt *time.Time `json:"startsAt,omitempty"`
	OnExpiry string     `json:"onExpiry"`
	Ended    bool       `json:"ended"`

	CTAType    string `json:"ctaType,omitempty"`
	ButtonText string `json:"buttonText,omitempty"`
	ButtonLink string `json:"buttonLink,omitempty"`

	Style Style `json:"style"`

	// Minimal targeting echo for client-side re-verification.
	ProductSelection    string   `json:"productSelection,omitempty"`
	SelectedProducts    []string `json:"selectedProducts,omitempty"`
	SelectedCollections []string `json:"selectedCollections,omitempty"`
	ExcludedProducts    []string `json:"excludedProducts,omitempty"`
	ProductTags         []string `json:"productTags,omitempty"`
	PageSelection       string   `json:"pageSelection,omitempty"`
	SpecificPages       []string `json:"specificPages,omitempty"`
}

const (
	DefaultDaysLabel    = "Days"
	DefaultHoursLabel   = "Hrs"
	DefaultMinutesLabel = "Mins"
	DefaultSecondsLabel = "Secs"
)

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// ToPayload projects a Timer for storefront delivery. The ended flag is
// computed by the eligibility filter and passed through.
func (t Timer) ToPayload(ended bool) Payload {
	return Payload{
		ID:             t.ID,
		Kind:           string(t.Kind),
		Name:           t.Name,
		Title:          t.Title,
		Subheading:     t.Subheading,
		Mode:           string(t.Mode),
		EndAt:          t.EndAt,
		SessionMinutes: t.SessionMinutes,
		DaysLabel:      orDefault(t.DaysLabel, DefaultDaysLabel),
		HoursLabel:     orDefault(t.HoursLabel, DefaultHoursLabel),
		MinutesLabel:   orDefault(t.MinutesLabel, DefaultMinutesLabel),
		SecondsLabel:   orDefault(t.SecondsLabel, DefaultSecondsLabel),
		StartsAt:       t.StartsAt,
		OnExpiry:       string(t.OnExpiry),
		Ended:          ended,
		CTAType:        string(t.CTAType),
		ButtonText:     t.ButtonText,
		ButtonLink:     t.ButtonLink,
		Style:          t.Style,

		ProductSelection:    string(t.ProductSelection),
		SelectedProducts:    t.SelectedProducts,
		SelectedCollections: t.SelectedCollections,
		ExcludedProducts:    t.ExcludedProducts,
		ProductTags:         t.ProductTags,
		PageSelection:       string(t.PageSelection),
		SpecificPages:       t.SpecificPages,
	}
}
