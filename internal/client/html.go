package client

import (
	"fmt"
	"html"
	"strings"
	"sync"

	"timer-delivery-engine/internal/timer"
)

// Anchor is a mount point in the host page: either a product block root
// (which may pin a specific timer id) or the page body for bar timers.
type Anchor struct {
	// TimerID pins this anchor to one timer. Empty accepts the first
	// eligible product timer.
	TimerID string

	mu      sync.Mutex
	content string
	mounted bool
}

func (a *Anchor) set(html string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.content = html
	a.mounted = true
}

func (a *Anchor) clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.content = ""
	a.mounted = false
}

// HTML returns the anchor's current markup ("" when nothing is mounted).
func (a *Anchor) HTML() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.content
}

// Mounted reports whether a timer currently occupies the anchor.
func (a *Anchor) Mounted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mounted
}

// HTMLDisplay renders countdown frames as HTML fragments into an Anchor.
type HTMLDisplay struct {
	anchor *Anchor
	bar    bool
}

func NewHTMLDisplay(anchor *Anchor, bar bool) *HTMLDisplay {
	return &HTMLDisplay{anchor: anchor, bar: bar}
}

func (d *HTMLDisplay) Apply(t timer.Payload, digits Digits) {
	d.anchor.set(RenderHTML(t, digits, d.bar))
}

func (d *HTMLDisplay) Remove() {
	d.anchor.clear()
}

// RenderHTML builds the countdown markup for one frame: title,
// subheading, four zero-padded digit groups with unit labels, and the
// call-to-action. Bar variants add positioning and a dismiss control.
func RenderHTML(t timer.Payload, d Digits, bar bool) string {
	var b strings.Builder

	if bar {
		pos := "top"
		if t.Style.Positioning == "bottom" {
			pos = "bottom"
		}
		fmt.Fprintf(&b, `<div class="utimer-bar %s" data-timer-id=%q%s>`,
			pos, t.ID, barStyleAttr(t.Style))
		if timer.CTAType(t.CTAType) == timer.CTAClickable && t.ButtonLink != "" {
			fmt.Fprintf(&b, `<a class="utimer-clickthrough" href=%q></a>`, t.ButtonLink)
		}
		b.WriteString(`<span class="utimer-close" data-dismiss="true">&times;</span>`)
	}

	fmt.Fprintf(&b, `<div class="utimer-container" data-timer-id=%q%s>`,
		t.ID, containerStyleAttr(t.Style))

	fmt.Fprintf(&b, `<div class="utimer-title"%s>%s</div>`,
		textStyleAttr(t.Style.TitleColor, t.Style.TitleSize), html.EscapeString(t.Title))
	if t.Subheading != "" {
		fmt.Fprintf(&b, `<div class="utimer-sub"%s>%s</div>`,
			textStyleAttr(t.Style.SubheadingColor, t.Style.SubheadingSize), html.EscapeString(t.Subheading))
	}

	b.WriteString(`<div class="utimer-countdown">`)
	writeUnit(&b, t.Style, Pad(d.Days), t.DaysLabel)
	writeUnit(&b, t.Style, Pad(d.Hours), t.HoursLabel)
	writeUnit(&b, t.Style, Pad(d.Minutes), t.MinutesLabel)
	writeUnit(&b, t.Style, Pad(d.Seconds), t.SecondsLabel)
	b.WriteString(`</div>`)

	if timer.CTAType(t.CTAType) == timer.CTAButton && t.ButtonText != "" && t.ButtonLink != "" {
		fmt.Fprintf(&b, `<div class="utimer-cta"><a class="utimer-button" href=%q%s>%s</a></div>`,
			t.ButtonLink, buttonStyleAttr(t.Style), html.EscapeString(t.ButtonText))
	}

	b.WriteString(`</div>`)
	if bar {
		b.WriteString(`</div>`)
	}
	return b.String()
}

func writeUnit(b *strings.Builder, s timer.Style, value, label string) {
	b.WriteString(`<div class="utimer-unit">`)
	fmt.Fprintf(b, `<span class="utimer-number"%s>%s</span>`,
		textStyleAttr(s.TimerColor, s.TimerSize), value)
	fmt.Fprintf(b, `<span class="utimer-label"%s>%s</span>`,
		textStyleAttr(s.LegendColor, s.LegendSize), html.EscapeString(label))
	b.WriteString(`</div>`)
}

func containerStyleAttr(s timer.Style) string {
	var rules []string
	if s.BackgroundColor != "" {
		rules = append(rules, "background:"+s.BackgroundColor)
	}
	if s.BorderSize > 0 {
		color := s.BorderColor
		if color == "" {
			color = "#e5e5e5"
		}
		rules = append(rules, fmt.Sprintf("border:%dpx solid %s", s.BorderSize, color))
	}
	if s.BorderRadius > 0 {
		rules = append(rules, fmt.Sprintf("border-radius:%dpx", s.BorderRadius))
	}
	if s.PaddingTop > 0 {
		rules = append(rules, fmt.Sprintf("padding-top:%dpx", s.PaddingTop))
	}
	if s.PaddingBottom > 0 {
		rules = append(rules, fmt.Sprintf("padding-bottom:%dpx", s.PaddingBottom))
	}
	if s.MarginTop > 0 {
		rules = append(rules, fmt.Sprintf("margin-top:%dpx", s.MarginTop))
	}
	if s.MarginBottom > 0 {
		rules = append(rules, fmt.Sprintf("margin-bottom:%dpx", s.MarginBottom))
	}
	return styleAttr(rules)
}

func barStyleAttr(s timer.Style) string {
	var rules []string
	if s.BackgroundColor != "" {
		rules = append(rules, "background:"+s.BackgroundColor)
	}
	if s.TimerColor != "" {
		rules = append(rules, "color:"+s.TimerColor)
	}
	return styleAttr(rules)
}

func buttonStyleAttr(s timer.Style) string {
	var rules []string
	if s.ButtonColor != "" {
		rules = append(rules, "color:"+s.ButtonColor)
	}
	if s.ButtonBackgroundColor != "" {
		rules = append(rules, "background:"+s.ButtonBackgroundColor)
	}
	if s.ButtonCornerRadius > 0 {
		rules = append(rules, fmt.Sprintf("border-radius:%dpx", s.ButtonCornerRadius))
	}
	return styleAttr(rules)
}

func textStyleAttr(color string, size int) string {
	var rules []string
	if color != "" {
		rules = append(rules, "color:"+color)
	}
	if size > 0 {
		rules = append(rules, fmt.Sprintf("font-size:%dpx", size))
	}
	return styleAttr(rules)
}

func styleAttr(rules []string) string {
	if len(rules) == 0 {
		return ""
	}
	return fmt.Sprintf(" style=%q", strings.Join(rules, ";"))
}
