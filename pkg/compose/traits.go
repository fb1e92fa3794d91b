package compose

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Built-in trait types.
const (
	TraitModal     = "@waypoint/modal"
	TraitTooltip   = "@waypoint/tooltip"
	TraitEmbed     = "@waypoint/embedded"
	TraitSkippable = "@waypoint/skippable"
	TraitBackdrop  = "@waypoint/backdrop"
	TraitCarousel  = "@waypoint/carousel"
)

// Presentation is the resolved description of how a container is shown.
type Presentation struct {
	Style           string
	Target          string
	Skippable       bool
	SkipAppearance  string
	BackdropColor   string
	BackdropOpacity float64
	Paging          string
}

// Trait contributes to a Presentation. Exactly one presenting trait must
// apply to a step group.
type Trait interface {
	Presenting() bool
	Apply(p *Presentation)
}

func decode(config map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTraitConfig, err)
	}
	return nil
}

type modal struct {
	PresentationStyle string `mapstructure:"presentationStyle"`
}

var modalStyles = map[string]bool{"full": true, "dialog": true, "sheet": true, "halfScreen": true}

func newModal(config map[string]any) (Trait, error) {
	m := &modal{PresentationStyle: "dialog"}
	if err := decode(config, m); err != nil {
		return nil, err
	}
	if !modalStyles[m.PresentationStyle] {
		return nil, fmt.Errorf("%w: unknown presentationStyle %q", ErrInvalidTraitConfig, m.PresentationStyle)
	}
	return m, nil
}

func (m *modal) Presenting() bool { return true }
func (m *modal) Apply(p *Presentation) {
	p.Style = "modal:" + m.PresentationStyle
}

type tooltip struct {
	Selector string `mapstructure:"selector"`
}

func newTooltip(config map[string]any) (Trait, error) {
	t := &tooltip{}
	if err := decode(config, t); err != nil {
		return nil, err
	}
	if t.Selector == "" {
		return nil, fmt.Errorf("%w: tooltip requires a selector", ErrInvalidTraitConfig)
	}
	return t, nil
}

func (t *tooltip) Presenting() bool { return true }
func (t *tooltip) Apply(p *Presentation) {
	p.Style = "tooltip"
	p.Target = t.Selector
}

type embed struct {
	Frame string `mapstructure:"frameID"`
}

func newEmbed(config map[string]any) (Trait, error) {
	e := &embed{}
	if err := decode(config, e); err != nil {
		return nil, err
	}
	if e.Frame == "" {
		return nil, fmt.Errorf("%w: embedded requires a frameID", ErrInvalidTraitConfig)
	}
	return e, nil
}

func (e *embed) Presenting() bool { return true }
func (e *embed) Apply(p *Presentation) {
	p.Style = "embedded"
	p.Target = e.Frame
}

type skippable struct {
	ButtonAppearance string `mapstructure:"buttonAppearance"`
}

func newSkippable(config map[string]any) (Trait, error) {
	s := &skippable{ButtonAppearance: "default"}
	if err := decode(config, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *skippable) Presenting() bool { return false }
func (s *skippable) Apply(p *Presentation) {
	p.Skippable = true
	p.SkipAppearance = s.ButtonAppearance
}

type backdrop struct {
	BackgroundColor string  `mapstructure:"backgroundColor"`
	Opacity         float64 `mapstructure:"opacity"`
}

func newBackdrop(config map[string]any) (Trait, error) {
	b := &backdrop{BackgroundColor: "#000000", Opacity: 0.3}
	if err := decode(config, b); err != nil {
		return nil, err
	}
	if b.Opacity < 0 || b.Opacity > 1 {
		return nil, fmt.Errorf("%w: opacity %v out of range", ErrInvalidTraitConfig, b.Opacity)
	}
	return b, nil
}

func (b *backdrop) Presenting() bool { return false }
func (b *backdrop) Apply(p *Presentation) {
	p.BackdropColor = b.BackgroundColor
	p.BackdropOpacity = b.Opacity
}

type carousel struct{}

func newCarousel(config map[string]any) (Trait, error) {
	c := &carousel{}
	if err := decode(config, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *carousel) Presenting() bool { return false }
func (c *carousel) Apply(p *Presentation) {
	p.Paging = "carousel"
}
