package console

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/compose"
	"github.com/aretw0/waypoint/pkg/domain"
	"gopkg.in/yaml.v3"
)

// ErrNotShown is returned by user interactions on a container that is not on screen.
var ErrNotShown = errors.New("container is not on screen")

// Renderer turns markdown into terminal output.
type Renderer func(markdown string) (string, error)

// Factory builds console containers. It implements compose.ContainerFactory.
type Factory struct {
	out    io.Writer
	render Renderer
	logger *slog.Logger

	mu     sync.Mutex
	writes sync.Mutex
	active *Container
}

// Option configures the Factory.
type Option func(*Factory)

// WithRenderer sets the markdown renderer. The default writes markdown as is.
func WithRenderer(r Renderer) Option {
	return func(f *Factory) {
		f.render = r
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) {
		f.logger = logger
	}
}

// NewFactory creates a factory writing to out.
func NewFactory(out io.Writer, opts ...Option) *Factory {
	f := &Factory{
		out:    out,
		render: func(md string) (string, error) { return md + "\n", nil },
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewContainer implements compose.ContainerFactory.
func (f *Factory) NewContainer(spec compose.Spec) (domain.Container, error) {
	if len(spec.Children) == 0 {
		return nil, fmt.Errorf("step group %d has no pages", spec.Group)
	}
	return &Container{factory: f, spec: spec, page: spec.StartPage}, nil
}

// Active returns the container currently on screen, or nil.
func (f *Factory) Active() *Container {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *Factory) setActive(c *Container, on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if on {
		f.active = c
	} else if f.active == c {
		f.active = nil
	}
}

func (f *Factory) write(s string) error {
	f.writes.Lock()
	defer f.writes.Unlock()
	_, err := io.WriteString(f.out, s)
	return err
}

// Container prints one step group. Pages are printed as they become visible.
type Container struct {
	factory *Factory
	spec    compose.Spec

	mu    sync.Mutex
	page  int
	shown bool
}

// Present implements domain.Container.
func (c *Container) Present(surface domain.Surface, done func()) error {
	c.mu.Lock()
	if c.shown {
		c.mu.Unlock()
		return errors.New("container already presented")
	}
	page := c.page
	c.mu.Unlock()

	text, err := c.text(page)
	if err != nil {
		return fmt.Errorf("present: %w", err)
	}
	c.spec.Events.WillAppear()
	if err := c.factory.write(text); err != nil {
		return fmt.Errorf("present: %w", err)
	}

	c.mu.Lock()
	c.shown = true
	c.mu.Unlock()
	c.factory.setActive(c, true)

	done()
	c.spec.Events.DidAppear()
	return nil
}

// Dismiss implements domain.Container.
func (c *Container) Dismiss(done func()) {
	c.hide()
	done()
}

// Navigate implements domain.Container.
func (c *Container) Navigate(page int) {
	c.mu.Lock()
	if page < 0 || page >= len(c.spec.Children) {
		c.mu.Unlock()
		c.factory.logger.Warn("navigation out of range", "group", c.spec.Group, "page", page)
		return
	}
	from := c.page
	c.page = page
	shown := c.shown
	c.mu.Unlock()

	if shown {
		if err := c.print(page); err != nil {
			c.factory.logger.Error("failed to print page", "group", c.spec.Group, "page", page, "error", err)
		}
	}
	c.spec.Events.Navigated(from, page)
}

// Close is the user closing the container. The experience ends as dismissed.
func (c *Container) Close() error {
	if !c.hide() {
		return ErrNotShown
	}
	return nil
}

// Page is the visible page within the group.
func (c *Container) Page() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// Pages is the number of pages in the group.
func (c *Container) Pages() int {
	return len(c.spec.Children)
}

// Skippable reports whether the user may close the container.
func (c *Container) Skippable() bool {
	return c.spec.Presentation.Skippable
}

func (c *Container) hide() bool {
	c.mu.Lock()
	if !c.shown {
		c.mu.Unlock()
		return false
	}
	c.shown = false
	c.mu.Unlock()

	c.spec.Events.WillDisappear()
	c.factory.setActive(c, false)
	c.spec.Events.DidDisappear()
	return true
}

func (c *Container) print(page int) error {
	text, err := c.text(page)
	if err != nil {
		return err
	}
	return c.factory.write(text)
}

func (c *Container) text(page int) (string, error) {
	header := fmt.Sprintf("── %s · step %d · page %d/%d · %s\n",
		c.spec.Experience.Name, c.spec.Group+1, page+1, len(c.spec.Children), c.spec.Presentation.Style)

	body, err := c.factory.render(Markdown(c.spec.Children[page]))
	if err != nil {
		return "", fmt.Errorf("render page %d: %w", page, err)
	}
	return header + body, nil
}

// Markdown renders the content of a page. Known keys are title, body and
// markdown; anything else is listed as YAML so authored content is never lost.
func Markdown(child domain.StepChild) string {
	var b strings.Builder
	if md, ok := child.Content["markdown"].(string); ok {
		b.WriteString(md)
		b.WriteString("\n")
	} else {
		if title, ok := child.Content["title"].(string); ok && title != "" {
			fmt.Fprintf(&b, "# %s\n\n", title)
		}
		if body, ok := child.Content["body"].(string); ok && body != "" {
			fmt.Fprintf(&b, "%s\n", body)
		}
	}

	extra := make(map[string]any)
	for k, v := range child.Content {
		switch k {
		case "markdown", "title", "body":
		default:
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		if out, err := yaml.Marshal(extra); err == nil {
			fmt.Fprintf(&b, "\n```yaml\n%s```\n", out)
		}
	}

	if len(child.Actions) > 0 {
		labels := make([]string, 0, len(child.Actions))
		for _, a := range child.Actions {
			labels = append(labels, fmt.Sprintf("`%s` %s", a.On, a.Type))
		}
		sort.Strings(labels)
		fmt.Fprintf(&b, "\n%s\n", strings.Join(labels, " · "))
	}
	return b.String()
}
