// Package notification composes the message posted for a relevant kill.
package notification

// Color classifies a notification.
type Color int

const (
	// Good marks kills the watched entity took part in as an attacker.
	Good Color = iota
	// Danger marks losses of the watched entity.
	Danger
)

// String implements the fmt.Stringer interface. The values are Slack attachment colors.
func (c Color) String() string {
	if c == Danger {
		return "danger"
	}

	return "good"
}

// RGB returns the color as 0xRRGGBB, e.g. for Discord embeds.
func (c Color) RGB() int {
	if c == Danger {
		return 0xBF2A2A
	}

	return 0x2EB886
}

// Field is a titled value of a notification.
type Field struct {
	Title string
	Value string
	// Short fields may be displayed side by side.
	Short bool
}

// Payload is a transport-independent notification.
// Field values may contain links in the <url|text> markup.
type Payload struct {
	Color     Color
	Title     string
	Fallback  string
	Link      string
	Thumbnail string
	Fields    []Field
}
