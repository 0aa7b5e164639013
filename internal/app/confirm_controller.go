package app

import (
	"strings"
	"unicode"

	tea "charm.land/bubbletea/v2"
	xansi "github.com/charmbracelet/x/ansi"
)

const (
	confirmMaxWidth = 64
	confirmMinWidth = 28
)

type confirmPurpose int

const (
	confirmPurposeNone confirmPurpose = iota
	confirmPurposeUnsaved
	confirmPurposeDeleteModel
	confirmPurposeReset
)

// confirmResult is the outcome of a key or click. choice is the index of the
// picked button and is only meaningful when done is set without cancelled.
type confirmResult struct {
	done      bool
	cancelled bool
	choice    int
}

type ConfirmController struct {
	active   bool
	purpose  confirmPurpose
	title    string
	message  string
	buttons  []string
	selected int
}

func NewConfirmController() *ConfirmController {
	return &ConfirmController{}
}

func (c *ConfirmController) IsOpen() bool {
	return c != nil && c.active
}

func (c *ConfirmController) Purpose() confirmPurpose {
	if c == nil || !c.active {
		return confirmPurposeNone
	}
	return c.purpose
}

// Open shows the dialog. With no buttons it falls back to Confirm/Cancel.
func (c *ConfirmController) Open(purpose confirmPurpose, title, message string, buttons ...string) {
	if c == nil {
		return
	}
	if len(buttons) == 0 {
		buttons = []string{"Confirm", "Cancel"}
	}
	c.active = true
	c.purpose = purpose
	c.title = strings.TrimSpace(title)
	c.message = strings.TrimSpace(message)
	c.buttons = append([]string(nil), buttons...)
	c.selected = 0
}

func (c *ConfirmController) Close() {
	if c == nil {
		return
	}
	c.active = false
	c.purpose = confirmPurposeNone
	c.title = ""
	c.message = ""
	c.buttons = nil
	c.selected = 0
}

func (c *ConfirmController) HandleKey(msg tea.KeyMsg) (bool, confirmResult) {
	if c == nil || !c.active {
		return false, confirmResult{}
	}
	key := msg.String()
	switch key {
	case "esc", "q":
		return true, confirmResult{done: true, cancelled: true}
	case "left", "h", "shift+tab":
		c.selected = (c.selected - 1 + len(c.buttons)) % len(c.buttons)
		return true, confirmResult{}
	case "right", "l", "tab":
		c.selected = (c.selected + 1) % len(c.buttons)
		return true, confirmResult{}
	case "enter":
		return true, confirmResult{done: true, choice: c.selected}
	case "y":
		if len(c.buttons) == 2 {
			return true, confirmResult{done: true, choice: 0}
		}
	case "n":
		if len(c.buttons) == 2 {
			return true, confirmResult{done: true, choice: 1}
		}
	}
	if idx := c.shortcut(key); idx >= 0 {
		c.selected = idx
		return true, confirmResult{done: true, choice: idx}
	}
	return true, confirmResult{}
}

// shortcut matches a single key against the first letter of each button.
func (c *ConfirmController) shortcut(key string) int {
	if len([]rune(key)) != 1 {
		return -1
	}
	r := unicode.ToLower([]rune(key)[0])
	match := -1
	for i, label := range c.buttons {
		runes := []rune(strings.TrimSpace(label))
		if len(runes) == 0 || unicode.ToLower(runes[0]) != r {
			continue
		}
		if match >= 0 {
			return -1
		}
		match = i
	}
	return match
}

func (c *ConfirmController) HandleMouse(msg tea.MouseMsg, maxWidth, maxHeight int) (bool, confirmResult) {
	if c == nil || !c.active {
		return false, confirmResult{}
	}
	if _, ok := msg.(tea.MouseClickMsg); !ok {
		return false, confirmResult{}
	}
	mouse := msg.Mouse()
	if mouse.Button != tea.MouseLeft {
		return false, confirmResult{}
	}
	x, y, width, height := c.layout(maxWidth, maxHeight)
	if mouse.X < x || mouse.X >= x+width || mouse.Y < y || mouse.Y >= y+height {
		return false, confirmResult{}
	}
	buttonRow := y + height - 2
	if mouse.Y != buttonRow {
		return true, confirmResult{}
	}
	contentX := x + 1
	contentWidth := max(1, width-2)
	if mouse.X < contentX || mouse.X >= contentX+contentWidth {
		return true, confirmResult{}
	}
	slot := contentWidth / len(c.buttons)
	idx := min((mouse.X-contentX)/max(1, slot), len(c.buttons)-1)
	c.selected = idx
	return true, confirmResult{done: true, choice: idx}
}

func (c *ConfirmController) View(maxWidth, maxHeight int) (string, int) {
	if c == nil || !c.active {
		return "", 0
	}
	x, y, width, _ := c.layout(maxWidth, maxHeight)
	innerWidth := max(1, width-2)
	contentWidth := max(1, innerWidth-2)
	title := c.title
	if title == "" {
		title = "Confirm"
	}
	title = truncateToWidth(title, contentWidth)
	lines := []string{contextMenuHeaderStyle.Render(" " + padToWidth(title, contentWidth) + " ")}

	if c.message != "" {
		wrapped := xansi.Hardwrap(c.message, contentWidth, true)
		for _, line := range strings.Split(wrapped, "\n") {
			line = truncateToWidth(line, contentWidth)
			lines = append(lines, menuDropStyle.Render(" "+padToWidth(line, contentWidth)+" "))
		}
	}

	slot := contentWidth / len(c.buttons)
	var row strings.Builder
	used := 0
	for i, label := range c.buttons {
		w := slot
		if i == len(c.buttons)-1 {
			w = contentWidth - used
		}
		used += w
		button := padToWidth(truncateToWidth("["+label+"]", w), w)
		if i == c.selected {
			row.WriteString(selectedStyle.Render(button))
		} else {
			row.WriteString(menuDropStyle.Render(button))
		}
	}
	buttonLine := " " + row.String() + " "
	if xansi.StringWidth(buttonLine) < innerWidth {
		buttonLine = padToWidth(buttonLine, innerWidth)
	}
	lines = append(lines, buttonLine)

	block := confirmDialogBorderStyle.Render(strings.Join(lines, "\n"))
	if x > 0 {
		block = indentBlock(block, x)
	}
	return block, y
}

func (c *ConfirmController) layout(maxWidth, maxHeight int) (int, int, int, int) {
	width := c.menuWidth()
	if maxWidth > 0 && width > maxWidth {
		width = maxWidth
	}
	height := c.menuHeight(width)
	x, y := 0, 0
	if maxWidth > 0 {
		x = max(0, (maxWidth-width)/2)
	}
	if maxHeight > 0 {
		y = max(0, (maxHeight-height)/2)
	}
	return x, y, width, height
}

func (c *ConfirmController) menuWidth() int {
	contentWidth := xansi.StringWidth(c.title)
	if w := xansi.StringWidth(c.message); w > contentWidth {
		contentWidth = w
	}
	buttonWidth := 0
	for _, label := range c.buttons {
		buttonWidth += xansi.StringWidth(label) + 3
	}
	if buttonWidth > contentWidth {
		contentWidth = buttonWidth
	}
	width := max(confirmMinWidth, contentWidth+4)
	if width > confirmMaxWidth {
		width = confirmMaxWidth
	}
	return width
}

func (c *ConfirmController) menuHeight(width int) int {
	innerWidth := max(1, width-2)
	contentWidth := max(1, innerWidth-2)
	height := 2
	if c.message != "" {
		wrapped := xansi.Hardwrap(c.message, contentWidth, true)
		height += len(strings.Split(wrapped, "\n"))
	}
	return height + 2
}
