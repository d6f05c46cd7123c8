package display

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/backmassage/reelrunner/internal/term"
)

const banner = ` ___          _ ___
| _ \___ ___| | _ \_  _ _ _  _ _  ___ _ _
|   / -_) -_) |   / || | ' \| ' \/ -_) '_|
|_|_\___\___|_|_|_\\_,_|_||_|_||_\___|_|`

var bannerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))

// PrintBanner writes the ASCII banner and version; styled only when colors
// are enabled so piped output stays plain.
func PrintBanner(w io.Writer, version string) {
	text := banner + "\n  v" + version
	if term.Enabled() {
		text = bannerStyle.Render(text)
	}
	fmt.Fprintln(w, text)
}
