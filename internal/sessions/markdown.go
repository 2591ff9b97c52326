package sessions

import (
	"fmt"
	"strings"
)

// ExportMarkdown renders a session transcript as a markdown document with a
// metadata header, one section per turn.
func ExportMarkdown(sess *Session) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", sess.Name)
	fmt.Fprintf(&b, "- **Provider:** %s\n", sess.Provider)
	fmt.Fprintf(&b, "- **Model:** %s\n", sess.Model)
	fmt.Fprintf(&b, "- **Created:** %s\n", sess.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- **Updated:** %s\n", sess.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- **Turns:** %d\n", len(sess.Messages))
	b.WriteString("\n---\n")

	for _, m := range sess.Messages {
		var heading string
		switch m.Role {
		case "system":
			heading = "System"
		case "assistant":
			heading = "Assistant"
		default:
			heading = "User"
		}
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", heading, strings.TrimRight(m.Content, "\n"))
	}
	return b.String()
}
