package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/voxkeeper/internal/client/services"
)

// progressBar redraws a single terminal line in place.
type progressBar struct {
	w     io.Writer
	width int
	last  int
	drawn bool
}

func newProgressBar(w io.Writer, width int) *progressBar {
	return &progressBar{w: w, width: width, last: -1}
}

func (b *progressBar) update(p services.Progress) {
	pct := int(p.Percent)
	if pct == b.last {
		return
	}
	b.last = pct

	filled := pct * b.width / 100
	fmt.Fprintf(b.w, "\r[%s%s] %3d%% %-11s",
		strings.Repeat("#", filled), strings.Repeat("-", b.width-filled), pct, p.Stage)
	b.drawn = true
}

// finish moves the cursor past the bar if one was drawn.
func (b *progressBar) finish() {
	if b.drawn {
		fmt.Fprintln(b.w)
		b.drawn = false
	}
}
