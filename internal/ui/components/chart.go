package components

import (
	"fmt"
	"strings"

	"github.com/fenilsonani/sortdir/internal/reporter"
	"github.com/fenilsonani/sortdir/internal/ui/styles"
	"github.com/fenilsonani/sortdir/pkg/utils"
)

const (
	minBarWidth = 10
	maxBarWidth = 40
)

// CategoryChart renders one horizontal bar per category, scaled to the
// largest file count and fitted to width columns
func CategoryChart(rows []reporter.CategoryCount, width int) string {
	if len(rows) == 0 {
		return styles.DimStyle.Render("Nothing was moved.")
	}

	labelWidth, maxFiles := 0, 0
	for _, r := range rows {
		labelWidth = max(labelWidth, len(r.Category))
		maxFiles = max(maxFiles, r.Files)
	}

	// label, two spaces, bar, space, count and size
	barWidth := min(max(width-labelWidth-24, minBarWidth), maxBarWidth)

	var b strings.Builder
	for _, r := range rows {
		n := BarLength(r.Files, maxFiles, barWidth)
		fmt.Fprintf(&b, "%s  %s%s %s %s\n",
			styles.CategoryStyle.Render(fmt.Sprintf("%-*s", labelWidth, r.Category)),
			styles.BarStyle.Render(strings.Repeat("█", n)),
			strings.Repeat(" ", barWidth-n),
			styles.BoldStyle.Render(fmt.Sprintf("%4d", r.Files)),
			styles.FileSizeStyle.Render(utils.FormatBytes(r.Bytes)),
		)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// BarLength scales files against maxFiles; any non-zero count gets at
// least one cell
func BarLength(files, maxFiles, width int) int {
	if files <= 0 || maxFiles <= 0 || width <= 0 {
		return 0
	}
	return max(files*width/maxFiles, 1)
}
