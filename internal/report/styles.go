package report

import (
	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/qanalyzer/internal/model"
)

// Fill colors for the header and the rating tiers.
const (
	headerFill  = "366092"
	summaryFill = "D3D3D3"
	highFill    = "90EE90"
	goodFill    = "FFFFE0"
	averageFill = "FFE4B5"
	lowFill     = "FFB6C1"
)

type styles struct {
	header int
	data   int
	rating map[model.Tier]int
	title  int
	label  int
	footer int
}

func thinBorder() []excelize.Border {
	var b []excelize.Border
	for _, side := range []string{"left", "right", "top", "bottom"} {
		b = append(b, excelize.Border{Type: side, Color: "000000", Style: 1})
	}
	return b
}

func solid(color string) excelize.Fill {
	return excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}}
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error

	st.header, err = f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:   solid(headerFill),
		Border: thinBorder(),
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
			WrapText:   true,
		},
	})
	if err != nil {
		return st, err
	}

	st.data, err = f.NewStyle(&excelize.Style{
		Border: thinBorder(),
		Alignment: &excelize.Alignment{
			Horizontal: "left",
			Vertical:   "top",
			WrapText:   true,
		},
	})
	if err != nil {
		return st, err
	}

	st.rating = make(map[model.Tier]int, 4)
	for tier, color := range map[model.Tier]string{
		model.TierHigh:    highFill,
		model.TierGood:    goodFill,
		model.TierAverage: averageFill,
		model.TierLow:     lowFill,
	} {
		id, err := f.NewStyle(&excelize.Style{
			Fill:      solid(color),
			Border:    thinBorder(),
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		})
		if err != nil {
			return st, err
		}
		st.rating[tier] = id
	}

	st.title, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
		Fill: solid(summaryFill),
	})
	if err != nil {
		return st, err
	}

	st.label, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return st, err
	}

	st.footer, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Italic: true, Size: 10}})
	return st, err
}
